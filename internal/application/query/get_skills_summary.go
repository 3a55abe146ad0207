// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
package query

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/esat-hub/skills-hub/internal/domain/progression"
	"github.com/esat-hub/skills-hub/internal/domain/shared"
	"github.com/esat-hub/skills-hub/internal/domain/user"
	"github.com/esat-hub/skills-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET SKILLS SUMMARY QUERY
// Avatar level, per-status counts and the full list of a user's records,
// newest first. The three reads are independent and run concurrently.
// ══════════════════════════════════════════════════════════════════════════════

// GetSkillsSummaryQuery selects the user.
type GetSkillsSummaryQuery struct {
	UserID string
}

// Validate validates the query.
func (q GetSkillsSummaryQuery) Validate() error {
	if _, err := shared.NewUserID(q.UserID); err != nil {
		return err
	}
	return nil
}

// GetSkillsSummaryResult is the user's summary plus cache provenance.
type GetSkillsSummaryResult struct {
	progression.Summary
	FromCache bool `json:"-"`
}

// GetSkillsSummaryHandler handles GetSkillsSummaryQuery.
type GetSkillsSummaryHandler struct {
	records progression.RecordRepository
	users   user.Directory
	cache   progression.ReadCache
	log     *logger.Logger
}

// NewGetSkillsSummaryHandler creates a new handler. cache may be nil.
func NewGetSkillsSummaryHandler(
	records progression.RecordRepository,
	users user.Directory,
	cache progression.ReadCache,
	log *logger.Logger,
) *GetSkillsSummaryHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &GetSkillsSummaryHandler{
		records: records,
		users:   users,
		cache:   cache,
		log:     log.With(logger.Component("get_skills_summary")),
	}
}

// Handle executes the query.
func (h *GetSkillsSummaryHandler) Handle(ctx context.Context, q GetSkillsSummaryQuery) (*GetSkillsSummaryResult, error) {
	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetSkillsSummary", shared.ErrValidation, "invalid query", err)
	}

	if cached, err := h.tryGetFromCache(ctx, q.UserID); err == nil {
		return &GetSkillsSummaryResult{Summary: *cached, FromCache: true}, nil
	}

	// taken before the store reads, so a commit in between makes the write-back stale
	version, cacheable := h.cacheVersion(ctx, q.UserID)

	var (
		level   int
		counts  progression.StatusCounts
		records []progression.RecordView
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lvl, err := h.users.GetAvatarLevel(gctx, q.UserID)
		if err != nil {
			if shared.IsNotFound(err) {
				level = user.DefaultAvatarLevel
				return nil
			}
			return err
		}
		level = lvl
		return nil
	})
	g.Go(func() error {
		c, err := h.records.CountsByUser(gctx, q.UserID)
		counts = c
		return err
	})
	g.Go(func() error {
		r, err := h.records.ListByUser(gctx, q.UserID)
		records = r
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, shared.WrapError("query", "GetSkillsSummary", shared.ErrInternal, "failed to load summary", err)
	}

	if records == nil {
		records = []progression.RecordView{}
	}
	summary := progression.Summary{AvatarLevel: level, StatusCounts: counts, Records: records}
	if cacheable {
		h.storeInCache(ctx, q.UserID, version, &summary)
	}

	return &GetSkillsSummaryResult{Summary: summary}, nil
}

// tryGetFromCache returns the cached summary, or an error on miss or when no
// cache is configured.
func (h *GetSkillsSummaryHandler) tryGetFromCache(ctx context.Context, userID string) (*progression.Summary, error) {
	if h.cache == nil {
		return nil, errors.New("cache not available")
	}
	s, err := h.cache.GetSummary(ctx, userID)
	if err != nil && !errors.Is(err, progression.ErrCacheMiss) {
		h.log.Warn("summary cache read failed", logger.UserID(userID), logger.Err(err))
	}
	return s, err
}

func (h *GetSkillsSummaryHandler) cacheVersion(ctx context.Context, userID string) (int64, bool) {
	if h.cache == nil {
		return 0, false
	}
	v, err := h.cache.SummaryVersion(ctx, userID)
	if err != nil {
		h.log.Warn("summary cache version read failed", logger.UserID(userID), logger.Err(err))
		return 0, false
	}
	return v, true
}

func (h *GetSkillsSummaryHandler) storeInCache(ctx context.Context, userID string, version int64, s *progression.Summary) {
	err := h.cache.SetSummary(ctx, userID, version, s)
	switch {
	case err == nil:
	case errors.Is(err, progression.ErrStaleCacheWrite):
		h.log.Debug("summary changed while loading, not cached", logger.UserID(userID))
	default:
		h.log.Warn("summary cache write failed", logger.UserID(userID), logger.Err(err))
	}
}
