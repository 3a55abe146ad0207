package query

import (
	"context"
	"errors"

	"github.com/esat-hub/skills-hub/internal/domain/progression"
	"github.com/esat-hub/skills-hub/internal/domain/shared"
	"github.com/esat-hub/skills-hub/internal/domain/user"
	"github.com/esat-hub/skills-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST PENDING VALIDATIONS QUERY
// The admin validation queue: every PENDING_VALIDATION record, oldest request
// first, with the requesting user and the skill's category and domain.
// ══════════════════════════════════════════════════════════════════════════════

// ListPendingValidationsQuery is issued by an administrator.
type ListPendingValidationsQuery struct {
	Admin user.Actor
}

// ListPendingValidationsResult is the ordered queue.
type ListPendingValidationsResult struct {
	Items     []progression.RecordView
	FromCache bool
}

// ListPendingValidationsHandler handles ListPendingValidationsQuery.
type ListPendingValidationsHandler struct {
	records progression.RecordRepository
	cache   progression.ReadCache
	log     *logger.Logger
}

// NewListPendingValidationsHandler creates a new handler. cache may be nil.
func NewListPendingValidationsHandler(records progression.RecordRepository, cache progression.ReadCache, log *logger.Logger) *ListPendingValidationsHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ListPendingValidationsHandler{
		records: records,
		cache:   cache,
		log:     log.With(logger.Component("list_pending_validations")),
	}
}

// Handle executes the query.
func (h *ListPendingValidationsHandler) Handle(ctx context.Context, q ListPendingValidationsQuery) (*ListPendingValidationsResult, error) {
	if err := q.Admin.RequireAdmin(); err != nil {
		return nil, err
	}

	var (
		version   int64
		cacheable bool
	)
	if h.cache != nil {
		items, err := h.cache.GetPendingQueue(ctx)
		if err == nil {
			return &ListPendingValidationsResult{Items: items, FromCache: true}, nil
		}
		if !errors.Is(err, progression.ErrCacheMiss) {
			h.log.Warn("queue cache read failed", logger.Err(err))
		}

		version, err = h.cache.QueueVersion(ctx)
		cacheable = err == nil
		if err != nil {
			h.log.Warn("queue cache version read failed", logger.Err(err))
		}
	}

	items, err := h.records.ListByStatus(ctx, progression.StatusPendingValidation)
	if err != nil {
		return nil, shared.WrapError("query", "ListPendingValidations", shared.ErrInternal, "failed to load queue", err)
	}
	if items == nil {
		items = []progression.RecordView{}
	}

	if cacheable {
		err := h.cache.SetPendingQueue(ctx, version, items)
		switch {
		case err == nil:
		case errors.Is(err, progression.ErrStaleCacheWrite):
			h.log.Debug("queue changed while loading, not cached")
		default:
			h.log.Warn("queue cache write failed", logger.Err(err))
		}
	}

	return &ListPendingValidationsResult{Items: items}, nil
}
