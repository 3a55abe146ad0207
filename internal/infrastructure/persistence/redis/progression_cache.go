package redis

import (
	"context"
	"errors"
	"time"

	"github.com/esat-hub/skills-hub/internal/domain/progression"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESSION READ CACHE
// ══════════════════════════════════════════════════════════════════════════════

// Key prefixes.
const (
	PrefixSummary        = "summary:"
	PrefixSummaryVersion = "summary-version:"
	KeyPendingQueue      = "validations:pending"
	KeyQueueVersion      = "validations:pending-version"
)

// Default TTLs. Invalidation on events is the primary freshness mechanism;
// TTLs bound staleness if an invalidation is lost.
const (
	TTLSummary      = 10 * time.Minute
	TTLPendingQueue = 2 * time.Minute

	// TTLVersion outlives any read that could still hold an older version.
	TTLVersion = 24 * time.Hour
)

// SummaryKey generates a cache key for a user's summary.
func SummaryKey(userID string) string {
	return PrefixSummary + userID
}

// SummaryVersionKey is the version key guarding SummaryKey(userID).
func SummaryVersionKey(userID string) string {
	return PrefixSummaryVersion + userID
}

// ProgressionCache implements progression.ReadCache.
type ProgressionCache struct {
	cache      *Cache
	summaryTTL time.Duration
	queueTTL   time.Duration
}

// ProgressionCacheOption configures a ProgressionCache.
type ProgressionCacheOption func(*ProgressionCache)

// WithSummaryTTL overrides TTLSummary.
func WithSummaryTTL(d time.Duration) ProgressionCacheOption {
	return func(p *ProgressionCache) {
		if d > 0 {
			p.summaryTTL = d
		}
	}
}

// WithQueueTTL overrides TTLPendingQueue.
func WithQueueTTL(d time.Duration) ProgressionCacheOption {
	return func(p *ProgressionCache) {
		if d > 0 {
			p.queueTTL = d
		}
	}
}

// NewProgressionCache creates the read cache on top of cache.
func NewProgressionCache(cache *Cache, opts ...ProgressionCacheOption) *ProgressionCache {
	p := &ProgressionCache{
		cache:      cache,
		summaryTTL: TTLSummary,
		queueTTL:   TTLPendingQueue,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GetSummary returns progression.ErrCacheMiss when nothing is cached.
func (p *ProgressionCache) GetSummary(ctx context.Context, userID string) (*progression.Summary, error) {
	var s progression.Summary
	if err := p.cache.Get(ctx, SummaryKey(userID), &s); err != nil {
		return nil, translateMiss(err)
	}
	if s.Records == nil {
		s.Records = []progression.RecordView{}
	}
	return &s, nil
}

// SummaryVersion returns the version SetSummary must be called with.
func (p *ProgressionCache) SummaryVersion(ctx context.Context, userID string) (int64, error) {
	return p.cache.Version(ctx, SummaryVersionKey(userID))
}

// SetSummary caches a summary built after SummaryVersion returned version.
func (p *ProgressionCache) SetSummary(ctx context.Context, userID string, version int64, summary *progression.Summary) error {
	err := p.cache.SetIfVersion(ctx, SummaryVersionKey(userID), version, SummaryKey(userID), summary, p.summaryTTL)
	return translateStale(err)
}

// InvalidateSummary drops a user's cached summary and moves its version.
func (p *ProgressionCache) InvalidateSummary(ctx context.Context, userID string) error {
	return p.cache.Invalidate(ctx, SummaryVersionKey(userID), TTLVersion, SummaryKey(userID))
}

// GetPendingQueue returns progression.ErrCacheMiss when nothing is cached.
func (p *ProgressionCache) GetPendingQueue(ctx context.Context) ([]progression.RecordView, error) {
	var items []progression.RecordView
	if err := p.cache.Get(ctx, KeyPendingQueue, &items); err != nil {
		return nil, translateMiss(err)
	}
	if items == nil {
		items = []progression.RecordView{}
	}
	return items, nil
}

// QueueVersion returns the version SetPendingQueue must be called with.
func (p *ProgressionCache) QueueVersion(ctx context.Context) (int64, error) {
	return p.cache.Version(ctx, KeyQueueVersion)
}

// SetPendingQueue caches the validation queue.
func (p *ProgressionCache) SetPendingQueue(ctx context.Context, version int64, queue []progression.RecordView) error {
	if queue == nil {
		queue = []progression.RecordView{}
	}
	err := p.cache.SetIfVersion(ctx, KeyQueueVersion, version, KeyPendingQueue, queue, p.queueTTL)
	return translateStale(err)
}

// InvalidatePendingQueue drops the cached validation queue and moves its version.
func (p *ProgressionCache) InvalidatePendingQueue(ctx context.Context) error {
	return p.cache.Invalidate(ctx, KeyQueueVersion, TTLVersion, KeyPendingQueue)
}

func translateMiss(err error) error {
	if errors.Is(err, ErrCacheMiss) {
		return progression.ErrCacheMiss
	}
	return err
}

func translateStale(err error) error {
	if errors.Is(err, ErrCacheStale) {
		return progression.ErrStaleCacheWrite
	}
	return err
}

var _ progression.ReadCache = (*ProgressionCache)(nil)
