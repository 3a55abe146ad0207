package progression

import (
	"context"
	"errors"
)

// Summary is a user's progression overview.
type Summary struct {
	AvatarLevel  int          `json:"avatarLevel"`
	StatusCounts StatusCounts `json:"statusCounts"`
	Records      []RecordView `json:"records"`
}

var (
	// ErrCacheMiss is returned by ReadCache lookups when nothing is cached.
	ErrCacheMiss = errors.New("progression: cache miss")

	// ErrStaleCacheWrite is returned by ReadCache setters when the entry was
	// invalidated after the caller took its version.
	ErrStaleCacheWrite = errors.New("progression: cache entry changed since read")
)

// ReadCache holds derived read models. Entries are dropped when a committed
// event touches them; implementations may also expire them.
//
// Every invalidation moves the entry's version. A reader takes the version
// before loading from the store and hands it back to the setter, which refuses
// the write if an invalidation happened in between.
type ReadCache interface {
	GetSummary(ctx context.Context, userID string) (*Summary, error)
	SummaryVersion(ctx context.Context, userID string) (int64, error)
	SetSummary(ctx context.Context, userID string, version int64, summary *Summary) error
	InvalidateSummary(ctx context.Context, userID string) error

	GetPendingQueue(ctx context.Context) ([]RecordView, error)
	QueueVersion(ctx context.Context) (int64, error)
	SetPendingQueue(ctx context.Context, version int64, queue []RecordView) error
	InvalidatePendingQueue(ctx context.Context) error
}
