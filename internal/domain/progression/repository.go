package progression

import (
	"context"

	"github.com/esat-hub/skills-hub/internal/domain/catalog"
	"github.com/esat-hub/skills-hub/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// READ MODELS
// ══════════════════════════════════════════════════════════════════════════════

// RequesterView is the identity of the user owning a record, as shown to admins.
type RequesterView struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Username  string `json:"username"`
}

// RecordView is a record denormalised with its skill, category and domain,
// and, for the validation queue, the requesting user.
type RecordView struct {
	Record
	Skill catalog.Skill  `json:"skill"`
	User  *RequesterView `json:"user,omitempty"`
}

// StatusCounts holds the number of records per status. Every status is present.
type StatusCounts map[Status]int

// NewStatusCounts returns counts with all four statuses at zero.
func NewStatusCounts() StatusCounts {
	c := make(StatusCounts, 4)
	for _, s := range AllStatuses() {
		c[s] = 0
	}
	return c
}

// Total returns the number of records across all statuses.
func (c StatusCounts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// RecordRepository stores skill records.
type RecordRepository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// Writes
	// ─────────────────────────────────────────────────────────────────────────

	// Create inserts a new record.
	// Returns shared.ErrRecordAlreadyExists if the (user, skill) pair is taken.
	Create(ctx context.Context, record *Record) error

	// Update overwrites status and validation fields.
	// Returns shared.ErrRecordNotFound if the record is gone.
	Update(ctx context.Context, record *Record) error

	// Delete removes a record by ID.
	// Returns shared.ErrRecordNotFound if the record is gone.
	Delete(ctx context.Context, id string) error

	// ─────────────────────────────────────────────────────────────────────────
	// Lookups
	// ─────────────────────────────────────────────────────────────────────────

	// GetByID returns shared.ErrRecordNotFound if absent.
	GetByID(ctx context.Context, id string) (*Record, error)

	// GetByIDForUpdate is GetByID holding a row lock until the unit of work ends.
	GetByIDForUpdate(ctx context.Context, id string) (*Record, error)

	// GetByUserSkill returns shared.ErrRecordNotFound if absent.
	GetByUserSkill(ctx context.Context, userID, skillID string) (*Record, error)

	// GetByUserSkillForUpdate is GetByUserSkill holding a row lock.
	GetByUserSkillForUpdate(ctx context.Context, userID, skillID string) (*Record, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Aggregates and projections
	// ─────────────────────────────────────────────────────────────────────────

	// CountByStatus counts a user's records in one status.
	CountByStatus(ctx context.Context, userID string, status Status) (int, error)

	// CountsByUser counts a user's records per status.
	CountsByUser(ctx context.Context, userID string) (StatusCounts, error)

	// ListByUser returns a user's records, newest request first.
	ListByUser(ctx context.Context, userID string) ([]RecordView, error)

	// ListByStatus returns all records in a status, oldest request first,
	// including the requesting user.
	ListByStatus(ctx context.Context, status Status) ([]RecordView, error)
}

// Tx is the scope of one unit of work. Repositories obtained from it see and
// write the same transaction.
type Tx interface {
	Records() RecordRepository
	Users() user.Directory

	// LockUser takes an exclusive lock on the user until the unit of work ends.
	// Returns shared.ErrUserNotFound if the user does not exist.
	LockUser(ctx context.Context, userID string) error
}

// UnitOfWork runs fn atomically: all of its writes commit together or none do.
// A panic inside fn rolls back and is re-raised.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Store is the non-transactional entry point used by read paths.
type Store interface {
	Records() RecordRepository
	Users() user.Directory
	Catalog() catalog.Catalog
	UnitOfWork
}
