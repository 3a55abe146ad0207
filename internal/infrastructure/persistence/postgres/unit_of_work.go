package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/esat-hub/skills-hub/internal/domain/catalog"
	"github.com/esat-hub/skills-hub/internal/domain/progression"
	"github.com/esat-hub/skills-hub/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// STORE AND UNIT OF WORK
// ══════════════════════════════════════════════════════════════════════════════

// Store implements progression.Store on a connection pool.
type Store struct {
	conn    *Connection
	records *RecordRepository
	users   *UserRepository
	catalog *CatalogRepository
}

// NewStore creates a store over conn.
func NewStore(conn *Connection) *Store {
	pool := conn.Pool()
	return &Store{
		conn:    conn,
		records: NewRecordRepository(pool),
		users:   NewUserRepository(pool),
		catalog: NewCatalogRepository(pool),
	}
}

// Records returns the non-transactional record repository.
func (s *Store) Records() progression.RecordRepository { return s.records }

// Users returns the non-transactional user directory.
func (s *Store) Users() user.Directory { return s.users }

// Catalog returns the skill catalog.
func (s *Store) Catalog() catalog.Catalog { return s.catalog }

// Do runs fn in a read-committed transaction.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, tx progression.Tx) error) error {
	return s.conn.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, newPgTx(tx))
	})
}

// pgTx is the transactional view handed to a unit of work.
type pgTx struct {
	records *RecordRepository
	users   *UserRepository
}

func newPgTx(tx pgx.Tx) *pgTx {
	return &pgTx{
		records: NewRecordRepository(tx),
		users:   NewUserRepository(tx),
	}
}

func (t *pgTx) Records() progression.RecordRepository { return t.records }

func (t *pgTx) Users() user.Directory { return t.users }

// LockUser serialises every progression write for one user.
func (t *pgTx) LockUser(ctx context.Context, userID string) error {
	return t.users.lock(ctx, userID)
}

var _ progression.Store = (*Store)(nil)
