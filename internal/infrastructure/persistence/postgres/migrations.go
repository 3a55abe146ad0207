package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATIONS
// Versioned SQL files embedded in the binary and applied with goose.
// ══════════════════════════════════════════════════════════════════════════════

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrationStatus describes one migration as seen by the database.
type MigrationStatus struct {
	Version   int64
	Name      string
	Applied   bool
	AppliedAt time.Time
}

// Migrator applies the embedded schema migrations.
type Migrator struct {
	provider *goose.Provider
	closeDB  func() error
}

// NewMigrator creates a migrator bound to the connection pool.
func NewMigrator(conn *Connection) (*Migrator, error) {
	fsys, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}

	db := stdlib.OpenDBFromPool(conn.Pool())
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}

	return &Migrator{provider: provider, closeDB: db.Close}, nil
}

// Up applies all pending migrations and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	results, err := m.provider.Up(ctx)
	if err != nil {
		return len(results), fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}
	return len(results), nil
}

// Down rolls back the latest applied migration.
func (m *Migrator) Down(ctx context.Context) error {
	if _, err := m.provider.Down(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}
	return nil
}

// Status reports every known migration in version order.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}

	out := make([]MigrationStatus, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, MigrationStatus{
			Version:   s.Source.Version,
			Name:      s.Source.Path,
			Applied:   s.State == goose.StateApplied,
			AppliedAt: s.AppliedAt,
		})
	}
	return out, nil
}

// Close releases the database/sql handle. The pool itself stays open.
func (m *Migrator) Close() error {
	return m.closeDB()
}

// Migrate is a shortcut for NewMigrator followed by Up.
func Migrate(ctx context.Context, conn *Connection) (int, error) {
	m, err := NewMigrator(conn)
	if err != nil {
		return 0, err
	}
	defer m.Close()
	return m.Up(ctx)
}
