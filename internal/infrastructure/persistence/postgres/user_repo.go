package postgres

import (
	"context"
	"fmt"

	"github.com/esat-hub/skills-hub/internal/domain/progression"
	"github.com/esat-hub/skills-hub/internal/domain/shared"
	"github.com/esat-hub/skills-hub/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER DIRECTORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// UserRepository implements user.Directory for PostgreSQL.
type UserRepository struct {
	q Querier
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(q Querier) *UserRepository {
	return &UserRepository{q: q}
}

// GetUser returns a user by ID.
func (r *UserRepository) GetUser(ctx context.Context, userID string) (*user.User, error) {
	query := `
		SELECT id, username, first_name, last_name, role, avatar_level, is_active
		FROM users
		WHERE id = $1
	`

	var (
		u    user.User
		role string
	)
	err := r.q.QueryRow(ctx, query, userID).Scan(
		&u.ID, &u.Username, &u.FirstName, &u.LastName, &role, &u.AvatarLevel, &u.IsActive,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.Role = user.ParseRole(role)

	return &u, nil
}

// GetAvatarLevel returns the stored avatar level.
func (r *UserRepository) GetAvatarLevel(ctx context.Context, userID string) (int, error) {
	var level int
	err := r.q.QueryRow(ctx, `SELECT avatar_level FROM users WHERE id = $1`, userID).Scan(&level)
	if err != nil {
		if IsNoRows(err) {
			return 0, shared.ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to get avatar level: %w", err)
	}
	if level < progression.MinAvatarLevel {
		return user.DefaultAvatarLevel, nil
	}
	return level, nil
}

// SetAvatarLevel overwrites the stored avatar level.
func (r *UserRepository) SetAvatarLevel(ctx context.Context, userID string, level int) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE users SET avatar_level = $1, updated_at = NOW() WHERE id = $2`,
		level, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to set avatar level: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrUserNotFound
	}
	return nil
}

// lock takes a row lock on the user until the transaction ends.
func (r *UserRepository) lock(ctx context.Context, userID string) error {
	var id string
	err := r.q.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&id)
	if err != nil {
		if IsNoRows(err) {
			return shared.ErrUserNotFound
		}
		return fmt.Errorf("failed to lock user: %w", err)
	}
	return nil
}

// Upsert writes a directory entry. The avatar level of an existing user is kept.
func (r *UserRepository) Upsert(ctx context.Context, u user.User) error {
	level := u.AvatarLevel
	if level < progression.MinAvatarLevel {
		level = user.DefaultAvatarLevel
	}

	_, err := r.q.Exec(ctx, `
		INSERT INTO users (id, username, first_name, last_name, role, avatar_level, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			role = EXCLUDED.role,
			is_active = EXCLUDED.is_active,
			updated_at = NOW()
	`, u.ID, u.Username, u.FirstName, u.LastName, string(u.Role), level, u.IsActive)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

var _ user.Directory = (*UserRepository)(nil)
