package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/esat-hub/skills-hub/internal/domain/progression"
	"github.com/esat-hub/skills-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// Foreign keys declared in the user_skills migration.
const (
	fkRecordSkill     = "fk_user_skills_skill"
	fkRecordValidator = "fk_user_skills_validator"
)

const recordColumns = `
	us.id::text, us.user_id, us.skill_id, us.status, us.requested_at,
	us.validated_at, us.validated_by, us.rejection_reason`

const skillColumns = `
	s.id, s.name, s.description, s.icon_name, s.is_active,
	c.id, c.name, d.id, d.name`

const skillJoins = `
	JOIN skills s ON s.id = us.skill_id
	JOIN categories c ON c.id = s.category_id
	JOIN domains d ON d.id = c.domain_id`

// RecordRepository implements progression.RecordRepository for PostgreSQL.
// It runs against the pool or, inside a unit of work, against the transaction.
type RecordRepository struct {
	q Querier
}

// NewRecordRepository creates a repository over any Querier.
func NewRecordRepository(q Querier) *RecordRepository {
	return &RecordRepository{q: q}
}

// ─────────────────────────────────────────────────────────────────────────────
// Writes
// ─────────────────────────────────────────────────────────────────────────────

// Create inserts a new record.
func (r *RecordRepository) Create(ctx context.Context, rec *progression.Record) error {
	query := `
		INSERT INTO user_skills (
			id, user_id, skill_id, status, requested_at,
			validated_at, validated_by, rejection_reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.q.Exec(ctx, query,
		rec.ID,
		rec.UserID,
		rec.SkillID,
		string(rec.Status),
		rec.RequestedAt,
		rec.ValidatedAt,
		rec.ValidatedBy,
		rec.RejectionReason,
	)
	if err != nil {
		switch {
		case IsUniqueViolation(err):
			return shared.ErrRecordAlreadyExists
		case IsForeignKeyViolation(err):
			switch constraintName(err) {
			case fkRecordSkill:
				return shared.ErrSkillNotFound
			case fkRecordValidator:
				return shared.ErrUnknownValidator
			}
			return shared.ErrUserNotFound
		}
		return fmt.Errorf("failed to create record: %w", err)
	}

	return nil
}

// Update overwrites status and validation fields. Identity and requested_at
// are never written after creation.
func (r *RecordRepository) Update(ctx context.Context, rec *progression.Record) error {
	if !isUUID(rec.ID) {
		return shared.ErrRecordNotFound
	}

	query := `
		UPDATE user_skills SET
			status = $1,
			validated_at = $2,
			validated_by = $3,
			rejection_reason = $4
		WHERE id = $5
	`

	tag, err := r.q.Exec(ctx, query,
		string(rec.Status),
		rec.ValidatedAt,
		rec.ValidatedBy,
		rec.RejectionReason,
		rec.ID,
	)
	if err != nil {
		if IsForeignKeyViolation(err) && constraintName(err) == fkRecordValidator {
			return shared.ErrUnknownValidator
		}
		return fmt.Errorf("failed to update record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrRecordNotFound
	}

	return nil
}

// Delete removes a record.
func (r *RecordRepository) Delete(ctx context.Context, id string) error {
	if !isUUID(id) {
		return shared.ErrRecordNotFound
	}

	tag, err := r.q.Exec(ctx, `DELETE FROM user_skills WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrRecordNotFound
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Lookups
// ─────────────────────────────────────────────────────────────────────────────

// GetByID returns a record by ID.
func (r *RecordRepository) GetByID(ctx context.Context, id string) (*progression.Record, error) {
	return r.getByID(ctx, id, "")
}

// GetByIDForUpdate returns a record by ID and locks its row.
func (r *RecordRepository) GetByIDForUpdate(ctx context.Context, id string) (*progression.Record, error) {
	return r.getByID(ctx, id, "FOR UPDATE")
}

func (r *RecordRepository) getByID(ctx context.Context, id, lock string) (*progression.Record, error) {
	// a malformed id would abort the surrounding transaction with 22P02
	if !isUUID(id) {
		return nil, shared.ErrRecordNotFound
	}

	query := `SELECT ` + recordColumns + ` FROM user_skills us WHERE us.id = $1 ` + lock
	return scanRecord(r.q.QueryRow(ctx, query, id))
}

// GetByUserSkill returns the record for a (user, skill) pair.
func (r *RecordRepository) GetByUserSkill(ctx context.Context, userID, skillID string) (*progression.Record, error) {
	return r.getByUserSkill(ctx, userID, skillID, "")
}

// GetByUserSkillForUpdate returns the record for a pair and locks its row.
func (r *RecordRepository) GetByUserSkillForUpdate(ctx context.Context, userID, skillID string) (*progression.Record, error) {
	return r.getByUserSkill(ctx, userID, skillID, "FOR UPDATE")
}

func (r *RecordRepository) getByUserSkill(ctx context.Context, userID, skillID, lock string) (*progression.Record, error) {
	query := `SELECT ` + recordColumns + `
		FROM user_skills us
		WHERE us.user_id = $1 AND us.skill_id = $2 ` + lock
	return scanRecord(r.q.QueryRow(ctx, query, userID, skillID))
}

// ─────────────────────────────────────────────────────────────────────────────
// Aggregates and projections
// ─────────────────────────────────────────────────────────────────────────────

// CountByStatus counts a user's records in one status.
func (r *RecordRepository) CountByStatus(ctx context.Context, userID string, status progression.Status) (int, error) {
	var n int
	err := r.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM user_skills WHERE user_id = $1 AND status = $2`,
		userID, string(status),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

// CountsByUser counts a user's records per status.
func (r *RecordRepository) CountsByUser(ctx context.Context, userID string) (progression.StatusCounts, error) {
	rows, err := r.q.Query(ctx,
		`SELECT status, COUNT(*) FROM user_skills WHERE user_id = $1 GROUP BY status`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	defer rows.Close()

	counts := progression.NewStatusCounts()
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[progression.Status(status)] = n
	}

	return counts, rows.Err()
}

// ListByUser returns a user's records, newest request first.
func (r *RecordRepository) ListByUser(ctx context.Context, userID string) ([]progression.RecordView, error) {
	query := `SELECT ` + recordColumns + `,` + skillColumns + `
		FROM user_skills us ` + skillJoins + `
		WHERE us.user_id = $1
		ORDER BY us.requested_at DESC, us.id DESC`

	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	views := make([]progression.RecordView, 0)
	for rows.Next() {
		v, err := scanRecordView(rows, false)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}

	return views, rows.Err()
}

// ListByStatus returns all records in a status, oldest request first.
func (r *RecordRepository) ListByStatus(ctx context.Context, status progression.Status) ([]progression.RecordView, error) {
	query := `SELECT ` + recordColumns + `,` + skillColumns + `,
			u.id, u.first_name, u.last_name, u.username
		FROM user_skills us ` + skillJoins + `
		JOIN users u ON u.id = us.user_id
		WHERE us.status = $1
		ORDER BY us.requested_at ASC, us.id ASC`

	rows, err := r.q.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	views := make([]progression.RecordView, 0)
	for rows.Next() {
		v, err := scanRecordView(rows, true)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}

	return views, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

func scanRecord(row pgx.Row) (*progression.Record, error) {
	var (
		rec    progression.Record
		status string
	)
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.SkillID, &status, &rec.RequestedAt,
		&rec.ValidatedAt, &rec.ValidatedBy, &rec.RejectionReason,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to scan record: %w", err)
	}
	rec.Status = progression.Status(status)
	normalizeTimes(&rec)
	return &rec, nil
}

func scanRecordView(rows pgx.Rows, withUser bool) (progression.RecordView, error) {
	var (
		v      progression.RecordView
		status string
		sk     = &v.Skill
	)
	dest := []any{
		&v.ID, &v.UserID, &v.SkillID, &status, &v.RequestedAt,
		&v.ValidatedAt, &v.ValidatedBy, &v.RejectionReason,
		&sk.ID, &sk.Name, &sk.Description, &sk.IconName, &sk.IsActive,
		&sk.Category.ID, &sk.Category.Name, &sk.Category.Domain.ID, &sk.Category.Domain.Name,
	}
	if withUser {
		v.User = &progression.RequesterView{}
		dest = append(dest, &v.User.ID, &v.User.FirstName, &v.User.LastName, &v.User.Username)
	}

	if err := rows.Scan(dest...); err != nil {
		return v, fmt.Errorf("failed to scan record view: %w", err)
	}
	v.Status = progression.Status(status)
	normalizeTimes(&v.Record)
	return v, nil
}

func normalizeTimes(rec *progression.Record) {
	rec.RequestedAt = rec.RequestedAt.UTC()
	if rec.ValidatedAt != nil {
		t := rec.ValidatedAt.UTC()
		rec.ValidatedAt = &t
	}
}

func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func constraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

// compile-time check
var _ progression.RecordRepository = (*RecordRepository)(nil)
