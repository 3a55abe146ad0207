package postgres

import (
	"context"
	"fmt"

	"github.com/esat-hub/skills-hub/internal/domain/catalog"
	"github.com/esat-hub/skills-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CatalogRepository implements catalog.Catalog for PostgreSQL.
type CatalogRepository struct {
	q Querier
}

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(q Querier) *CatalogRepository {
	return &CatalogRepository{q: q}
}

// GetSkill returns a skill with its category and domain.
func (r *CatalogRepository) GetSkill(ctx context.Context, skillID string) (*catalog.Skill, error) {
	query := `
		SELECT s.id, s.name, s.description, s.icon_name, s.is_active,
			   c.id, c.name, d.id, d.name
		FROM skills s
		JOIN categories c ON c.id = s.category_id
		JOIN domains d ON d.id = c.domain_id
		WHERE s.id = $1
	`

	var sk catalog.Skill
	err := r.q.QueryRow(ctx, query, skillID).Scan(
		&sk.ID, &sk.Name, &sk.Description, &sk.IconName, &sk.IsActive,
		&sk.Category.ID, &sk.Category.Name, &sk.Category.Domain.ID, &sk.Category.Domain.Name,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrSkillNotFound
		}
		return nil, fmt.Errorf("failed to get skill: %w", err)
	}

	return &sk, nil
}

// UpsertSkill writes a skill together with its category and domain.
func (r *CatalogRepository) UpsertSkill(ctx context.Context, sk catalog.Skill) error {
	dom, cat := sk.Category.Domain, sk.Category

	if _, err := r.q.Exec(ctx, `
		INSERT INTO domains (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`, dom.ID, dom.Name); err != nil {
		return fmt.Errorf("failed to upsert domain: %w", err)
	}

	if _, err := r.q.Exec(ctx, `
		INSERT INTO categories (id, name, domain_id) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, domain_id = EXCLUDED.domain_id
	`, cat.ID, cat.Name, dom.ID); err != nil {
		return fmt.Errorf("failed to upsert category: %w", err)
	}

	if _, err := r.q.Exec(ctx, `
		INSERT INTO skills (id, name, description, icon_name, is_active, category_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			icon_name = EXCLUDED.icon_name,
			is_active = EXCLUDED.is_active,
			category_id = EXCLUDED.category_id
	`, sk.ID, sk.Name, sk.Description, sk.IconName, sk.IsActive, cat.ID); err != nil {
		return fmt.Errorf("failed to upsert skill: %w", err)
	}

	return nil
}

var _ catalog.Catalog = (*CatalogRepository)(nil)
