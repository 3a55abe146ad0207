// Package catalog describes the read-only skill taxonomy: domains contain
// categories, categories contain skills. Progression only reads from it.
package catalog

import (
	"context"
)

// Domain is the top level of the taxonomy (e.g. "Mathematics").
type Domain struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Category groups skills inside a domain.
type Category struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Domain Domain `json:"domain"`
}

// Skill is a catalog entry a user can progress on.
type Skill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	IconName    string   `json:"iconName,omitempty"`
	IsActive    bool     `json:"-"`
	Category    Category `json:"category"`
}

// IsAvailable reports whether users may start this skill.
func (s *Skill) IsAvailable() bool {
	return s != nil && s.IsActive
}

// Catalog is the port onto the skill catalog.
type Catalog interface {
	// GetSkill returns the skill with its category and domain.
	// Returns shared.ErrSkillNotFound if the skill does not exist.
	GetSkill(ctx context.Context, skillID string) (*Skill, error)
}
