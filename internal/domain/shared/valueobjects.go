package shared

import (
	"regexp"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UserID identifies a user in the user directory. The directory owns the format,
// so only emptiness is checked here.
type UserID string

// IsValid checks if the user ID is non-empty.
func (u UserID) IsValid() bool {
	return strings.TrimSpace(string(u)) != ""
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// NewUserID creates a new UserID with validation.
func NewUserID(id string) (UserID, error) {
	u := UserID(strings.TrimSpace(id))
	if !u.IsValid() {
		return "", NewDomainError("user", "Validate", ErrInvalidID, "user id is required")
	}
	return u, nil
}

// SkillID identifies a skill in the catalog.
type SkillID string

// IsValid checks if the skill ID is non-empty.
func (s SkillID) IsValid() bool {
	return strings.TrimSpace(string(s)) != ""
}

// String returns the string representation.
func (s SkillID) String() string {
	return string(s)
}

// NewSkillID creates a new SkillID with validation.
func NewSkillID(id string) (SkillID, error) {
	s := SkillID(strings.TrimSpace(id))
	if !s.IsValid() {
		return "", NewDomainError("catalog", "Validate", ErrInvalidID, "skill id is required")
	}
	return s, nil
}

// RecordID identifies a user skill record (UUID format).
type RecordID string

// UUID validation regex (simple version).
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsValid checks if the record ID is a valid UUID.
func (r RecordID) IsValid() bool {
	return uuidRegex.MatchString(string(r))
}
