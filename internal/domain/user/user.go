// Package user holds the parts of the user directory that progression depends on:
// identity, role and the stored avatar level.
package user

import (
	"context"
	"strings"

	"github.com/esat-hub/skills-hub/internal/domain/shared"
)

// Role is the authorization role of an account.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ParseRole normalizes a role string. Unknown values fall back to RoleUser.
func ParseRole(s string) Role {
	if strings.EqualFold(strings.TrimSpace(s), string(RoleAdmin)) {
		return RoleAdmin
	}
	return RoleUser
}

// DefaultAvatarLevel is reported for users without a stored level.
const DefaultAvatarLevel = 1

// User is a directory entry.
type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Role        Role   `json:"role"`
	AvatarLevel int    `json:"avatarLevel"`
	IsActive    bool   `json:"isActive"`
}

// Actor is an already authenticated caller.
type Actor struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the actor may take validation decisions.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Validate checks that the caller is identified.
func (a Actor) Validate() error {
	if strings.TrimSpace(a.UserID) == "" {
		return shared.ErrNoActor
	}
	return nil
}

// RequireAdmin returns shared.ErrAdminRequired for non-admin callers.
func (a Actor) RequireAdmin() error {
	if err := a.Validate(); err != nil {
		return err
	}
	if !a.IsAdmin() {
		return shared.ErrAdminRequired
	}
	return nil
}

// Directory is the port onto user storage.
type Directory interface {
	// GetUser returns shared.ErrUserNotFound if the user does not exist.
	GetUser(ctx context.Context, userID string) (*User, error)

	// GetAvatarLevel returns DefaultAvatarLevel when the user has no stored level
	// and shared.ErrUserNotFound when the user does not exist.
	GetAvatarLevel(ctx context.Context, userID string) (int, error)

	// SetAvatarLevel overwrites the stored level. Only the approval flow calls it.
	SetAvatarLevel(ctx context.Context, userID string, level int) error
}
