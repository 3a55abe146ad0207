// Package progression is the core of the skills hub: the per-user skill record,
// its state machine and the avatar level derived from acquired skills.
//
// Users move a record between IN_PROGRESS and PENDING_VALIDATION; only an
// administrator decision moves it to ACQUIRED or REJECTED. ACQUIRED records are
// immutable and never deleted.
package progression

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/esat-hub/skills-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status is the lifecycle state of a skill record.
type Status string

const (
	StatusInProgress        Status = "IN_PROGRESS"
	StatusPendingValidation Status = "PENDING_VALIDATION"
	StatusAcquired          Status = "ACQUIRED"
	StatusRejected          Status = "REJECTED"
)

// AllStatuses lists every status in lifecycle order.
func AllStatuses() []Status {
	return []Status{StatusInProgress, StatusPendingValidation, StatusAcquired, StatusRejected}
}

// ParseStatus converts a wire value into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", shared.ErrInvalidStatus
	}
	return st, nil
}

// IsValid checks that the status is one of the four known values.
func (s Status) IsValid() bool {
	switch s {
	case StatusInProgress, StatusPendingValidation, StatusAcquired, StatusRejected:
		return true
	}
	return false
}

// IsUserSettable reports whether a user may put a record into this status.
func (s Status) IsUserSettable() bool {
	return s == StatusInProgress || s == StatusPendingValidation
}

// IsTerminal reports whether the status results from an admin decision.
func (s Status) IsTerminal() bool {
	return s == StatusAcquired || s == StatusRejected
}

// String returns the wire representation.
func (s Status) String() string {
	return string(s)
}

// MaxRejectionReasonLength bounds the rejection reason, counted in characters.
const MaxRejectionReasonLength = 500

// ValidateRejectionReason checks that a reason is present and not too long.
func ValidateRejectionReason(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return shared.ErrReasonRequired
	}
	if utf8.RuneCountInString(reason) > MaxRejectionReasonLength {
		return shared.ErrReasonTooLong
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORD
// ══════════════════════════════════════════════════════════════════════════════

// Record is one user's progress on one skill. At most one record exists per
// (UserID, SkillID).
type Record struct {
	ID              string     `json:"id"`
	UserID          string     `json:"userId"`
	SkillID         string     `json:"skillId"`
	Status          Status     `json:"status"`
	RequestedAt     time.Time  `json:"requestedAt"`
	ValidatedAt     *time.Time `json:"validatedAt,omitempty"`
	ValidatedBy     *string    `json:"validatedBy,omitempty"`
	RejectionReason *string    `json:"rejectionReason,omitempty"`
}

// NewRecord creates a record started by the user at now.
func NewRecord(userID, skillID string, initial Status, now time.Time) (*Record, error) {
	if _, err := shared.NewUserID(userID); err != nil {
		return nil, err
	}
	if _, err := shared.NewSkillID(skillID); err != nil {
		return nil, err
	}
	if !initial.IsUserSettable() {
		return nil, shared.ErrInvalidStatus
	}
	return &Record{
		ID:          uuid.New().String(),
		UserID:      userID,
		SkillID:     skillID,
		Status:      initial,
		RequestedAt: now.UTC(),
	}, nil
}

// ChangeStatus applies a user-requested status change in place.
// RequestedAt is left untouched.
func (r *Record) ChangeStatus(next Status) error {
	if !next.IsUserSettable() {
		return shared.ErrInvalidStatus
	}
	if r.Status.IsTerminal() {
		return shared.ErrRecordFinalized
	}
	r.Status = next
	return nil
}

// CanRemove reports whether the owner may delete the record.
func (r *Record) CanRemove() error {
	if r.Status == StatusAcquired {
		return shared.ErrAcquiredNotRemovable
	}
	return nil
}

// CanRestart reports whether the record may be replaced by a fresh start.
func (r *Record) CanRestart() error {
	if r.Status != StatusRejected {
		return shared.ErrNotRejected
	}
	return nil
}

// Approve marks a pending record as acquired. It returns false without
// touching the record when it is already acquired, so a repeated approval is
// a no-op.
func (r *Record) Approve(adminID string, now time.Time) (bool, error) {
	switch r.Status {
	case StatusAcquired:
		return false, nil
	case StatusPendingValidation:
	default:
		return false, shared.ErrNotPending
	}

	at := now.UTC()
	r.Status = StatusAcquired
	r.ValidatedAt = &at
	r.ValidatedBy = &adminID
	r.RejectionReason = nil
	return true, nil
}

// Reject marks a pending record as rejected with a mandatory reason. A record
// that is already rejected is returned unchanged.
func (r *Record) Reject(adminID, reason string, now time.Time) (bool, error) {
	if err := ValidateRejectionReason(reason); err != nil {
		return false, err
	}
	switch r.Status {
	case StatusRejected:
		return false, nil
	case StatusPendingValidation:
	default:
		return false, shared.ErrNotPending
	}

	at := now.UTC()
	r.Status = StatusRejected
	r.ValidatedAt = &at
	r.ValidatedBy = &adminID
	r.RejectionReason = &reason
	return true, nil
}

// IsConsistent checks that the validation fields are both-or-neither present
// and only set on decided records.
func (r *Record) IsConsistent() bool {
	decided := r.ValidatedAt != nil && r.ValidatedBy != nil
	undecided := r.ValidatedAt == nil && r.ValidatedBy == nil
	switch {
	case r.Status.IsTerminal():
		if !decided {
			return false
		}
	default:
		if !undecided || r.RejectionReason != nil {
			return false
		}
	}
	if r.Status == StatusAcquired && r.RejectionReason != nil {
		return false
	}
	return true
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	c := *r
	if r.ValidatedAt != nil {
		t := *r.ValidatedAt
		c.ValidatedAt = &t
	}
	if r.ValidatedBy != nil {
		s := *r.ValidatedBy
		c.ValidatedBy = &s
	}
	if r.RejectionReason != nil {
		s := *r.RejectionReason
		c.RejectionReason = &s
	}
	return &c
}
