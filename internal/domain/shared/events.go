package shared

import "time"

// EventType names a domain event.
type EventType string

// Events are published only after the unit of work that produced them has
// committed.
const (
	// User actions on their own records.
	EventSkillStarted        EventType = "progression.skill_started"
	EventValidationRequested EventType = "progression.validation_requested"
	EventStatusChanged       EventType = "progression.status_changed"
	EventSkillRemoved        EventType = "progression.skill_removed"
	EventSkillRestarted      EventType = "progression.skill_restarted"

	// Administrator decisions.
	EventSkillApproved EventType = "validation.skill_approved"
	EventSkillRejected EventType = "validation.skill_rejected"

	EventAvatarLevelChanged EventType = "avatar.level_changed"
)

// Event is implemented by the three event structs below.
type Event interface {
	EventType() EventType
	// AggregateID is the record id, or the user id for avatar events.
	AggregateID() string
	OccurredAt() time.Time
}

// eventHeader is embedded by every event.
type eventHeader struct {
	Type      EventType `json:"type"`
	Aggregate string    `json:"aggregate_id"`
	At        time.Time `json:"occurred_at"`
}

func (h eventHeader) EventType() EventType  { return h.Type }
func (h eventHeader) AggregateID() string   { return h.Aggregate }
func (h eventHeader) OccurredAt() time.Time { return h.At }

// SkillProgressEvent covers start, status toggle, removal and restart.
// FromStatus is empty for a start, ToStatus for a removal.
type SkillProgressEvent struct {
	eventHeader
	UserID     string `json:"user_id"`
	SkillID    string `json:"skill_id"`
	FromStatus string `json:"from_status,omitempty"`
	ToStatus   string `json:"to_status,omitempty"`
}

func NewSkillProgressEvent(eventType EventType, recordID, userID, skillID, from, to string, at time.Time) SkillProgressEvent {
	return SkillProgressEvent{
		eventHeader: eventHeader{Type: eventType, Aggregate: recordID, At: at},
		UserID:      userID,
		SkillID:     skillID,
		FromStatus:  from,
		ToStatus:    to,
	}
}

// SkillDecidedEvent is an approval or a rejection; only rejections carry a
// Reason.
type SkillDecidedEvent struct {
	eventHeader
	UserID      string `json:"user_id"`
	SkillID     string `json:"skill_id"`
	ValidatedBy string `json:"validated_by"`
	Reason      string `json:"reason,omitempty"`
}

func NewSkillApprovedEvent(recordID, userID, skillID, adminID string, at time.Time) SkillDecidedEvent {
	return SkillDecidedEvent{
		eventHeader: eventHeader{Type: EventSkillApproved, Aggregate: recordID, At: at},
		UserID:      userID,
		SkillID:     skillID,
		ValidatedBy: adminID,
	}
}

func NewSkillRejectedEvent(recordID, userID, skillID, adminID, reason string, at time.Time) SkillDecidedEvent {
	return SkillDecidedEvent{
		eventHeader: eventHeader{Type: EventSkillRejected, Aggregate: recordID, At: at},
		UserID:      userID,
		SkillID:     skillID,
		ValidatedBy: adminID,
		Reason:      reason,
	}
}

// AvatarLevelChangedEvent follows an approval that moved the user's level.
type AvatarLevelChangedEvent struct {
	eventHeader
	OldLevel      int `json:"old_level"`
	NewLevel      int `json:"new_level"`
	AcquiredCount int `json:"acquired_count"`
}

func NewAvatarLevelChangedEvent(userID string, oldLevel, newLevel, acquired int, at time.Time) AvatarLevelChangedEvent {
	return AvatarLevelChangedEvent{
		eventHeader:   eventHeader{Type: EventAvatarLevelChanged, Aggregate: userID, At: at},
		OldLevel:      oldLevel,
		NewLevel:      newLevel,
		AcquiredCount: acquired,
	}
}

func (e AvatarLevelChangedEvent) IsLevelUp() bool {
	return e.NewLevel > e.OldLevel
}

// UserIDOf returns the user an event belongs to, or "" for unknown types.
func UserIDOf(event Event) string {
	switch e := event.(type) {
	case SkillProgressEvent:
		return e.UserID
	case SkillDecidedEvent:
		return e.UserID
	case AvatarLevelChangedEvent:
		return e.Aggregate
	}
	return ""
}

type EventHandler func(event Event) error

type EventPublisher interface {
	Publish(event Event) error
}

type EventSubscriber interface {
	Subscribe(eventType EventType, handler EventHandler) error
}

type EventBus interface {
	EventPublisher
	EventSubscriber
}
