// Package eventhandler contains reactions to committed domain events.
// Handlers only produce side effects (cache invalidation, logs); they never
// change progression state.
package eventhandler

import (
	"context"
	"errors"
	"time"

	"github.com/esat-hub/skills-hub/internal/domain/progression"
	"github.com/esat-hub/skills-hub/internal/domain/shared"
	"github.com/esat-hub/skills-hub/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON PROGRESSION CHANGED HANDLER
// Drops the cached summary of the affected user, and the cached validation
// queue whenever a record enters or leaves PENDING_VALIDATION.
// ═══════════════════════════════════════════════════════════════════════════

// OnProgressionChangedHandler invalidates read caches after progression events.
type OnProgressionChangedHandler struct {
	cache  progression.ReadCache
	logger *logger.Logger
	config ProgressionChangedConfig
}

// ProgressionChangedConfig contains handler configuration.
type ProgressionChangedConfig struct {
	// Timeout bounds each invalidation round trip.
	Timeout time.Duration

	// LogLevelUps emits an info line when an avatar level increases.
	LogLevelUps bool
}

// DefaultProgressionChangedConfig returns the default configuration.
func DefaultProgressionChangedConfig() ProgressionChangedConfig {
	return ProgressionChangedConfig{
		Timeout:     2 * time.Second,
		LogLevelUps: true,
	}
}

// NewOnProgressionChangedHandler creates the handler. cache may be nil, in
// which case only logging happens.
func NewOnProgressionChangedHandler(cache progression.ReadCache, log *logger.Logger, config ProgressionChangedConfig) *OnProgressionChangedHandler {
	if log == nil {
		log = logger.Nop()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultProgressionChangedConfig().Timeout
	}
	return &OnProgressionChangedHandler{
		cache:  cache,
		logger: log.With(logger.String("handler", "on_progression_changed")),
		config: config,
	}
}

// HandledEvents lists the event types this handler reacts to.
func HandledEvents() []shared.EventType {
	return []shared.EventType{
		shared.EventSkillStarted,
		shared.EventValidationRequested,
		shared.EventStatusChanged,
		shared.EventSkillRemoved,
		shared.EventSkillRestarted,
		shared.EventSkillApproved,
		shared.EventSkillRejected,
		shared.EventAvatarLevelChanged,
	}
}

// Register subscribes the handler on the bus.
func (h *OnProgressionChangedHandler) Register(bus shared.EventSubscriber) error {
	for _, et := range HandledEvents() {
		if err := bus.Subscribe(et, h.Handle); err != nil {
			return err
		}
	}
	return nil
}

// Handle implements shared.EventHandler.
func (h *OnProgressionChangedHandler) Handle(event shared.Event) error {
	if lc, ok := event.(shared.AvatarLevelChangedEvent); ok && h.config.LogLevelUps && lc.IsLevelUp() {
		h.logger.Info("avatar level up",
			logger.UserID(lc.AggregateID()),
			logger.Int("old_level", lc.OldLevel),
			logger.Int("new_level", lc.NewLevel),
			logger.Int("acquired", lc.AcquiredCount),
			logger.Any("at", lc.OccurredAt()),
		)
	}

	if h.cache == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var errs []error
	if userID := shared.UserIDOf(event); userID != "" {
		if err := h.cache.InvalidateSummary(ctx, userID); err != nil {
			errs = append(errs, err)
		}
	}
	if touchesQueue(event) {
		if err := h.cache.InvalidatePendingQueue(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// touchesQueue reports whether the event may add or remove a queue entry.
func touchesQueue(event shared.Event) bool {
	switch e := event.(type) {
	case shared.SkillDecidedEvent:
		return true
	case shared.SkillProgressEvent:
		pending := string(progression.StatusPendingValidation)
		return e.FromStatus == pending || e.ToStatus == pending
	}
	return false
}
