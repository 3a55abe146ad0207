// Package command contains write operations (CQRS - Commands).
//
// User actions (start, toggle, remove, restart) and admin decisions
// (approve, reject) each run in one unit of work. Events are published only
// after that unit has committed.
package command

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/esat-hub/skills-hub/internal/domain/shared"
	"github.com/esat-hub/skills-hub/pkg/logger"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateCommand runs struct tag validation and maps failures to a
// validation DomainError naming the offending fields.
func validateCommand(op string, cmd any) error {
	err := validate.Struct(cmd)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return shared.WrapError("command", op, shared.ErrValidation, "invalid command", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field()+" "+fe.Tag())
	}
	return shared.WrapError("command", op, shared.ErrValidation, "invalid fields: "+strings.Join(fields, ", "), err)
}

// Option configures a command handler.
type Option func(*handlerBase)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *handlerBase) {
		if now != nil {
			b.now = now
		}
	}
}

// WithLogger sets the handler logger.
func WithLogger(l *logger.Logger) Option {
	return func(b *handlerBase) {
		if l != nil {
			b.log = l
		}
	}
}

type handlerBase struct {
	publisher shared.EventPublisher
	log       *logger.Logger
	now       func() time.Time
}

func newHandlerBase(name string, publisher shared.EventPublisher, opts []Option) handlerBase {
	b := handlerBase{
		publisher: publisher,
		log:       logger.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&b)
	}
	b.log = b.log.With(logger.Component(name))
	return b
}

// publish sends events after commit. The state change already happened, so
// a publish failure is logged and not returned.
func (b *handlerBase) publish(events ...shared.Event) {
	if b.publisher == nil {
		return
	}
	for _, e := range events {
		if err := b.publisher.Publish(e); err != nil {
			b.log.Warn("failed to publish event",
				logger.String("event_type", string(e.EventType())),
				logger.String("aggregate_id", e.AggregateID()),
				logger.Err(err),
			)
		}
	}
}
