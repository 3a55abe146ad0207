package command

import (
	"context"

	"github.com/esat-hub/skills-hub/internal/domain/catalog"
	"github.com/esat-hub/skills-hub/internal/domain/progression"
	"github.com/esat-hub/skills-hub/internal/domain/shared"
	"github.com/esat-hub/skills-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESTART SKILL COMMAND
// Replaces a rejected record with a fresh one in a single unit of work. This is
// the same as removing the rejected record and starting again, without the
// window in which the user has no record for the skill.
// ══════════════════════════════════════════════════════════════════════════════

// RestartSkillCommand contains the status of the new attempt.
type RestartSkillCommand struct {
	UserID  string             `validate:"required"`
	SkillID string             `validate:"required"`
	Status  progression.Status `validate:"required,oneof=IN_PROGRESS PENDING_VALIDATION"`
}

// RestartSkillResult contains the new record and the rejected one it replaced.
type RestartSkillResult struct {
	Record   *progression.Record
	Previous *progression.Record
	Skill    *catalog.Skill
}

// RestartSkillHandler handles the RestartSkillCommand.
type RestartSkillHandler struct {
	handlerBase
	catalog catalog.Catalog
	uow     progression.UnitOfWork
}

// NewRestartSkillHandler creates a new RestartSkillHandler.
func NewRestartSkillHandler(
	skills catalog.Catalog,
	uow progression.UnitOfWork,
	publisher shared.EventPublisher,
	opts ...Option,
) *RestartSkillHandler {
	return &RestartSkillHandler{
		handlerBase: newHandlerBase("restart_skill", publisher, opts),
		catalog:     skills,
		uow:         uow,
	}
}

// Handle executes the restart command.
func (h *RestartSkillHandler) Handle(ctx context.Context, cmd RestartSkillCommand) (*RestartSkillResult, error) {
	if err := validateCommand("RestartSkill", cmd); err != nil {
		return nil, err
	}
	skill, err := requireActiveSkill(ctx, h.catalog, cmd.SkillID)
	if err != nil {
		return nil, err
	}

	fresh, err := progression.NewRecord(cmd.UserID, cmd.SkillID, cmd.Status, h.now())
	if err != nil {
		return nil, err
	}

	var previous *progression.Record
	err = h.uow.Do(ctx, func(ctx context.Context, tx progression.Tx) error {
		old, err := tx.Records().GetByUserSkillForUpdate(ctx, cmd.UserID, cmd.SkillID)
		if err != nil {
			return err
		}
		if err := old.CanRestart(); err != nil {
			return err
		}
		if err := tx.Records().Delete(ctx, old.ID); err != nil {
			return err
		}
		if err := tx.Records().Create(ctx, fresh); err != nil {
			return err
		}
		previous = old
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.publish(shared.NewSkillProgressEvent(shared.EventSkillRestarted, fresh.ID, fresh.UserID, fresh.SkillID, previous.Status.String(), fresh.Status.String(), fresh.RequestedAt))
	h.log.Info("rejected skill restarted",
		logger.RecordID(fresh.ID),
		logger.String("previous_record_id", previous.ID),
		logger.UserID(fresh.UserID),
	)

	return &RestartSkillResult{Record: fresh, Previous: previous, Skill: skill}, nil
}
