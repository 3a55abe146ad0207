package command

import (
	"context"

	"github.com/esat-hub/skills-hub/internal/domain/progression"
	"github.com/esat-hub/skills-hub/internal/domain/shared"
	"github.com/esat-hub/skills-hub/pkg/logger"
)

// RemoveSkillCommand abandons a skill. Acquired skills cannot be removed.
type RemoveSkillCommand struct {
	UserID  string `validate:"required"`
	SkillID string `validate:"required"`
}

// RemoveSkillHandler handles the RemoveSkillCommand.
type RemoveSkillHandler struct {
	handlerBase
	uow progression.UnitOfWork
}

// NewRemoveSkillHandler creates a new RemoveSkillHandler.
func NewRemoveSkillHandler(uow progression.UnitOfWork, publisher shared.EventPublisher, opts ...Option) *RemoveSkillHandler {
	return &RemoveSkillHandler{
		handlerBase: newHandlerBase("remove_skill", publisher, opts),
		uow:         uow,
	}
}

// Handle deletes the record and returns what was removed.
func (h *RemoveSkillHandler) Handle(ctx context.Context, cmd RemoveSkillCommand) (*progression.Record, error) {
	if err := validateCommand("RemoveSkill", cmd); err != nil {
		return nil, err
	}

	var removed *progression.Record
	err := h.uow.Do(ctx, func(ctx context.Context, tx progression.Tx) error {
		record, err := tx.Records().GetByUserSkillForUpdate(ctx, cmd.UserID, cmd.SkillID)
		if err != nil {
			return err
		}
		if err := record.CanRemove(); err != nil {
			return err
		}
		if err := tx.Records().Delete(ctx, record.ID); err != nil {
			return err
		}
		removed = record
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.publish(shared.NewSkillProgressEvent(shared.EventSkillRemoved, removed.ID, removed.UserID, removed.SkillID, removed.Status.String(), "", h.now()))
	h.log.Info("skill removed", logger.RecordID(removed.ID), logger.UserID(removed.UserID), logger.Status(removed.Status.String()))

	return removed, nil
}
