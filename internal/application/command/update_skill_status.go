package command

import (
	"context"

	"github.com/esat-hub/skills-hub/internal/domain/progression"
	"github.com/esat-hub/skills-hub/internal/domain/shared"
	"github.com/esat-hub/skills-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE SKILL STATUS COMMAND
// Lets the owner move a record between IN_PROGRESS and PENDING_VALIDATION.
// Decided records (ACQUIRED, REJECTED) are frozen for the user.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateSkillStatusCommand contains the requested status.
type UpdateSkillStatusCommand struct {
	UserID  string             `validate:"required"`
	SkillID string             `validate:"required"`
	Status  progression.Status `validate:"required,oneof=IN_PROGRESS PENDING_VALIDATION"`
}

// UpdateSkillStatusResult contains the updated record.
type UpdateSkillStatusResult struct {
	Record         *progression.Record
	PreviousStatus progression.Status
}

// Changed reports whether the status actually moved.
func (r *UpdateSkillStatusResult) Changed() bool {
	return r.PreviousStatus != r.Record.Status
}

// UpdateSkillStatusHandler handles the UpdateSkillStatusCommand.
type UpdateSkillStatusHandler struct {
	handlerBase
	uow progression.UnitOfWork
}

// NewUpdateSkillStatusHandler creates a new UpdateSkillStatusHandler.
func NewUpdateSkillStatusHandler(uow progression.UnitOfWork, publisher shared.EventPublisher, opts ...Option) *UpdateSkillStatusHandler {
	return &UpdateSkillStatusHandler{
		handlerBase: newHandlerBase("update_skill_status", publisher, opts),
		uow:         uow,
	}
}

// Handle executes the update command.
func (h *UpdateSkillStatusHandler) Handle(ctx context.Context, cmd UpdateSkillStatusCommand) (*UpdateSkillStatusResult, error) {
	if err := validateCommand("UpdateSkillStatus", cmd); err != nil {
		return nil, err
	}

	var result *UpdateSkillStatusResult
	err := h.uow.Do(ctx, func(ctx context.Context, tx progression.Tx) error {
		record, err := tx.Records().GetByUserSkillForUpdate(ctx, cmd.UserID, cmd.SkillID)
		if err != nil {
			return err
		}
		prev := record.Status
		if err := record.ChangeStatus(cmd.Status); err != nil {
			return err
		}
		if prev != record.Status {
			if err := tx.Records().Update(ctx, record); err != nil {
				return err
			}
		}
		result = &UpdateSkillStatusResult{Record: record, PreviousStatus: prev}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Changed() {
		eventType := shared.EventStatusChanged
		if result.Record.Status == progression.StatusPendingValidation {
			eventType = shared.EventValidationRequested
		}
		r := result.Record
		h.publish(shared.NewSkillProgressEvent(eventType, r.ID, r.UserID, r.SkillID, result.PreviousStatus.String(), r.Status.String(), h.now()))
		h.log.Info("skill status changed",
			logger.RecordID(r.ID),
			logger.String("from", result.PreviousStatus.String()),
			logger.String("to", r.Status.String()),
		)
	}

	return result, nil
}
