package command

import (
	"context"

	"github.com/esat-hub/skills-hub/internal/domain/progression"
	"github.com/esat-hub/skills-hub/internal/domain/shared"
	"github.com/esat-hub/skills-hub/internal/domain/user"
	"github.com/esat-hub/skills-hub/pkg/logger"
)

// RejectSkillCommand identifies the record to reject and why.
type RejectSkillCommand struct {
	RecordID string `validate:"required"`
	Admin    user.Actor
	Reason   string
}

// RejectSkillResult contains the rejected record.
type RejectSkillResult struct {
	Record *progression.Record

	// Applied is false when the record was already rejected.
	Applied bool
}

// RejectSkillHandler handles the RejectSkillCommand. Rejection never touches
// the avatar level.
type RejectSkillHandler struct {
	handlerBase
	uow progression.UnitOfWork
}

// NewRejectSkillHandler creates a new RejectSkillHandler.
func NewRejectSkillHandler(uow progression.UnitOfWork, publisher shared.EventPublisher, opts ...Option) *RejectSkillHandler {
	return &RejectSkillHandler{
		handlerBase: newHandlerBase("reject_skill", publisher, opts),
		uow:         uow,
	}
}

// Handle executes the rejection.
func (h *RejectSkillHandler) Handle(ctx context.Context, cmd RejectSkillCommand) (*RejectSkillResult, error) {
	if err := cmd.Admin.RequireAdmin(); err != nil {
		return nil, err
	}
	if err := validateCommand("RejectSkill", cmd); err != nil {
		return nil, err
	}
	if err := progression.ValidateRejectionReason(cmd.Reason); err != nil {
		return nil, err
	}
	if !shared.RecordID(cmd.RecordID).IsValid() {
		return nil, shared.ErrRecordNotFound
	}

	now := h.now()
	var result *RejectSkillResult

	err := h.uow.Do(ctx, func(ctx context.Context, tx progression.Tx) error {
		record, err := tx.Records().GetByIDForUpdate(ctx, cmd.RecordID)
		if err != nil {
			return err
		}
		applied, err := record.Reject(cmd.Admin.UserID, cmd.Reason, now)
		if err != nil {
			return err
		}
		if applied {
			if err := tx.Records().Update(ctx, record); err != nil {
				return err
			}
		}
		result = &RejectSkillResult{Record: record, Applied: applied}
		return nil
	})
	if err != nil {
		if shared.IsInternal(err) {
			h.log.Error("rejection failed", logger.RecordID(cmd.RecordID), logger.Err(err))
		}
		return nil, err
	}

	r := result.Record
	if result.Applied {
		h.publish(shared.NewSkillRejectedEvent(r.ID, r.UserID, r.SkillID, cmd.Admin.UserID, cmd.Reason, now))
	}
	h.log.Info("skill rejected",
		logger.RecordID(r.ID),
		logger.UserID(r.UserID),
		logger.String("admin_id", cmd.Admin.UserID),
		logger.Bool("applied", result.Applied),
	)

	return result, nil
}
