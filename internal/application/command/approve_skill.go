package command

import (
	"context"

	"github.com/esat-hub/skills-hub/internal/domain/progression"
	"github.com/esat-hub/skills-hub/internal/domain/shared"
	"github.com/esat-hub/skills-hub/internal/domain/user"
	"github.com/esat-hub/skills-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPROVE SKILL COMMAND
// Marks a pending record as acquired and recomputes the owner's avatar level
// from the number of acquired records, all in one unit of work. The owner is
// locked before counting so that concurrent approvals for the same user see
// each other's writes.
// ══════════════════════════════════════════════════════════════════════════════

// ApproveSkillCommand identifies the record to approve and the deciding admin.
type ApproveSkillCommand struct {
	RecordID string `validate:"required"`
	Admin    user.Actor
}

// ApproveSkillResult contains the approved record and the level recompute.
type ApproveSkillResult struct {
	Record        *progression.Record
	AcquiredCount int
	PreviousLevel int
	AvatarLevel   int

	// Applied is false when the record was already acquired.
	Applied bool
}

// LevelChanged reports whether the approval moved the avatar level.
func (r *ApproveSkillResult) LevelChanged() bool {
	return r.PreviousLevel != r.AvatarLevel
}

// ApproveSkillHandler handles the ApproveSkillCommand.
type ApproveSkillHandler struct {
	handlerBase
	uow progression.UnitOfWork
}

// NewApproveSkillHandler creates a new ApproveSkillHandler.
func NewApproveSkillHandler(uow progression.UnitOfWork, publisher shared.EventPublisher, opts ...Option) *ApproveSkillHandler {
	return &ApproveSkillHandler{
		handlerBase: newHandlerBase("approve_skill", publisher, opts),
		uow:         uow,
	}
}

// Handle executes the approval.
func (h *ApproveSkillHandler) Handle(ctx context.Context, cmd ApproveSkillCommand) (*ApproveSkillResult, error) {
	if err := cmd.Admin.RequireAdmin(); err != nil {
		return nil, err
	}
	if err := validateCommand("ApproveSkill", cmd); err != nil {
		return nil, err
	}
	if !shared.RecordID(cmd.RecordID).IsValid() {
		return nil, shared.ErrRecordNotFound
	}

	now := h.now()
	var result *ApproveSkillResult

	err := h.uow.Do(ctx, func(ctx context.Context, tx progression.Tx) error {
		record, err := tx.Records().GetByIDForUpdate(ctx, cmd.RecordID)
		if err != nil {
			return err
		}

		// Serialise with other approvals for this user up to the level write.
		if err := tx.LockUser(ctx, record.UserID); err != nil {
			return err
		}

		previous, err := tx.Users().GetAvatarLevel(ctx, record.UserID)
		if err != nil {
			return err
		}

		applied, err := record.Approve(cmd.Admin.UserID, now)
		if err != nil {
			return err
		}
		if applied {
			if err := tx.Records().Update(ctx, record); err != nil {
				return err
			}
		}

		acquired, err := tx.Records().CountByStatus(ctx, record.UserID, progression.StatusAcquired)
		if err != nil {
			return err
		}
		level := progression.AvatarLevel(acquired)
		if err := tx.Users().SetAvatarLevel(ctx, record.UserID, level); err != nil {
			return err
		}

		result = &ApproveSkillResult{
			Record:        record,
			AcquiredCount: acquired,
			PreviousLevel: previous,
			AvatarLevel:   level,
			Applied:       applied,
		}
		return nil
	})
	if err != nil {
		if shared.IsInternal(err) {
			h.log.Error("approval failed", logger.RecordID(cmd.RecordID), logger.Err(err))
		}
		return nil, err
	}

	r := result.Record
	if result.Applied {
		h.publish(shared.NewSkillApprovedEvent(r.ID, r.UserID, r.SkillID, cmd.Admin.UserID, now))
	}
	if result.LevelChanged() {
		h.publish(shared.NewAvatarLevelChangedEvent(r.UserID, result.PreviousLevel, result.AvatarLevel, result.AcquiredCount, now))
	}

	h.log.Info("skill approved",
		logger.RecordID(r.ID),
		logger.UserID(r.UserID),
		logger.String("admin_id", cmd.Admin.UserID),
		logger.Int("acquired", result.AcquiredCount),
		logger.Int("avatar_level", result.AvatarLevel),
		logger.Bool("applied", result.Applied),
	)

	return result, nil
}
