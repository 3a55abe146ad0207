package command

import (
	"context"

	"github.com/esat-hub/skills-hub/internal/domain/catalog"
	"github.com/esat-hub/skills-hub/internal/domain/progression"
	"github.com/esat-hub/skills-hub/internal/domain/shared"
	"github.com/esat-hub/skills-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// START SKILL COMMAND
// Creates the user's record for a skill, either as work in progress or as a
// direct request for validation. One record per (user, skill), ever: a second
// start fails with a conflict whatever the first record's status.
// ══════════════════════════════════════════════════════════════════════════════

// StartSkillCommand contains the data to start a skill.
type StartSkillCommand struct {
	UserID  string             `validate:"required"`
	SkillID string             `validate:"required"`
	Status  progression.Status `validate:"required,oneof=IN_PROGRESS PENDING_VALIDATION"`
}

// StartSkillResult contains the created record.
type StartSkillResult struct {
	Record *progression.Record
	Skill  *catalog.Skill
}

// StartSkillHandler handles the StartSkillCommand.
type StartSkillHandler struct {
	handlerBase
	catalog catalog.Catalog
	uow     progression.UnitOfWork
}

// NewStartSkillHandler creates a new StartSkillHandler.
func NewStartSkillHandler(
	skills catalog.Catalog,
	uow progression.UnitOfWork,
	publisher shared.EventPublisher,
	opts ...Option,
) *StartSkillHandler {
	return &StartSkillHandler{
		handlerBase: newHandlerBase("start_skill", publisher, opts),
		catalog:     skills,
		uow:         uow,
	}
}

// Handle executes the start skill command.
func (h *StartSkillHandler) Handle(ctx context.Context, cmd StartSkillCommand) (*StartSkillResult, error) {
	if err := validateCommand("StartSkill", cmd); err != nil {
		return nil, err
	}

	skill, err := requireActiveSkill(ctx, h.catalog, cmd.SkillID)
	if err != nil {
		return nil, err
	}

	record, err := progression.NewRecord(cmd.UserID, cmd.SkillID, cmd.Status, h.now())
	if err != nil {
		return nil, err
	}

	err = h.uow.Do(ctx, func(ctx context.Context, tx progression.Tx) error {
		return tx.Records().Create(ctx, record)
	})
	if err != nil {
		if !shared.IsConflict(err) && !shared.IsNotFound(err) {
			h.log.Error("failed to start skill", logger.UserID(cmd.UserID), logger.SkillID(cmd.SkillID), logger.Err(err))
		}
		return nil, err
	}

	eventType := shared.EventSkillStarted
	if record.Status == progression.StatusPendingValidation {
		eventType = shared.EventValidationRequested
	}
	h.publish(shared.NewSkillProgressEvent(eventType, record.ID, record.UserID, record.SkillID, "", record.Status.String(), record.RequestedAt))

	h.log.Info("skill started",
		logger.RecordID(record.ID),
		logger.UserID(record.UserID),
		logger.SkillID(record.SkillID),
		logger.Status(record.Status.String()),
	)

	return &StartSkillResult{Record: record, Skill: skill}, nil
}

// requireActiveSkill returns shared.ErrSkillInactive for missing or inactive skills.
func requireActiveSkill(ctx context.Context, skills catalog.Catalog, skillID string) (*catalog.Skill, error) {
	skill, err := skills.GetSkill(ctx, skillID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrSkillInactive
		}
		return nil, shared.WrapError("catalog", "GetSkill", shared.ErrInternal, "failed to load skill", err)
	}
	if !skill.IsAvailable() {
		return nil, shared.ErrSkillInactive
	}
	return skill, nil
}
