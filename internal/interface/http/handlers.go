package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/esat-hub/skills-hub/config"
	"github.com/esat-hub/skills-hub/internal/application/command"
	"github.com/esat-hub/skills-hub/internal/application/query"
	"github.com/esat-hub/skills-hub/internal/domain/progression"
	"github.com/esat-hub/skills-hub/internal/domain/user"
)

// Identity headers set by the gateway.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

const (
	tagMySkills    = "my-skills"
	tagValidations = "validations"
)

// ══════════════════════════════════════════════════════════════════════════════
// INPUTS AND OUTPUTS
// ══════════════════════════════════════════════════════════════════════════════

// IdentityInput carries the caller forwarded by the gateway.
type IdentityInput struct {
	UserID string `header:"X-User-ID" doc:"Authenticated user id, set by the gateway"`
	Role   string `header:"X-User-Role" doc:"USER or ADMIN, set by the gateway"`
}

// Actor converts the headers into a caller. The role defaults to USER.
func (in IdentityInput) Actor() user.Actor {
	return user.Actor{UserID: in.UserID, Role: user.ParseRole(in.Role)}
}

// StatusBody selects the status a user puts a record into.
type StatusBody struct {
	Status string `json:"status" enum:"IN_PROGRESS,PENDING_VALIDATION" doc:"Requested status"`
}

type skillPathInput struct {
	IdentityInput
	SkillID string `path:"skillId" doc:"Catalog skill id"`
}

type skillStatusInput struct {
	IdentityInput
	SkillID string `path:"skillId" doc:"Catalog skill id"`
	Body    StatusBody
}

type userPathInput struct {
	IdentityInput
	UserID string `path:"userId" doc:"User whose progression is read"`
}

type recordPathInput struct {
	IdentityInput
	UserSkillID string `path:"userSkillId" doc:"Skill record id"`
}

type rejectInput struct {
	IdentityInput
	UserSkillID string `path:"userSkillId" doc:"Skill record id"`
	Body        struct {
		Reason string `json:"reason" doc:"Why the request was refused, up to 500 characters"`
	}
}

// SummaryOutput is the caller's progression overview.
type SummaryOutput struct {
	Cache string `header:"X-Cache" doc:"HIT when served from the read cache"`
	Body  progression.Summary
}

// RecordViewOutput is a record with its skill.
type RecordViewOutput struct {
	Body progression.RecordView
}

// RecordOutput is a bare record.
type RecordOutput struct {
	Body *progression.Record
}

// QueueOutput is the admin validation queue, oldest request first.
type QueueOutput struct {
	Cache string `header:"X-Cache" doc:"HIT when served from the read cache"`
	Body  []progression.RecordView
}

// ApprovalBody reports an approval and the avatar level it produced.
type ApprovalBody struct {
	Record        *progression.Record `json:"record"`
	Applied       bool                `json:"applied" doc:"False when the record was already acquired"`
	AcquiredCount int                 `json:"acquiredCount"`
	PreviousLevel int                 `json:"previousLevel"`
	AvatarLevel   int                 `json:"avatarLevel"`
}

// ApprovalOutput wraps ApprovalBody.
type ApprovalOutput struct {
	Body ApprovalBody
}

// RejectionBody reports a rejection.
type RejectionBody struct {
	Record  *progression.Record `json:"record"`
	Applied bool                `json:"applied" doc:"False when the record was already rejected"`
}

// RejectionOutput wraps RejectionBody.
type RejectionOutput struct {
	Body RejectionBody
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTES
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) registerOperations(api huma.API) {
	// ─────────────────────────────────────────────────────────────────────────
	// My skills
	// ─────────────────────────────────────────────────────────────────────────

	huma.Register(api, huma.Operation{
		OperationID: "get-my-skills",
		Method:      http.MethodGet,
		Path:        "/api/my-skills",
		Summary:     "Get my skills summary",
		Description: "Avatar level, per-status counts and every record of the caller, newest first.",
		Tags:        []string{tagMySkills},
	}, s.handleGetMySkills)

	huma.Register(api, huma.Operation{
		OperationID:   "start-skill",
		Method:        http.MethodPost,
		Path:          "/api/my-skills/{skillId}",
		Summary:       "Start a skill",
		Tags:          []string{tagMySkills},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusUnauthorized, http.StatusNotFound, http.StatusConflict},
	}, s.handleStartSkill)

	huma.Register(api, huma.Operation{
		OperationID: "update-skill-status",
		Method:      http.MethodPatch,
		Path:        "/api/my-skills/{skillId}",
		Summary:     "Switch between in progress and pending validation",
		Tags:        []string{tagMySkills},
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound},
	}, s.handleUpdateSkillStatus)

	huma.Register(api, huma.Operation{
		OperationID:   "remove-skill",
		Method:        http.MethodDelete,
		Path:          "/api/my-skills/{skillId}",
		Summary:       "Remove a skill that is not acquired",
		Tags:          []string{tagMySkills},
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound},
	}, s.handleRemoveSkill)

	huma.Register(api, huma.Operation{
		OperationID:   "restart-skill",
		Method:        http.MethodPost,
		Path:          "/api/my-skills/{skillId}/restart",
		Summary:       "Restart a rejected skill",
		Description:   "Replaces the rejected record with a fresh one in a single step.",
		Tags:          []string{tagMySkills},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound},
	}, s.handleRestartSkill)

	// ─────────────────────────────────────────────────────────────────────────
	// Validations (admin)
	// ─────────────────────────────────────────────────────────────────────────

	huma.Register(api, huma.Operation{
		OperationID: "list-pending-validations",
		Method:      http.MethodGet,
		Path:        "/api/validations",
		Summary:     "List pending validation requests",
		Tags:        []string{tagValidations},
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, s.handleListValidations)

	huma.Register(api, huma.Operation{
		OperationID: "get-user-skills",
		Method:      http.MethodGet,
		Path:        "/api/users/{userId}/skills",
		Summary:     "Get a user's skills summary",
		Description: "The summary the user sees on /api/my-skills, for an administrator reviewing their progression.",
		Tags:        []string{tagValidations},
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, s.handleGetUserSkills)

	huma.Register(api, huma.Operation{
		OperationID: "approve-skill",
		Method:      http.MethodPost,
		Path:        "/api/validations/{userSkillId}/approve",
		Summary:     "Approve a validation request",
		Description: "Marks the skill acquired and recomputes the owner's avatar level atomically.",
		Tags:        []string{tagValidations},
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, s.handleApprove)

	huma.Register(api, huma.Operation{
		OperationID: "reject-skill",
		Method:      http.MethodPost,
		Path:        "/api/validations/{userSkillId}/reject",
		Summary:     "Reject a validation request",
		Tags:        []string{tagValidations},
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, s.handleReject)
}

// ══════════════════════════════════════════════════════════════════════════════
// MY SKILLS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetMySkills(ctx context.Context, in *IdentityInput) (*SummaryOutput, error) {
	actor, err := s.requireUser(ctx, *in)
	if err != nil {
		return nil, err
	}

	res, err := s.deps.GetSkillsSummary.Handle(ctx, query.GetSkillsSummaryQuery{UserID: actor.UserID})
	if err != nil {
		return nil, s.toHTTPError(ctx, err)
	}

	return &SummaryOutput{Cache: cacheHeader(res.FromCache), Body: res.Summary}, nil
}

func (s *Server) handleStartSkill(ctx context.Context, in *skillStatusInput) (*RecordViewOutput, error) {
	actor, err := s.requireUser(ctx, in.IdentityInput)
	if err != nil {
		return nil, err
	}

	res, err := s.deps.StartSkill.Handle(ctx, command.StartSkillCommand{
		UserID:  actor.UserID,
		SkillID: in.SkillID,
		Status:  progression.Status(in.Body.Status),
	})
	if err != nil {
		return nil, s.toHTTPError(ctx, err)
	}

	return &RecordViewOutput{Body: progression.RecordView{Record: *res.Record, Skill: *res.Skill}}, nil
}

func (s *Server) handleUpdateSkillStatus(ctx context.Context, in *skillStatusInput) (*RecordOutput, error) {
	actor, err := s.requireUser(ctx, in.IdentityInput)
	if err != nil {
		return nil, err
	}

	res, err := s.deps.UpdateSkillStatus.Handle(ctx, command.UpdateSkillStatusCommand{
		UserID:  actor.UserID,
		SkillID: in.SkillID,
		Status:  progression.Status(in.Body.Status),
	})
	if err != nil {
		return nil, s.toHTTPError(ctx, err)
	}

	return &RecordOutput{Body: res.Record}, nil
}

func (s *Server) handleRemoveSkill(ctx context.Context, in *skillPathInput) (*struct{}, error) {
	actor, err := s.requireUser(ctx, in.IdentityInput)
	if err != nil {
		return nil, err
	}

	if _, err := s.deps.RemoveSkill.Handle(ctx, command.RemoveSkillCommand{
		UserID:  actor.UserID,
		SkillID: in.SkillID,
	}); err != nil {
		return nil, s.toHTTPError(ctx, err)
	}

	return nil, nil
}

func (s *Server) handleRestartSkill(ctx context.Context, in *skillStatusInput) (*RecordViewOutput, error) {
	actor, err := s.requireUser(ctx, in.IdentityInput)
	if err != nil {
		return nil, err
	}

	if !s.deps.Features.IsEnabled(config.FeatureRestartRejected, actor.UserID) {
		return nil, huma.Error404NotFound("restarting a rejected skill is not enabled")
	}

	res, err := s.deps.RestartSkill.Handle(ctx, command.RestartSkillCommand{
		UserID:  actor.UserID,
		SkillID: in.SkillID,
		Status:  progression.Status(in.Body.Status),
	})
	if err != nil {
		return nil, s.toHTTPError(ctx, err)
	}

	return &RecordViewOutput{Body: progression.RecordView{Record: *res.Record, Skill: *res.Skill}}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// VALIDATION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleListValidations(ctx context.Context, in *IdentityInput) (*QueueOutput, error) {
	res, err := s.deps.ListPendingValidations.Handle(ctx, query.ListPendingValidationsQuery{Admin: in.Actor()})
	if err != nil {
		return nil, s.toHTTPError(ctx, err)
	}

	items := res.Items
	if items == nil {
		items = []progression.RecordView{}
	}
	return &QueueOutput{Cache: cacheHeader(res.FromCache), Body: items}, nil
}

func (s *Server) handleGetUserSkills(ctx context.Context, in *userPathInput) (*SummaryOutput, error) {
	if err := in.Actor().RequireAdmin(); err != nil {
		return nil, s.toHTTPError(ctx, err)
	}

	res, err := s.deps.GetSkillsSummary.Handle(ctx, query.GetSkillsSummaryQuery{UserID: in.UserID})
	if err != nil {
		return nil, s.toHTTPError(ctx, err)
	}

	return &SummaryOutput{Cache: cacheHeader(res.FromCache), Body: res.Summary}, nil
}

func (s *Server) handleApprove(ctx context.Context, in *recordPathInput) (*ApprovalOutput, error) {
	res, err := s.deps.ApproveSkill.Handle(ctx, command.ApproveSkillCommand{
		RecordID: in.UserSkillID,
		Admin:    in.Actor(),
	})
	if err != nil {
		return nil, s.toHTTPError(ctx, err)
	}

	return &ApprovalOutput{Body: ApprovalBody{
		Record:        res.Record,
		Applied:       res.Applied,
		AcquiredCount: res.AcquiredCount,
		PreviousLevel: res.PreviousLevel,
		AvatarLevel:   res.AvatarLevel,
	}}, nil
}

func (s *Server) handleReject(ctx context.Context, in *rejectInput) (*RejectionOutput, error) {
	res, err := s.deps.RejectSkill.Handle(ctx, command.RejectSkillCommand{
		RecordID: in.UserSkillID,
		Admin:    in.Actor(),
		Reason:   in.Body.Reason,
	})
	if err != nil {
		return nil, s.toHTTPError(ctx, err)
	}

	return &RejectionOutput{Body: RejectionBody{Record: res.Record, Applied: res.Applied}}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// requireUser rejects requests the gateway did not attach a user to.
func (s *Server) requireUser(ctx context.Context, in IdentityInput) (user.Actor, error) {
	actor := in.Actor()
	if err := actor.Validate(); err != nil {
		return actor, s.toHTTPError(ctx, err)
	}
	return actor, nil
}

func cacheHeader(hit bool) string {
	if hit {
		return "HIT"
	}
	return "MISS"
}
