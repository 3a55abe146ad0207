package http

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/esat-hub/skills-hub/internal/domain/shared"
	"github.com/esat-hub/skills-hub/pkg/logger"
)

// toHTTPError is the only place domain error kinds become status codes.
func (s *Server) toHTTPError(ctx context.Context, err error) error {
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}

	msg := publicMessage(err)

	switch {
	case shared.IsUnauthorized(err):
		return huma.Error401Unauthorized(msg)
	case shared.IsForbidden(err):
		return huma.Error403Forbidden(msg)
	case shared.IsNotFound(err):
		return huma.Error404NotFound(msg)
	case shared.IsConflict(err):
		return huma.Error409Conflict(msg)
	case shared.IsInvalidTransition(err), shared.IsValidation(err):
		return huma.Error400BadRequest(msg)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return huma.Error503ServiceUnavailable("request cancelled or timed out")
	}

	logger.FromContext(ctx).Error("unhandled error", logger.Err(err))

	if s.config.ExposeInternalErrors {
		return huma.Error500InternalServerError(err.Error())
	}
	return huma.Error500InternalServerError("internal server error")
}

// publicMessage returns the human readable part of a domain error, without
// the wrapped driver detail.
func publicMessage(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return err.Error()
}
