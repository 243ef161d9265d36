package handlers

import (
	"errors"

	"alumni-ledger/internal/adapters/http/middleware"
	"alumni-ledger/internal/core/domain"
	"alumni-ledger/internal/pkg/logger"
	"alumni-ledger/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// respondError maps a service error to its status code. Unexpected errors are
// logged in full and answered with a generic message.
func respondError(c *fiber.Ctx, log *zap.Logger, err error) error {
	var bulk *domain.BulkError
	if errors.As(err, &bulk) {
		return response.WithErrors(c, fiber.StatusBadRequest, "bulk operation aborted", bulk.Errors)
	}

	var dErr *domain.Error
	if !errors.As(err, &dErr) || dErr.Kind == domain.KindInternal {
		logger.WithRequestID(c.UserContext(), log).Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return response.InternalServerError(c, "Internal server error")
	}

	switch dErr.Kind {
	case domain.KindValidation, domain.KindConflict:
		if len(dErr.Fields) > 0 {
			return response.ValidationMessages(c, dErr.Fields)
		}
		return response.BadRequest(c, dErr.Message)
	case domain.KindUnauthenticated:
		return response.Unauthorized(c, dErr.Message)
	case domain.KindAuthorization:
		return response.Forbidden(c, dErr.Message)
	case domain.KindNotFound:
		return response.NotFound(c, dErr.Message)
	}
	return response.InternalServerError(c, "Internal server error")
}

// currentActor returns the caller set by the auth middleware
func currentActor(c *fiber.Ctx) (domain.Actor, error) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return domain.Actor{}, domain.ErrUnauthenticated
	}
	return actor, nil
}

// parseBody decodes the JSON body into out
func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return domain.Validation("invalid request body")
	}
	return nil
}
