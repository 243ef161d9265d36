package middleware

import (
	"context"
	"errors"
	"strings"

	"alumni-ledger/internal/core/domain"
	"alumni-ledger/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

const actorKey = "actor"

// Authenticator turns an access token into the current caller
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (domain.Actor, error)
}

// AuthMiddleware creates authentication middleware. The caller is stored as a
// domain.Actor in Locals.
func AuthMiddleware(authenticator Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accessToken := tokenFrom(c)
		if accessToken == "" {
			return response.Unauthorized(c, "Access token required")
		}

		actor, err := authenticator.Authenticate(c.UserContext(), accessToken)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrTokenExpired):
				return response.Unauthorized(c, "Access token expired")
			case errors.Is(err, domain.ErrUserInactive):
				return response.Forbidden(c, "Account is inactive")
			case domain.IsKind(err, domain.KindInternal):
				return err
			}
			return response.Unauthorized(c, "Invalid access token")
		}

		c.Locals(actorKey, actor)
		return c.Next()
	}
}

// RequireRoles allows only the listed roles through
func RequireRoles(allowed ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := ActorFrom(c)
		if !ok {
			return response.Unauthorized(c, "Unauthorized")
		}
		if err := domain.RequireRole(actor.Role, allowed...); err != nil {
			return response.Forbidden(c, "You don't have permission to access this resource")
		}
		return c.Next()
	}
}

// AdminOnly allows admin and superadmin
func AdminOnly() fiber.Handler {
	return RequireRoles(domain.AdminRoles...)
}

// SuperAdminOnly allows superadmin
func SuperAdminOnly() fiber.Handler {
	return RequireRoles(domain.RoleSuperAdmin)
}

// ActorFrom returns the authenticated caller
func ActorFrom(c *fiber.Ctx) (domain.Actor, bool) {
	actor, ok := c.Locals(actorKey).(domain.Actor)
	return actor, ok
}

// tokenFrom reads the access token from the cookie first, then the Authorization header
func tokenFrom(c *fiber.Ctx) string {
	if token := c.Cookies("access_token"); token != "" {
		return token
	}
	authHeader := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}
