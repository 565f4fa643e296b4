package middleware

import (
	"context"
	"errors"

	"casedesk/internal/authorization"
	"casedesk/internal/database"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const callerLocalsKey = "caller"

// UserStore resolves API tokens to stored users.
type UserStore interface {
	GetUserByAPIToken(ctx context.Context, token uuid.UUID) (database.User, error)
}

// AuthenticatedToken resolves the bearer token to a caller. Inactive users
// authenticate like unknown tokens.
func AuthenticatedToken(store UserStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status":  "error",
				"message": "Missing or malformed Authorization header",
			})
		}

		token, err := uuid.Parse(authHeader[7:])
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status":  "error",
				"message": "Invalid token",
			})
		}

		user, err := store.GetUserByAPIToken(c.Context(), token)
		if err != nil {
			if errors.Is(err, database.ErrUserNotFound) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"status":  "error",
					"message": "Invalid token",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"status":  "error",
				"message": "Authentication failed",
			})
		}
		if !user.Active {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status":  "error",
				"message": "Invalid token",
			})
		}

		c.Locals(callerLocalsKey, authorization.Caller{
			UserID:      user.ID,
			Login:       user.Login,
			IsAdmin:     user.IsAdmin,
			Permissions: authorization.PermissionsForUser(user.IsAdmin),
		})
		return c.Next()
	}
}

// RequirePermission gates a route on a capability, evaluated per request.
func RequirePermission(authorizer *authorization.Authorizer, perm authorization.Permission) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := CallerFromCtx(c)
		if !ok || !authorizer.Allowed(caller, perm) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"status":  "error",
				"message": "Permission denied",
			})
		}
		return c.Next()
	}
}

// CallerFromCtx returns the caller resolved by AuthenticatedToken.
func CallerFromCtx(c *fiber.Ctx) (authorization.Caller, bool) {
	caller, ok := c.Locals(callerLocalsKey).(authorization.Caller)
	return caller, ok
}
