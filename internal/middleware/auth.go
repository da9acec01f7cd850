package middleware

import (
	"errors"

	"taskmanager/internal/config"
	"taskmanager/internal/repository"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TokenHeader carries the session token on protected routes.
const TokenHeader = "x-auth-token"

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID uuid.UUID
	Token  string
}

type identityKey struct{}

// IdentityFrom returns the identity stored by RequireAuth.
func IdentityFrom(c *fiber.Ctx) (Identity, bool) {
	id, ok := c.Locals(identityKey{}).(Identity)
	return id, ok
}

// RequireAuth rejects requests without a valid token for an existing user.
func RequireAuth(deps *config.Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Get(TokenHeader)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "No auth token, Access Denied"})
		}

		userID, err := deps.Tokens.Verify(token)
		if err != nil {
			deps.Log.Security.Warn("Token verification failed",
				zap.String("path", c.Path()), zap.String("ip", c.IP()), zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token verification failed"})
		}

		if _, err := deps.Users.GetByID(c.UserContext(), userID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				deps.Log.Security.Warn("Token for unknown user", zap.String("user_id", userID.String()))
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "No user found"})
			}
			deps.Log.Error.Error("Error resolving token user", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
		}

		c.Locals(identityKey{}, Identity{UserID: userID, Token: token})
		return c.Next()
	}
}
