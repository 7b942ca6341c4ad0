package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/evteam/tesla-charge-orchestrator/internal/ports"
)

// AuthRequired authenticates Worker's internal HTTP surface. Calls arrive
// from Scout, the midnight-wake cron, or the Dynamic Scheduler, never an
// end user, so the token identifies a calling service, not an account.
func AuthRequired(validator ports.IdentityValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization header"})
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization header format"})
		}

		claims, err := validator.ValidateToken(c.Context(), parts[1])
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired token"})
		}

		c.Locals("caller", claims.Subject)
		return c.Next()
	}
}
