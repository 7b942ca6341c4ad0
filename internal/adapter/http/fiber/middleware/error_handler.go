package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/evteam/tesla-charge-orchestrator/internal/domain"
)

// domainStatusCode maps the gateway/broker error taxonomy (§7) onto HTTP
// status codes, so a handler can return a domain error unwrapped and still
// get a meaningful response instead of a blanket 500.
func domainStatusCode(err error) (int, bool) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrNeedsReauthorization):
		return fiber.StatusUnauthorized, true
	case errors.Is(err, domain.ErrForbidden):
		return fiber.StatusForbidden, true
	case errors.Is(err, domain.ErrRateLimited):
		return fiber.StatusTooManyRequests, true
	case errors.Is(err, domain.ErrNotSupported):
		return fiber.StatusPreconditionFailed, true
	case errors.Is(err, domain.ErrBadRequest):
		return fiber.StatusBadRequest, true
	case errors.Is(err, domain.ErrTransient):
		return fiber.StatusServiceUnavailable, true
	default:
		return 0, false
	}
}

func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError

		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		} else if mapped, ok := domainStatusCode(err); ok {
			code = mapped
		}

		if code == fiber.StatusInternalServerError {
			log.Error("Internal Server Error", zap.Error(err), zap.String("path", c.Path()))
		}

		return c.Status(code).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
}
