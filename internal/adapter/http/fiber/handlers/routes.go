package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/evteam/tesla-charge-orchestrator/internal/adapter/http/fiber/middleware"
	"github.com/evteam/tesla-charge-orchestrator/internal/ports"
)

// RegisterRoutes wires spec.md §4.4's HTTP surface. Every endpoint but
// /health is a mutating internal call from Scout, the midnight-wake cron, or
// the Dynamic Scheduler, and requires a valid service-identity token.
func RegisterRoutes(app *fiber.App, h *Handlers, validator ports.IdentityValidator) {
	app.Get("/health", h.Health)

	protected := app.Group("", middleware.AuthRequired(validator))
	protected.Get("/get-token", h.GetToken)
	protected.Post("/refresh-tokens", h.RefreshTokens)
	protected.Post("/emergency-refresh-tokens", h.EmergencyRefreshTokens)
	protected.Post("/run-cycle", h.RunCycle)
	protected.Post("/run-midnight-wake", h.RunMidnightWake)
	protected.Post("/daily-special-charging-check", h.DailySpecialChargingCheck)
	protected.Post("/send-special-schedule", h.SendSpecialSchedule)
	protected.Post("/cleanup-single-session", h.CleanupSingleSession)
}
