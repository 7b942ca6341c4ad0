package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/evteam/tesla-charge-orchestrator/internal/service/worker"
)

// Handlers binds the Worker service to spec.md §4.4's HTTP surface.
type Handlers struct {
	worker *worker.Worker
	log    *zap.Logger
}

func New(w *worker.Worker, log *zap.Logger) *Handlers {
	return &Handlers{worker: w, log: log}
}

func (h *Handlers) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *Handlers) GetToken(c *fiber.Ctx) error {
	token, remaining, err := h.worker.GetToken(c.Context())
	if err != nil {
		h.log.Error("get-token failed", zap.Error(err))
		return err
	}
	return c.JSON(fiber.Map{"access_token": token, "remaining_minutes": remaining})
}

func (h *Handlers) RefreshTokens(c *fiber.Ctx) error {
	if err := h.worker.RefreshTokens(c.Context()); err != nil {
		h.log.Error("refresh-tokens failed", zap.Error(err))
		return err
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *Handlers) EmergencyRefreshTokens(c *fiber.Ctx) error {
	if err := h.worker.EmergencyRefreshTokens(c.Context()); err != nil {
		h.log.Error("emergency-refresh-tokens failed", zap.Error(err))
		return err
	}
	return c.SendStatus(fiber.StatusOK)
}

type runCycleRequest struct {
	Reason          string `json:"reason"`
	SnapshotSummary string `json:"snapshot_summary"`
}

func (h *Handlers) RunCycle(c *fiber.Ctx) error {
	var req runCycleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Reason == "" {
		req.Reason = "unspecified"
	}

	result, err := h.worker.RunCycle(c.Context(), req.Reason)
	if err != nil {
		h.log.Error("run-cycle failed", zap.Error(err), zap.String("reason", req.Reason))
		return err
	}
	return c.JSON(fiber.Map{"result": result.CycleResult, "action": result.Action})
}

func (h *Handlers) RunMidnightWake(c *fiber.Ctx) error {
	result, err := h.worker.RunMidnightWake(c.Context())
	if err != nil {
		h.log.Error("run-midnight-wake failed", zap.Error(err))
		return err
	}
	return c.JSON(fiber.Map{"result": result.CycleResult, "action": result.Action})
}

func (h *Handlers) DailySpecialChargingCheck(c *fiber.Ctx) error {
	planned, err := h.worker.DailySpecialChargingCheck(c.Context())
	if err != nil {
		h.log.Error("daily-special-charging-check failed", zap.Error(err))
		return err
	}
	return c.JSON(fiber.Map{"planned": planned})
}

type sessionJobRequest struct {
	SessionID string `json:"session_id"`
}

func (h *Handlers) SendSpecialSchedule(c *fiber.Ctx) error {
	var req sessionJobRequest
	if err := c.BodyParser(&req); err != nil || req.SessionID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "session_id is required")
	}
	if err := h.worker.SendSpecialSchedule(c.Context(), req.SessionID); err != nil {
		h.log.Error("send-special-schedule failed", zap.Error(err), zap.String("session_id", req.SessionID))
		return err
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *Handlers) CleanupSingleSession(c *fiber.Ctx) error {
	var req sessionJobRequest
	if err := c.BodyParser(&req); err != nil || req.SessionID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "session_id is required")
	}
	if err := h.worker.CleanupSingleSession(c.Context(), req.SessionID); err != nil {
		h.log.Error("cleanup-single-session failed", zap.Error(err), zap.String("session_id", req.SessionID))
		return err
	}
	return c.SendStatus(fiber.StatusOK)
}
