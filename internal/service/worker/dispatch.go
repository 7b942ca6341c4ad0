package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/evteam/tesla-charge-orchestrator/internal/domain"
)

// SendSpecialSchedule backs POST /send-special-schedule (§4.5.2): the
// Dynamic Scheduler invokes this at send_at to actually write the planned
// charge schedule to the vehicle and transition the session to ACTIVE.
func (w *Worker) SendSpecialSchedule(ctx context.Context, sessionID string) error {
	unlock := w.locks.lock(sessionID)
	defer unlock()

	session, err := w.sessions.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("send-special-schedule: failed to load session: %w", err)
	}
	if session == nil {
		return fmt.Errorf("send-special-schedule: unknown session %s", sessionID)
	}
	if session.State != domain.SessionScheduled {
		// Retried delivery of an already-dispatched job; idempotent no-op.
		w.log.Info("send-special-schedule: session no longer SCHEDULED, skipping",
			zap.String("session_id", sessionID), zap.String("state", string(session.State)))
		return nil
	}

	snap, err := w.gateway.GetSnapshot(ctx, w.cfg.VIN, false)
	if err != nil {
		return fmt.Errorf("send-special-schedule: failed to read snapshot: %w", err)
	}

	if session.TargetPercent > snap.CurrentLimit {
		if session.OriginalChargeLimit == 0 {
			session.OriginalChargeLimit = snap.CurrentLimit
		}
		if err := w.gateway.SetChargeLimit(ctx, w.cfg.VIN, session.TargetPercent); err != nil {
			return fmt.Errorf("send-special-schedule: failed to raise charge limit: %w", err)
		}
	}

	if err := w.gateway.WakeUp(ctx, w.cfg.VIN); err != nil {
		w.log.Warn("send-special-schedule: wake_up did not bring vehicle online", zap.Error(err), zap.String("session_id", sessionID))
	}

	sched := domain.NewHomeSchedule(minutesOfDay(session.PlannedChargeStart), minutesOfDay(session.PlannedChargeEnd), w.cfg.HomeLat, w.cfg.HomeLon)
	if _, err := w.gateway.AddChargeSchedule(ctx, w.cfg.VIN, sched); err != nil {
		return fmt.Errorf("send-special-schedule: failed to write charge schedule: %w", err)
	}

	now := time.Now()
	if err := session.Transition(domain.SessionActive, now); err != nil {
		return fmt.Errorf("send-special-schedule: %w", err)
	}
	if err := w.sessions.Put(ctx, *session); err != nil {
		return fmt.Errorf("send-special-schedule: failed to persist ACTIVE transition: %w", err)
	}
	w.publishEvent(ctx, *session)

	if err := w.scheduler.DeleteJob(ctx, session.SendJobName); err != nil {
		w.log.Warn("send-special-schedule: failed to self-delete send job", zap.String("session_id", sessionID), zap.Error(err))
	}

	w.log.Info("special-charging schedule dispatched", zap.String("session_id", sessionID),
		zap.Time("charge_start", session.PlannedChargeStart), zap.Time("charge_end", session.PlannedChargeEnd))
	return nil
}
