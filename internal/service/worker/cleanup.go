package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/evteam/tesla-charge-orchestrator/internal/domain"
)

// CleanupSingleSession backs POST /cleanup-single-session (§4.5.3): restores
// the original charge limit and retires the session to COMPLETED.
func (w *Worker) CleanupSingleSession(ctx context.Context, sessionID string) error {
	unlock := w.locks.lock(sessionID)
	defer unlock()

	session, err := w.sessions.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("cleanup-single-session: failed to load session: %w", err)
	}
	if session == nil {
		return fmt.Errorf("cleanup-single-session: unknown session %s", sessionID)
	}
	if session.State != domain.SessionActive {
		w.log.Info("cleanup-single-session: session not ACTIVE, skipping",
			zap.String("session_id", sessionID), zap.String("state", string(session.State)))
		return nil
	}

	if err := w.gateway.SetChargeLimit(ctx, w.cfg.VIN, session.OriginalChargeLimit); err != nil {
		return fmt.Errorf("cleanup-single-session: failed to restore charge limit: %w", err)
	}

	now := time.Now()
	if err := session.Transition(domain.SessionCompleted, now); err != nil {
		return fmt.Errorf("cleanup-single-session: %w", err)
	}
	if err := w.sessions.Put(ctx, *session); err != nil {
		return fmt.Errorf("cleanup-single-session: failed to persist COMPLETED transition: %w", err)
	}
	w.publishEvent(ctx, *session)

	if err := w.scheduler.DeleteJob(ctx, session.CleanupJobName); err != nil {
		w.log.Warn("cleanup-single-session: failed to self-delete cleanup job", zap.String("session_id", sessionID), zap.Error(err))
	}

	w.log.Info("special-charging session completed", zap.String("session_id", sessionID))
	return nil
}
