package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/evteam/tesla-charge-orchestrator/internal/domain"
	"github.com/evteam/tesla-charge-orchestrator/internal/ports"
	"github.com/evteam/tesla-charge-orchestrator/internal/service/planner"
)

const (
	sessionLookahead   = 48 * time.Hour
	sendLeadTime       = 30 * time.Minute
	minSendLeadFromNow = 2 * time.Minute
	cleanupTrailTime   = 30 * time.Minute
)

// DailySpecialChargingCheck backs POST /daily-special-charging-check
// (§4.5.1): reads the spreadsheet, plans a slot for every eligible row, and
// schedules the two jobs that drive dispatch and cleanup. Returns the
// number of sessions newly scheduled.
func (w *Worker) DailySpecialChargingCheck(ctx context.Context) (int, error) {
	rows, err := w.sheet.ActiveRows(ctx)
	if err != nil {
		return 0, fmt.Errorf("daily check: failed to read sheet: %w", err)
	}

	now := time.Now()
	planned := 0
	for _, row := range rows {
		target, err := parseRowDatetime(row, w.cfg.Location)
		if err != nil {
			w.log.Warn("daily check: skipping row with unparseable date/time", zap.Int("row", row.Row), zap.Error(err))
			continue
		}
		if target.Before(now) || target.Sub(now) > sessionLookahead {
			continue
		}

		exists, err := w.sessions.ExistsForRow(ctx, row.Row, row.Date)
		if err != nil {
			w.log.Error("daily check: failed to check existing session", zap.Int("row", row.Row), zap.Error(err))
			continue
		}
		if exists {
			continue
		}

		if err := w.planRow(ctx, row, target); err != nil {
			w.log.Error("daily check: failed to plan row", zap.Int("row", row.Row), zap.Error(err))
			continue
		}
		planned++
	}

	if err := w.reapStaleSessions(ctx, now); err != nil {
		w.log.Warn("daily check: failed to reap stale sessions", zap.Error(err))
	}

	return planned, nil
}

func (w *Worker) planRow(ctx context.Context, row ports.SheetRow, target time.Time) error {
	snap, err := w.gateway.GetSnapshot(ctx, w.cfg.VIN, false)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	requiredKWh := planner.RequiredKWh(row.TargetPercent, snap.BatteryPercent, w.cfg.BatteryCapacityKWh)
	if requiredKWh <= 0 {
		if err := w.sheet.UpdateStatus(ctx, row.Row, "COMPLETED"); err != nil {
			w.log.Warn("daily check: failed to mark already-met row COMPLETED", zap.Int("row", row.Row), zap.Error(err))
		}
		return nil
	}

	plan, err := w.planner.Plan(time.Now(), target, requiredKWh, w.cfg.ChargingRateKW)
	if err != nil {
		return fmt.Errorf("failed to compute plan: %w", err)
	}

	now := time.Now()
	sendAt := plan.ChargeStart.Add(-sendLeadTime)
	if sendAt.Before(now.Add(minSendLeadFromNow)) {
		sendAt = now.Add(minSendLeadFromNow)
	}
	cleanupAt := plan.ChargeEnd.Add(cleanupTrailTime)

	sessionID := domain.NewSessionID(row.Row, target)
	session := domain.Session{
		SessionID:          sessionID,
		Row:                row.Row,
		VIN:                w.cfg.VIN,
		State:              domain.SessionScheduled,
		TargetPercent:      row.TargetPercent,
		TargetDatetime:     target,
		PlannedChargeStart: plan.ChargeStart,
		PlannedChargeEnd:   plan.ChargeEnd,
		SendAt:             sendAt,
		SendJobName:        "special-charging-" + sessionID,
		CleanupJobName:     "special-cleanup-" + sessionID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := w.sessions.Put(ctx, session); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}

	sendJob := ports.SchedulerJob{
		Name:      session.SendJobName,
		Cron:      cronAt(sendAt.In(w.cfg.Location)),
		TargetURL: w.cfg.WorkerURL + "/send-special-schedule",
		Body:      map[string]string{"session_id": sessionID},
		Identity:  w.cfg.SchedulerIdentity,
	}
	if err := w.scheduler.CreateJob(ctx, sendJob); err != nil {
		return fmt.Errorf("failed to create send job: %w", err)
	}

	cleanupJob := ports.SchedulerJob{
		Name:      session.CleanupJobName,
		Cron:      cronAt(cleanupAt.In(w.cfg.Location)),
		TargetURL: w.cfg.WorkerURL + "/cleanup-single-session",
		Body:      map[string]string{"session_id": sessionID},
		Identity:  w.cfg.SchedulerIdentity,
	}
	if err := w.scheduler.CreateJob(ctx, cleanupJob); err != nil {
		return fmt.Errorf("failed to create cleanup job: %w", err)
	}

	w.log.Info("special-charging session scheduled",
		zap.String("session_id", sessionID),
		zap.String("strategy", string(plan.Strategy)),
		zap.Time("planned_charge_start", plan.ChargeStart),
		zap.Time("planned_charge_end", plan.ChargeEnd),
	)
	return nil
}

// reapStaleSessions implements §7's fallback recovery: sessions stuck
// ACTIVE past planned_charge_end + 2h are force-transitioned to FAILED.
func (w *Worker) reapStaleSessions(ctx context.Context, now time.Time) error {
	stale, err := w.sessions.Stale(ctx, now.Unix())
	if err != nil {
		return fmt.Errorf("failed to query stale sessions: %w", err)
	}
	for _, s := range stale {
		if err := s.Transition(domain.SessionFailed, now); err != nil {
			w.log.Warn("daily check: could not transition stale session", zap.String("session_id", s.SessionID), zap.Error(err))
			continue
		}
		if err := w.sessions.Put(ctx, s); err != nil {
			w.log.Error("daily check: failed to persist stale session transition", zap.String("session_id", s.SessionID), zap.Error(err))
			continue
		}
		w.publishEvent(ctx, s)
		w.log.Warn("special-charging session stale past cleanup window, marked FAILED", zap.String("session_id", s.SessionID))
	}
	return nil
}

func parseRowDatetime(row ports.SheetRow, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", row.Date+" "+row.Time, loc)
}

// cronAt formats a one-shot 5-field cron expression for the exact minute of
// t, in t's own location.
func cronAt(t time.Time) string {
	return fmt.Sprintf("%d %d %d %d *", t.Minute(), t.Hour(), t.Day(), int(t.Month()))
}

func (w *Worker) publishEvent(ctx context.Context, s domain.Session) {
	if w.events == nil {
		return
	}
	event := ports.SessionEvent{SessionID: s.SessionID, VIN: s.VIN, State: s.State, At: time.Now()}
	if err := w.events.Publish(ctx, event); err != nil {
		w.log.Warn("failed to publish session event", zap.String("session_id", s.SessionID), zap.Error(err))
	}
}
