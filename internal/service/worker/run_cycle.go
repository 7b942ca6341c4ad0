package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/evteam/tesla-charge-orchestrator/internal/domain"
	"github.com/evteam/tesla-charge-orchestrator/internal/ports"
	"github.com/evteam/tesla-charge-orchestrator/internal/service/reconcile"
)

// RunCycle is the main entrypoint (§4.4.1): pre-wake if offline, then
// evaluate Conditions A and B against a full snapshot.
func (w *Worker) RunCycle(ctx context.Context, reason string) (Result, error) {
	cheap, err := w.gateway.GetSnapshot(ctx, w.cfg.VIN, false)
	if err != nil {
		return Result{}, fmt.Errorf("run-cycle: failed to read snapshot: %w", err)
	}

	woken := false
	if !cheap.Online {
		// wake_up itself polls get_snapshot until online or WakeTimeout
		// elapses (§4.2), which subsumes the fixed "sleep 5s" step here.
		if err := w.gateway.WakeUp(ctx, w.cfg.VIN); err != nil {
			w.log.Warn("run-cycle: wake_up did not bring vehicle online", zap.Error(err), zap.String("vin", w.cfg.VIN))
		}
		woken = true
	}

	full, err := w.gateway.GetSnapshot(ctx, w.cfg.VIN, true)
	if err != nil {
		return Result{}, fmt.Errorf("run-cycle: failed to read full snapshot: %w", err)
	}

	return w.runCycleCore(ctx, full, reason, woken)
}

// RunMidnightWake implements §4.4.3: call wake_up unconditionally, then run
// the same Condition A/B evaluation as run-cycle.
func (w *Worker) RunMidnightWake(ctx context.Context) (Result, error) {
	if err := w.gateway.WakeUp(ctx, w.cfg.VIN); err != nil {
		w.log.Warn("midnight wake: wake_up did not bring vehicle online", zap.Error(err), zap.String("vin", w.cfg.VIN))
	}

	full, err := w.gateway.GetSnapshot(ctx, w.cfg.VIN, true)
	if err != nil {
		return Result{}, fmt.Errorf("midnight wake: failed to read full snapshot: %w", err)
	}

	return w.runCycleCore(ctx, full, "midnight wake", true)
}

// runCycleCore implements §4.4.1 steps 2-6.
func (w *Worker) runCycleCore(ctx context.Context, snap domain.Snapshot, reason string, woken bool) (Result, error) {
	locationStatus := snap.LocationStatus(w.cfg.HomeLat, w.cfg.HomeLon, w.cfg.HomeRadius)
	atHome := locationStatus == domain.LocationHome
	ready := snap.IsChargingReady()
	now := time.Now()

	active, err := w.sessions.ActiveForVIN(ctx, w.cfg.VIN)
	if err != nil {
		w.log.Warn("run-cycle: failed to check for active special-charging session", zap.Error(err))
	}
	if hasActiveSpecialCharging(active, now) {
		w.logSummary(now, "skipped", snap, locationStatus, ready, "none")
		return Result{CycleResult: "skipped", Action: "none"}, nil
	}

	action := "none"
	cycleResult := "ok"

	switch {
	case snap.Online && atHome && ready:
		a, err := w.evaluateConditionA(ctx, snap)
		if err != nil {
			w.log.Error("run-cycle: condition A evaluation failed", zap.Error(err), zap.String("reason", reason))
			cycleResult = "failed"
		} else {
			action = a
		}
		if err := w.cases.Delete(ctx, w.cfg.VIN); err != nil {
			w.log.Warn("run-cycle: failed to clear active case", zap.Error(err))
		}
	case snap.Online && atHome && !ready:
		existing, err := w.cases.Get(ctx, w.cfg.VIN)
		if err != nil {
			w.log.Warn("run-cycle: failed to read active case", zap.Error(err))
		} else if existing == nil {
			if err := w.cases.Put(ctx, domain.ActiveCase{VIN: w.cfg.VIN, StartTimestamp: now, LastBattery: snap.BatteryPercent, LastReady: ready}); err != nil {
				w.log.Warn("run-cycle: failed to start active case", zap.Error(err))
			} else {
				action = "condition_b_started"
			}
		}
	}

	if woken && action == "none" {
		action = "woken"
	}

	w.logSummary(now, cycleResult, snap, locationStatus, ready, action)
	return Result{CycleResult: cycleResult, Action: action}, nil
}

// hasActiveSpecialCharging implements §4.4.1 step 2: skip reconciliation
// while a special-charging session is ACTIVE, or its planned window
// currently contains now (covers the narrow gap between dispatch writing
// the schedule and the session document catching up).
func hasActiveSpecialCharging(s *domain.Session, now time.Time) bool {
	if s == nil {
		return false
	}
	if s.State == domain.SessionActive {
		return true
	}
	return !now.Before(s.PlannedChargeStart) && !now.After(s.PlannedChargeEnd)
}

// evaluateConditionA implements §4.4.1 step 3.
func (w *Worker) evaluateConditionA(ctx context.Context, snap domain.Snapshot) (string, error) {
	req := ports.PricingRequest{
		BatteryLevel:    float64(snap.BatteryPercent),
		BatteryCapacity: w.cfg.BatteryCapacityKWh,
		Consumption:     w.cfg.Consumption,
		DailyMileage:    w.cfg.DailyMileage,
		ChargeLimits:    w.cfg.ChargeLimits,
	}

	windows, err := w.pricing.GetSchedule(ctx, req)
	if err != nil {
		return "", fmt.Errorf("pricing API request failed: %w", err)
	}

	if len(windows) == 0 {
		cached, ok, err := w.fingerprint.Get(ctx, w.cfg.VIN)
		if err == nil && ok && cached != "" {
			w.log.Info("run-cycle: pricing API returned no schedule, keeping existing", zap.String("vin", w.cfg.VIN))
			return "none", nil
		}
	}

	result, err := w.engine.Reconcile(ctx, w.cfg.VIN, windows)
	if err != nil {
		return "", fmt.Errorf("reconciliation failed: %w", err)
	}

	switch result.Status {
	case reconcile.StatusReconciled:
		return "reconciled", nil
	case reconcile.StatusFailed:
		return "", fmt.Errorf("reconciliation reported failure")
	default:
		return "none", nil
	}
}

// logSummary emits the mandatory per-cycle summary line (§6).
func (w *Worker) logSummary(at time.Time, cycleResult string, snap domain.Snapshot, location domain.LocationStatus, ready bool, action string) {
	w.log.Info(fmt.Sprintf(
		"[%s local] result=%s VIN=%s battery=%d%% ready=%s location=%s action=%s",
		at.In(w.cfg.Location).Format("15:04"),
		cycleResult,
		vinSuffix(w.cfg.VIN),
		snap.BatteryPercent,
		yesNo(ready),
		location,
		action,
	))
}
