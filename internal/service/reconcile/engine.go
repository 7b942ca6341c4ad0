package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/evteam/tesla-charge-orchestrator/internal/domain"
	"github.com/evteam/tesla-charge-orchestrator/internal/ports"
)

// Status is the outcome of a Reconcile call.
type Status string

const (
	StatusReconciled Status = "reconciled"
	StatusUnchanged  Status = "unchanged"
	StatusFailed     Status = "failed"
)

// Result summarizes a reconciliation run for logging and the run-cycle
// summary line.
type Result struct {
	Status      Status
	AddedIDs    []int
	Dropped     []domain.Schedule
	Fingerprint domain.Fingerprint
}

// Engine is the charging schedule reconciliation engine (§4.4.2).
type Engine struct {
	gateway    ports.VehicleGateway
	fps        ports.FingerprintRepository
	log        *zap.Logger
	homeLat    float64
	homeLon    float64
	homeRadius float64
	location   *time.Location
}

func New(gateway ports.VehicleGateway, fps ports.FingerprintRepository, homeLat, homeLon, homeRadius float64, location *time.Location, log *zap.Logger) *Engine {
	return &Engine{
		gateway:    gateway,
		fps:        fps,
		log:        log,
		homeLat:    homeLat,
		homeLon:    homeLon,
		homeRadius: homeRadius,
		location:   location,
	}
}

// Reconcile runs §4.4.2 steps 1-6 against the desired windows produced by
// the pricing API.
func (e *Engine) Reconcile(ctx context.Context, vin string, windows []domain.Window) (Result, error) {
	desired := e.convertWindows(windows)
	accepted, dropped := ResolveOverlaps(desired)
	for _, d := range dropped {
		e.log.Info("dropped overlapping desired window",
			zap.String("vin", vin),
			zap.Int("start_minutes", d.StartMinutes),
			zap.Int("end_minutes", d.EndMinutes),
		)
	}

	current, err := e.gateway.ListChargeSchedules(ctx, vin)
	if err != nil {
		return Result{Status: StatusFailed}, fmt.Errorf("failed to read current schedules: %w", err)
	}
	priorHome := make([]domain.Schedule, 0, len(current))
	for _, s := range current {
		if s.IsHomeSchedule(e.homeLat, e.homeLon, e.homeRadius) {
			priorHome = append(priorHome, s)
		}
	}

	fingerprint := domain.ComputeFingerprint(accepted)
	cached, ok, err := e.fps.Get(ctx, vin)
	if err != nil {
		return Result{Status: StatusFailed}, fmt.Errorf("failed to read cached fingerprint: %w", err)
	}
	if ok && cached == fingerprint {
		return Result{Status: StatusUnchanged, Fingerprint: fingerprint}, nil
	}

	addedIDs := make([]int, 0, len(accepted))
	for _, sched := range accepted {
		id, err := e.gateway.AddChargeSchedule(ctx, vin, sched)
		if err != nil {
			e.log.Error("failed to add charge schedule, aborting without removing prior schedules",
				zap.String("vin", vin), zap.Error(err))
			return Result{Status: StatusFailed}, fmt.Errorf("add charge schedule failed: %w", err)
		}
		addedIDs = append(addedIDs, id)
	}

	for _, prior := range priorHome {
		if err := e.gateway.RemoveChargeSchedule(ctx, vin, prior.ScheduleID); err != nil {
			e.log.Warn("failed to remove prior home schedule, vehicle left in correct-but-overlapping state",
				zap.String("vin", vin), zap.Int("schedule_id", prior.ScheduleID), zap.Error(err))
		}
	}

	if err := e.fps.Put(ctx, vin, fingerprint); err != nil {
		return Result{Status: StatusFailed}, fmt.Errorf("failed to persist fingerprint after successful reconciliation: %w", err)
	}

	return Result{Status: StatusReconciled, AddedIDs: addedIDs, Dropped: dropped, Fingerprint: fingerprint}, nil
}

// convertWindows implements §4.4.2 step 1: project each window onto
// minute-of-day in the configured local time zone, anchored at home
// coordinates.
func (e *Engine) convertWindows(windows []domain.Window) []domain.Schedule {
	schedules := make([]domain.Schedule, 0, len(windows))
	for _, w := range windows {
		start := w.Start.In(e.location)
		end := w.End.In(e.location)
		startMinutes := start.Hour()*60 + start.Minute()
		endMinutes := end.Hour()*60 + end.Minute()
		schedules = append(schedules, domain.NewHomeSchedule(startMinutes, endMinutes, e.homeLat, e.homeLon))
	}
	return schedules
}
