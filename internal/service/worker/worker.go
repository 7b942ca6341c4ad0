package worker

import (
	"time"

	"go.uber.org/zap"

	"github.com/evteam/tesla-charge-orchestrator/internal/ports"
	"github.com/evteam/tesla-charge-orchestrator/internal/service/planner"
	"github.com/evteam/tesla-charge-orchestrator/internal/service/reconcile"
)

// Config carries the vehicle physics constants and pricing request
// parameters that do not change between cycles (§6: HOME_LATITUDE,
// HOME_LONGITUDE, HOME_RADIUS, BATTERY_CAPACITY_KWH, CHARGING_RATE_KW).
type Config struct {
	VIN                string
	HomeLat            float64
	HomeLon            float64
	HomeRadius         float64
	BatteryCapacityKWh float64
	ChargingRateKW     float64
	Consumption        float64
	DailyMileage       float64
	ChargeLimits       ports.ChargeLimits
	WorkerURL          string
	SchedulerIdentity  string
	Location           *time.Location
}

// Worker is the only component that issues state-changing vehicle
// operations (§4.4). It owns the Token Broker, the Vehicle Gateway, the
// Reconciliation Engine, and the special-charging planner/dispatch/cleanup
// handlers, and serializes session transitions with a per-session mutex.
type Worker struct {
	cfg Config

	gateway     ports.VehicleGateway
	broker      ports.TokenBroker
	tokenStore  ports.TokenStore
	engine      *reconcile.Engine
	planner     *planner.Planner
	fingerprint ports.FingerprintRepository
	pricing     ports.PricingClient
	sheet       ports.SheetClient
	scheduler   ports.SchedulerClient
	cases       ports.CaseRepository
	sessions    ports.SessionRepository
	events      ports.SessionEventPublisher

	log   *zap.Logger
	locks *sessionLocks
}

// Deps bundles every collaborator Worker needs; assembled once at startup
// in cmd/worker.
type Deps struct {
	Gateway     ports.VehicleGateway
	Broker      ports.TokenBroker
	TokenStore  ports.TokenStore
	Engine      *reconcile.Engine
	Planner     *planner.Planner
	Fingerprint ports.FingerprintRepository
	Pricing     ports.PricingClient
	Sheet       ports.SheetClient
	Scheduler   ports.SchedulerClient
	Cases       ports.CaseRepository
	Sessions    ports.SessionRepository
	Events      ports.SessionEventPublisher
}

func New(cfg Config, deps Deps, log *zap.Logger) *Worker {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Worker{
		cfg:         cfg,
		gateway:     deps.Gateway,
		broker:      deps.Broker,
		tokenStore:  deps.TokenStore,
		engine:      deps.Engine,
		planner:     deps.Planner,
		fingerprint: deps.Fingerprint,
		pricing:     deps.Pricing,
		sheet:       deps.Sheet,
		scheduler:   deps.Scheduler,
		cases:       deps.Cases,
		sessions:    deps.Sessions,
		events:      deps.Events,
		log:         log,
		locks:       newSessionLocks(),
	}
}

// Result is the outcome of a monitoring cycle, logged as the mandatory
// per-cycle summary line (§6).
type Result struct {
	CycleResult string // ok | skipped | failed
	Action      string // none | reconciled | condition_b_started | woken | special_dispatched | special_cleaned
}

func yesNo(b bool) string {
	if b {
		return "y"
	}
	return "n"
}

func minutesOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

func vinSuffix(vin string) string {
	if len(vin) <= 4 {
		return vin
	}
	return vin[len(vin)-4:]
}
