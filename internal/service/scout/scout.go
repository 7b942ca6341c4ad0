package scout

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/evteam/tesla-charge-orchestrator/internal/adapter/vehicle"
	"github.com/evteam/tesla-charge-orchestrator/internal/domain"
	"github.com/evteam/tesla-charge-orchestrator/internal/infrastructure/circuitbreaker"
	"github.com/evteam/tesla-charge-orchestrator/internal/ports"
	"github.com/evteam/tesla-charge-orchestrator/internal/service/auth"
)

// Trigger reasons (§4.3 step 5). Exact strings matter: they are logged and
// carried to Worker in the run-cycle request.
const (
	ReasonReturnedHome      = "returned home"
	ReasonInitState         = "init state"
	ReasonConditionAReady   = "Condition A ready"
	ReasonConditionBOffline = "Condition B — vehicle OFFLINE, wake and re-check"
)

// Config carries Scout's vehicle and addressing parameters.
type Config struct {
	VIN          string
	HomeLat      float64
	HomeLon      float64
	HomeRadius   float64
	WorkerURL    string
	CloudBaseURL string
	HTTPTimeout  time.Duration
}

// Scout is the stateless, single-invocation cheap poller (§4.3). Every Run
// call is a fresh process in production; this type holds no state beyond
// what Run receives and persists.
type Scout struct {
	cfg      Config
	gateway  ports.VehicleGateway
	states   ports.ScoutStateRepository
	sessions ports.SessionRepository
	worker   *workerClient
	log      *zap.Logger
}

// New wires Scout's own Vehicle Gateway instance, configured with a
// direct-secret-store token source instead of the Token Broker (§4.1).
func New(cfg Config, store ports.TokenStore, cache ports.Cache, states ports.ScoutStateRepository, sessions ports.SessionRepository, jwtSvc *auth.JWTService, log *zap.Logger) *Scout {
	worker := newWorkerClient(cfg.WorkerURL, func() (string, error) {
		return jwtSvc.GenerateServiceToken("scout")
	})
	tokenSource := newDirectTokenSource(store, cache, worker, log)

	gatewayCfg := vehicle.Config{CloudBaseURL: cfg.CloudBaseURL, Timeout: cfg.HTTPTimeout}
	gateway := vehicle.New(gatewayCfg, tokenSource, circuitbreaker.NewManager(log), log)

	return &Scout{
		cfg:      cfg,
		gateway:  gateway,
		states:   states,
		sessions: sessions,
		worker:   worker,
		log:      log,
	}
}

// Result is Scout's small observability response (§4.3 step 8).
type Result struct {
	Triggered bool
	Reason    string
	AtHome    bool
	Online    bool
	Battery   int
}

// Run executes one Scout invocation (§4.3 steps 1-8).
func (s *Scout) Run(ctx context.Context) (Result, error) {
	prior, err := s.states.Get(ctx, s.cfg.VIN)
	if err != nil {
		return Result{}, fmt.Errorf("scout: failed to load prior state: %w", err)
	}

	snap, err := s.gateway.GetSnapshot(ctx, s.cfg.VIN, true)
	if err != nil {
		return Result{}, fmt.Errorf("scout: failed to read snapshot: %w", err)
	}

	atHome := snap.AtHome(s.cfg.HomeLat, s.cfg.HomeLon, s.cfg.HomeRadius)
	ready := snap.IsChargingReady()

	reason, trigger := decide(prior, snap, atHome, ready)

	if trigger {
		if hasActiveSpecialCharging(ctx, s.sessions, s.cfg.VIN, s.log) {
			trigger = false
			reason = ""
		}
	}

	if trigger {
		if err := s.worker.RunCycle(ctx, reason, snap, atHome); err != nil {
			s.log.Error("scout: failed to notify worker", zap.Error(err), zap.String("reason", reason))
		}
	}

	if err := s.persist(ctx, prior, snap, atHome); err != nil {
		s.log.Error("scout: failed to persist scout state", zap.Error(err))
	}

	s.log.Info("scout cycle complete",
		zap.String("vin", s.cfg.VIN),
		zap.Bool("triggered", trigger),
		zap.String("reason", reason),
		zap.Bool("online", snap.Online),
		zap.Bool("at_home", atHome),
		zap.Int("battery", snap.BatteryPercent),
	)

	return Result{Triggered: trigger, Reason: reason, AtHome: atHome, Online: snap.Online, Battery: snap.BatteryPercent}, nil
}

// decide implements §4.3 step 5: evaluate the trigger conditions in order
// and return the first matching reason.
func decide(prior *domain.ScoutState, snap domain.Snapshot, atHome, ready bool) (string, bool) {
	if prior == nil {
		return ReasonInitState, true
	}
	if !prior.AtHome && atHome {
		return ReasonReturnedHome, true
	}
	wasReady := prior.Online && prior.AtHome && prior.IsChargingReady
	if snap.Online && atHome && ready && !wasReady {
		return ReasonConditionAReady, true
	}
	if prior.Online && prior.AtHome && !prior.IsChargingReady && !snap.Online && atHome {
		return ReasonConditionBOffline, true
	}
	return "", false
}

// hasActiveSpecialCharging implements the ACTIVE-session suppression rule:
// Scout must not perturb a running special-charging session.
func hasActiveSpecialCharging(ctx context.Context, sessions ports.SessionRepository, vin string, log *zap.Logger) bool {
	active, err := sessions.ActiveForVIN(ctx, vin)
	if err != nil {
		log.Warn("scout: failed to check for active special-charging session, proceeding with trigger", zap.Error(err))
		return false
	}
	return active != nil && active.State == domain.SessionActive
}

// persist implements §4.3 step 7.
func (s *Scout) persist(ctx context.Context, prior *domain.ScoutState, snap domain.Snapshot, atHome bool) error {
	now := time.Now()
	if snap.Online {
		return s.states.Put(ctx, domain.ScoutStateFromSnapshot(snap, atHome, now))
	}
	if prior != nil && prior.Online {
		return s.states.Put(ctx, domain.ScoutStateFromSnapshot(snap, atHome, now))
	}
	return nil
}
