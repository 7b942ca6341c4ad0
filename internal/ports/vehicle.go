package ports

import (
	"context"

	"github.com/evteam/tesla-charge-orchestrator/internal/domain"
)

// VehicleRef is a single entry from list_vehicles.
type VehicleRef struct {
	VIN string
	ID  int64
}

// VehicleGateway is the typed adapter over the vehicle cloud API and the
// local command-signing proxy (§4.2). Every operation requires a token from
// the Token Broker, obtained internally by the implementation.
type VehicleGateway interface {
	ListVehicles(ctx context.Context) ([]VehicleRef, error)
	GetSnapshot(ctx context.Context, vin string, includeLocation bool) (domain.Snapshot, error)
	WakeUp(ctx context.Context, vin string) error
	AddChargeSchedule(ctx context.Context, vin string, sched domain.Schedule) (int, error)
	RemoveChargeSchedule(ctx context.Context, vin string, scheduleID int) error
	SetChargeLimit(ctx context.Context, vin string, percent int) error
	ChargeStart(ctx context.Context, vin string) error
	ChargeStop(ctx context.Context, vin string) error
	ListChargeSchedules(ctx context.Context, vin string) ([]domain.Schedule, error)
}

// TokenBroker centrally acquires, caches, refreshes, and dispenses OAuth
// access tokens for the vehicle API (§4.1). Implemented inside Worker;
// Scout's read path bypasses it for cost (see TokenStore).
type TokenBroker interface {
	GetAccessToken(ctx context.Context) (string, error)
	ForceRefresh(ctx context.Context, reason string) error
}
