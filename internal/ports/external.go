package ports

import (
	"context"
	"time"

	"github.com/evteam/tesla-charge-orchestrator/internal/domain"
)

// PricingRequest is the body sent to the external pricing API (§6).
type PricingRequest struct {
	BatteryLevel    float64
	BatteryCapacity float64
	Consumption     float64
	DailyMileage    float64
	ChargeLimits    ChargeLimits
}

// ChargeLimits mirrors the chargeLimits object nested in PricingRequest.
type ChargeLimits struct {
	OptimalUpper float64
	OptimalLower float64
	Emergency    float64
	ChargingRate float64
}

// PricingClient calls the external charging-price calculation API.
type PricingClient interface {
	GetSchedule(ctx context.Context, req PricingRequest) ([]domain.Window, error)
}

// SheetRow is one row of the special-charging request spreadsheet.
type SheetRow struct {
	Row            int
	Date           string
	Time           string
	TargetPercent  int
	Status         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SheetClient reads and writes the external spreadsheet of special-charging
// requests (§4.5.1, §6).
type SheetClient interface {
	ActiveRows(ctx context.Context) ([]SheetRow, error)
	UpdateStatus(ctx context.Context, row int, status string) error
}

// SchedulerJob describes a one-shot job to create on the external Dynamic
// Scheduler (§4.5.4).
type SchedulerJob struct {
	Name       string
	Cron       string
	TargetURL  string
	Body       interface{}
	Identity   string
}

// SchedulerClient creates and deletes jobs on the external Dynamic
// Scheduler.
type SchedulerClient interface {
	CreateJob(ctx context.Context, job SchedulerJob) error
	DeleteJob(ctx context.Context, name string) error
}

// SessionEvent is published, best-effort, on every session state
// transition.
type SessionEvent struct {
	SessionID string
	VIN       string
	State     domain.SessionState
	At        time.Time
}

// SessionEventPublisher publishes session lifecycle events for external
// observability consumers. Publish failures are logged, never fatal.
type SessionEventPublisher interface {
	Publish(ctx context.Context, event SessionEvent) error
	Close() error
}
