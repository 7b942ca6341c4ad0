package ports

import (
	"context"

	"github.com/evteam/tesla-charge-orchestrator/internal/domain"
)

// ScoutStateRepository persists the Scout State document keyed by VIN,
// exclusively owned by Scout.
type ScoutStateRepository interface {
	Get(ctx context.Context, vin string) (*domain.ScoutState, error)
	Put(ctx context.Context, state domain.ScoutState) error
}

// CaseRepository persists the Worker Active Case document keyed by VIN,
// exclusively owned by Worker.
type CaseRepository interface {
	Get(ctx context.Context, vin string) (*domain.ActiveCase, error)
	Put(ctx context.Context, c domain.ActiveCase) error
	Delete(ctx context.Context, vin string) error
}

// SessionRepository persists Special-Charging Session documents keyed by
// session_id.
type SessionRepository interface {
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	// Put upserts by session_id: used both to create a new SCHEDULED
	// session and to persist subsequent state transitions.
	Put(ctx context.Context, s domain.Session) error
	ActiveForVIN(ctx context.Context, vin string) (*domain.Session, error)
	ExistsForRow(ctx context.Context, row int, targetDate string) (bool, error)
	Stale(ctx context.Context, olderThan int64) ([]domain.Session, error)
}

// FingerprintRepository persists the last-applied Schedule Fingerprint per
// VIN, used to skip no-op reconciliations.
type FingerprintRepository interface {
	Get(ctx context.Context, vin string) (domain.Fingerprint, bool, error)
	Put(ctx context.Context, vin string, fp domain.Fingerprint) error
}

// TokenStore is the secret-store-backed persistence for the single global
// Token Record. Vault is the only implementation; Scout reads it directly,
// the Token Broker is the sole writer.
type TokenStore interface {
	Get(ctx context.Context) (*domain.TokenRecord, error)
	Put(ctx context.Context, record domain.TokenRecord) error
}
