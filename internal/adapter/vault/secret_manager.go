package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/vault/api"

	"github.com/evteam/tesla-charge-orchestrator/internal/domain"
	"github.com/evteam/tesla-charge-orchestrator/internal/ports"
)

// tokenRecordPath is the single global document holding the Token Record
// (§3: "single global document"). KV-v2 namespaces reads/writes under a
// "data" wrapper, handled by GetJSON/PutJSON below.
const tokenRecordPath = "secret/data/token_record"

// SecretManager wraps the Vault KV-v2 engine, generalized from the
// teacher's narrow per-secret getters into a JSON read/write pair used
// solely for the Token Record.
type SecretManager struct {
	client *api.Client
}

func NewSecretManager(address, token string) (*SecretManager, error) {
	config := api.DefaultConfig()
	config.Address = address

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to build vault client: %w", err)
	}
	client.SetToken(token)

	return &SecretManager{client: client}, nil
}

// GetJSON reads the KV-v2 secret at path and unmarshals its "data" wrapper
// into out.
func (sm *SecretManager) GetJSON(path string, out interface{}) error {
	secret, err := sm.client.Logical().Read(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return fmt.Errorf("no secret found at %s", path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return fmt.Errorf("malformed kv-v2 payload at %s", path)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to re-marshal secret data: %w", err)
	}
	return json.Unmarshal(raw, out)
}

// PutJSON writes value as the KV-v2 "data" payload at path.
func (sm *SecretManager) PutJSON(path string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal secret value: %w", err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("failed to decode secret value: %w", err)
	}

	_, err = sm.client.Logical().Write(path, map[string]interface{}{"data": fields})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// tokenRecordDTO is the wire shape persisted in Vault: time.Time marshals
// to RFC3339, stable across KV-v2 round-trips.
type tokenRecordDTO struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	ObtainedAt   time.Time `json:"obtained_at"`
}

// Get reads the Token Record. A missing secret is reported as a zero-value
// record with AccessToken empty, so callers treat it as "needs refresh"
// rather than erroring on first boot.
func (sm *SecretManager) Get(ctx context.Context) (*domain.TokenRecord, error) {
	var dto tokenRecordDTO
	if err := sm.GetJSON(tokenRecordPath, &dto); err != nil {
		return &domain.TokenRecord{}, nil
	}
	return &domain.TokenRecord{
		AccessToken:  dto.AccessToken,
		RefreshToken: dto.RefreshToken,
		ExpiresAt:    dto.ExpiresAt,
		ObtainedAt:   dto.ObtainedAt,
	}, nil
}

// Put atomically replaces the Token Record (§5: "Writes are atomic full-
// document replaces" — a single KV-v2 write is atomic at the secret level).
func (sm *SecretManager) Put(ctx context.Context, record domain.TokenRecord) error {
	dto := tokenRecordDTO{
		AccessToken:  record.AccessToken,
		RefreshToken: record.RefreshToken,
		ExpiresAt:    record.ExpiresAt,
		ObtainedAt:   record.ObtainedAt,
	}
	return sm.PutJSON(tokenRecordPath, dto)
}

var _ ports.TokenStore = (*SecretManager)(nil)
