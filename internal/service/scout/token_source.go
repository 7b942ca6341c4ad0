package scout

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/evteam/tesla-charge-orchestrator/internal/domain"
	"github.com/evteam/tesla-charge-orchestrator/internal/ports"
)

const (
	minRemaining         = 5 * time.Minute
	emergencyRemaining   = 60 * time.Second
	selfImposedInterval  = 60 * time.Second
	refreshAttemptKey    = "scout:refresh_attempted"
	postRefreshReadDelay = 2 * time.Second
)

// directTokenSource implements ports.TokenBroker by reading the Token
// Record directly from the secret store and, on a miss, asking Worker to
// refresh rather than refreshing itself (§4.1: "Scout's read path bypasses
// the Broker for cost"). Handing this to vehicle.New lets Scout reuse the
// Vehicle Gateway unmodified.
type directTokenSource struct {
	store  ports.TokenStore
	cache  ports.Cache
	worker *workerClient
	log    *zap.Logger
	sleep  func(time.Duration)
}

func newDirectTokenSource(store ports.TokenStore, cache ports.Cache, worker *workerClient, log *zap.Logger) *directTokenSource {
	return &directTokenSource{store: store, cache: cache, worker: worker, log: log, sleep: time.Sleep}
}

func (d *directTokenSource) GetAccessToken(ctx context.Context) (string, error) {
	record, err := d.store.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("scout: failed to read token record: %w", err)
	}
	now := time.Now()
	if record.Valid(now, minRemaining) {
		return record.AccessToken, nil
	}

	emergency := record.AccessToken == "" || record.RemainingAt(now) < emergencyRemaining
	if !emergency {
		attempted, _ := d.cache.Get(ctx, refreshAttemptKey)
		if attempted != "" {
			return "", domain.NewGatewayError(domain.ErrTransient, "get_access_token", fmt.Errorf("refresh already attempted within the last minute"))
		}
	}

	if emergency {
		err = d.worker.EmergencyRefreshTokens(ctx)
	} else {
		err = d.worker.RefreshTokens(ctx)
	}
	if err != nil {
		return "", fmt.Errorf("scout: worker refresh request failed: %w", err)
	}
	if !emergency {
		if setErr := d.cache.Set(ctx, refreshAttemptKey, "1", selfImposedInterval); setErr != nil {
			d.log.Warn("scout: failed to record self-imposed refresh interval", zap.Error(setErr))
		}
	}

	d.sleep(postRefreshReadDelay)

	record, err = d.store.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("scout: failed to re-read token record after refresh: %w", err)
	}
	if record.AccessToken == "" {
		return "", domain.NewGatewayError(domain.ErrNeedsReauthorization, "get_access_token", fmt.Errorf("token record still empty after refresh"))
	}
	return record.AccessToken, nil
}

// ForceRefresh is never called on Scout's path (Scout always goes through
// Worker's refresh endpoints) but is required to satisfy ports.TokenBroker.
func (d *directTokenSource) ForceRefresh(ctx context.Context, reason string) error {
	return d.worker.RefreshTokens(ctx)
}

var _ ports.TokenBroker = (*directTokenSource)(nil)
