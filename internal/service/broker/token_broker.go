package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/evteam/tesla-charge-orchestrator/internal/domain"
	"github.com/evteam/tesla-charge-orchestrator/internal/ports"
)

// minRemaining is the threshold below which a cached access token is
// considered due for refresh (§4.1).
const minRemaining = 5 * time.Minute

const cacheKey = "vehicle:token_record"

// Config holds the OAuth app identity used to exchange the stored refresh
// token for a new access token.
type Config struct {
	ClientID     string
	ClientSecret string
	Domain       string
	Timeout      time.Duration
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// Broker is the Token Broker (§4.1): the single serialising point for
// refresh-token consumption, guarded by a process-local mutex so the
// refresh chain is never forked. Style follows the teacher's
// internal/service/auth/oauth2_service.go token-exchange shape, generalized
// from a one-shot login exchange to a cache-then-refresh cycle.
type Broker struct {
	cfg        Config
	store      ports.TokenStore
	cache      ports.Cache
	httpClient *http.Client
	log        *zap.Logger
	mu         sync.Mutex
}

func New(cfg Config, store ports.TokenStore, cache ports.Cache, log *zap.Logger) *Broker {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Broker{
		cfg:        cfg,
		store:      store,
		cache:      cache,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
	}
}

// GetAccessToken implements the Broker's read path (§4.1): return a token
// guaranteed valid for at least minRemaining, refreshing once if needed.
func (b *Broker) GetAccessToken(ctx context.Context) (string, error) {
	record, err := b.store.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("token broker: failed to load token record: %w", err)
	}
	if record.Valid(time.Now(), minRemaining) {
		return record.AccessToken, nil
	}

	if err := b.refresh(ctx, "access token near expiry"); err != nil {
		return "", err
	}

	record, err = b.store.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("token broker: failed to reload token record after refresh: %w", err)
	}
	return record.AccessToken, nil
}

// ForceRefresh implements the Worker's refresh_tokens/emergency_refresh_tokens
// endpoints: refresh unconditionally, ignoring cache age.
func (b *Broker) ForceRefresh(ctx context.Context, reason string) error {
	return b.refresh(ctx, reason)
}

// refresh acquires the exclusive lock, double-checks under lock (another
// caller may have refreshed while this one waited), and exchanges the
// refresh token on a miss.
func (b *Broker) refresh(ctx context.Context, reason string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	record, err := b.store.Get(ctx)
	if err != nil {
		return fmt.Errorf("token broker: failed to load token record: %w", err)
	}
	if record.Valid(time.Now(), minRemaining) {
		b.log.Debug("token broker: refresh skipped, another caller already refreshed", zap.String("reason", reason))
		return nil
	}

	b.log.Info("token broker: refreshing access token", zap.String("reason", reason))

	newRecord, err := b.exchangeRefreshToken(ctx, record.RefreshToken)
	if err != nil {
		if derr, ok := asGatewayError(err); ok && derr.Is(domain.ErrUnauthorized) {
			if clearErr := b.store.Put(ctx, domain.TokenRecord{}); clearErr != nil {
				b.log.Error("token broker: failed to clear token record after reauthorization failure", zap.Error(clearErr))
			}
			return domain.NewGatewayError(domain.ErrNeedsReauthorization, "refresh_tokens", err)
		}
		return fmt.Errorf("token broker: refresh failed: %w", err)
	}

	if err := b.store.Put(ctx, newRecord); err != nil {
		return fmt.Errorf("token broker: failed to persist refreshed token record: %w", err)
	}
	if b.cache != nil {
		if err := b.cache.Delete(ctx, cacheKey); err != nil {
			b.log.Warn("token broker: failed to invalidate cached token record", zap.Error(err))
		}
	}
	return nil
}

// exchangeRefreshToken calls the OAuth issuer's token endpoint, retrying
// once on transient failure (§4.1: "transient network failures are retried
// once inside a single call then surfaced").
func (b *Broker) exchangeRefreshToken(ctx context.Context, refreshToken string) (domain.TokenRecord, error) {
	if refreshToken == "" {
		return domain.TokenRecord{}, domain.NewGatewayError(domain.ErrNeedsReauthorization, "refresh_tokens", fmt.Errorf("no refresh token on record"))
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		record, err := b.doExchange(ctx, refreshToken)
		if err == nil {
			return record, nil
		}
		lastErr = err
		if derr, ok := asGatewayError(err); ok && derr.Is(domain.ErrUnauthorized) {
			return domain.TokenRecord{}, err
		}
	}
	return domain.TokenRecord{}, lastErr
}

func (b *Broker) doExchange(ctx context.Context, refreshToken string) (domain.TokenRecord, error) {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {b.cfg.ClientID},
		"client_secret": {b.cfg.ClientSecret},
		"refresh_token": {refreshToken},
	}

	tokenURL := fmt.Sprintf("https://%s/oauth2/v3/token", b.cfg.Domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return domain.TokenRecord{}, fmt.Errorf("failed to build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return domain.TokenRecord{}, domain.NewGatewayError(domain.ErrTransient, "refresh_tokens", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		body, _ := io.ReadAll(resp.Body)
		return domain.TokenRecord{}, domain.NewGatewayError(domain.ErrUnauthorized, "refresh_tokens", fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}
	if resp.StatusCode >= 500 {
		return domain.TokenRecord{}, domain.NewGatewayError(domain.ErrTransient, "refresh_tokens", fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return domain.TokenRecord{}, domain.NewGatewayError(domain.ErrBadRequest, "refresh_tokens", fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return domain.TokenRecord{}, fmt.Errorf("failed to decode token response: %w", err)
	}

	now := time.Now()
	record := domain.TokenRecord{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    now.Add(time.Duration(tr.ExpiresIn) * time.Second),
		ObtainedAt:   now,
	}
	if record.RefreshToken == "" {
		record.RefreshToken = refreshToken
	}
	return record, nil
}

func asGatewayError(err error) (*domain.GatewayError, bool) {
	gerr, ok := err.(*domain.GatewayError)
	return gerr, ok
}

var _ ports.TokenBroker = (*Broker)(nil)
