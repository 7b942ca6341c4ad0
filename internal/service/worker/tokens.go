package worker

import (
	"context"
	"fmt"
	"time"
)

// GetToken backs GET /get-token: Scout's read path for the vehicle access
// token (§4.4).
func (w *Worker) GetToken(ctx context.Context) (accessToken string, remainingMinutes float64, err error) {
	token, err := w.broker.GetAccessToken(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("get-token: %w", err)
	}
	record, err := w.tokenStore.Get(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("get-token: failed to read token record: %w", err)
	}
	return token, record.RemainingAt(time.Now()).Minutes(), nil
}

// RefreshTokens backs POST /refresh-tokens: a Scout-triggered refresh
// subject to Scout's own 60-second self-imposed rate limit.
func (w *Worker) RefreshTokens(ctx context.Context) error {
	return w.broker.ForceRefresh(ctx, "scout-requested")
}

// EmergencyRefreshTokens backs POST /emergency-refresh-tokens: identical to
// RefreshTokens, kept as a distinct endpoint purely for log-tagging a
// sub-60-second-expiry escalation.
func (w *Worker) EmergencyRefreshTokens(ctx context.Context) error {
	return w.broker.ForceRefresh(ctx, "scout-emergency")
}
