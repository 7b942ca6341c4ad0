package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/evteam/tesla-charge-orchestrator/internal/domain"
)

func TestGetToken_ReturnsAccessTokenAndRemainingMinutes(t *testing.T) {
	h := newHarness()
	h.tokenStore.record = domain.TokenRecord{
		AccessToken: "vehicle-access-token",
		ExpiresAt:   time.Now().Add(30 * time.Minute),
	}

	token, remaining, err := h.w.GetToken(context.Background())

	require.NoError(t, err)
	require.Equal(t, "vehicle-access-token", token)
	require.InDelta(t, 30, remaining, 1)
}

func TestGetToken_SurfacesBrokerError(t *testing.T) {
	h := newHarness()
	h.broker.getErr = errFake

	_, _, err := h.w.GetToken(context.Background())

	require.Error(t, err)
}

func TestRefreshTokens_TagsScoutRequestedReason(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.w.RefreshTokens(context.Background()))

	require.Equal(t, []string{"scout-requested"}, h.broker.refreshCalls)
}

func TestEmergencyRefreshTokens_TagsEmergencyReason(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.w.EmergencyRefreshTokens(context.Background()))

	require.Equal(t, []string{"scout-emergency"}, h.broker.refreshCalls)
}
