package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/evteam/tesla-charge-orchestrator/internal/adapter/http/fiber/middleware"
	"github.com/evteam/tesla-charge-orchestrator/internal/domain"
	"github.com/evteam/tesla-charge-orchestrator/internal/service/auth"
	"github.com/evteam/tesla-charge-orchestrator/internal/service/worker"
)

type fakeBroker struct{ token string }

func (f *fakeBroker) GetAccessToken(ctx context.Context) (string, error) { return f.token, nil }
func (f *fakeBroker) ForceRefresh(ctx context.Context, reason string) error { return nil }

type fakeTokenStore struct{}

func (f *fakeTokenStore) Get(ctx context.Context) (*domain.TokenRecord, error) {
	return &domain.TokenRecord{
		AccessToken: "tok",
		ExpiresAt:   time.Now().Add(20 * time.Minute),
	}, nil
}

func (f *fakeTokenStore) Put(ctx context.Context, record domain.TokenRecord) error { return nil }

func newTestApp(t *testing.T) (*fiber.App, *auth.JWTService) {
	t.Helper()
	jwtSvc := auth.NewJWTService("test-secret", time.Hour, zap.NewNop())
	w := worker.New(worker.Config{}, worker.Deps{
		Broker:     &fakeBroker{token: "access-token-123"},
		TokenStore: &fakeTokenStore{},
	}, zap.NewNop())

	h := New(w, zap.NewNop())
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(zap.NewNop())})
	RegisterRoutes(app, h, jwtSvc)
	return app, jwtSvc
}

func TestHealth_Unauthenticated(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetToken_RejectsMissingAuth(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/get-token", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGetToken_SucceedsWithValidServiceToken(t *testing.T) {
	app, jwtSvc := newTestApp(t)

	token, err := jwtSvc.GenerateServiceToken("scout")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/get-token", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "access-token-123", body["access_token"])
}
