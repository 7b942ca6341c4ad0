package sheet

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestClient builds a Client with a pre-seeded access token cache so
// tests exercise the HTTP read/write paths without signing a real
// service-account assertion.
func newTestClient(baseURL string) *Client {
	return &Client{
		cfg:          Config{SheetURL: baseURL, Timeout: 5 * time.Second},
		httpClient:   http.DefaultClient,
		log:          zap.NewNop(),
		cachedToken:  "test-access-token",
		cachedExpiry: time.Now().Add(time.Hour),
	}
}

func TestClient_ActiveRowsFiltersByStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-access-token", r.Header.Get("Authorization"))
		resp := sheetValuesResponse{Values: [][]string{
			{"2026-08-01", "22:00", "90", "ACTIVE", "2026-07-30T10:00:00Z", "2026-07-30T10:00:00Z"},
			{"2026-08-02", "23:00", "80", "DONE", "2026-07-29T10:00:00Z", "2026-07-29T10:00:00Z"},
			{"2026-08-03", "21:00", "85", "ACTIVE"},
		}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	rows, err := client.ActiveRows(t.Context())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, 2, rows[0].Row)
	require.Equal(t, 90, rows[0].TargetPercent)
	require.Equal(t, "ACTIVE", rows[0].Status)
	require.Equal(t, 4, rows[1].Row)
	require.True(t, rows[1].CreatedAt.IsZero())
}

func TestClient_ActiveRowsSkipsUnparseableTarget(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := sheetValuesResponse{Values: [][]string{
			{"2026-08-01", "22:00", "not-a-number", "ACTIVE"},
		}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	rows, err := client.ActiveRows(t.Context())
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestClient_UpdateStatusSendsExpectedRange(t *testing.T) {
	var capturedPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "RAW", r.URL.Query().Get("valueInputOption"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.UpdateStatus(t.Context(), 5, "DONE")
	require.NoError(t, err)
	require.Contains(t, capturedPath, "D5")
}

func TestClient_UpdateStatusSurfacesNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.UpdateStatus(t.Context(), 5, "DONE")
	require.Error(t, err)
}
