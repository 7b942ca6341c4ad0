package scheduler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/evteam/tesla-charge-orchestrator/internal/ports"
)

func newTestClient(baseURL string) *Client {
	return &Client{
		cfg:          Config{APIURL: baseURL, Timeout: 5 * time.Second},
		httpClient:   http.DefaultClient,
		log:          zap.NewNop(),
		cachedToken:  "test-access-token",
		cachedExpiry: time.Now().Add(time.Hour),
	}
}

func TestClient_CreateJobSendsOIDCIdentity(t *testing.T) {
	var captured createJobRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-access-token", r.Header.Get("Authorization"))
		require.Equal(t, "/jobs", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	job := ports.SchedulerJob{
		Name:      "send-special-schedule-session123",
		Cron:      "0 22 1 8 *",
		TargetURL: "https://worker.internal/send-special-schedule",
		Body:      map[string]string{"session_id": "session123"},
		Identity:  "scheduler@project.iam.gserviceaccount.com",
	}
	err := client.CreateJob(t.Context(), job)
	require.NoError(t, err)
	require.Equal(t, job.Name, captured.Name)
	require.Equal(t, job.Cron, captured.Schedule)
	require.Equal(t, job.TargetURL, captured.HTTPTarget.URI)
	require.Equal(t, job.Identity, captured.HTTPTarget.OIDCToken.ServiceAccountEmail)
}

func TestClient_CreateJobSurfacesError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("invalid cron"))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.CreateJob(t.Context(), ports.SchedulerJob{Name: "bad-job"})
	require.Error(t, err)
}

func TestClient_DeleteJobTreatsNotFoundAsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.DeleteJob(t.Context(), "gone-job")
	require.NoError(t, err)
}
