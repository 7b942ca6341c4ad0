package scout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/evteam/tesla-charge-orchestrator/internal/domain"
)

// workerTimeout matches §4.3 step 6: "Timeout 60 s; single attempt."
const workerTimeout = 60 * time.Second

// serviceTokenFunc mints the service-identity JWT Scout authenticates to
// Worker with, distinct from the vehicle OAuth token.
type serviceTokenFunc func() (string, error)

// workerClient is Scout's thin, single-attempt HTTP client to Worker's
// internal surface (§4.3/§4.4).
type workerClient struct {
	baseURL    string
	httpClient *http.Client
	token      serviceTokenFunc
}

func newWorkerClient(baseURL string, token serviceTokenFunc) *workerClient {
	return &workerClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: workerTimeout},
		token:      token,
	}
}

type snapshotSummary struct {
	VIN            string `json:"vin"`
	Online         bool   `json:"online"`
	BatteryPercent int    `json:"battery_percent"`
	ChargingState  string `json:"charging_state"`
	AtHome         bool   `json:"at_home"`
}

type runCycleRequest struct {
	Reason          string          `json:"reason"`
	SnapshotSummary snapshotSummary `json:"snapshot_summary"`
}

// RunCycle implements §4.3 step 6: a single authenticated POST, no retries.
func (w *workerClient) RunCycle(ctx context.Context, reason string, snap domain.Snapshot, atHome bool) error {
	body := runCycleRequest{
		Reason: reason,
		SnapshotSummary: snapshotSummary{
			VIN:            snap.VIN,
			Online:         snap.Online,
			BatteryPercent: snap.BatteryPercent,
			ChargingState:  string(snap.ChargingState),
			AtHome:         atHome,
		},
	}
	return w.post(ctx, "/run-cycle", body)
}

func (w *workerClient) RefreshTokens(ctx context.Context) error {
	return w.post(ctx, "/refresh-tokens", nil)
}

func (w *workerClient) EmergencyRefreshTokens(ctx context.Context) error {
	return w.post(ctx, "/emergency-refresh-tokens", nil)
}

func (w *workerClient) post(ctx context.Context, path string, body interface{}) error {
	token, err := w.token()
	if err != nil {
		return fmt.Errorf("scout: failed to mint service token: %w", err)
	}

	var reader *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("scout: failed to encode worker request: %w", err)
		}
		reader = bytes.NewReader(buf)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("scout: failed to build worker request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("scout: worker request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("scout: worker %s returned status %d", path, resp.StatusCode)
	}
	return nil
}
