package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/evteam/tesla-charge-orchestrator/internal/domain"
	"github.com/evteam/tesla-charge-orchestrator/internal/infrastructure/circuitbreaker"
	"github.com/evteam/tesla-charge-orchestrator/internal/ports"
)

// Config holds the pricing API client configuration (§6: PRICING_API_URL,
// PRICING_API_KEY).
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{Timeout: 30 * time.Second}
}

// apiRequest mirrors the POST body §6 specifies.
type apiRequest struct {
	BatteryLevel    float64          `json:"batteryLevel"`
	BatteryCapacity float64          `json:"batteryCapacity"`
	Consumption     float64          `json:"consumption"`
	DailyMileage    float64          `json:"dailyMileage"`
	ChargeLimits    apiChargeLimits  `json:"chargeLimits"`
}

type apiChargeLimits struct {
	OptimalUpper float64 `json:"optimalUpper"`
	OptimalLower float64 `json:"optimalLower"`
	Emergency    float64 `json:"emergency"`
	ChargingRate float64 `json:"chargingRate"`
}

type apiResponse struct {
	Success bool `json:"success"`
	Data    struct {
		ChargingSchedule []apiWindow            `json:"chargingSchedule"`
		Summary          map[string]interface{} `json:"summary"`
	} `json:"data"`
}

type apiWindow struct {
	StartTime    string  `json:"start_time"`
	EndTime      string  `json:"end_time"`
	ChargeAmount float64 `json:"charge_amount"`
}

// Client calls the external charging-price calculation API, grounded on
// the teacher's cached HTTP client over a JSON pricing API (timeout,
// X-API-Key header, graceful fallback logging) with the fallback removed:
// a pricing outage must surface as an error so the caller can apply §4.4.1
// step 3's "pricing unavailable, keep existing" rule rather than silently
// substituting simulated data.
type Client struct {
	httpClient *http.Client
	breaker    *circuitbreaker.ServiceClient
	cfg        Config
	log        *zap.Logger
}

func NewClient(cfg Config, breakers *circuitbreaker.Manager, log *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    circuitbreaker.NewServiceClient(breakers, log),
		cfg:        cfg,
		log:        log,
	}
}

// GetSchedule posts the current battery/consumption/limits and returns the
// desired charging windows in priority order (leftmost highest priority, as
// the API returns them).
func (c *Client) GetSchedule(ctx context.Context, req ports.PricingRequest) ([]domain.Window, error) {
	body := apiRequest{
		BatteryLevel:    req.BatteryLevel,
		BatteryCapacity: req.BatteryCapacity,
		Consumption:     req.Consumption,
		DailyMileage:    req.DailyMileage,
		ChargeLimits: apiChargeLimits{
			OptimalUpper: req.ChargeLimits.OptimalUpper,
			OptimalLower: req.ChargeLimits.OptimalLower,
			Emergency:    req.ChargeLimits.Emergency,
			ChargingRate: req.ChargeLimits.ChargingRate,
		},
	}

	return circuitbreaker.CallWithResult(c.breaker, ctx, "pricing-api", func(ctx context.Context) ([]domain.Window, error) {
		return c.doGetSchedule(ctx, body)
	})
}

func (c *Client) doGetSchedule(ctx context.Context, body apiRequest) ([]domain.Window, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pricing request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build pricing request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("pricing API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		c.log.Warn("pricing API returned non-200",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)),
		)
		return nil, fmt.Errorf("pricing API error: status %d", resp.StatusCode)
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode pricing response: %w", err)
	}
	if !parsed.Success {
		return nil, fmt.Errorf("pricing API reported failure")
	}

	windows := make([]domain.Window, 0, len(parsed.Data.ChargingSchedule))
	for _, w := range parsed.Data.ChargingSchedule {
		start, err := time.Parse(time.RFC3339, w.StartTime)
		if err != nil {
			c.log.Warn("skipping pricing window with unparseable start_time", zap.String("start_time", w.StartTime))
			continue
		}
		end, err := time.Parse(time.RFC3339, w.EndTime)
		if err != nil {
			c.log.Warn("skipping pricing window with unparseable end_time", zap.String("end_time", w.EndTime))
			continue
		}
		windows = append(windows, domain.Window{Start: start, End: end, ChargeKWh: w.ChargeAmount})
	}
	return windows, nil
}

var _ ports.PricingClient = (*Client)(nil)
