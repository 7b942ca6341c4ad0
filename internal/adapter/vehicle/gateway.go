package vehicle

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/evteam/tesla-charge-orchestrator/internal/domain"
	"github.com/evteam/tesla-charge-orchestrator/internal/infrastructure/circuitbreaker"
	"github.com/evteam/tesla-charge-orchestrator/internal/observability/telemetry"
	"github.com/evteam/tesla-charge-orchestrator/internal/ports"
)

// transientRetryDelay is the pause before the single Transient retry (§5/§7:
// "one retry" carries no backoff requirement, unlike RateLimited).
const transientRetryDelay = 0

// rateLimitBackoff is the pause before the single RateLimited retry (§7:
// "single exponential backoff").
const rateLimitBackoff = 2 * time.Second

// isBreakerFailure classifies which gateway error kinds should count against
// the circuit breaker's consecutive-failure trip threshold (§7): genuine
// infra distress (Transient, RateLimited, a broken refresh chain), not
// request-shaped outcomes like BadRequest/Forbidden/NotSupported that say
// nothing about the vehicle cloud's health.
func isBreakerFailure(err error) bool {
	return errors.Is(err, domain.ErrTransient) ||
		errors.Is(err, domain.ErrRateLimited) ||
		errors.Is(err, domain.ErrNeedsReauthorization)
}

// Config addresses the vehicle cloud API and, optionally, the local
// command-signing proxy (§4.2).
type Config struct {
	CloudBaseURL string
	ProxyHost    string
	ProxyPort    string
	WakeTimeout  time.Duration
	WakePoll     time.Duration
	Timeout      time.Duration
}

// Gateway is the typed adapter over the vehicle cloud API and the local
// signing proxy. Grounded on the teacher's manual http.NewRequestWithContext
// + json.Decode style (internal/service/auth/oauth2_service.go), wrapped
// with the teacher's own circuit breaker rather than a third-party one.
type Gateway struct {
	cfg        Config
	broker     ports.TokenBroker
	cloud      *http.Client
	proxy      *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	log        *zap.Logger
}

func New(cfg Config, broker ports.TokenBroker, breakers *circuitbreaker.Manager, log *zap.Logger) *Gateway {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.WakeTimeout == 0 {
		cfg.WakeTimeout = 30 * time.Second
	}
	if cfg.WakePoll == 0 {
		cfg.WakePoll = 3 * time.Second
	}

	proxyClient := &http.Client{Timeout: cfg.Timeout}
	if isLocalProxy(cfg.ProxyHost) {
		proxyClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // documented-narrow exception, localhost proxy only
		}
	}

	settings := circuitbreaker.DefaultSettings()
	settings.IsSuccessful = func(err error) bool {
		return !isBreakerFailure(err)
	}
	settings.OnStateChange = func(name string, from, to circuitbreaker.State) {
		telemetry.CircuitBreakerStateChanges.WithLabelValues(name, to.String()).Inc()
		log.Warn("vehicle gateway circuit breaker changed state",
			zap.String("breaker", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}

	return &Gateway{
		cfg:     cfg,
		broker:  broker,
		cloud:   &http.Client{Timeout: cfg.Timeout},
		proxy:   proxyClient,
		breaker: breakers.Get("vehicle-gateway", settings),
		log:     log,
	}
}

func isLocalProxy(host string) bool {
	return host == "localhost" || host == "127.0.0.1"
}

func (g *Gateway) proxyBaseURL() (string, error) {
	if g.cfg.ProxyHost == "" {
		return "", domain.NewGatewayError(domain.ErrNotSupported, "proxy", fmt.Errorf("no signing proxy configured"))
	}
	return fmt.Sprintf("https://%s:%s", g.cfg.ProxyHost, g.cfg.ProxyPort), nil
}

type vehicleListResponse struct {
	Response []struct {
		VIN string `json:"vin"`
		ID  int64  `json:"id"`
	} `json:"response"`
}

func (g *Gateway) ListVehicles(ctx context.Context) ([]ports.VehicleRef, error) {
	var out vehicleListResponse
	if err := g.call(ctx, g.cloud, http.MethodGet, g.cfg.CloudBaseURL+"/api/1/vehicles", nil, &out); err != nil {
		return nil, err
	}
	refs := make([]ports.VehicleRef, 0, len(out.Response))
	for _, v := range out.Response {
		refs = append(refs, ports.VehicleRef{VIN: v.VIN, ID: v.ID})
	}
	return refs, nil
}

type vehicleDataResponse struct {
	Response struct {
		State      string `json:"state"`
		ChargeState struct {
			BatteryLevel      int    `json:"battery_level"`
			ChargingState     string `json:"charging_state"`
			ChargePortLatch   string `json:"charge_port_latch"`
			ConnChargeCable   string `json:"conn_charge_cable"`
			ChargeLimitSOC    int    `json:"charge_limit_soc"`
		} `json:"charge_state"`
		DriveState struct {
			Latitude  *float64 `json:"latitude"`
			Longitude *float64 `json:"longitude"`
		} `json:"drive_state"`
	} `json:"response"`
}

func (g *Gateway) GetSnapshot(ctx context.Context, vin string, includeLocation bool) (domain.Snapshot, error) {
	endpoints := "charge_state"
	if includeLocation {
		endpoints += ";location_data"
	}
	url := fmt.Sprintf("%s/api/1/vehicles/%s/vehicle_data?endpoints=%s", g.cfg.CloudBaseURL, vin, endpoints)

	var out vehicleDataResponse
	if err := g.call(ctx, g.cloud, http.MethodGet, url, nil, &out); err != nil {
		return domain.Snapshot{}, err
	}

	snap := domain.Snapshot{
		VIN:             vin,
		Online:          out.Response.State == "online",
		BatteryPercent:  out.Response.ChargeState.BatteryLevel,
		ChargingState:   domain.ChargingState(out.Response.ChargeState.ChargingState),
		ChargePortLatch: domain.ChargePortLatch(out.Response.ChargeState.ChargePortLatch),
		ConnectedCable:  out.Response.ChargeState.ConnChargeCable,
		CurrentLimit:    out.Response.ChargeState.ChargeLimitSOC,
		ReadAt:          time.Now(),
	}
	if includeLocation {
		snap.Latitude = out.Response.DriveState.Latitude
		snap.Longitude = out.Response.DriveState.Longitude
	}
	return snap, nil
}

// WakeUp issues a wake command then polls get_snapshot until the vehicle
// reports online or WakeTimeout elapses (§4.2).
func (g *Gateway) WakeUp(ctx context.Context, vin string) error {
	url := fmt.Sprintf("%s/api/1/vehicles/%s/wake_up", g.cfg.CloudBaseURL, vin)
	if err := g.call(ctx, g.cloud, http.MethodPost, url, nil, nil); err != nil {
		return err
	}

	deadline := time.Now().Add(g.cfg.WakeTimeout)
	for {
		snap, err := g.GetSnapshot(ctx, vin, false)
		if err == nil && snap.Online {
			return nil
		}
		if time.Now().After(deadline) {
			return domain.NewGatewayError(domain.ErrWakeTimeout, "wake_up", fmt.Errorf("vehicle did not come online within %s", g.cfg.WakeTimeout))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(g.cfg.WakePoll):
		}
	}
}

type addScheduleRequest struct {
	Enabled      bool   `json:"enabled"`
	StartEnabled bool   `json:"start_enabled"`
	StartTime    int    `json:"start_time"`
	EndEnabled   bool   `json:"end_enabled"`
	EndTime      int    `json:"end_time"`
	DaysOfWeek   string `json:"days_of_week"`
	Latitude     float64 `json:"lat"`
	Longitude    float64 `json:"lon"`
	OneTime      bool   `json:"one_time"`
}

type addScheduleResponse struct {
	Response struct {
		Result bool   `json:"result"`
		Reason string `json:"reason"`
	} `json:"response"`
	ID int64 `json:"id"`
}

func (g *Gateway) AddChargeSchedule(ctx context.Context, vin string, sched domain.Schedule) (int, error) {
	base, err := g.proxyBaseURL()
	if err != nil {
		return 0, err
	}
	url := fmt.Sprintf("%s/api/1/vehicles/%s/command/add_charge_schedule", base, vin)

	req := addScheduleRequest{
		Enabled:      sched.Enabled,
		StartEnabled: sched.StartEnabled,
		StartTime:    sched.StartMinutes,
		EndEnabled:   sched.EndEnabled,
		EndTime:      sched.EndMinutes,
		DaysOfWeek:   string(sched.DaysOfWeek),
		Latitude:     sched.Latitude,
		Longitude:    sched.Longitude,
		OneTime:      sched.OneTime,
	}

	var out addScheduleResponse
	if err := g.call(ctx, g.proxy, http.MethodPost, url, req, &out); err != nil {
		return 0, err
	}
	if !out.Response.Result {
		return 0, domain.NewGatewayError(domain.ErrBadRequest, "add_charge_schedule", fmt.Errorf("rejected: %s", out.Response.Reason))
	}
	return int(out.ID), nil
}

func (g *Gateway) RemoveChargeSchedule(ctx context.Context, vin string, scheduleID int) error {
	base, err := g.proxyBaseURL()
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/api/1/vehicles/%s/command/remove_charge_schedule", base, vin)

	var out addScheduleResponse
	if err := g.call(ctx, g.proxy, http.MethodPost, url, map[string]int{"id": scheduleID}, &out); err != nil {
		return err
	}
	if !out.Response.Result {
		return domain.NewGatewayError(domain.ErrBadRequest, "remove_charge_schedule", fmt.Errorf("rejected: %s", out.Response.Reason))
	}
	return nil
}

func (g *Gateway) SetChargeLimit(ctx context.Context, vin string, percent int) error {
	base, err := g.proxyBaseURL()
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/api/1/vehicles/%s/command/set_charge_limit", base, vin)

	var out addScheduleResponse
	if err := g.call(ctx, g.proxy, http.MethodPost, url, map[string]int{"percent": percent}, &out); err != nil {
		return err
	}
	if !out.Response.Result {
		if strings.Contains(strings.ToLower(out.Response.Reason), "already") {
			return domain.NewGatewayError(domain.ErrAlreadySet, "set_charge_limit", fmt.Errorf("%s", out.Response.Reason))
		}
		return domain.NewGatewayError(domain.ErrBadRequest, "set_charge_limit", fmt.Errorf("rejected: %s", out.Response.Reason))
	}
	return nil
}

func (g *Gateway) ChargeStart(ctx context.Context, vin string) error {
	return g.simpleProxyCommand(ctx, vin, "charge_start")
}

func (g *Gateway) ChargeStop(ctx context.Context, vin string) error {
	return g.simpleProxyCommand(ctx, vin, "charge_stop")
}

func (g *Gateway) simpleProxyCommand(ctx context.Context, vin, command string) error {
	base, err := g.proxyBaseURL()
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/api/1/vehicles/%s/command/%s", base, vin, command)

	var out addScheduleResponse
	if err := g.call(ctx, g.proxy, http.MethodPost, url, nil, &out); err != nil {
		return err
	}
	if !out.Response.Result {
		return domain.NewGatewayError(domain.ErrBadRequest, command, fmt.Errorf("rejected: %s", out.Response.Reason))
	}
	return nil
}

type scheduleListResponse struct {
	Response struct {
		ChargeScheduleData []struct {
			ID           int     `json:"id"`
			Enabled      bool    `json:"enabled"`
			StartEnabled bool    `json:"start_enabled"`
			StartTime    int     `json:"start_time"`
			EndEnabled   bool    `json:"end_enabled"`
			EndTime      int     `json:"end_time"`
			DaysOfWeek   int     `json:"days_of_week"`
			Latitude     float64 `json:"lat"`
			Longitude    float64 `json:"lon"`
			OneTime      bool    `json:"one_time"`
		} `json:"charge_schedule_data"`
	} `json:"response"`
}

func (g *Gateway) ListChargeSchedules(ctx context.Context, vin string) ([]domain.Schedule, error) {
	url := fmt.Sprintf("%s/api/1/vehicles/%s/vehicle_data?endpoints=charge_schedule_data", g.cfg.CloudBaseURL, vin)

	var out scheduleListResponse
	if err := g.call(ctx, g.cloud, http.MethodGet, url, nil, &out); err != nil {
		return nil, err
	}

	schedules := make([]domain.Schedule, 0, len(out.Response.ChargeScheduleData))
	for _, s := range out.Response.ChargeScheduleData {
		schedules = append(schedules, domain.Schedule{
			ScheduleID:   s.ID,
			Enabled:      s.Enabled,
			StartEnabled: s.StartEnabled,
			StartMinutes: s.StartTime,
			EndEnabled:   s.EndEnabled,
			EndMinutes:   s.EndTime,
			DaysOfWeek:   domain.DaysOfWeek(fmt.Sprintf("%d", s.DaysOfWeek)),
			Latitude:     s.Latitude,
			Longitude:    s.Longitude,
			OneTime:      s.OneTime,
		})
	}
	return schedules, nil
}

// call performs an authenticated HTTP round-trip through the circuit
// breaker, classifying the result into the domain error taxonomy (§4.2/§7):
// Unauthorized is handled inside doCall itself (forced refresh, one retry);
// Transient and RateLimited get one further retry here, via the same
// RetryWithBackoff helper the teacher wrote for this purpose, immediate for
// Transient and after a fixed backoff for RateLimited.
func (g *Gateway) call(ctx context.Context, client *http.Client, method, url string, body interface{}, out interface{}) error {
	_, err := g.breaker.ExecuteCtx(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, g.callWithRecovery(ctx, client, method, url, body, out)
	})
	return err
}

func (g *Gateway) callWithRecovery(ctx context.Context, client *http.Client, method, url string, body interface{}, out interface{}) error {
	err := g.doCall(ctx, client, method, url, body, out, true)
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, domain.ErrTransient):
		return circuitbreaker.RetryWithBackoff(ctx, 0, transientRetryDelay, func() error {
			return g.doCall(ctx, client, method, url, body, out, false)
		})
	case errors.Is(err, domain.ErrRateLimited):
		return circuitbreaker.RetryWithBackoff(ctx, 0, rateLimitBackoff, func() error {
			return g.doCall(ctx, client, method, url, body, out, false)
		})
	default:
		return err
	}
}

func (g *Gateway) doCall(ctx context.Context, client *http.Client, method, url string, body interface{}, out interface{}, allowRetry bool) error {
	token, err := g.broker.GetAccessToken(ctx)
	if err != nil {
		return fmt.Errorf("vehicle gateway: failed to obtain access token: %w", err)
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("vehicle gateway: failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("vehicle gateway: failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return domain.NewGatewayError(domain.ErrTransient, method+" "+url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		if !allowRetry {
			return domain.NewGatewayError(domain.ErrNeedsReauthorization, method+" "+url, fmt.Errorf("status 401 after forced token refresh"))
		}
		if refreshErr := g.broker.ForceRefresh(ctx, "vehicle gateway received 401"); refreshErr != nil {
			return domain.NewGatewayError(domain.ErrNeedsReauthorization, method+" "+url, refreshErr)
		}
		return g.doCall(ctx, client, method, url, body, out, false)
	case resp.StatusCode == http.StatusForbidden:
		return domain.NewGatewayError(domain.ErrForbidden, method+" "+url, fmt.Errorf("status 403"))
	case resp.StatusCode == http.StatusPreconditionFailed:
		return domain.NewGatewayError(domain.ErrNotSupported, method+" "+url, fmt.Errorf("status 412"))
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.NewGatewayError(domain.ErrRateLimited, method+" "+url, fmt.Errorf("status 429"))
	case resp.StatusCode >= 500:
		return domain.NewGatewayError(domain.ErrTransient, method+" "+url, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		respBody, _ := io.ReadAll(resp.Body)
		return domain.NewGatewayError(domain.ErrBadRequest, method+" "+url, fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("vehicle gateway: failed to decode response: %w", err)
	}
	return nil
}

var _ ports.VehicleGateway = (*Gateway)(nil)
