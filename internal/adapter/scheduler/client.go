package scheduler

import (
	"bytes"
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/evteam/tesla-charge-orchestrator/internal/ports"
)

// Config holds the Dynamic Scheduler API address and the service-account
// credentials used to authenticate job creation/deletion (§6:
// SCHEDULER_API_URL, SCHEDULER_SERVICE_ACCOUNT_KEY).
type Config struct {
	APIURL                string
	ServiceAccountKeyJSON []byte
	Timeout               time.Duration
}

type serviceAccountKey struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

// Client creates and deletes one-shot cron jobs on the external Dynamic
// Scheduler, each carrying an OIDC identity so the scheduler's own call into
// Worker authenticates as a known service (§4.5.4). Grounded on the same
// JWT-signed-assertion pattern as internal/adapter/sheet, with the cached
// HTTP client shape from internal/adapter/pricing.
type Client struct {
	cfg        Config
	key        serviceAccountKey
	privateKey *rsa.PrivateKey
	httpClient *http.Client
	log        *zap.Logger

	mu           sync.Mutex
	cachedToken  string
	cachedExpiry time.Time
}

func NewClient(cfg Config, log *zap.Logger) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	var key serviceAccountKey
	if err := json.Unmarshal(cfg.ServiceAccountKeyJSON, &key); err != nil {
		return nil, fmt.Errorf("scheduler client: failed to parse service account key: %w", err)
	}

	block, _ := pem.Decode([]byte(key.PrivateKey))
	if block == nil {
		return nil, fmt.Errorf("scheduler client: service account private key is not valid PEM")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("scheduler client: failed to parse service account private key: %w", err)
	}
	rsaKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("scheduler client: service account private key is not RSA")
	}

	return &Client{
		cfg:        cfg,
		key:        key,
		privateKey: rsaKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
	}, nil
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cachedToken != "" && time.Now().Before(c.cachedExpiry) {
		return c.cachedToken, nil
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   c.key.ClientEmail,
		"scope": "https://www.googleapis.com/auth/cloud-platform",
		"aud":   c.key.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(c.privateKey)
	if err != nil {
		return "", fmt.Errorf("scheduler client: failed to sign assertion: %w", err)
	}

	form := url.Values{
		"grant_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.key.TokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("scheduler client: failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("scheduler client: token exchange failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("scheduler client: token exchange status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("scheduler client: failed to decode token response: %w", err)
	}

	c.cachedToken = tokenResp.AccessToken
	c.cachedExpiry = now.Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	return c.cachedToken, nil
}

// createJobRequest mirrors a Cloud-Scheduler-style one-shot HTTP job.
type createJobRequest struct {
	Name       string     `json:"name"`
	Schedule   string     `json:"schedule"`
	HTTPTarget httpTarget `json:"httpTarget"`
}

type httpTarget struct {
	URI        string    `json:"uri"`
	HTTPMethod string    `json:"httpMethod"`
	Body       []byte    `json:"body,omitempty"`
	OIDCToken  oidcToken `json:"oidcToken"`
}

type oidcToken struct {
	ServiceAccountEmail string `json:"serviceAccountEmail"`
}

// CreateJob creates a one-shot scheduler job carrying an OIDC identity so
// the scheduler's callback into Worker authenticates as a known service.
func (c *Client) CreateJob(ctx context.Context, job ports.SchedulerJob) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	var bodyBytes []byte
	if job.Body != nil {
		bodyBytes, err = json.Marshal(job.Body)
		if err != nil {
			return fmt.Errorf("scheduler client: failed to marshal job body: %w", err)
		}
	}

	reqBody := createJobRequest{
		Name:     job.Name,
		Schedule: job.Cron,
		HTTPTarget: httpTarget{
			URI:        job.TargetURL,
			HTTPMethod: http.MethodPost,
			Body:       bodyBytes,
			OIDCToken:  oidcToken{ServiceAccountEmail: job.Identity},
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("scheduler client: failed to marshal create-job request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL+"/jobs", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("scheduler client: failed to build create-job request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("scheduler client: create-job request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		c.log.Warn("scheduler client: create-job returned non-2xx",
			zap.Int("status", resp.StatusCode),
			zap.String("job", job.Name),
			zap.String("body", string(respBody)),
		)
		return fmt.Errorf("scheduler client: create-job status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// DeleteJob removes a scheduler job by name. A missing job is treated as
// success: the caller's self-delete call may race a prior cleanup.
func (c *Client) DeleteJob(ctx context.Context, name string) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.cfg.APIURL+"/jobs/"+name, nil)
	if err != nil {
		return fmt.Errorf("scheduler client: failed to build delete-job request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("scheduler client: delete-job request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("scheduler client: delete-job status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

var _ ports.SchedulerClient = (*Client)(nil)
