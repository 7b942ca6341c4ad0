package sheet

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
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/evteam/tesla-charge-orchestrator/internal/ports"
)

// Config holds the spreadsheet address and the service-account credentials
// used to authenticate server-to-server (§6: SHEET_URL,
// SHEET_SERVICE_ACCOUNT_KEY).
type Config struct {
	SheetURL              string
	ServiceAccountKeyJSON []byte
	Timeout               time.Duration
}

// serviceAccountKey mirrors a Google-style service-account JSON key file.
type serviceAccountKey struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

// Client reads and writes the special-charging request spreadsheet,
// authenticating with a self-signed JWT bearer assertion exchanged for a
// short-lived OAuth access token, the standard way to authenticate a
// server process against a spreadsheet API with no human present.
// Grounded on internal/service/auth/jwt_service.go's token-construction
// idiom, repointed at RS256 service-account signing instead of the
// internal HS256 service-identity tokens.
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
		return nil, fmt.Errorf("sheet client: failed to parse service account key: %w", err)
	}

	block, _ := pem.Decode([]byte(key.PrivateKey))
	if block == nil {
		return nil, fmt.Errorf("sheet client: service account private key is not valid PEM")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("sheet client: failed to parse service account private key: %w", err)
	}
	rsaKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("sheet client: service account private key is not RSA")
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
		"scope": "https://www.googleapis.com/auth/spreadsheets",
		"aud":   c.key.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(c.privateKey)
	if err != nil {
		return "", fmt.Errorf("sheet client: failed to sign assertion: %w", err)
	}

	form := url.Values{
		"grant_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.key.TokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("sheet client: failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sheet client: token exchange failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("sheet client: token exchange status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("sheet client: failed to decode token response: %w", err)
	}

	c.cachedToken = tokenResp.AccessToken
	c.cachedExpiry = now.Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	return c.cachedToken, nil
}

// sheetValuesResponse mirrors the spreadsheet API's values.get response.
type sheetValuesResponse struct {
	Values [][]string `json:"values"`
}

// ActiveRows reads the spreadsheet and returns rows with Status=ACTIVE
// (§6: columns Date | Time | Target% | Status | CreatedAt | UpdatedAt).
func (c *Client) ActiveRows(ctx context.Context) ([]ports.SheetRow, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.SheetURL+"/values/A2:F", nil)
	if err != nil {
		return nil, fmt.Errorf("sheet client: failed to build read request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sheet client: read request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("sheet client: read status %d: %s", resp.StatusCode, string(body))
	}

	var parsed sheetValuesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("sheet client: failed to decode values: %w", err)
	}

	rows := make([]ports.SheetRow, 0, len(parsed.Values))
	for i, cols := range parsed.Values {
		rowNumber := i + 2 // header occupies row 1
		if len(cols) < 4 {
			continue
		}
		status := cols[3]
		if status != "ACTIVE" {
			continue
		}
		target, err := strconv.Atoi(strings.TrimSpace(cols[2]))
		if err != nil {
			c.log.Warn("sheet client: skipping row with unparseable target percent", zap.Int("row", rowNumber))
			continue
		}
		row := ports.SheetRow{Row: rowNumber, Date: cols[0], Time: cols[1], TargetPercent: target, Status: status}
		if len(cols) > 4 {
			row.CreatedAt, _ = time.Parse(time.RFC3339, cols[4])
		}
		if len(cols) > 5 {
			row.UpdatedAt, _ = time.Parse(time.RFC3339, cols[5])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// UpdateStatus writes the Status column (D) for a single row.
func (c *Client) UpdateStatus(ctx context.Context, row int, status string) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	rng := fmt.Sprintf("D%d", row)
	body := map[string]interface{}{
		"range":          rng,
		"majorDimension": "ROWS",
		"values":         [][]string{{status}},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("sheet client: failed to marshal update body: %w", err)
	}

	updateURL := fmt.Sprintf("%s/values/%s?valueInputOption=RAW", c.cfg.SheetURL, rng)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, updateURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("sheet client: failed to build update request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sheet client: update request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("sheet client: update status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

var _ ports.SheetClient = (*Client)(nil)
