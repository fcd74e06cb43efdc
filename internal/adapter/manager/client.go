package manager

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dlpstream/collector/internal/adapter/metrics"
	"github.com/dlpstream/collector/internal/domain"
)

const (
	tokenPath     = "/api/v1/auth/token"
	incidentsPath = "/api/v1/incidents"

	// A cached token is replaced this long before its actual expiry, so a
	// request never goes out with a token about to lapse mid-flight.
	tokenSafetyMargin = 60 * time.Second

	maxResponseBytes = 16 << 20
)

// ErrMissingToken is returned when the token endpoint answers successfully
// but the payload carries no usable token.
var ErrMissingToken = errors.New("token endpoint response missing access token")

// Client handles the credential lifecycle against the upstream DLP manager:
// it lazily exchanges username/password for a bearer token, caches it until
// expiry minus a safety margin, and fetches paginated incidents. It reads a
// fresh config snapshot from the store before every call, so configuration
// changes take effect on the next call without a restart.
type Client struct {
	provider   domain.ConfigProvider
	limiter    *rate.Limiter
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.CollectorMetrics

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewClient creates a manager client. The limiter bounds the request rate
// against the external API; per-request timeouts come from the current
// connection config.
func NewClient(provider domain.ConfigProvider, requestsPerSecond float64, burst int, logger *slog.Logger, m *metrics.CollectorMetrics) *Client {
	return &Client{
		provider:   provider,
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		httpClient: &http.Client{},
		logger:     logger.With("component", "manager_client"),
		metrics:    m,
	}
}

// InvalidateToken drops the cached token so the next call performs a fresh
// credential exchange. Registered as a config-change listener: when
// credentials or the endpoint change, the old token is useless.
func (c *Client) InvalidateToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		c.logger.Debug("cached access token invalidated")
	}
	c.token = ""
	c.expiresAt = time.Time{}
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
	Token       string `json:"token"`
	ExpiresIn   int    `json:"expiresIn"`
}

// getAccessToken returns the cached token while it remains inside the safety
// margin, otherwise performs a credential exchange. Failures are not retried
// here; the collection scheduler owns the retry policy.
func (c *Client) getAccessToken(ctx context.Context, cfg domain.ConnectionConfig) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.expiresAt.Add(-tokenSafetyMargin)) {
		return c.token, nil
	}

	body, err := json.Marshal(map[string]string{
		"username": cfg.Username,
		"password": cfg.Password,
	})
	if err != nil {
		return "", fmt.Errorf("marshal token request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, cfg.Timeout())
	defer cancel()

	if err := c.limiter.Wait(reqCtx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, cfg.BaseURL()+tokenPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, respBody)
	}

	var tr tokenResponse
	if err := json.Unmarshal(respBody, &tr); err != nil {
		return "", fmt.Errorf("parse token response: %w", err)
	}
	token := tr.AccessToken
	if token == "" {
		token = tr.Token
	}
	if token == "" {
		return "", ErrMissingToken
	}

	ttl := tr.ExpiresIn
	if ttl <= 0 {
		ttl = 3600
	}
	c.token = token
	c.expiresAt = time.Now().Add(time.Duration(ttl) * time.Second)
	if c.metrics != nil {
		c.metrics.TokenRefreshes.Inc()
	}
	c.logger.Debug("refreshed access token", "expires_in_seconds", ttl)
	return token, nil
}

type incidentListResponse struct {
	Incidents []domain.UpstreamIncident `json:"incidents"`
	Total     int                       `json:"total"`
}

// FetchIncidents retrieves one page of incidents for the given time range.
// All failures propagate to the caller; incident loss must be visible.
func (c *Client) FetchIncidents(ctx context.Context, start, end time.Time, page, pageSize int) ([]domain.UpstreamIncident, int, error) {
	cfg := c.provider.Current()

	token, err := c.getAccessToken(ctx, cfg)
	if err != nil {
		return nil, 0, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, cfg.Timeout())
	defer cancel()

	if err := c.limiter.Wait(reqCtx); err != nil {
		return nil, 0, fmt.Errorf("rate limit wait: %w", err)
	}

	u, err := url.Parse(cfg.BaseURL() + incidentsPath)
	if err != nil {
		return nil, 0, fmt.Errorf("build incidents URL: %w", err)
	}
	q := url.Values{}
	q.Set("startTime", start.UTC().Format(time.RFC3339))
	q.Set("endTime", end.UTC().Format(time.RFC3339))
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build incidents request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch incidents: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, 0, fmt.Errorf("read incidents response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		// The manager no longer honors our token; force a re-exchange on
		// the next attempt.
		c.InvalidateToken()
		return nil, 0, fmt.Errorf("incidents endpoint rejected token with status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("incidents endpoint returned status %d: %s", resp.StatusCode, respBody)
	}

	var list incidentListResponse
	if err := json.Unmarshal(respBody, &list); err != nil {
		return nil, 0, fmt.Errorf("parse incidents response: %w", err)
	}
	return list.Incidents, list.Total, nil
}
