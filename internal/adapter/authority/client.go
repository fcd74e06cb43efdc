package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dlpstream/collector/internal/adapter/metrics"
	"github.com/dlpstream/collector/internal/domain"
)

const (
	secretHeader = "X-Collector-Key"
	configPath   = "/api/v1/collector/config"
	logsPath     = "/api/v1/collector/logs"

	// A slow or unreachable authority must not stall the sync loop.
	requestTimeout = 12 * time.Second

	maxResponseBytes = 1 << 20
)

// Client talks to the central authority: it pulls the canonical connection
// config and forwards operational log events. Both operations are
// best-effort; neither ever returns an error to the caller.
type Client struct {
	baseURL    string
	secret     string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.CollectorMetrics
}

// NewClient creates an authority client. An empty secret disables both
// endpoints entirely.
func NewClient(baseURL, secret string, logger *slog.Logger, m *metrics.CollectorMetrics) *Client {
	return &Client{
		baseURL:    baseURL,
		secret:     secret,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger.With("component", "authority_client"),
		metrics:    m,
	}
}

// FetchConfig pulls the canonical connection config. It returns nil, never
// an error, when no usable value is available: the feature is disabled, the
// authority answers with a non-success status, or the payload is empty or
// unparseable. Config sync must not crash the host process.
func (c *Client) FetchConfig(ctx context.Context) *domain.ConnectionConfig {
	if c.secret == "" {
		c.logger.Debug("authority secret not configured, remote config disabled")
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+configPath, nil)
	if err != nil {
		c.logger.Warn("failed to build config request", "error", err)
		return nil
	}
	req.Header.Set(secretHeader, c.secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("failed to fetch config from authority", "error", err)
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.logger.Warn("failed to read config response", "error", err)
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("authority returned non-success status for config fetch",
			"status", resp.StatusCode, "body", string(body))
		return nil
	}
	if len(bytes.TrimSpace(body)) == 0 {
		c.logger.Warn("authority returned empty config payload")
		return nil
	}

	var cfg domain.ConnectionConfig
	if err := json.Unmarshal(body, &cfg); err != nil {
		c.logger.Warn("unparseable config payload from authority",
			"error", err, "body", string(body))
		return nil
	}
	return &cfg
}

// Relay forwards one operational event to the authority's log endpoint.
// Fire-and-forget: with no secret configured it is a silent no-op, and any
// failure is logged at warning level and discarded. Observability failures
// must never cascade into collection failures.
func (c *Client) Relay(ctx context.Context, event domain.RelayEvent) {
	if c.secret == "" {
		c.logger.Debug("authority secret not configured, dropping relay event", "message", event.Message)
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		c.relayFailed("failed to marshal relay event", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+logsPath, bytes.NewReader(payload))
	if err != nil {
		c.relayFailed("failed to build relay request", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(secretHeader, c.secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.relayFailed("failed to forward log event to authority", err)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("authority rejected relayed log event", "status", resp.StatusCode)
		if c.metrics != nil {
			c.metrics.RelayFailures.Inc()
		}
	}
}

func (c *Client) relayFailed(msg string, err error) {
	c.logger.Warn(msg, "error", err)
	if c.metrics != nil {
		c.metrics.RelayFailures.Inc()
	}
}
