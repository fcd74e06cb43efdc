package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dlpstream/collector/internal/domain"
)

// minPollInterval bounds load on the central authority.
const minPollInterval = time.Minute

// ConfigSync reconciles the runtime config with the central authority via an
// initial pull, a periodic re-pull, and a subscribed broadcast channel. Both
// paths converge on the ConfigStore; its atomicity is what keeps the two
// paths from producing a torn composite, so the coordinator needs no locking
// of its own.
type ConfigSync struct {
	fetcher      domain.ConfigFetcher
	broadcast    domain.ConfigBroadcast
	store        *ConfigStore
	relay        domain.EventRelay
	logger       *slog.Logger
	pollInterval time.Duration
}

// NewConfigSync creates the coordinator. The poll interval is clamped so a
// misconfigured value cannot hammer the authority.
func NewConfigSync(fetcher domain.ConfigFetcher, broadcast domain.ConfigBroadcast, store *ConfigStore, relay domain.EventRelay, logger *slog.Logger, pollInterval time.Duration) *ConfigSync {
	if pollInterval < minPollInterval {
		logger.Warn("config poll interval below minimum, clamping",
			"requested", pollInterval, "minimum", minPollInterval)
		pollInterval = minPollInterval
	}
	return &ConfigSync{
		fetcher:      fetcher,
		broadcast:    broadcast,
		store:        store,
		relay:        relay,
		logger:       logger.With("component", "config_sync"),
		pollInterval: pollInterval,
	}
}

// LoadInitial performs the one-time startup pull. When the authority has
// nothing for us, the process keeps its static default configuration.
func (s *ConfigSync) LoadInitial(ctx context.Context) {
	cfg := s.fetcher.FetchConfig(ctx)
	if cfg == nil {
		s.logger.Info("no remote config available at startup, keeping static defaults")
		return
	}
	if s.store.Update(*cfg, "initial load") {
		s.relay.Relay(ctx, domain.RelayEvent{
			Message: "connection config loaded from central authority",
			Details: fmt.Sprintf("manager %s:%d", cfg.ManagerIP, cfg.ManagerPort),
			Success: true,
		})
	}
}

// RunPollLoop re-pulls the config on a fixed interval until ctx is
// cancelled. Poll failures are never fatal; the fetcher reports them as
// "no update".
func (s *ConfigSync) RunPollLoop(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	s.logger.Info("config poll loop started", "interval", s.pollInterval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("config poll loop stopped")
			return
		case <-ticker.C:
			s.pollOnce(ctx)
		}
	}
}

func (s *ConfigSync) pollOnce(ctx context.Context) {
	cfg := s.fetcher.FetchConfig(ctx)
	if cfg == nil {
		return
	}
	if s.store.Update(*cfg, "scheduled poll") {
		s.relay.Relay(ctx, domain.RelayEvent{
			Message: "connection config updated from scheduled poll",
			Details: fmt.Sprintf("manager %s:%d", cfg.ManagerIP, cfg.ManagerPort),
			Success: true,
		})
	}
}

// RunSubscription consumes the broadcast channel until ctx is cancelled,
// then unsubscribes before returning so no live subscription leaks against
// the broker.
func (s *ConfigSync) RunSubscription(ctx context.Context) error {
	msgs, err := s.broadcast.Subscribe(ctx)
	if err != nil {
		s.logger.Error("failed to subscribe to config broadcast channel", "error", err)
		return err
	}
	defer func() {
		if err := s.broadcast.Close(); err != nil {
			s.logger.Warn("failed to close config broadcast subscription", "error", err)
		}
	}()

	s.logger.Info("config broadcast subscription established")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("config broadcast subscription stopping")
			return nil
		case payload, ok := <-msgs:
			if !ok {
				s.logger.Warn("config broadcast channel closed by broker")
				return nil
			}
			s.handleBroadcast(ctx, payload)
		}
	}
}

// handleBroadcast applies one pushed payload. A malformed payload is logged
// and discarded; it must not terminate the subscription.
func (s *ConfigSync) handleBroadcast(ctx context.Context, payload string) {
	var cfg domain.ConnectionConfig
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		s.logger.Warn("discarding malformed config broadcast", "error", err, "payload", payload)
		return
	}
	if cfg.ManagerIP == "" || cfg.ManagerPort == 0 {
		s.logger.Warn("discarding incomplete config broadcast", "payload", payload)
		return
	}
	if s.store.Update(cfg, "broadcast") {
		s.relay.Relay(ctx, domain.RelayEvent{
			Message: "connection config updated from broadcast",
			Details: fmt.Sprintf("manager %s:%d", cfg.ManagerIP, cfg.ManagerPort),
			Success: true,
		})
	}
}
