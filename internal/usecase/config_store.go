package usecase

import (
	"log/slog"
	"sync"

	"github.com/dlpstream/collector/internal/adapter/metrics"
	"github.com/dlpstream/collector/internal/domain"
)

// ConfigStore holds the single "current" connection config for the process.
// Reads return independent copies and updates replace the value wholesale,
// so concurrent readers never observe a torn config. It performs no I/O.
type ConfigStore struct {
	mu      sync.RWMutex
	current domain.ConnectionConfig

	lmu       sync.Mutex
	listeners []func(domain.ConnectionConfig)

	logger  *slog.Logger
	metrics *metrics.CollectorMetrics
}

// NewConfigStore creates a store seeded with the static default config.
func NewConfigStore(initial domain.ConnectionConfig, logger *slog.Logger, m *metrics.CollectorMetrics) *ConfigStore {
	return &ConfigStore{
		current: initial.Clone(),
		logger:  logger.With("component", "config_store"),
		metrics: m,
	}
}

// Current returns an independent copy of the current config.
func (s *ConfigStore) Current() domain.ConnectionConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// OnChange registers a listener invoked with a fresh copy of the config
// after every applied update. Listeners run outside the store's critical
// section, so a slow listener cannot block subsequent updates.
func (s *ConfigStore) OnChange(fn func(domain.ConnectionConfig)) {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Update replaces the current config and reports whether the update was
// applied. An incoming value carrying an UpdatedAt older than the current
// one is rejected: last-writer-wins only holds between updates that carry
// no version information.
func (s *ConfigStore) Update(cfg domain.ConnectionConfig, source string) bool {
	s.mu.Lock()
	prev := s.current
	if !cfg.UpdatedAt.IsZero() && !prev.UpdatedAt.IsZero() && cfg.UpdatedAt.Before(prev.UpdatedAt) {
		s.mu.Unlock()
		s.logger.Warn("discarding stale config update",
			"source", source,
			"incoming_updated_at", cfg.UpdatedAt,
			"current_updated_at", prev.UpdatedAt,
		)
		return false
	}
	s.current = cfg.Clone()
	s.mu.Unlock()

	s.logger.Info("connection config updated",
		"source", source,
		"old_host", prev.ManagerIP,
		"old_port", prev.ManagerPort,
		"new_host", cfg.ManagerIP,
		"new_port", cfg.ManagerPort,
		"use_https", cfg.UseHTTPS,
		"timeout_seconds", cfg.TimeoutSeconds,
		"username", cfg.Username,
	)
	if s.metrics != nil {
		s.metrics.ConfigUpdates.WithLabelValues(source).Inc()
	}

	s.lmu.Lock()
	listeners := make([]func(domain.ConnectionConfig), len(s.listeners))
	copy(listeners, s.listeners)
	s.lmu.Unlock()

	for _, fn := range listeners {
		s.notify(fn, cfg.Clone())
	}
	return true
}

// notify isolates listener failures: one panicking listener must not poison
// the others or the updater.
func (s *ConfigStore) notify(fn func(domain.ConnectionConfig), cfg domain.ConnectionConfig) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("config change listener panicked", "panic", r)
		}
	}()
	fn(cfg)
}
