package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dlpstream/collector/internal/adapter/metrics"
	"github.com/dlpstream/collector/internal/domain"
)

// Collector drives periodic collection runs: fetch a bounded lookback window
// of incidents from the DLP manager, normalize them, and publish each to the
// shared stream. A failed cycle shortens the next wait to the cooldown
// instead of the normal period.
type Collector struct {
	source    domain.IncidentSource
	publisher domain.IncidentPublisher
	relay     domain.EventRelay
	logger    *slog.Logger
	metrics   *metrics.CollectorMetrics

	interval time.Duration
	cooldown time.Duration
	lookback time.Duration
	pageSize int
}

// NewCollector creates the collection scheduler.
func NewCollector(source domain.IncidentSource, publisher domain.IncidentPublisher, relay domain.EventRelay, logger *slog.Logger, m *metrics.CollectorMetrics, interval, cooldown, lookback time.Duration, pageSize int) *Collector {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Collector{
		source:    source,
		publisher: publisher,
		relay:     relay,
		logger:    logger.With("component", "collector"),
		metrics:   m,
		interval:  interval,
		cooldown:  cooldown,
		lookback:  lookback,
		pageSize:  pageSize,
	}
}

// Run executes collection cycles until ctx is cancelled. The first cycle
// starts immediately; subsequent cycles wait for the normal period, or for
// the cooldown after a failure.
func (c *Collector) Run(ctx context.Context) {
	c.logger.Info("collection scheduler started",
		"interval", c.interval, "cooldown", c.cooldown, "lookback", c.lookback)

	for {
		wait := c.interval
		if err := c.runCycle(ctx); err != nil {
			if ctx.Err() != nil {
				// Cancelled mid-cycle; no retry of the partial cycle.
				c.logger.Info("collection scheduler stopped")
				return
			}
			wait = c.cooldown
			c.logger.Error("collection cycle failed", "error", err, "next_attempt_in", wait)
			if c.metrics != nil {
				c.metrics.CollectionCycles.WithLabelValues("error").Inc()
			}
			c.relay.Relay(ctx, domain.RelayEvent{
				Message:      "incident collection cycle failed",
				Success:      false,
				ErrorMessage: err.Error(),
			})
		} else if c.metrics != nil {
			c.metrics.CollectionCycles.WithLabelValues("success").Inc()
			c.metrics.LastCollection.SetToCurrentTime()
		}

		select {
		case <-ctx.Done():
			c.logger.Info("collection scheduler stopped")
			return
		case <-time.After(wait):
		}
	}
}

// runCycle fetches and publishes one lookback window. Fetch and publish
// failures propagate: the scheduler is the single place that decides on
// cooldown. Incidents already published when a cycle fails stay published
// (at-least-once, not atomic-per-cycle).
func (c *Collector) runCycle(ctx context.Context) error {
	cycleID := uuid.NewString()
	end := time.Now().UTC()
	start := end.Add(-c.lookback)

	fetched := 0
	published := 0
	for page := 1; ; page++ {
		batch, total, err := c.source.FetchIncidents(ctx, start, end, page, c.pageSize)
		if err != nil {
			return fmt.Errorf("fetch incidents page %d: %w", page, err)
		}
		fetched += len(batch)
		if c.metrics != nil {
			c.metrics.IncidentsFetched.Add(float64(len(batch)))
		}

		for _, raw := range batch {
			incident := raw.Normalize(end)
			if err := c.publisher.Publish(ctx, incident); err != nil {
				if c.metrics != nil {
					c.metrics.PublishFailures.Inc()
				}
				return fmt.Errorf("publish incident %s: %w", incident.ID, err)
			}
			published++
			if c.metrics != nil {
				c.metrics.IncidentsPublished.Inc()
			}
		}

		if len(batch) < c.pageSize {
			break
		}
		if total > 0 && fetched >= total {
			break
		}
	}

	c.logger.Info("collection cycle complete",
		"cycle_id", cycleID,
		"fetched", fetched,
		"published", published,
		"window_start", start,
		"window_end", end,
	)
	c.relay.Relay(ctx, domain.RelayEvent{
		Message: "incident collection cycle complete",
		Details: fmt.Sprintf("fetched %d incidents, published %d", fetched, published),
		Success: true,
	})
	return nil
}
