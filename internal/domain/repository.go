package domain

import (
	"context"
	"time"
)

// ConfigProvider exposes the current connection config as an independent
// snapshot. Implementations must never hand out aliased internal state.
type ConfigProvider interface {
	Current() ConnectionConfig
}

// ConfigFetcher retrieves the canonical connection config from the central
// authority. A nil result means "no update available" (feature disabled,
// authority unreachable, or unusable payload); fetching never fails loudly
// because config sync is best-effort.
type ConfigFetcher interface {
	FetchConfig(ctx context.Context) *ConnectionConfig
}

// ConfigBroadcast is the push path for config updates: a named pub/sub
// channel on the shared broker.
type ConfigBroadcast interface {
	// Subscribe establishes the subscription and returns a channel of raw
	// payloads. The returned channel is closed when the subscription ends.
	Subscribe(ctx context.Context) (<-chan string, error)

	// Close unsubscribes and releases the subscription.
	Close() error
}

// IncidentSource fetches a page of raw incidents for a time range from the
// upstream DLP manager. The second return value is the upstream's reported
// total for the range.
type IncidentSource interface {
	FetchIncidents(ctx context.Context, start, end time.Time, page, pageSize int) ([]UpstreamIncident, int, error)
}

// IncidentPublisher appends one normalized incident to the shared stream.
// Publish failures must propagate: a dropped incident is a correctness
// issue for downstream risk scoring.
type IncidentPublisher interface {
	Publish(ctx context.Context, incident Incident) error
}

// EventRelay forwards an operational event to the central authority.
// Relaying is fire-and-forget and must never fail the caller.
type EventRelay interface {
	Relay(ctx context.Context, event RelayEvent)
}
