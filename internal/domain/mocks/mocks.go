package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/dlpstream/collector/internal/domain"
)

// MockConfigFetcher is a mock implementation of domain.ConfigFetcher.
type MockConfigFetcher struct {
	mu      sync.Mutex
	Results []*domain.ConnectionConfig
	Calls   int
}

func (m *MockConfigFetcher) FetchConfig(ctx context.Context) *domain.ConnectionConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.Calls
	m.Calls++
	if idx >= len(m.Results) {
		return nil
	}
	return m.Results[idx]
}

// MockConfigBroadcast is a mock implementation of domain.ConfigBroadcast.
type MockConfigBroadcast struct {
	mu           sync.Mutex
	Messages     chan string
	SubscribeErr error
	Closed       bool
}

func NewMockConfigBroadcast(buffer int) *MockConfigBroadcast {
	return &MockConfigBroadcast{Messages: make(chan string, buffer)}
}

func (m *MockConfigBroadcast) Subscribe(ctx context.Context) (<-chan string, error) {
	if m.SubscribeErr != nil {
		return nil, m.SubscribeErr
	}
	return m.Messages, nil
}

func (m *MockConfigBroadcast) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

func (m *MockConfigBroadcast) WasClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Closed
}

// MockIncidentSource is a mock implementation of domain.IncidentSource.
// Pages are served in order; FetchIncidents past the last page returns an
// empty batch.
type MockIncidentSource struct {
	mu       sync.Mutex
	Pages    [][]domain.UpstreamIncident
	Total    int
	FetchErr error
	Calls    int
	Starts   []time.Time
	Ends     []time.Time
}

func (m *MockIncidentSource) FetchIncidents(ctx context.Context, start, end time.Time, page, pageSize int) ([]domain.UpstreamIncident, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	m.Starts = append(m.Starts, start)
	m.Ends = append(m.Ends, end)
	if m.FetchErr != nil {
		return nil, 0, m.FetchErr
	}
	if page < 1 || page > len(m.Pages) {
		return nil, m.Total, nil
	}
	return m.Pages[page-1], m.Total, nil
}

func (m *MockIncidentSource) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

// MockIncidentPublisher is a mock implementation of domain.IncidentPublisher.
type MockIncidentPublisher struct {
	mu         sync.Mutex
	Published  []domain.Incident
	PublishErr error
	FailAfter  int // fail once this many incidents have been accepted; 0 means fail immediately when PublishErr is set
}

func (m *MockIncidentPublisher) Publish(ctx context.Context, incident domain.Incident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishErr != nil && len(m.Published) >= m.FailAfter {
		return m.PublishErr
	}
	m.Published = append(m.Published, incident)
	return nil
}

func (m *MockIncidentPublisher) PublishedIncidents() []domain.Incident {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Incident, len(m.Published))
	copy(out, m.Published)
	return out
}

// MockEventRelay is a mock implementation of domain.EventRelay.
type MockEventRelay struct {
	mu     sync.Mutex
	Events []domain.RelayEvent
}

func (m *MockEventRelay) Relay(ctx context.Context, event domain.RelayEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
}

func (m *MockEventRelay) RelayedEvents() []domain.RelayEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.RelayEvent, len(m.Events))
	copy(out, m.Events)
	return out
}
