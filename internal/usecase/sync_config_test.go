package usecase

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dlpstream/collector/internal/domain"
	"github.com/dlpstream/collector/internal/domain/mocks"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewConfigSync_ClampsPollInterval(t *testing.T) {
	sc := NewConfigSync(&mocks.MockConfigFetcher{}, mocks.NewMockConfigBroadcast(1),
		newTestStore(domain.ConnectionConfig{}), &mocks.MockEventRelay{}, discardLogger(), time.Second)

	if sc.pollInterval != minPollInterval {
		t.Errorf("expected poll interval clamped to %v, got %v", minPollInterval, sc.pollInterval)
	}
}

func TestConfigSync_LoadInitial(t *testing.T) {
	t.Run("Remote Config Applied", func(t *testing.T) {
		store := newTestStore(domain.ConnectionConfig{ManagerIP: "10.0.0.1"})
		fetcher := &mocks.MockConfigFetcher{Results: []*domain.ConnectionConfig{
			{ManagerIP: "10.0.0.9", ManagerPort: 9443},
		}}
		relay := &mocks.MockEventRelay{}
		sc := NewConfigSync(fetcher, mocks.NewMockConfigBroadcast(1), store, relay, discardLogger(), time.Minute)

		sc.LoadInitial(context.Background())

		if got := store.Current(); got.ManagerIP != "10.0.0.9" || got.ManagerPort != 9443 {
			t.Errorf("expected remote config in store, got %+v", got)
		}
		if len(relay.RelayedEvents()) != 1 {
			t.Errorf("expected 1 relayed event, got %d", len(relay.RelayedEvents()))
		}
	})

	t.Run("Absent Remote Config Keeps Defaults", func(t *testing.T) {
		store := newTestStore(domain.ConnectionConfig{ManagerIP: "10.0.0.1", ManagerPort: 8443})
		fetcher := &mocks.MockConfigFetcher{} // always absent
		relay := &mocks.MockEventRelay{}
		sc := NewConfigSync(fetcher, mocks.NewMockConfigBroadcast(1), store, relay, discardLogger(), time.Minute)

		sc.LoadInitial(context.Background())

		if got := store.Current(); got.ManagerIP != "10.0.0.1" || got.ManagerPort != 8443 {
			t.Errorf("expected static defaults kept, got %+v", got)
		}
		if len(relay.RelayedEvents()) != 0 {
			t.Error("expected no relayed event when nothing was applied")
		}
	})
}

func TestConfigSync_PollOnce(t *testing.T) {
	store := newTestStore(domain.ConnectionConfig{ManagerIP: "10.0.0.1"})
	fetcher := &mocks.MockConfigFetcher{Results: []*domain.ConnectionConfig{
		{ManagerIP: "10.0.0.5", ManagerPort: 8444},
	}}
	sc := NewConfigSync(fetcher, mocks.NewMockConfigBroadcast(1), store, &mocks.MockEventRelay{}, discardLogger(), time.Minute)

	sc.pollOnce(context.Background())

	if got := store.Current(); got.ManagerIP != "10.0.0.5" {
		t.Errorf("expected polled config in store, got %+v", got)
	}
}

func TestConfigSync_HandleBroadcast(t *testing.T) {
	t.Run("Malformed Payload Discarded Then Valid Applied", func(t *testing.T) {
		store := newTestStore(domain.ConnectionConfig{ManagerIP: "10.0.0.1", ManagerPort: 8443})

		var listenerCalls int
		store.OnChange(func(domain.ConnectionConfig) { listenerCalls++ })

		sc := NewConfigSync(&mocks.MockConfigFetcher{}, mocks.NewMockConfigBroadcast(1),
			store, &mocks.MockEventRelay{}, discardLogger(), time.Minute)

		sc.handleBroadcast(context.Background(), `{not json`)
		if got := store.Current(); got.ManagerPort != 8443 {
			t.Fatalf("malformed payload must not change the store, got %+v", got)
		}

		sc.handleBroadcast(context.Background(), `{"managerIp":"10.0.0.2","managerPort":9443,"useHttps":true,"timeoutSeconds":20,"username":"svc","password":"s3cret"}`)

		got := store.Current()
		if got.ManagerPort != 9443 {
			t.Errorf("expected managerPort 9443, got %d", got.ManagerPort)
		}
		if listenerCalls != 1 {
			t.Errorf("expected listener invoked exactly once, got %d", listenerCalls)
		}
	})

	t.Run("Incomplete Payload Discarded", func(t *testing.T) {
		store := newTestStore(domain.ConnectionConfig{ManagerIP: "10.0.0.1", ManagerPort: 8443})
		sc := NewConfigSync(&mocks.MockConfigFetcher{}, mocks.NewMockConfigBroadcast(1),
			store, &mocks.MockEventRelay{}, discardLogger(), time.Minute)

		sc.handleBroadcast(context.Background(), `{"managerPort":9443}`)

		if got := store.Current(); got.ManagerPort != 8443 {
			t.Errorf("expected store unchanged, got %+v", got)
		}
	})
}

func TestConfigSync_RunSubscription(t *testing.T) {
	store := newTestStore(domain.ConnectionConfig{ManagerIP: "10.0.0.1", ManagerPort: 8443})
	broadcast := mocks.NewMockConfigBroadcast(2)
	sc := NewConfigSync(&mocks.MockConfigFetcher{}, broadcast, store, &mocks.MockEventRelay{}, discardLogger(), time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- sc.RunSubscription(ctx)
	}()

	// A malformed message must not terminate the subscription.
	broadcast.Messages <- `not a config`
	broadcast.Messages <- `{"managerIp":"10.0.0.7","managerPort":9443}`

	deadline := time.After(2 * time.Second)
	for store.Current().ManagerPort != 9443 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for broadcast to apply")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscription loop did not stop on cancellation")
	}

	if !broadcast.WasClosed() {
		t.Error("expected subscription to be closed on shutdown")
	}
}

func TestConfigSync_RunSubscription_SubscribeError(t *testing.T) {
	broadcast := mocks.NewMockConfigBroadcast(1)
	broadcast.SubscribeErr = context.DeadlineExceeded
	sc := NewConfigSync(&mocks.MockConfigFetcher{}, broadcast,
		newTestStore(domain.ConnectionConfig{}), &mocks.MockEventRelay{}, discardLogger(), time.Minute)

	if err := sc.RunSubscription(context.Background()); err == nil {
		t.Error("expected subscribe error to be returned")
	}
}
