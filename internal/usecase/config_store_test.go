package usecase

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dlpstream/collector/internal/domain"
)

func newTestStore(initial domain.ConnectionConfig) *ConfigStore {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewConfigStore(initial, logger, nil)
}

func TestConfigStore_Update(t *testing.T) {
	t.Run("Replaces Current Value", func(t *testing.T) {
		store := newTestStore(domain.ConnectionConfig{ManagerIP: "10.0.0.1", ManagerPort: 8443})

		applied := store.Update(domain.ConnectionConfig{ManagerIP: "10.0.0.2", ManagerPort: 9443}, "broadcast")

		if !applied {
			t.Fatal("expected update to be applied")
		}
		got := store.Current()
		if got.ManagerIP != "10.0.0.2" || got.ManagerPort != 9443 {
			t.Errorf("unexpected current config: %+v", got)
		}
	})

	t.Run("Listener Invoked Exactly Once Per Update", func(t *testing.T) {
		store := newTestStore(domain.ConnectionConfig{ManagerIP: "10.0.0.1"})

		var calls []domain.ConnectionConfig
		store.OnChange(func(cfg domain.ConnectionConfig) {
			calls = append(calls, cfg)
		})

		store.Update(domain.ConnectionConfig{ManagerIP: "10.0.0.2", ManagerPort: 9443}, "broadcast")

		if len(calls) != 1 {
			t.Fatalf("expected 1 listener invocation, got %d", len(calls))
		}
		if calls[0].ManagerPort != 9443 {
			t.Errorf("listener saw wrong config: %+v", calls[0])
		}
	})

	t.Run("Panicking Listener Does Not Break Others", func(t *testing.T) {
		store := newTestStore(domain.ConnectionConfig{})
		store.OnChange(func(domain.ConnectionConfig) { panic("boom") })

		invoked := false
		store.OnChange(func(domain.ConnectionConfig) { invoked = true })

		store.Update(domain.ConnectionConfig{ManagerIP: "10.0.0.2"}, "broadcast")

		if !invoked {
			t.Error("expected second listener to run despite first panicking")
		}
	})

	t.Run("Stale Versioned Update Rejected", func(t *testing.T) {
		newer := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
		older := newer.Add(-time.Hour)
		store := newTestStore(domain.ConnectionConfig{ManagerIP: "10.0.0.2", UpdatedAt: newer})

		applied := store.Update(domain.ConnectionConfig{ManagerIP: "10.0.0.1", UpdatedAt: older}, "scheduled poll")

		if applied {
			t.Fatal("expected stale update to be rejected")
		}
		if got := store.Current(); got.ManagerIP != "10.0.0.2" {
			t.Errorf("expected current config unchanged, got %+v", got)
		}
	})

	t.Run("Unversioned Update Always Accepted", func(t *testing.T) {
		newer := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
		store := newTestStore(domain.ConnectionConfig{ManagerIP: "10.0.0.2", UpdatedAt: newer})

		applied := store.Update(domain.ConnectionConfig{ManagerIP: "10.0.0.3"}, "scheduled poll")

		if !applied {
			t.Fatal("expected unversioned update to be accepted")
		}
	})
}

// TestConfigStore_NoTornReads hammers the store with concurrent updates
// whose fields are all derived from the same counter, then checks that every
// read observes fields belonging to a single update.
func TestConfigStore_NoTornReads(t *testing.T) {
	store := newTestStore(domain.ConnectionConfig{
		ManagerIP:   "10.0.0.0",
		ManagerPort: 1000,
		Username:    "user-0",
	})

	const (
		writers    = 4
		iterations = 500
	)

	var wg sync.WaitGroup
	stopReaders := make(chan struct{})

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				n := w*iterations + i
				store.Update(domain.ConnectionConfig{
					ManagerIP:   fmt.Sprintf("10.0.0.%d", n),
					ManagerPort: 1000 + n,
					Username:    fmt.Sprintf("user-%d", n),
				}, "broadcast")
			}
		}(w)
	}

	var readerWg sync.WaitGroup
	for r := 0; r < 4; r++ {
		readerWg.Add(1)
		go func() {
			defer readerWg.Done()
			for {
				select {
				case <-stopReaders:
					return
				default:
				}
				cfg := store.Current()
				n := cfg.ManagerPort - 1000
				wantIP := fmt.Sprintf("10.0.0.%d", n)
				wantUser := fmt.Sprintf("user-%d", n)
				if cfg.ManagerIP != wantIP || cfg.Username != wantUser {
					t.Errorf("torn read: port=%d ip=%s user=%s", cfg.ManagerPort, cfg.ManagerIP, cfg.Username)
					return
				}
			}
		}()
	}

	wg.Wait()
	close(stopReaders)
	readerWg.Wait()
}

func TestConfigStore_CurrentReturnsCopy(t *testing.T) {
	store := newTestStore(domain.ConnectionConfig{ManagerIP: "10.0.0.1", Username: "svc"})

	got := store.Current()
	got.ManagerIP = "mutated"
	got.Username = strings.ToUpper(got.Username)

	if again := store.Current(); again.ManagerIP != "10.0.0.1" || again.Username != "svc" {
		t.Errorf("mutating a returned copy leaked into the store: %+v", again)
	}
}
