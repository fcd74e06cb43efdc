package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/dlpstream/collector/internal/adapter/authority"
	"github.com/dlpstream/collector/internal/adapter/manager"
	"github.com/dlpstream/collector/internal/adapter/metrics"
	redisrepo "github.com/dlpstream/collector/internal/adapter/repository/redis"
	"github.com/dlpstream/collector/internal/domain"
	"github.com/dlpstream/collector/internal/pkg/config"
	"github.com/dlpstream/collector/internal/pkg/logger"
	"github.com/dlpstream/collector/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("starting DLP incident collector")

	m := metrics.NewCollectorMetrics()

	// --- Metrics Server ---
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metricsMux,
	}
	go func() {
		log.Info("starting metrics server", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", "error", err)
		}
	}()

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Broker Connection ---
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	log.Info("connected to redis", "addr", cfg.RedisAddr)

	// --- Adapters ---
	authorityClient := authority.NewClient(cfg.AuthorityURL, cfg.AuthoritySecret, log, m)
	incidentStream := redisrepo.NewIncidentStream(redisClient, log, cfg.IncidentStream, cfg.IncidentStreamMaxLen)
	configBroadcast := redisrepo.NewConfigBroadcast(redisClient, log, cfg.ConfigChannel)

	// --- Config Store (static defaults until the authority says otherwise) ---
	store := usecase.NewConfigStore(cfg.ManagerDefaults(), log, m)

	managerClient := manager.NewClient(store, cfg.ManagerRateLimit, cfg.ManagerRateBurst, log, m)
	// A credential or endpoint change makes the cached token useless; the
	// next cycle performs a fresh exchange against the new config.
	store.OnChange(func(domain.ConnectionConfig) {
		managerClient.InvalidateToken()
	})

	// --- Use Cases ---
	configSync := usecase.NewConfigSync(authorityClient, configBroadcast, store, authorityClient, log, cfg.ConfigPollInterval)
	collector := usecase.NewCollector(managerClient, incidentStream, authorityClient, log, m,
		cfg.CollectInterval, cfg.CollectCooldown, cfg.LookbackWindow, cfg.IncidentPageSize)

	// Initial pull before any collection runs, so the first cycle already
	// uses the authority's config when one is available.
	configSync.LoadInitial(ctx)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := configSync.RunSubscription(ctx); err != nil {
			// Push path failed to start; the poll path still keeps the
			// config fresh.
			log.Warn("config broadcast subscription unavailable, continuing with poll path only", "error", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		configSync.RunPollLoop(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		collector.Run(ctx)
	}()

	authorityClient.Relay(ctx, domain.RelayEvent{
		Message: "collector started",
		Success: true,
	})

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	log.Info("shutdown signal received, stopping loops...")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn("timed out waiting for loops to stop")
	}

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("metrics server shutdown failed", "error", err)
	}

	authorityClient.Relay(context.Background(), domain.RelayEvent{
		Message: "collector stopped",
		Success: true,
	})
	log.Info("collector shut down gracefully")
}
