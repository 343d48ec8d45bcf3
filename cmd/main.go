package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/crawlplan/internal/adapters/google"
	"github.com/okian/crawlplan/internal/adapters/http/api"
	"github.com/okian/crawlplan/internal/adapters/http/swagger"
	"github.com/okian/crawlplan/internal/adapters/memory"
	app "github.com/okian/crawlplan/internal/app"
	"github.com/okian/crawlplan/internal/config"
	"github.com/okian/crawlplan/internal/domain/venue"
	"github.com/okian/crawlplan/pkg/logger"
	"github.com/okian/crawlplan/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			os.Stderr.WriteString("failed to sync logger: " + err.Error() + "\n")
		}
	}()

	loggerInstance := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	opts, err := serviceOptions(ctx, cfg, loggerInstance)
	if err != nil {
		loggerInstance.Error(ctx, "failed to build collaborators", logger.Error(err))
		return
	}

	svc := app.New(opts...)
	if err := svc.Start(ctx); err != nil {
		loggerInstance.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	// Start system metrics updater
	go startSystemMetricsUpdater(ctx)

	// Start service metrics updater
	go startServiceMetricsUpdater(ctx, svc, metrics.Global().RefreshInterval())

	// HTTP mux and routes.
	mux := http.NewServeMux()

	// Register API docs under /api-docs
	swagger.Register(ctx, mux)

	// Register business API routes with the service dependency.
	api.NewServer(svc, svc, svc).Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Start the HTTP server
	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			loggerInstance.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(context.Background(), "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(shutdownCtx, "server stopped")
}

// serviceOptions translates the configuration into service options and picks
// the collaborators: Google Maps when a key is configured, the offline
// simulation otherwise.
func serviceOptions(ctx context.Context, cfg *config.Config, log logger.Logger) ([]app.Option, error) {
	opts := []app.Option{
		app.WithLogger(log.Named("service")),
		app.WithMaxSessions(cfg.MaxSessions),
		app.WithMailboxSize(cfg.MailboxSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithIdleTTL(time.Duration(cfg.SessionIdleTTLSeconds) * time.Second),
		app.WithCleanupInterval(time.Duration(cfg.CleanupIntervalSeconds) * time.Second),
		app.WithCollaboratorTimeout(time.Duration(cfg.CollaboratorTimeoutMS) * time.Millisecond),
		app.WithDefaultOrigin(venue.Coordinate{Lat: cfg.DefaultLatitude, Lng: cfg.DefaultLongitude}),
		app.WithDiscoveryDefaults(cfg.DefaultRadiusMeters, cfg.DefaultLimit, venue.PriceRange{
			Min: venue.PriceTier(cfg.DefaultPriceMin),
			Max: venue.PriceTier(cfg.DefaultPriceMax),
		}),
	}

	if !cfg.UseGoogle() {
		latency := memory.WithLatencyRange(
			time.Duration(cfg.SimLatencyMinMS)*time.Millisecond,
			time.Duration(cfg.SimLatencyMaxMS)*time.Millisecond,
		)
		log.Info(ctx, "using offline collaborators",
			logger.Int("latencyMinMs", cfg.SimLatencyMinMS),
			logger.Int("latencyMaxMs", cfg.SimLatencyMaxMS))
		return append(opts, app.WithCollaborators(
			memory.NewCatalog(latency),
			memory.NewRouter(true, latency),
			memory.NewGazetteer(nil, latency),
		)), nil
	}

	client, err := google.New(cfg.GoogleAPIKey,
		google.WithPlaceType(cfg.PlaceType),
		google.WithTravelMode(cfg.TravelMode),
		google.WithQPS(cfg.OutboundQPS),
		google.WithBreaker(google.BreakerSettings{
			FailureRate: cfg.BreakerFailureRate,
			MinRequests: uint(cfg.BreakerMinRequests),
			Window:      time.Duration(cfg.BreakerWindowSeconds) * time.Second,
			Delay:       time.Duration(cfg.BreakerDelaySeconds) * time.Second,
		}),
		google.WithLogger(log.Named("google")),
	)
	if err != nil {
		return nil, err
	}
	log.Info(ctx, "using Google Maps collaborators",
		logger.String("placeType", cfg.PlaceType),
		logger.String("travelMode", cfg.TravelMode),
		logger.Float64("qps", cfg.OutboundQPS))
	return append(opts,
		app.WithCollaborators(client, client, client),
		app.WithCollaboratorHealth(client.BreakerStates),
	), nil
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes the session gauges on an interval.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)

	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics updates service-level metrics. GetStats refreshes the
// session and mailbox gauges as a side effect.
func updateServiceMetrics(svc *app.Service) {
	_ = svc.GetStats()
}
