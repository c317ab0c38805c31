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

	"github.com/sweeply/tidyboard/internal/adapters/http/api"
	"github.com/sweeply/tidyboard/internal/adapters/http/site"
	"github.com/sweeply/tidyboard/internal/adapters/http/swagger"
	service "github.com/sweeply/tidyboard/internal/app"
	"github.com/sweeply/tidyboard/internal/config"
	"github.com/sweeply/tidyboard/internal/ratelimit"
	"github.com/sweeply/tidyboard/pkg/logger"
	"github.com/sweeply/tidyboard/pkg/metrics"
)

// HTTP server timeouts.
const (
	srvReadTimeout       = 10 * time.Second
	srvReadHeaderTimeout = 5 * time.Second
	srvWriteTimeout      = 10 * time.Second
	srvIdleTimeout       = 60 * time.Second
	srvDrainTimeout      = 30 * time.Second
)

// Metrics updater cadence.
const (
	runtimeStatsInterval = 10 * time.Second
	serviceStatsInterval = 5 * time.Second

	nsPerMs = 1e6
)

func main() {
	if err := logger.Init(); err != nil {
		// Logger isn't available yet, write straight to stderr
		os.Stderr.WriteString("logging init failed: " + err.Error() + "\n")
		return
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			os.Stderr.WriteString("failed to flush logs: " + err.Error() + "\n")
		}
	}()

	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Config precedence: defaults, then file, then environment.
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("config load failed: " + err.Error() + "\n")
		return
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "unknown log_level, staying on info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
	}

	app := service.New(
		service.WithLogger(log),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.ReportQueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithKindWeights(cfg.KindWeights),
		service.WithDefaultKindWeight(cfg.DefaultKindWeight),
		service.WithArchivePath(cfg.ArchivePath),
	)
	if err := app.Start(ctx); err != nil {
		os.Stderr.WriteString("service start failed: " + err.Error() + "\n")
		return
	}
	defer app.Stop()

	go pollRuntimeStats(ctx)
	go pollServiceStats(ctx, app)

	root := http.NewServeMux()

	// Landing page and Swagger UI.
	site.Register(ctx, root)
	swagger.Register(ctx, root)

	// Per-device submission throttling. ReportRPS <= 0 disables it.
	var reportsOpts []api.ReportsOption
	if cfg.ReportRPS > 0 {
		limiter := ratelimit.New(cfg.ReportRPS, cfg.ReportBurst)
		defer limiter.Stop()
		reportsOpts = append(reportsOpts, api.WithRateLimiter(limiter))
	}

	// The service doubles as data dependency and stats provider.
	apiServer := api.NewServer(app, app, cfg.MaxLeaderboardLimit, reportsOpts...)
	apiServer.Register(ctx, root)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           root,
		ReadTimeout:       srvReadTimeout,
		WriteTimeout:      srvWriteTimeout,
		IdleTimeout:       srvIdleTimeout,
		ReadHeaderTimeout: srvReadHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "http server listening", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			os.Stderr.WriteString("http server error: " + err.Error() + "\n")
			return
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutdown requested, draining")

	drainCtx, cancel := context.WithTimeout(context.Background(), srvDrainTimeout)
	defer cancel()

	if err := srv.Shutdown(drainCtx); err != nil {
		log.Error(ctx, "graceful shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server exited")
}

// pollRuntimeStats republishes Go runtime gauges on a fixed cadence.
func pollRuntimeStats(ctx context.Context) {
	ticker := time.NewTicker(runtimeStatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			publishRuntimeStats()
		}
	}
}

// pollServiceStats mirrors service counters into the exposition.
func pollServiceStats(ctx context.Context, app *service.Service) {
	ticker := time.NewTicker(serviceStatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			publishServiceStats(app)
		}
	}
}

// publishRuntimeStats samples the runtime once.
func publishRuntimeStats() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	metrics.SetHeapAlloc(ms.Alloc)
	metrics.SetGoroutines(runtime.NumGoroutine())

	if ms.NumGC > 0 {
		// Average pause across all collections so far
		avgPause := float64(ms.PauseTotalNs) / float64(ms.NumGC) / nsPerMs
		metrics.ObserveGCPause(avgPause)
	}
}

// publishServiceStats refreshes the core gauges between stats requests.
// GetStats pushes the same gauges whenever a client asks for stats.
func publishServiceStats(app *service.Service) {
	stats := app.GetStats()

	if queueLen, ok := stats["queue_size"].(int); ok {
		metrics.SetQueueDepth(queueLen)
	}

	if totalDevices, ok := stats["total_devices"].(int); ok {
		metrics.SetCityDevices(totalDevices)
	}

	if workerCount, ok := stats["worker_count"].(int); ok {
		metrics.SetWorkerCount(workerCount)
	}
}
