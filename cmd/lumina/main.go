// Lumina - Compliance checks for cross-border transfers.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ableka/lumina/internal/api"
	"github.com/ableka/lumina/internal/bus"
	"github.com/ableka/lumina/internal/cache"
	"github.com/ableka/lumina/internal/domain"
	"github.com/ableka/lumina/internal/jurisdiction"
	"github.com/ableka/lumina/internal/metrics"
	"github.com/ableka/lumina/internal/orchestrator"
	"github.com/ableka/lumina/internal/provider"
	"github.com/ableka/lumina/internal/repository"
	"github.com/ableka/lumina/internal/velocity"
	"github.com/ableka/lumina/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := domain.LoadFromEnv()

	logger := newLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	slog.Info("starting lumina",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"jurisdictions_dir", cfg.Jurisdictions.Dir,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Jurisdiction rules
	store, err := jurisdiction.NewStore(logger)
	if err != nil {
		slog.Error("failed to initialize rule store", "error", err)
		os.Exit(1)
	}
	rules, err := jurisdiction.LoadDir(cfg.Jurisdictions.Dir)
	if err != nil {
		slog.Error("failed to load jurisdiction rules", "dir", cfg.Jurisdictions.Dir, "error", err)
		os.Exit(1)
	}
	if err := store.Replace(rules); err != nil {
		slog.Error("failed to compile jurisdiction rules", "error", err)
		os.Exit(1)
	}
	slog.Info("jurisdiction rules loaded",
		"count", store.Count(),
		"version", store.Version(),
	)

	if cfg.Jurisdictions.Watch {
		watcher, err := jurisdiction.NewWatcher(cfg.Jurisdictions.Dir, store, logger)
		if err != nil {
			slog.Error("failed to start rule watcher", "error", err)
			os.Exit(1)
		}
		defer watcher.Close()
		go watcher.Run(ctx)
		slog.Info("rule watcher started", "dir", cfg.Jurisdictions.Dir)
	}

	// Metrics
	m := metrics.New()

	// Providers
	velocityChecker := velocity.New(repo, logger)
	kycClient := provider.NewKYCClient(cfg.Providers.KYC, logger)
	amlClient := provider.NewAMLClient(cfg.Providers.AML, cacheImpl, velocityChecker, logger)

	// Orchestrator
	orch := orchestrator.New(orchestrator.Config{
		Rules:          store,
		KYC:            kycClient,
		AML:            amlClient,
		Repository:     repo,
		Bus:            busImpl,
		Metrics:        m,
		Logger:         logger,
		OverallTimeout: cfg.Orchestrator.OverallTimeout,
	})

	// Async worker
	asyncWorker := worker.NewWorker(busImpl, orch, logger)
	if err := asyncWorker.Start(); err != nil {
		slog.Error("failed to start async worker", "error", err)
		os.Exit(1)
	}

	// HTTP server
	srv := api.NewServer(cfg.Server, orch, repo, store, cfg.Jurisdictions.Dir, m, Version)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("lumina is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg.Server.Host, cfg.Server.Port, Version)

	<-ctx.Done()
	slog.Info("shutting down...")

	if err := asyncWorker.Stop(); err != nil {
		slog.Error("failed to stop async worker", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("lumina shutdown complete")
}

func newLogger(level, format string) *slog.Logger {
	lvl := slog.LevelInfo
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func printBanner(host string, port int, version string) {
	fmt.Println()
	fmt.Println("  Lumina - compliance checks for cross-border transfers")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Server:   http://%s:%d\n", host, port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /check-transfer          - Run a compliance check")
	fmt.Println("    GET  /checks/{id}             - Get a check result by ID")
	fmt.Println("    GET  /entities/{id}/checks    - List checks for an entity")
	fmt.Println("    GET  /jurisdictions           - List loaded jurisdictions")
	fmt.Println("    GET  /jurisdictions/{code}    - Get one jurisdiction's rules")
	fmt.Println("    POST /jurisdictions/reload    - Hot-reload jurisdiction rules")
	fmt.Println("    GET  /metrics                 - Prometheus metrics")
	fmt.Println("    GET  /health                  - Health check")
	fmt.Println("    GET  /ready                   - Readiness check")
	fmt.Println()
}
