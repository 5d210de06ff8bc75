// CreditX - Credit risk triage and pricing for trade credit insurance.
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/creditx-oss/creditx/internal/api"
	"github.com/creditx-oss/creditx/internal/batch"
	"github.com/creditx-oss/creditx/internal/bus"
	"github.com/creditx-oss/creditx/internal/cache"
	"github.com/creditx-oss/creditx/internal/domain"
	"github.com/creditx-oss/creditx/internal/repository"
	"github.com/creditx-oss/creditx/internal/weights"
	"github.com/creditx-oss/creditx/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("CREDITX_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting creditx",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("CREDITX_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	applyEnvOverrides(cfg)

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"weights", cfg.Weights.Path,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize weights store and load the initial document. The
	// service cannot score without an active snapshot, so a failed
	// first load is fatal.
	store := weights.NewStore()
	source := weightsSource(cfg, repo)

	snap, err := store.Reload(ctx, source)
	if err != nil {
		slog.Error("failed to load weights", "error", err)
		os.Exit(1)
	}
	slog.Info("weights loaded",
		"version", snap.Version(),
		"source", snap.Source,
		"triage_rules", len(snap.Triage),
		"renewal_rules", len(snap.Renewal),
		"pricing_adjustments", len(snap.Pricing),
	)

	// Persist the initial document so versions are queryable
	doc := &domain.WeightsDocument{
		Version:    snap.Version(),
		Document:   snap.Raw,
		LoadedFrom: snap.Source,
		CreatedAt:  time.Now().UTC(),
	}
	if err := repo.SaveWeightsDocument(ctx, doc); err != nil {
		slog.Warn("failed to persist initial weights document", "error", err)
	}

	// Initialize batch aggregator
	maxWorkers := 10
	if raw := os.Getenv("CREDITX_MAX_WORKERS"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			maxWorkers = v
		}
	}
	aggregator := batch.New(maxWorkers, cacheImpl)
	slog.Info("batch aggregator initialized", "max_workers", maxWorkers)

	// Initialize audit worker
	auditWorker := worker.NewAuditWorker(busImpl, repo)
	if err := auditWorker.Start(); err != nil {
		slog.Error("failed to start audit worker", "error", err)
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, store, aggregator, source, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("creditx is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version, snap.Version())

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop audit worker first
	if err := auditWorker.Stop(); err != nil {
		slog.Error("failed to stop audit worker", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("creditx shutdown complete")
}

// applyEnvOverrides applies CREDITX_* environment overrides on top of
// the tier defaults.
func applyEnvOverrides(cfg *domain.Config) {
	if v := os.Getenv("CREDITX_WEIGHTS"); v != "" {
		cfg.Weights.Path = v
	}
	if v := os.Getenv("CREDITX_WEIGHTS_SOURCE"); v != "" {
		cfg.Weights.Source = v
	}
	if v := os.Getenv("CREDITX_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CREDITX_SQLITE_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := os.Getenv("CREDITX_POSTGRES_HOST"); v != "" {
		cfg.Repository.PostgresHost = v
	}
	if v := os.Getenv("CREDITX_POSTGRES_PASSWORD"); v != "" {
		cfg.Repository.PostgresPassword = v
	}
	if v := os.Getenv("CREDITX_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("CREDITX_NATS_URL"); v != "" {
		cfg.EventBus.NATSUrl = v
	}
}

// weightsSource selects where weights documents load from.
func weightsSource(cfg *domain.Config, repo domain.Repository) weights.Source {
	if cfg.Weights.Source == "repository" {
		return weights.RepositorySource{Repo: repo}
	}
	return weights.FileSource{Path: cfg.Weights.Path}
}

func printBanner(cfg *domain.Config, version, weightsVersion string) {
	fmt.Println()
	fmt.Println("  CreditX - credit risk triage and pricing")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Weights:  %s\n", weightsVersion)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /triage/underwriting      - Score submissions for triage")
	fmt.Println("    POST /triage/underwriting/csv  - Score submissions from a CSV upload")
	fmt.Println("    POST /renewals/priority        - Score policies for renewal priority")
	fmt.Println("    POST /renewals/priority/csv    - Score policies from a CSV upload")
	fmt.Println("    POST /pricing/suggest          - Suggest premium rates")
	fmt.Println("    POST /policy/check             - Validate requested coverage")
	fmt.Println("    POST /admin/reload-weights     - Hot-reload the weights document")
	fmt.Println("    GET  /admin/weights            - List persisted weights versions")
	fmt.Println("    GET  /admin/audits             - List recent batch audits")
	fmt.Println("    GET  /config/current           - Show the active configuration")
	fmt.Println("    GET  /health                   - Health check")
	fmt.Println()
}
