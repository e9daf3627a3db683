// Harrier - Payment message screening and settlement splitting.
// Copyright (c) 2025 opensource.finance
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
	"strings"
	"syscall"
	"time"

	"github.com/opensource-finance/harrier/internal/adjudication"
	"github.com/opensource-finance/harrier/internal/api"
	"github.com/opensource-finance/harrier/internal/batch"
	"github.com/opensource-finance/harrier/internal/benford"
	"github.com/opensource-finance/harrier/internal/bus"
	"github.com/opensource-finance/harrier/internal/cache"
	"github.com/opensource-finance/harrier/internal/correction"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/repository"
	"github.com/opensource-finance/harrier/internal/routing"
	"github.com/opensource-finance/harrier/internal/rules"
	"github.com/opensource-finance/harrier/internal/scoring"
	"github.com/opensource-finance/harrier/internal/splitter"
	"github.com/opensource-finance/harrier/internal/validator"
	"github.com/opensource-finance/harrier/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("HARRIER_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	slog.Info("starting harrier",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	cfg := loadConfig()
	tenants := parseTenants(os.Getenv("HARRIER_TENANTS"))
	async := cfg.Tier == domain.TierPro || os.Getenv("HARRIER_ASYNC_WORKER") == "true"

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"async", async,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, tenants, async); err != nil {
		slog.Error("harrier failed", "error", err)
		os.Exit(1)
	}
	slog.Info("harrier shutdown complete")
}

func run(ctx context.Context, cfg *domain.Config, tenants []string, async bool) error {
	if async && len(tenants) == 0 {
		return fmt.Errorf("async mode needs HARRIER_TENANTS: %w", worker.ErrNoTenants)
	}

	repo, err := repository.New(cfg.Repository)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	defer repo.Close()

	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer cacheImpl.Close()

	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		return fmt.Errorf("failed to initialize event bus: %w", err)
	}
	defer busImpl.Close()

	engine, err := rules.NewEngine(cfg.Batch.MaxWorkers)
	if err != nil {
		return fmt.Errorf("failed to initialize rule engine: %w", err)
	}
	defer engine.Close()
	loadRules(ctx, repo, engine)

	v, err := validator.New(cfg.Validation)
	if err != nil {
		return fmt.Errorf("failed to initialize validator: %w", err)
	}
	scorer, err := scoring.New(cfg.Scoring, cfg.Analyzers, scoring.WithRules(engine))
	if err != nil {
		return fmt.Errorf("failed to initialize scoring: %w", err)
	}
	router, err := routing.NewRouter(cfg.Routing)
	if err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}
	split, err := splitter.New(cfg.Splitter)
	if err != nil {
		return fmt.Errorf("failed to initialize splitter: %w", err)
	}
	analyzer := benford.New(cfg.Benford)
	corrector := correction.NewService(correction.NewNormalizer(cfg.Validation.MaxReferenceLength), v)

	// Referrals go over the bus in async mode; otherwise the policy answers
	// in-process.
	policy := adjudication.NewPolicy()
	var adjudicator domain.Adjudicator = policy
	var responder *adjudication.Responder
	if async {
		adjudicator = adjudication.NewBusClient(busImpl, cfg.Adjudication)
		responder = adjudication.NewResponder(busImpl, policy)
	}
	adjudicator = adjudication.NewCached(adjudicator, cacheImpl, cfg.Adjudication.CacheTTL)

	orchestrator, err := batch.New(cfg.Batch, batch.Components{
		Validator: v,
		Scorer:    scorer,
		Benford:   analyzer,
		Router:    router,
		Splitter:  split,
	},
		batch.WithCorrection(corrector),
		batch.WithResolver(routing.NewResolver(adjudicator, cfg.Adjudication.Timeout)),
		batch.WithSink(repo),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize orchestrator: %w", err)
	}

	var asyncWorker *worker.Worker
	if async {
		asyncWorker = worker.NewWorker(busImpl, orchestrator, repo, responder)
		if err := asyncWorker.Start(worker.Config{TenantIDs: tenants}); err != nil {
			return fmt.Errorf("failed to start async worker: %w", err)
		}
	}

	srv := api.NewServer(cfg.Server, api.Dependencies{
		Repo:         repo,
		Cache:        cacheImpl,
		Bus:          busImpl,
		Validator:    v,
		Scorer:       scorer,
		Benford:      analyzer,
		Correction:   corrector,
		Orchestrator: orchestrator,
		Rules:        engine,
		Version:      Version,
		Async:        async,
		AsyncTenants: tenants,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	slog.Info("harrier is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"rules", engine.RulesCount(),
	)
	printBanner(cfg, Version)

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case serveErr = <-errCh:
		slog.Error("server failed", "error", serveErr)
	}

	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	return serveErr
}

func loadConfig() *domain.Config {
	cfg := domain.DefaultConfig()
	if os.Getenv("HARRIER_TIER") == "pro" {
		cfg = domain.ProConfig()
	}

	if port := os.Getenv("HARRIER_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil || p <= 0 || p > 65535 {
			slog.Warn("ignoring invalid HARRIER_PORT", "value", port)
		} else {
			cfg.Server.Port = p
		}
	}
	return cfg
}

func parseTenants(s string) []string {
	var tenants []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tenants = append(tenants, t)
		}
	}
	return tenants
}

// loadRules compiles the stored global rules. A bad or missing rule set
// leaves the engine empty; rules can be fixed and reloaded over the API.
func loadRules(ctx context.Context, repo domain.Repository, engine *rules.Engine) {
	stored, err := repo.ListRuleConfigs(ctx, api.GlobalTenantID)
	if err != nil {
		slog.Warn("failed to list rules", "error", err)
		return
	}
	if len(stored) == 0 {
		slog.Info("no custom rules stored, configure via POST /rules")
		return
	}
	if err := engine.LoadRules(stored); err != nil {
		slog.Error("failed to load stored rules", "error", err)
		return
	}
	slog.Info("custom rules loaded", "count", len(stored))
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  HARRIER  payment screening and settlement splitting")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /messages/validate        - Validate (and optionally correct) a message")
	fmt.Println("    POST /messages/validate/batch  - Validate a list of messages")
	fmt.Println("    POST /messages/score           - Score a message")
	fmt.Println("    POST /batches                  - Process a batch (JSON)")
	fmt.Println("    POST /batches/csv              - Process a batch (CSV)")
	fmt.Println("    GET  /batches/{id}             - Get a batch report")
	fmt.Println("    GET  /decisions?status=HELD    - List decisions by status")
	fmt.Println("    GET  /decisions/{messageId}    - Get a routing decision")
	fmt.Println("    POST /rules                    - Store a custom rule")
	fmt.Println("    POST /rules/reload             - Hot-reload rules")
	fmt.Println("    GET  /health                   - Health check")
	fmt.Println()
}
