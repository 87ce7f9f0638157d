// PromptForge server - transforms raw user ideas into structured,
// production-grade prompts through a routed generation pipeline.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/promptforge-dev/promptforge/pkg/analyzer"
	"github.com/promptforge-dev/promptforge/pkg/api"
	"github.com/promptforge-dev/promptforge/pkg/breaker"
	"github.com/promptforge-dev/promptforge/pkg/config"
	"github.com/promptforge-dev/promptforge/pkg/container"
	"github.com/promptforge-dev/promptforge/pkg/database"
	"github.com/promptforge-dev/promptforge/pkg/gates"
	"github.com/promptforge-dev/promptforge/pkg/generator"
	"github.com/promptforge-dev/promptforge/pkg/llm"
	"github.com/promptforge-dev/promptforge/pkg/metrics"
	"github.com/promptforge-dev/promptforge/pkg/orchestrator"
	"github.com/promptforge-dev/promptforge/pkg/pool"
	"github.com/promptforge-dev/promptforge/pkg/queue"
	"github.com/promptforge-dev/promptforge/pkg/services"
	"github.com/promptforge-dev/promptforge/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment", "path", envPath)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	slog.Info("Starting PromptForge", "version", version.Full(), "config_dir", *configDir)

	ctx := context.Background()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	deps := container.New()

	// LLM adapter — a single shared instance per process.
	llmClient, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		slog.Error("Failed to create LLM client", "error", err)
		os.Exit(1)
	}
	deps.Register("llm.client", llmClient)

	gen := generator.New(llmClient,
		cfg.LLM.ResolvedTemperature(),
		time.Duration(cfg.LLM.CallTimeoutSeconds)*time.Second)

	// Example pool — load failure degrades to an empty pool (knn_disabled),
	// never a startup failure.
	examplePool, err := pool.Load(cfg.Pool.Path)
	if err != nil {
		slog.Warn("Example pool unavailable, KNN disabled", "path", cfg.Pool.Path, "error", err)
		examplePool = pool.Empty()
	}
	deps.Register("example.pool", examplePool)

	// Persistence stack (optional).
	var history *services.PromptHistoryService
	var dbClient *database.Client
	var persist *queue.PersistExecutor
	if cfg.Storage.Enabled {
		dbClient, err = database.NewClient(database.Config{
			Path:    cfg.Storage.DBPath,
			WALMode: cfg.Storage.WALMode,
		})
		if err != nil {
			slog.Error("Failed to configure database", "error", err)
			os.Exit(1)
		}
		history = services.NewPromptHistoryService(dbClient)

		saveBreaker := breaker.New("prompt-repository",
			cfg.Breaker.MaxFailures,
			time.Duration(cfg.Breaker.TimeoutSeconds)*time.Second)

		persist = queue.NewPersistExecutor(history, saveBreaker, 0)
		persist.Start()

		deps.OnShutdown("history-service", func(ctx context.Context) error {
			return history.Close()
		})
		deps.OnShutdown("persist-queue", func(ctx context.Context) error {
			return persist.Close(ctx)
		})

		if cfg.Storage.RetentionDays > 0 {
			stopSweeper := startRetentionSweeper(history, cfg.Storage.RetentionDays)
			deps.OnShutdown("retention-sweeper", func(context.Context) error {
				close(stopSweeper)
				return nil
			})
		}
	} else {
		slog.Info("Persistence disabled by configuration")
	}

	orch := orchestrator.New(
		cfg,
		analyzer.NewIntentClassifier(llmClient),
		analyzer.NewComplexityAnalyzer(),
		gen,
		examplePool,
		gates.NewEngine(gateSeverities(cfg)),
		metrics.NewCalculator(cfg.Metrics.Weights),
		persist,
	)

	server := api.NewServer(cfg, orch, examplePool)
	if history != nil {
		server.SetHistoryService(history)
		server.SetDatabaseClient(dbClient)
	}
	if err := server.ValidateWiring(); err != nil {
		slog.Error("Server wiring incomplete", "error", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		errCh <- server.Start(addr)
	}()

	// Wait for a shutdown signal or a server failure.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server failed", "error", err)
		}
	}

	grace := time.Duration(cfg.Server.ShutdownGraceSeconds) * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown failed", "error", err)
	}
	deps.Shutdown(shutdownCtx)
	slog.Info("Shutdown complete")
}

// gateSeverities converts configured overrides into the gate engine's type.
func gateSeverities(cfg *config.Config) map[string]gates.Severity {
	if len(cfg.Gates.SeverityOverrides) == 0 {
		return nil
	}
	out := make(map[string]gates.Severity, len(cfg.Gates.SeverityOverrides))
	for id, sev := range cfg.Gates.SeverityOverrides {
		out[id] = gates.Severity(sev)
	}
	return out
}

// startRetentionSweeper deletes old records once a day. Failures are logged,
// never fatal.
func startRetentionSweeper(history *services.PromptHistoryService, days int) chan struct{} {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
				if _, err := history.DeleteOldRecords(ctx, days); err != nil {
					slog.Warn("Retention sweep failed", "error", err)
				}
				cancel()
			}
		}
	}()
	return stop
}
