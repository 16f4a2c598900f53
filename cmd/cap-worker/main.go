package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/campaign-autopilot/cap/internal/cache"
	"github.com/campaign-autopilot/cap/internal/config"
	"github.com/campaign-autopilot/cap/internal/control"
	"github.com/campaign-autopilot/cap/internal/credentials"
	"github.com/campaign-autopilot/cap/internal/evaluate"
	"github.com/campaign-autopilot/cap/internal/execute"
	"github.com/campaign-autopilot/cap/internal/health"
	"github.com/campaign-autopilot/cap/internal/metricsquery"
	"github.com/campaign-autopilot/cap/internal/notification"
	"github.com/campaign-autopilot/cap/internal/observability"
	"github.com/campaign-autopilot/cap/internal/orchestrate"
	"github.com/campaign-autopilot/cap/internal/schedule"
	kafkastore "github.com/campaign-autopilot/cap/internal/storage/kafka"
	"github.com/campaign-autopilot/cap/internal/storage/postgres"
	"github.com/campaign-autopilot/cap/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting autopilot worker", "version", cfg.Version, "port", cfg.Port)

	cleanup, err := observability.InitTracing("cap-worker", cfg.Version, logger)
	if err != nil {
		slog.Error("failed to init tracing", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	pg, err := postgres.NewClient(cfg)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pg.Close()

	redisCache, err := cache.NewClient(cfg.RedisURL)
	if err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisCache.Close()

	publisher := kafkastore.NewPublisher(cfg.KafkaBrokers, cfg.ExecutionTopic)
	defer publisher.Close()

	ruleStore := postgres.NewRuleStore(pg)
	executionStore := postgres.NewExecutionStore(pg)
	credentialStore := postgres.NewCredentialStore(pg)

	resolver := credentials.NewResolver(credentialStore, redisCache, cfg.Worker.CredentialTTL, logger)
	controlClient := control.NewClient(cfg.AdsAPIBaseURL, resolver, logger)
	metricsClient := metricsquery.NewClient(cfg.MetricsAPIBaseURL, logger)
	notifier := notification.NewTelegramNotifier(cfg.TelegramBotToken)

	evaluator := evaluate.NewEvaluator(logger)
	executor := execute.NewExecutor(controlClient, execute.DefaultConfig(), logger)
	orchestrator := orchestrate.NewOrchestrator(
		metricsClient, resolver, evaluator, executor,
		executionStore, ruleStore, notifier, publisher, logger,
	)

	scheduler := schedule.NewScheduler(cfg.Worker.ScheduleTolerance, logger)
	loop := worker.NewWorker(ruleStore, scheduler, orchestrator, cfg.Worker.TickInterval, logger)

	checker := health.NewChecker(cfg.Version)
	checker.Register("postgres", pg.Health)
	// The engine survives cache and audit-stream outages; they only
	// degrade the reported health.
	checker.RegisterOptional("redis", redisCache.Health)
	checker.RegisterOptional("kafka", publisher.Health)

	server := newHTTPServer(cfg.Port, checker)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")

	// Stop the tick loop first; an in-flight cycle finishes its remaining
	// steps before Stop returns.
	loop.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server forced to shutdown", "error", err)
	}

	slog.Info("worker stopped")
}

func newHTTPServer(port string, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		result := checker.Check(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if result.Status == health.StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		writeJSON(w, result)
	})

	return &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
