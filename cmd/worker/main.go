package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maraichr/ceindex/internal/config"
	"github.com/maraichr/ceindex/internal/graph"
	"github.com/maraichr/ceindex/internal/pause"
	"github.com/maraichr/ceindex/internal/pipeline"
	"github.com/maraichr/ceindex/internal/queue"
	"github.com/maraichr/ceindex/internal/report"
	"github.com/maraichr/ceindex/internal/steps"
	"github.com/maraichr/ceindex/internal/store"
	"github.com/maraichr/ceindex/internal/store/postgres"
	vk "github.com/maraichr/ceindex/internal/store/valkey"
	"github.com/maraichr/ceindex/internal/telemetry"
	"github.com/maraichr/ceindex/internal/worker"
)

func main() {
	_ = godotenv.Load(".env") // ignore error if .env missing

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := postgres.NewPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	s := store.New(pool)
	if err := s.EnsureSchema(ctx); err != nil {
		logger.Error("failed to apply schema", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Valkey
	vkClient, err := vk.NewClient(ctx, cfg.Valkey)
	if err != nil {
		logger.Error("failed to connect to valkey", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer vkClient.Close()
	logger.Info("connected to valkey")

	reports, err := report.NewStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to open report store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("report store ready", slog.String("source", cfg.Compute.ReportSource))

	// Neo4j (optional search index)
	var search steps.SearchIndex
	if cfg.Neo4j.Enabled {
		graphClient, err := graph.NewClient(cfg.Neo4j)
		if err != nil {
			logger.Error("failed to connect to neo4j", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer graphClient.Close(context.Background())
		if err := graphClient.Verify(ctx); err != nil {
			logger.Error("failed to reach neo4j", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := graphClient.EnsureIndexes(ctx); err != nil {
			logger.Warn("neo4j ensure indexes failed, sync may be slow", slog.String("error", err.Error()))
		}
		search = graph.NewComponentIndexer(s, graphClient, logger)
		logger.Info("connected to neo4j")
	} else {
		logger.Info("search index disabled")
	}

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)
	gate := pause.New(cfg.Compute.PauseTaskPath, cfg.Compute.PausePollInterval, logger)
	if gate.Enabled() {
		logger.Info("pause gate enabled", slog.String("path", gate.Path()))
	}

	runner := pipeline.NewRunner(
		steps.Default(steps.Config{
			Components: s,
			Relational: s,
			Search:     search,
			Logger:     logger,
		}),
		logger,
		pipeline.WithBeforeRun(gate),
		pipeline.WithPostRunTasks(pause.NewTask(gate)),
		pipeline.WithObserver(store.NewRunRecorder(s.Queries, logger)),
		pipeline.WithObserver(metrics),
	)
	logger.Info("pipeline ready", slog.Any("steps", runner.Descriptions()))

	producer := queue.NewProducer(vkClient, queue.DefaultStream)
	consumers := make([]worker.Consumer, cfg.Worker.Concurrency)
	for i := range consumers {
		c := queue.NewConsumer(vkClient, queue.DefaultStream, fmt.Sprintf("%s-%d", cfg.Worker.ID, i), logger)
		if i == 0 {
			if err := c.EnsureGroup(ctx); err != nil {
				logger.Error("failed to ensure consumer group", slog.String("error", err.Error()))
				os.Exit(1)
			}
		}
		consumers[i] = c
	}

	w := worker.New(runner, reports, producer, s, cfg.Worker.MaxAttempts, logger,
		worker.WithRetryCounter(metrics.Retries))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{Addr: cfg.Worker.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("serving metrics", slog.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", slog.String("error", err.Error()))
		}
	}()

	logger.Info("starting worker, consuming from stream",
		slog.String("stream", queue.DefaultStream.Name),
		slog.Int("concurrency", cfg.Worker.Concurrency))
	w.Serve(ctx, consumers...)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("worker stopped")
}
