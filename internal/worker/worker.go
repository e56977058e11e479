// Package worker applies queued analyses by running the indexing pipeline.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/maraichr/ceindex/internal/component"
	"github.com/maraichr/ceindex/internal/pipeline"
	"github.com/maraichr/ceindex/internal/queue"
	"github.com/maraichr/ceindex/internal/report"
	"github.com/maraichr/ceindex/internal/store/postgres"
)

// Step names recorded for failures outside the pipeline.
const (
	loadReportStep    = "Load report"
	startPipelineStep = "Start pipeline"
)

// Runner executes the pipeline for one run context.
type Runner interface {
	Run(ctx context.Context, rc *pipeline.RunContext) (*pipeline.Outcome, error)
}

// Enqueuer re-enqueues analyses for another attempt.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg queue.AnalysisMessage) (string, error)
}

// RunFinisher records failures that happen before the pipeline starts.
type RunFinisher interface {
	FinishAnalysisRun(ctx context.Context, arg postgres.FinishAnalysisRunParams) error
}

// Consumer delivers queued analyses to a handler.
type Consumer interface {
	Consume(ctx context.Context, handler queue.Handler) error
}

// RetryCounter is incremented for every re-enqueued analysis.
type RetryCounter interface {
	Inc()
}

type Worker struct {
	runner      Runner
	reports     report.Store
	producer    Enqueuer
	runs        RunFinisher
	retries     RetryCounter
	maxAttempts int
	logger      *slog.Logger
}

type Option func(*Worker)

func WithRetryCounter(c RetryCounter) Option {
	return func(w *Worker) { w.retries = c }
}

func New(runner Runner, reports report.Store, producer Enqueuer, runs RunFinisher, maxAttempts int, logger *slog.Logger, opts ...Option) *Worker {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	w := &Worker{
		runner:      runner,
		reports:     reports,
		producer:    producer,
		runs:        runs,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Serve runs every consumer until ctx is done.
func (w *Worker) Serve(ctx context.Context, consumers ...Consumer) {
	var wg sync.WaitGroup
	for i, c := range consumers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.logger.Info("consumer started", slog.Int("consumer", i))
			if err := c.Consume(ctx, w.Handle); err != nil && ctx.Err() == nil {
				w.logger.Error("consumer error", slog.Int("consumer", i), slog.String("error", err.Error()))
			}
		}()
	}
	wg.Wait()
}

// Handle applies one analysis. A nil return acknowledges the message; an error
// leaves it pending so it is redelivered after a restart.
func (w *Worker) Handle(ctx context.Context, msg queue.AnalysisMessage) error {
	logger := w.logger.With(
		slog.String("run_id", msg.RunID.String()),
		slog.Int("attempt", msg.Attempt))

	root, err := report.Load(ctx, w.reports, msg.ReportObject)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		if errors.Is(err, report.ErrInvalidReport) {
			logger.Error("analysis rejected", slog.String("error", err.Error()))
			w.recordFailure(ctx, msg, loadReportStep, err)
			return nil
		}
		if msg.Attempt >= w.maxAttempts {
			// the pipeline never started, so no observer recorded the run
			w.recordFailure(ctx, msg, loadReportStep, err)
		}
		return w.retry(ctx, logger, msg, err)
	}

	holder := component.NewTreeRootHolder()
	if err := holder.SetRoot(root); err != nil {
		logger.Error("analysis rejected", slog.String("error", err.Error()))
		w.recordFailure(ctx, msg, loadReportStep, err)
		return nil
	}

	rc := pipeline.NewRunContext(msg.RunID, holder)
	rc.ReportObject = msg.ReportObject
	rc.Attempt = msg.Attempt

	outcome, err := w.runner.Run(ctx, rc)
	switch {
	case err == nil:
		return nil
	case outcome != nil && outcome.State == pipeline.StateCompleted:
		// indexes are written; only a post-run task was interrupted
		logger.Warn("analysis completed, post-run task interrupted", slog.String("error", err.Error()))
		return nil
	case ctx.Err() != nil:
		return err
	case pipeline.IsConfigurationError(err):
		logger.Error("analysis not runnable", slog.String("error", err.Error()))
		w.recordFailure(ctx, msg, startPipelineStep, err)
		return nil
	default:
		return w.retry(ctx, logger, msg, err)
	}
}

func (w *Worker) retry(ctx context.Context, logger *slog.Logger, msg queue.AnalysisMessage, cause error) error {
	if msg.Attempt >= w.maxAttempts {
		logger.Error("analysis failed, giving up",
			slog.Int("max_attempts", w.maxAttempts),
			slog.String("error", cause.Error()))
		return nil
	}

	next := msg.Retry()
	if _, err := w.producer.Enqueue(ctx, next); err != nil {
		return fmt.Errorf("re-enqueue run %s: %w", msg.RunID, err)
	}
	if w.retries != nil {
		w.retries.Inc()
	}
	logger.Warn("analysis failed, re-enqueued",
		slog.Int("next_attempt", next.Attempt),
		slog.String("error", cause.Error()))
	return nil
}

func (w *Worker) recordFailure(ctx context.Context, msg queue.AnalysisMessage, step string, cause error) {
	errMsg := cause.Error()
	err := w.runs.FinishAnalysisRun(context.WithoutCancel(ctx), postgres.FinishAnalysisRunParams{
		ID:           msg.RunID,
		Status:       "failed",
		FailedStep:   &step,
		ErrorMessage: &errMsg,
	})
	if err != nil {
		w.logger.Error("record run failure",
			slog.String("run_id", msg.RunID.String()),
			slog.String("error", err.Error()))
	}
}
