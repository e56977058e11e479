package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maraichr/ceindex/internal/component"
)

// Observer is notified of run progress. Implementations must not block for long
// and cannot fail a run.
type Observer interface {
	RunStarted(ctx context.Context, rc *RunContext)
	StepFinished(ctx context.Context, rc *RunContext, timing StepTiming, err error)
	RunFinished(ctx context.Context, outcome *Outcome)
}

// Clock makes step timings deterministic in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Runner executes an ordered list of steps against one analysis tree at a time.
//
// Steps run strictly in the configured order and the first failure aborts the
// run: remaining steps are not executed and nothing is retried. Ordering between
// stores (relational before search) is expressed only by the order of steps.
type Runner struct {
	steps     []Step
	before    Gate
	postTasks []PostRunTask
	observers []Observer
	clock     Clock
	logger    *slog.Logger
}

type Option func(*Runner)

// WithBeforeRun installs a gate consulted before the first step.
func WithBeforeRun(g Gate) Option {
	return func(r *Runner) { r.before = g }
}

func WithPostRunTasks(tasks ...PostRunTask) Option {
	return func(r *Runner) { r.postTasks = append(r.postTasks, tasks...) }
}

func WithObserver(o Observer) Option {
	return func(r *Runner) { r.observers = append(r.observers, o) }
}

func WithClock(c Clock) Option {
	return func(r *Runner) { r.clock = c }
}

func NewRunner(steps []Step, logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		steps:  append([]Step(nil), steps...),
		clock:  systemClock{},
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Descriptions lists the configured steps in execution order.
func (r *Runner) Descriptions() []string {
	out := make([]string, len(r.steps))
	for i, s := range r.steps {
		out[i] = s.Description()
	}
	return out
}

// Run executes every step for rc. A RunContext can be run only once.
//
// On step failure the returned outcome is FAILED and the error is a *PipelineError.
// On success the outcome is COMPLETED; the error is non-nil only when a post-run
// task was interrupted by ctx cancellation.
func (r *Runner) Run(ctx context.Context, rc *RunContext) (*Outcome, error) {
	if rc == nil {
		return nil, &ConfigurationError{Err: errors.New("nil run context")}
	}
	if !rc.started.CompareAndSwap(false, true) {
		return nil, ErrRunAlreadyStarted
	}
	if rc.Tree == nil {
		return nil, &ConfigurationError{Err: component.ErrRootNotSet}
	}
	root, err := rc.Tree.Root()
	if err != nil {
		return nil, &ConfigurationError{Err: err}
	}

	outcome := &Outcome{
		RunID:       rc.RunID,
		RootUUID:    root.UUID,
		State:       StateNotStarted,
		StartedAt:   r.clock.Now(),
		Steps:       make([]StepTiming, 0, len(r.steps)),
		FailedIndex: -1,
	}
	logger := r.logger.With(
		slog.String("run_id", rc.RunID.String()),
		slog.String("root_uuid", root.UUID))

	if r.before != nil {
		if err := r.before.Wait(ctx); err != nil {
			logger.Warn("pipeline not started", slog.String("error", err.Error()))
			return outcome, fmt.Errorf("before run: %w", err)
		}
	}

	outcome.State = StateRunning
	logger.Info("pipeline started", slog.Int("steps", len(r.steps)))
	for _, o := range r.observers {
		o.RunStarted(ctx, rc)
	}

	for i, step := range r.steps {
		desc := step.Description()

		if err := ctx.Err(); err != nil {
			r.fail(ctx, logger, outcome, i, desc, err)
			return outcome, outcome.Err
		}

		start := r.clock.Now()
		err := step.Execute(ctx, rc)
		timing := StepTiming{Description: desc, Duration: r.clock.Now().Sub(start)}

		for _, o := range r.observers {
			o.StepFinished(ctx, rc, timing, err)
		}
		if err != nil {
			r.fail(ctx, logger, outcome, i, desc, NewStepError(desc, err))
			return outcome, outcome.Err
		}

		outcome.Steps = append(outcome.Steps, timing)
		logger.Info("step completed",
			slog.String("step", desc),
			slog.Int64("duration_ms", timing.DurationMillis()))
	}

	outcome.State = StateCompleted
	logger.Info("pipeline completed", slog.Int64("duration_ms", outcome.Total().Milliseconds()))
	for _, o := range r.observers {
		o.RunFinished(ctx, outcome)
	}

	return outcome, r.runPostTasks(ctx, logger, outcome)
}

func (r *Runner) fail(ctx context.Context, logger *slog.Logger, outcome *Outcome, index int, desc string, err error) {
	outcome.State = StateFailed
	outcome.FailedStep = desc
	outcome.FailedIndex = index
	outcome.Err = &PipelineError{Step: desc, Index: index, Err: err}

	logger.Error("pipeline failed",
		slog.String("step", desc),
		slog.Int("step_index", index),
		slog.String("error", err.Error()))
	for _, o := range r.observers {
		o.RunFinished(ctx, outcome)
	}
}

// runPostTasks runs tasks in order. Failures are logged and skipped, except
// cancellation, which stops the remaining tasks and is returned.
func (r *Runner) runPostTasks(ctx context.Context, logger *slog.Logger, outcome *Outcome) error {
	for _, task := range r.postTasks {
		err := task.Finished(ctx, outcome)
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			logger.Warn("post-run task interrupted", slog.String("task", task.Description()))
			return fmt.Errorf("post-run task %q: %w", task.Description(), err)
		}
		logger.Error("post-run task failed",
			slog.String("task", task.Description()),
			slog.String("error", err.Error()))
	}
	return nil
}
