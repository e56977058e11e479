package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/maraichr/ceindex/internal/pipeline"
	"github.com/maraichr/ceindex/internal/store/postgres"
)

const recordTimeout = 5 * time.Second

// RunRecorder persists run progress to analysis_runs. Write failures are logged
// and never affect the run.
type RunRecorder struct {
	q      *postgres.Queries
	logger *slog.Logger
}

func NewRunRecorder(q *postgres.Queries, logger *slog.Logger) *RunRecorder {
	return &RunRecorder{q: q, logger: logger}
}

func (r *RunRecorder) RunStarted(ctx context.Context, rc *pipeline.RunContext) {
	ctx, cancel := detached(ctx)
	defer cancel()

	err := r.q.StartAnalysisRun(ctx, postgres.StartAnalysisRunParams{
		ID:       rc.RunID,
		RootUUID: rc.RootUUID(),
		Attempt:  int32(rc.Attempt),
	})
	if err != nil {
		r.logger.Error("record run start",
			slog.String("run_id", rc.RunID.String()),
			slog.String("error", err.Error()))
	}
}

func (r *RunRecorder) StepFinished(context.Context, *pipeline.RunContext, pipeline.StepTiming, error) {}

func (r *RunRecorder) RunFinished(ctx context.Context, outcome *pipeline.Outcome) {
	ctx, cancel := detached(ctx)
	defer cancel()

	if err := r.q.FinishAnalysisRun(ctx, FinishParams(outcome)); err != nil {
		r.logger.Error("record run finish",
			slog.String("run_id", outcome.RunID.String()),
			slog.String("error", err.Error()))
	}
}

// FinishParams maps an outcome to the analysis_runs update.
func FinishParams(outcome *pipeline.Outcome) postgres.FinishAnalysisRunParams {
	p := postgres.FinishAnalysisRunParams{
		ID:     outcome.RunID,
		Status: strings.ToLower(string(outcome.State)),
	}
	if outcome.State == pipeline.StateFailed {
		step := outcome.FailedStep
		p.FailedStep = &step
		if outcome.Err != nil {
			msg := outcome.Err.Error()
			p.ErrorMessage = &msg
		}
	}

	type timing struct {
		Description string `json:"description"`
		DurationMS  int64  `json:"duration_ms"`
	}
	timings := make([]timing, len(outcome.Steps))
	for i, s := range outcome.Steps {
		timings[i] = timing{Description: s.Description, DurationMS: s.DurationMillis()}
	}
	p.StepTimings, _ = json.Marshal(timings)
	return p
}

// detached keeps the record write alive after the run context was cancelled.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
}
