package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AnalysisRun is the DB model for the analysis_runs table.
type AnalysisRun struct {
	ID           uuid.UUID       `json:"id"`
	RootUUID     string          `json:"root_uuid"`
	ReportObject string          `json:"report_object"`
	Status       string          `json:"status"`
	Attempt      int32           `json:"attempt"`
	FailedStep   *string         `json:"failed_step"`
	ErrorMessage *string         `json:"error_message"`
	StepTimings  json.RawMessage `json:"step_timings"`
	CreatedAt    time.Time       `json:"created_at"`
	StartedAt    *time.Time      `json:"started_at"`
	FinishedAt   *time.Time      `json:"finished_at"`
}

const analysisRunColumns = `id, root_uuid, report_object, status, attempt, failed_step,
        error_message, step_timings, created_at, started_at, finished_at`

func scanAnalysisRun(row interface{ Scan(...any) error }) (AnalysisRun, error) {
	var i AnalysisRun
	err := row.Scan(
		&i.ID, &i.RootUUID, &i.ReportObject, &i.Status, &i.Attempt, &i.FailedStep,
		&i.ErrorMessage, &i.StepTimings, &i.CreatedAt, &i.StartedAt, &i.FinishedAt,
	)
	return i, err
}

type CreateAnalysisRunParams struct {
	ID           uuid.UUID
	RootUUID     string
	ReportObject string
}

// CreateAnalysisRun inserts a queued run.
func (q *Queries) CreateAnalysisRun(ctx context.Context, arg CreateAnalysisRunParams) (AnalysisRun, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO analysis_runs (id, root_uuid, report_object, status)
		 VALUES ($1, $2, $3, 'queued')
		 RETURNING `+analysisRunColumns,
		arg.ID, arg.RootUUID, arg.ReportObject)
	return scanAnalysisRun(row)
}

// GetAnalysisRun returns pgx.ErrNoRows when the run does not exist.
func (q *Queries) GetAnalysisRun(ctx context.Context, id uuid.UUID) (AnalysisRun, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+analysisRunColumns+` FROM analysis_runs WHERE id = $1`, id)
	return scanAnalysisRun(row)
}

type StartAnalysisRunParams struct {
	ID       uuid.UUID
	RootUUID string
	Attempt  int32
}

// StartAnalysisRun marks a run as running, creating it when the API did not.
// Failure details of a previous attempt are cleared.
func (q *Queries) StartAnalysisRun(ctx context.Context, arg StartAnalysisRunParams) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO analysis_runs (id, root_uuid, status, attempt, started_at)
		 VALUES ($1, $2, 'running', $3, now())
		 ON CONFLICT (id) DO UPDATE SET
		   status = 'running',
		   attempt = EXCLUDED.attempt,
		   started_at = now(),
		   finished_at = NULL,
		   failed_step = NULL,
		   error_message = NULL`,
		arg.ID, arg.RootUUID, arg.Attempt)
	return err
}

type FinishAnalysisRunParams struct {
	ID           uuid.UUID
	Status       string
	FailedStep   *string
	ErrorMessage *string
	StepTimings  []byte
}

func (q *Queries) FinishAnalysisRun(ctx context.Context, arg FinishAnalysisRunParams) error {
	timings := arg.StepTimings
	if len(timings) == 0 {
		timings = []byte("[]")
	}
	_, err := q.db.Exec(ctx,
		`UPDATE analysis_runs
		 SET status = $2, failed_step = $3, error_message = $4,
		     step_timings = $5, finished_at = now()
		 WHERE id = $1`,
		arg.ID, arg.Status, arg.FailedStep, arg.ErrorMessage, timings)
	return err
}
