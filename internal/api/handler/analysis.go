package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/maraichr/ceindex/internal/queue"
	"github.com/maraichr/ceindex/internal/report"
	"github.com/maraichr/ceindex/internal/store/postgres"
	"github.com/maraichr/ceindex/pkg/apierr"
)

// AnalysisRuns is the run record store used by the handler.
type AnalysisRuns interface {
	CreateAnalysisRun(ctx context.Context, arg postgres.CreateAnalysisRunParams) (postgres.AnalysisRun, error)
	GetAnalysisRun(ctx context.Context, id uuid.UUID) (postgres.AnalysisRun, error)
}

// Enqueuer hands analyses to the workers.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg queue.AnalysisMessage) (string, error)
}

type AnalysisHandler struct {
	logger   *slog.Logger
	runs     AnalysisRuns
	reports  report.Store
	producer Enqueuer
}

func NewAnalysisHandler(logger *slog.Logger, runs AnalysisRuns, reports report.Store, producer Enqueuer) *AnalysisHandler {
	return &AnalysisHandler{logger: logger, runs: runs, reports: reports, producer: producer}
}

// Submit accepts a component tree, stores it and queues it for indexing.
func (h *AnalysisHandler) Submit(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, report.MaxReportSize)
	root, err := report.Decode(body)
	if err != nil {
		writeAPIError(w, h.logger, reportError(err))
		return
	}

	runID := uuid.New()
	object := report.ObjectName(runID)
	if err := report.Save(r.Context(), h.reports, object, root); err != nil {
		writeAPIError(w, h.logger, apierr.ReportUploadFailed(err))
		return
	}

	run, err := h.runs.CreateAnalysisRun(r.Context(), postgres.CreateAnalysisRunParams{
		ID:           runID,
		RootUUID:     root.UUID,
		ReportObject: object,
	})
	if err != nil {
		writeAPIError(w, h.logger, apierr.AnalysisCreateFailed(err))
		return
	}

	msgID, err := h.producer.Enqueue(r.Context(), queue.AnalysisMessage{
		RunID:        runID,
		RootUUID:     root.UUID,
		ReportObject: object,
		Attempt:      1,
	})
	if err != nil {
		writeAPIError(w, h.logger, apierr.AnalysisEnqueueFailed(err))
		return
	}

	h.logger.Info("analysis queued",
		slog.String("run_id", runID.String()),
		slog.String("root_uuid", root.UUID),
		slog.String("message_id", msgID))
	writeJSON(w, http.StatusAccepted, run)
}

func (h *AnalysisHandler) Get(w http.ResponseWriter, r *http.Request) {
	runID, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		writeAPIError(w, h.logger, apierr.InvalidRunID())
		return
	}

	run, err := h.runs.GetAnalysisRun(r.Context(), runID)
	if err != nil {
		if apierr.IsNotFound(err) {
			writeAPIError(w, h.logger, apierr.AnalysisNotFound())
		} else {
			writeAPIError(w, h.logger, apierr.InternalError(err))
		}
		return
	}

	writeJSON(w, http.StatusOK, run)
}
