package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	apihandler "github.com/maraichr/ceindex/internal/api/handler"
	apimw "github.com/maraichr/ceindex/internal/api/middleware"
	"github.com/maraichr/ceindex/internal/report"
	"github.com/maraichr/ceindex/internal/store"
)

// RouterDeps holds the dependencies of the analysis endpoints.
type RouterDeps struct {
	Reports  report.Store
	Producer apihandler.Enqueuer
}

func NewRouter(logger *slog.Logger, s *store.Store, deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(apimw.Logger(logger))
	r.Use(chimw.Recoverer)

	health := apihandler.NewHealthHandler(s.Pool())
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	r.Route("/api/v1", func(r chi.Router) {
		analyses := apihandler.NewAnalysisHandler(logger, s, deps.Reports, deps.Producer)
		r.Route("/analyses", func(r chi.Router) {
			r.Post("/", analyses.Submit)
			r.Get("/{runID}", analyses.Get)
		})
	})

	return r
}
