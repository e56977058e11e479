package steps

import (
	"context"
	"log/slog"

	"github.com/maraichr/ceindex/internal/pipeline"
)

// PersistComponentsStep writes every component of the tree to the relational
// store, replacing what was stored for the same root.
type PersistComponentsStep struct {
	writer ComponentWriter
	logger *slog.Logger
}

func NewPersistComponentsStep(writer ComponentWriter, logger *slog.Logger) *PersistComponentsStep {
	return &PersistComponentsStep{writer: writer, logger: logger}
}

func (s *PersistComponentsStep) Description() string { return "Persist components" }

func (s *PersistComponentsStep) Execute(ctx context.Context, rc *pipeline.RunContext) error {
	root, err := rootOf(rc)
	if err != nil {
		return pipeline.NewStepError(s.Description(), err)
	}

	rows := root.Flatten()
	if err := s.writer.ReplaceComponents(ctx, root.UUID, rows); err != nil {
		return pipeline.NewStepError(s.Description(), err)
	}

	s.logger.Info("components persisted",
		slog.String("root_uuid", root.UUID),
		slog.Int("components", len(rows)))
	return nil
}
