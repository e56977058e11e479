package steps

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maraichr/ceindex/internal/pipeline"
)

// IndexComponentsStep indexes the analysed root in the relational index and then,
// when configured, in the search index. The search index is not touched when the
// relational call fails.
type IndexComponentsStep struct {
	relational RelationalIndex
	search     SearchIndex
	logger     *slog.Logger
}

// NewIndexComponentsStep builds the step. search may be nil.
func NewIndexComponentsStep(relational RelationalIndex, search SearchIndex, logger *slog.Logger) *IndexComponentsStep {
	return &IndexComponentsStep{relational: relational, search: search, logger: logger}
}

func (s *IndexComponentsStep) Description() string { return "Index components" }

func (s *IndexComponentsStep) Execute(ctx context.Context, rc *pipeline.RunContext) error {
	root, err := rootOf(rc)
	if err != nil {
		return pipeline.NewStepError(s.Description(), err)
	}

	if err := s.relational.IndexProject(ctx, root.UUID); err != nil {
		return pipeline.NewStepError(s.Description(), fmt.Errorf("relational index: %w", err))
	}
	s.logger.Debug("relational index updated", slog.String("root_uuid", root.UUID))

	if s.search == nil {
		return nil
	}
	if err := s.search.Index(ctx, root.UUID); err != nil {
		return pipeline.NewStepError(s.Description(), fmt.Errorf("search index: %w", err))
	}
	return nil
}

// IndexSearchStep only writes the search index. Place it after the steps that
// write the relational index.
type IndexSearchStep struct {
	search SearchIndex
}

func NewIndexSearchStep(search SearchIndex) *IndexSearchStep {
	return &IndexSearchStep{search: search}
}

func (s *IndexSearchStep) Description() string { return "Index components in search" }

func (s *IndexSearchStep) Execute(ctx context.Context, rc *pipeline.RunContext) error {
	root, err := rootOf(rc)
	if err != nil {
		return pipeline.NewStepError(s.Description(), err)
	}
	return pipeline.NewStepError(s.Description(), s.search.Index(ctx, root.UUID))
}
