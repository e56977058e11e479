// Package steps holds the pipeline steps that apply an analysis tree to the
// relational and search indexes.
package steps

import (
	"context"
	"errors"
	"log/slog"

	"github.com/maraichr/ceindex/internal/pipeline"
	"github.com/maraichr/ceindex/pkg/models"
)

// RelationalIndex rebuilds the relational index of a root. Calls must be idempotent per root.
type RelationalIndex interface {
	IndexProject(ctx context.Context, rootUUID string) error
}

// SearchIndex rebuilds the search index of a root. Calls must be idempotent per root.
type SearchIndex interface {
	Index(ctx context.Context, rootUUID string) error
}

// ComponentWriter replaces the persisted components of a root.
type ComponentWriter interface {
	ReplaceComponents(ctx context.Context, rootUUID string, rows []models.FlatComponent) error
}

// Config names the stores the default pipeline writes to. Search is optional.
type Config struct {
	Components ComponentWriter
	Relational RelationalIndex
	Search     SearchIndex
	Logger     *slog.Logger
}

// Default returns the standard step order: components are persisted, then the
// relational index and the search index are rebuilt from them, relational first.
func Default(cfg Config) []pipeline.Step {
	return []pipeline.Step{
		NewPersistComponentsStep(cfg.Components, cfg.Logger),
		NewIndexComponentsStep(cfg.Relational, cfg.Search, cfg.Logger),
	}
}

var errNoTree = errors.New("run context has no component tree")

func rootOf(rc *pipeline.RunContext) (*models.Component, error) {
	if rc == nil || rc.Tree == nil {
		return nil, &pipeline.ConfigurationError{Err: errNoTree}
	}
	root, err := rc.Tree.Root()
	if err != nil {
		return nil, &pipeline.ConfigurationError{Err: err}
	}
	return root, nil
}
