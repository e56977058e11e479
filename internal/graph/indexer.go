package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maraichr/ceindex/internal/store/postgres"
)

// ErrNoComponents is returned when a root has nothing persisted to index.
var ErrNoComponents = errors.New("no persisted components for root")

// ComponentLister reads the persisted components of a root.
type ComponentLister interface {
	ListComponentsByRoot(ctx context.Context, rootUUID string) ([]postgres.Component, error)
}

// ComponentGraph is the write side of the search index. *Client implements it.
type ComponentGraph interface {
	SyncComponents(ctx context.Context, rootUUID string, components []postgres.Component) error
	DeleteStaleComponents(ctx context.Context, rootUUID string, keep []string) error
}

// ComponentIndexer mirrors the relational components of a root into the search index.
type ComponentIndexer struct {
	components ComponentLister
	graph      ComponentGraph
	logger     *slog.Logger
}

func NewComponentIndexer(components ComponentLister, graph ComponentGraph, logger *slog.Logger) *ComponentIndexer {
	return &ComponentIndexer{components: components, graph: graph, logger: logger}
}

// Index upserts every component of rootUUID and drops nodes that left the tree.
// Re-indexing the same root converges to the same graph.
func (i *ComponentIndexer) Index(ctx context.Context, rootUUID string) error {
	components, err := i.components.ListComponentsByRoot(ctx, rootUUID)
	if err != nil {
		return fmt.Errorf("list components: %w", err)
	}
	if len(components) == 0 {
		return fmt.Errorf("%w: %s", ErrNoComponents, rootUUID)
	}

	if err := i.graph.SyncComponents(ctx, rootUUID, components); err != nil {
		return err
	}

	keep := make([]string, len(components))
	for j, c := range components {
		keep[j] = c.UUID
	}
	if err := i.graph.DeleteStaleComponents(ctx, rootUUID, keep); err != nil {
		return fmt.Errorf("delete stale components: %w", err)
	}

	i.logger.Info("search index updated",
		slog.String("root_uuid", rootUUID),
		slog.Int("components", len(components)))
	return nil
}
