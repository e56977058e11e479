package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/maraichr/ceindex/internal/store/postgres"
)

const batchSize = 500

// SyncComponents upserts component nodes and their CONTAINS relationships.
// Components must be ordered parents first, as ListComponentsByRoot returns them.
func (c *Client) SyncComponents(ctx context.Context, rootUUID string, components []postgres.Component) error {
	session := c.Session(ctx)
	defer session.Close(ctx)

	for i := 0; i < len(components); i += batchSize {
		end := min(i+batchSize, len(components))
		params := componentParams(rootUUID, components[i:end])

		_, err := neo4j.ExecuteWrite(ctx, session, func(tx neo4j.ManagedTransaction) (any, error) {
			if _, err := tx.Run(ctx, UpsertComponentNode, map[string]any{"components": params}); err != nil {
				return struct{}{}, err
			}
			_, err := tx.Run(ctx, LinkComponentToParent, map[string]any{"components": params})
			return struct{}{}, err
		})
		if err != nil {
			return fmt.Errorf("sync components batch %d: %w", i/batchSize, err)
		}
	}
	return nil
}

// DeleteStaleComponents removes nodes of rootUUID whose uuid is not in keep.
func (c *Client) DeleteStaleComponents(ctx context.Context, rootUUID string, keep []string) error {
	session := c.Session(ctx)
	defer session.Close(ctx)

	_, err := neo4j.ExecuteWrite(ctx, session, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, DeleteStaleComponents, map[string]any{
			"rootUuid": rootUUID,
			"keep":     keep,
		})
		return struct{}{}, err
	})
	return err
}

func componentParams(rootUUID string, components []postgres.Component) []map[string]any {
	params := make([]map[string]any, len(components))
	for i, comp := range components {
		params[i] = map[string]any{
			"uuid":       comp.UUID,
			"key":        comp.Key,
			"name":       comp.Name,
			"path":       deref(comp.Path),
			"qualifier":  comp.Qualifier,
			"depth":      int64(comp.Depth),
			"rootUuid":   rootUUID,
			"parentUuid": deref(comp.ParentUUID),
		}
	}
	return params
}

// deref maps nil to a Cypher null.
func deref(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
