package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/maraichr/ceindex/internal/store/postgres"
	"github.com/maraichr/ceindex/pkg/models"
)

// indexedQualifiers are the component types that get resource index rows.
var indexedQualifiers = map[string]bool{
	string(models.ComponentTypeProject): true,
	string(models.ComponentTypeModule):  true,
	string(models.ComponentTypeFile):    true,
	string(models.ComponentTypeView):    true,
	string(models.ComponentTypeSubview): true,
}

// IndexProject rebuilds the resource index of a root from its persisted components.
// The old rows are replaced in one transaction, so running it twice leaves the same rows.
func (s *Store) IndexProject(ctx context.Context, rootUUID string) error {
	return s.WithTx(ctx, func(q *postgres.Queries) error {
		return indexProject(ctx, q, rootUUID)
	})
}

func indexProject(ctx context.Context, q *postgres.Queries, rootUUID string) error {
	components, err := q.ListComponentsByRoot(ctx, rootUUID)
	if err != nil {
		return fmt.Errorf("list components: %w", err)
	}
	if len(components) == 0 {
		return fmt.Errorf("root %s has no persisted components: %w", rootUUID, pgx.ErrNoRows)
	}

	if err := q.DeleteResourceIndexByRoot(ctx, rootUUID); err != nil {
		return fmt.Errorf("delete resource index: %w", err)
	}
	if err := q.InsertResourceIndex(ctx, BuildResourceIndex(rootUUID, components)); err != nil {
		return fmt.Errorf("insert resource index: %w", err)
	}
	return nil
}

// BuildResourceIndex computes the resource index rows of the indexable components.
func BuildResourceIndex(rootUUID string, components []postgres.Component) []postgres.ResourceIndexEntry {
	var entries []postgres.ResourceIndexEntry
	for _, c := range components {
		if !indexedQualifiers[c.Qualifier] {
			continue
		}
		entries = append(entries, postgres.ResourceIndexEntries(c.Name, c.UUID, rootUUID, c.Qualifier)...)
	}
	return entries
}

// ReplaceComponents upserts the rows of a tree and deletes rows of the same root
// that are no longer part of it.
func (s *Store) ReplaceComponents(ctx context.Context, rootUUID string, rows []models.FlatComponent) error {
	params := ComponentParams(rootUUID, rows)
	keep := make([]string, len(rows))
	for i, r := range rows {
		keep[i] = r.UUID
	}

	return s.WithTx(ctx, func(q *postgres.Queries) error {
		if err := q.UpsertComponents(ctx, params); err != nil {
			return err
		}
		if _, err := q.DeleteComponentsNotIn(ctx, rootUUID, keep); err != nil {
			return fmt.Errorf("delete removed components: %w", err)
		}
		return nil
	})
}

// ComponentParams maps flattened tree rows to upsert parameters.
func ComponentParams(rootUUID string, rows []models.FlatComponent) []postgres.UpsertComponentParams {
	params := make([]postgres.UpsertComponentParams, len(rows))
	for i, r := range rows {
		var parent, path *string
		if r.ParentUUID != "" {
			p := r.ParentUUID
			parent = &p
		}
		if r.Path != "" {
			p := r.Path
			path = &p
		}
		params[i] = postgres.UpsertComponentParams{
			UUID:       r.UUID,
			RootUUID:   rootUUID,
			ParentUUID: parent,
			Key:        r.Key,
			Name:       r.Name,
			Path:       path,
			Qualifier:  string(r.Type),
			Depth:      int32(r.Depth),
		}
	}
	return params
}
