package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Component is the DB model for the components table.
type Component struct {
	UUID       string    `json:"uuid"`
	RootUUID   string    `json:"root_uuid"`
	ParentUUID *string   `json:"parent_uuid"`
	Key        string    `json:"key"`
	Name       string    `json:"name"`
	Path       *string   `json:"path"`
	Qualifier  string    `json:"qualifier"`
	Depth      int32     `json:"depth"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type UpsertComponentParams struct {
	UUID       string
	RootUUID   string
	ParentUUID *string
	Key        string
	Name       string
	Path       *string
	Qualifier  string
	Depth      int32
}

const upsertComponent = `INSERT INTO components
   (uuid, root_uuid, parent_uuid, kee, name, path, qualifier, depth, updated_at)
 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
 ON CONFLICT (uuid) DO UPDATE SET
   root_uuid = EXCLUDED.root_uuid,
   parent_uuid = EXCLUDED.parent_uuid,
   kee = EXCLUDED.kee,
   name = EXCLUDED.name,
   path = EXCLUDED.path,
   qualifier = EXCLUDED.qualifier,
   depth = EXCLUDED.depth,
   updated_at = now()`

// UpsertComponents writes all rows in a single batch round trip.
func (q *Queries) UpsertComponents(ctx context.Context, rows []UpsertComponentParams) error {
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(upsertComponent,
			r.UUID, r.RootUUID, r.ParentUUID, r.Key, r.Name, r.Path, r.Qualifier, r.Depth)
	}

	br := q.db.SendBatch(ctx, batch)
	defer br.Close()
	for i := range rows {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert component %s: %w", rows[i].UUID, err)
		}
	}
	return br.Close()
}

// DeleteComponentsNotIn removes components of a root that are not listed in keep.
// Returns the number of deleted rows.
func (q *Queries) DeleteComponentsNotIn(ctx context.Context, rootUUID string, keep []string) (int64, error) {
	tag, err := q.db.Exec(ctx,
		`DELETE FROM components
		 WHERE root_uuid = $1 AND NOT (uuid = ANY($2::text[]))`,
		rootUUID, keep)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListComponentsByRoot returns every component of a root ordered by depth, root first.
func (q *Queries) ListComponentsByRoot(ctx context.Context, rootUUID string) ([]Component, error) {
	rows, err := q.db.Query(ctx,
		`SELECT uuid, root_uuid, parent_uuid, kee, name, path, qualifier, depth, updated_at
		 FROM components
		 WHERE root_uuid = $1
		 ORDER BY depth, uuid`,
		rootUUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Component
	for rows.Next() {
		var i Component
		if err := rows.Scan(
			&i.UUID, &i.RootUUID, &i.ParentUUID, &i.Key, &i.Name,
			&i.Path, &i.Qualifier, &i.Depth, &i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

// CountComponentsByRoot returns the number of persisted components of a root.
func (q *Queries) CountComponentsByRoot(ctx context.Context, rootUUID string) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx,
		`SELECT count(*) FROM components WHERE root_uuid = $1`, rootUUID).Scan(&n)
	return n, err
}
