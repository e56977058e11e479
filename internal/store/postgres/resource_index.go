package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// MinimumKeySize is the shortest substring stored in the resource index. Names
// shorter than this are stored whole.
const MinimumKeySize = 3

// ResourceIndexEntry is one row of the resource_index table.
type ResourceIndexEntry struct {
	Key               string
	Position          int32
	NameSize          int32
	ComponentUUID     string
	RootComponentUUID string
	Qualifier         string
}

// ResourceIndexEntries builds the substring rows for one component name: the
// lower-cased name is indexed from every position that leaves at least
// MinimumKeySize characters.
func ResourceIndexEntries(name, componentUUID, rootUUID, qualifier string) []ResourceIndexEntry {
	key := []rune(strings.ToLower(strings.TrimSpace(name)))
	if len(key) == 0 {
		return nil
	}

	entry := func(pos int) ResourceIndexEntry {
		return ResourceIndexEntry{
			Key:               string(key[pos:]),
			Position:          int32(pos),
			NameSize:          int32(len(key)),
			ComponentUUID:     componentUUID,
			RootComponentUUID: rootUUID,
			Qualifier:         qualifier,
		}
	}

	if len(key) < MinimumKeySize {
		return []ResourceIndexEntry{entry(0)}
	}
	entries := make([]ResourceIndexEntry, 0, len(key)-MinimumKeySize+1)
	for pos := 0; pos <= len(key)-MinimumKeySize; pos++ {
		entries = append(entries, entry(pos))
	}
	return entries
}

// DeleteResourceIndexByRoot removes every index row of a root.
func (q *Queries) DeleteResourceIndexByRoot(ctx context.Context, rootUUID string) error {
	_, err := q.db.Exec(ctx,
		`DELETE FROM resource_index WHERE root_component_uuid = $1`,
		rootUUID)
	return err
}

// InsertResourceIndex inserts entries in a single batch.
func (q *Queries) InsertResourceIndex(ctx context.Context, entries []ResourceIndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(
			`INSERT INTO resource_index
			   (kee, position, name_size, component_uuid, root_component_uuid, qualifier)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			e.Key, e.Position, e.NameSize, e.ComponentUUID, e.RootComponentUUID, e.Qualifier)
	}

	br := q.db.SendBatch(ctx, batch)
	defer br.Close()
	for i := range entries {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert resource index %q: %w", entries[i].Key, err)
		}
	}
	return br.Close()
}

// CountResourceIndexByRoot returns the number of index rows of a root.
func (q *Queries) CountResourceIndexByRoot(ctx context.Context, rootUUID string) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx,
		`SELECT count(*) FROM resource_index WHERE root_component_uuid = $1`, rootUUID).Scan(&n)
	return n, err
}
