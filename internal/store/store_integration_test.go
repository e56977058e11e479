//go:build integration

package store

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maraichr/ceindex/internal/component"
	"github.com/maraichr/ceindex/internal/pipeline"
	"github.com/maraichr/ceindex/pkg/models"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Fatal("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		t.Skipf("postgres ping failed: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	s := New(pool)
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return s
}

func testTree() *models.Component {
	return models.NewBuilder(models.ComponentTypeProject, "org:struts").
		SetUUID(uuid.NewString()).
		SetName("Struts").
		AddChildren(
			models.NewBuilder(models.ComponentTypeDirectory, "org:struts:src").
				SetUUID(uuid.NewString()).
				SetPath("src").
				AddChildren(models.NewBuilder(models.ComponentTypeFile, "org:struts:src/Action.java").
					SetUUID(uuid.NewString()).
					SetName("Action.java").
					SetPath("src/Action.java").
					Build()).
				Build(),
		).
		Build()
}

func cleanupRoot(t *testing.T, s *Store, rootUUID string) {
	t.Cleanup(func() {
		ctx := context.Background()
		_ = s.DeleteResourceIndexByRoot(ctx, rootUUID)
		_, _ = s.DeleteComponentsNotIn(ctx, rootUUID, nil)
	})
}

func TestIndexProjectIsIdempotent(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	root := testTree()
	cleanupRoot(t, s, root.UUID)

	if err := s.ReplaceComponents(ctx, root.UUID, root.Flatten()); err != nil {
		t.Fatalf("replace components: %v", err)
	}
	if err := s.IndexProject(ctx, root.UUID); err != nil {
		t.Fatalf("index project: %v", err)
	}
	first, err := s.CountResourceIndexByRoot(ctx, root.UUID)
	if err != nil {
		t.Fatal(err)
	}
	// "struts" gives 4 rows, "action.java" gives 9; the directory is skipped.
	if first != 13 {
		t.Errorf("expected 13 index rows, got %d", first)
	}

	if err := s.IndexProject(ctx, root.UUID); err != nil {
		t.Fatalf("second index project: %v", err)
	}
	second, err := s.CountResourceIndexByRoot(ctx, root.UUID)
	if err != nil {
		t.Fatal(err)
	}
	if second != first {
		t.Errorf("expected %d rows after reindex, got %d", first, second)
	}
}

func TestIndexProjectUnknownRoot(t *testing.T) {
	s := setupStore(t)
	err := s.IndexProject(context.Background(), uuid.NewString())
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected pgx.ErrNoRows, got %v", err)
	}
}

func TestReplaceComponentsRemovesStaleRows(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	root := testTree()
	cleanupRoot(t, s, root.UUID)

	if err := s.ReplaceComponents(ctx, root.UUID, root.Flatten()); err != nil {
		t.Fatal(err)
	}
	root.Children = nil
	if err := s.ReplaceComponents(ctx, root.UUID, root.Flatten()); err != nil {
		t.Fatal(err)
	}

	n, err := s.CountComponentsByRoot(ctx, root.UUID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected only the root to remain, got %d rows", n)
	}
}

func TestRunRecorder(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	holder := component.NewTreeRootHolder()
	root := testTree()
	if err := holder.SetRoot(root); err != nil {
		t.Fatal(err)
	}
	rc := pipeline.NewRunContext(uuid.New(), holder)
	rc.Attempt = 2

	rec := NewRunRecorder(s.Queries, slog.New(slog.DiscardHandler))
	rec.RunStarted(ctx, rc)

	run, err := s.GetAnalysisRun(ctx, rc.RunID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run.Status != "running" || run.Attempt != 2 || run.RootUUID != root.UUID {
		t.Errorf("unexpected started run %+v", run)
	}

	rec.RunFinished(ctx, &pipeline.Outcome{
		RunID:      rc.RunID,
		RootUUID:   root.UUID,
		State:      pipeline.StateFailed,
		FailedStep: "Index components",
		Err:        errors.New("index failed"),
	})

	run, err = s.GetAnalysisRun(ctx, rc.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != "failed" || run.FailedStep == nil || *run.FailedStep != "Index components" {
		t.Errorf("unexpected finished run %+v", run)
	}
	if run.FinishedAt == nil {
		t.Error("expected finished_at to be set")
	}
}
