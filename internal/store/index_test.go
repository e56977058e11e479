package store

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/maraichr/ceindex/internal/pipeline"
	"github.com/maraichr/ceindex/internal/store/postgres"
	"github.com/maraichr/ceindex/pkg/models"
)

func TestResourceIndexEntries(t *testing.T) {
	entries := postgres.ResourceIndexEntries("  Struts ", "c1", "r1", "PROJECT")
	want := []string{"struts", "truts", "ruts", "uts"}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, e := range entries {
		if e.Key != want[i] {
			t.Errorf("entry %d: expected key %q, got %q", i, want[i], e.Key)
		}
		if int(e.Position) != i {
			t.Errorf("entry %d: expected position %d, got %d", i, i, e.Position)
		}
		if e.NameSize != 6 || e.ComponentUUID != "c1" || e.RootComponentUUID != "r1" || e.Qualifier != "PROJECT" {
			t.Errorf("entry %d: unexpected fields %+v", i, e)
		}
	}
}

func TestResourceIndexEntriesShortName(t *testing.T) {
	entries := postgres.ResourceIndexEntries("Ab", "c1", "r1", "FILE")
	if len(entries) != 1 || entries[0].Key != "ab" || entries[0].Position != 0 {
		t.Fatalf("expected single whole-name entry, got %+v", entries)
	}
	if got := postgres.ResourceIndexEntries("   ", "c1", "r1", "FILE"); got != nil {
		t.Errorf("expected no entries for blank name, got %+v", got)
	}
}

func TestBuildResourceIndexSkipsDirectories(t *testing.T) {
	components := []postgres.Component{
		{UUID: "p", Name: "abc", Qualifier: "PROJECT"},
		{UUID: "d", Name: "src/main", Qualifier: "DIRECTORY"},
		{UUID: "f", Name: "Foo", Qualifier: "FILE"},
	}
	entries := BuildResourceIndex("p", components)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.ComponentUUID == "d" {
			t.Errorf("directory should not be indexed")
		}
		if e.RootComponentUUID != "p" {
			t.Errorf("expected root p, got %s", e.RootComponentUUID)
		}
	}
}

func TestComponentParams(t *testing.T) {
	root := models.NewBuilder(models.ComponentTypeProject, "org:proj").
		SetUUID("root").
		AddChildren(models.NewBuilder(models.ComponentTypeFile, "org:proj:Foo.java").
			SetUUID("file").SetPath("src/Foo.java").Build()).
		Build()

	params := ComponentParams("root", root.Flatten())
	if len(params) != 2 {
		t.Fatalf("expected 2 params, got %d", len(params))
	}
	if params[0].ParentUUID != nil || params[0].Path != nil {
		t.Errorf("root should have no parent or path: %+v", params[0])
	}
	if params[1].ParentUUID == nil || *params[1].ParentUUID != "root" {
		t.Errorf("expected parent root, got %v", params[1].ParentUUID)
	}
	if params[1].Path == nil || *params[1].Path != "src/Foo.java" {
		t.Errorf("expected path src/Foo.java, got %v", params[1].Path)
	}
	if params[1].Depth != 1 || params[1].Qualifier != "FILE" || params[1].RootUUID != "root" {
		t.Errorf("unexpected params %+v", params[1])
	}
}

func TestFinishParams(t *testing.T) {
	id := uuid.New()
	failed := &pipeline.Outcome{
		RunID:      id,
		State:      pipeline.StateFailed,
		Steps:      []pipeline.StepTiming{{Description: "Persist components", Duration: 12 * time.Millisecond}},
		FailedStep: "Index components",
		Err:        errors.New("boom"),
	}

	p := FinishParams(failed)
	if p.ID != id || p.Status != "failed" {
		t.Errorf("unexpected id/status: %v %s", p.ID, p.Status)
	}
	if p.FailedStep == nil || *p.FailedStep != "Index components" {
		t.Errorf("expected failed step, got %v", p.FailedStep)
	}
	if p.ErrorMessage == nil || *p.ErrorMessage != "boom" {
		t.Errorf("expected error message, got %v", p.ErrorMessage)
	}

	var timings []map[string]any
	if err := json.Unmarshal(p.StepTimings, &timings); err != nil {
		t.Fatalf("unmarshal timings: %v", err)
	}
	if len(timings) != 1 || timings[0]["duration_ms"] != float64(12) {
		t.Errorf("unexpected timings %v", timings)
	}

	done := FinishParams(&pipeline.Outcome{RunID: id, State: pipeline.StateCompleted})
	if done.Status != "completed" || done.FailedStep != nil || done.ErrorMessage != nil {
		t.Errorf("unexpected completed params %+v", done)
	}
	if string(done.StepTimings) != "[]" {
		t.Errorf("expected empty timings array, got %s", done.StepTimings)
	}
}
