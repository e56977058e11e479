package pause

import (
	"context"

	"github.com/maraichr/ceindex/internal/pipeline"
)

// Task holds a completed analysis at the gate before the worker moves on.
type Task struct {
	gate *Gate
}

func NewTask(g *Gate) *Task {
	return &Task{gate: g}
}

func (t *Task) Description() string { return "Pause analysis" }

func (t *Task) Finished(ctx context.Context, _ *pipeline.Outcome) error {
	return t.gate.Wait(ctx)
}
