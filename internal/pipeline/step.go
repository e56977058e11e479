package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/maraichr/ceindex/internal/component"
)

// Step represents a unit of work in the analysis pipeline.
// Steps are built once and shared by every run; per-run data comes from the RunContext.
type Step interface {
	Description() string
	Execute(ctx context.Context, rc *RunContext) error
}

// PostRunTask is invoked after a run completes successfully.
type PostRunTask interface {
	Description() string
	Finished(ctx context.Context, outcome *Outcome) error
}

// Gate blocks until processing may proceed or ctx is cancelled.
type Gate interface {
	Wait(ctx context.Context) error
}

// RunContext carries the state of one pipeline run.
type RunContext struct {
	RunID uuid.UUID
	Tree  *component.TreeRootHolder

	// Set by the queue consumer; informational only.
	ReportObject string
	Attempt      int

	started atomic.Bool
}

func NewRunContext(runID uuid.UUID, tree *component.TreeRootHolder) *RunContext {
	return &RunContext{RunID: runID, Tree: tree}
}

// RootUUID returns the root uuid, or "" when the tree is not set.
func (rc *RunContext) RootUUID() string {
	if rc.Tree == nil {
		return ""
	}
	root, err := rc.Tree.Root()
	if err != nil {
		return ""
	}
	return root.UUID
}

type State string

const (
	StateNotStarted State = "NOT_STARTED"
	StateRunning    State = "RUNNING"
	StateCompleted  State = "COMPLETED"
	StateFailed     State = "FAILED"
)

// StepTiming is the elapsed time of one executed step.
type StepTiming struct {
	Description string        `json:"description"`
	Duration    time.Duration `json:"duration"`
}

func (s StepTiming) DurationMillis() int64 {
	return s.Duration.Milliseconds()
}

// Outcome is the record of a finished run.
type Outcome struct {
	RunID     uuid.UUID    `json:"run_id"`
	RootUUID  string       `json:"root_uuid"`
	State     State        `json:"state"`
	StartedAt time.Time    `json:"started_at"`
	Steps     []StepTiming `json:"steps"`

	// Set when State is FAILED.
	FailedStep  string `json:"failed_step,omitempty"`
	FailedIndex int    `json:"failed_index"`
	Err         error  `json:"-"`
}

// Total sums the step durations.
func (o *Outcome) Total() time.Duration {
	var total time.Duration
	for _, s := range o.Steps {
		total += s.Duration
	}
	return total
}
