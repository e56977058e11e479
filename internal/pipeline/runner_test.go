package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/maraichr/ceindex/internal/component"
	"github.com/maraichr/ceindex/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// recordingStep appends its description to a shared log when executed.
type recordingStep struct {
	desc  string
	err   error
	log   *[]string
	calls int
}

func (s *recordingStep) Description() string { return s.desc }

func (s *recordingStep) Execute(_ context.Context, _ *RunContext) error {
	s.calls++
	*s.log = append(*s.log, s.desc)
	return s.err
}

// stepClock advances by a fixed amount on every call to Now.
type stepClock struct {
	mu   sync.Mutex
	t    time.Time
	tick time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(c.tick)
	return c.t
}

func newRunContext(t *testing.T, root *models.Component) *RunContext {
	t.Helper()
	holder := component.NewTreeRootHolder()
	if root != nil {
		if err := holder.SetRoot(root); err != nil {
			t.Fatalf("SetRoot: %v", err)
		}
	}
	return NewRunContext(uuid.New(), holder)
}

func projectRoot() *models.Component {
	return models.NewBuilder(models.ComponentTypeProject, "PROJECT_KEY").SetUUID("PROJECT_UUID").Build()
}

func TestRun_ExecutesStepsInOrder(t *testing.T) {
	var log []string
	steps := []Step{
		&recordingStep{desc: "first", log: &log},
		&recordingStep{desc: "second", log: &log},
		&recordingStep{desc: "third", log: &log},
	}
	clock := &stepClock{t: time.Unix(0, 0), tick: 5 * time.Millisecond}
	r := NewRunner(steps, testLogger(), WithClock(clock))

	outcome, err := r.Run(context.Background(), newRunContext(t, projectRoot()))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if outcome.State != StateCompleted {
		t.Errorf("state = %s, want COMPLETED", outcome.State)
	}
	if outcome.RootUUID != "PROJECT_UUID" {
		t.Errorf("root uuid = %q", outcome.RootUUID)
	}
	want := []string{"first", "second", "third"}
	if len(log) != len(want) {
		t.Fatalf("executed %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("step %d = %s, want %s", i, log[i], want[i])
		}
		if outcome.Steps[i].Description != want[i] {
			t.Errorf("timing %d description = %s", i, outcome.Steps[i].Description)
		}
		if outcome.Steps[i].DurationMillis() != 5 {
			t.Errorf("timing %d = %dms, want 5ms", i, outcome.Steps[i].DurationMillis())
		}
	}
	if outcome.Total() != 15*time.Millisecond {
		t.Errorf("total = %s", outcome.Total())
	}
	if outcome.FailedIndex != -1 || outcome.FailedStep != "" {
		t.Errorf("completed run should not carry a failed step: %+v", outcome)
	}
}

func TestRun_FailFast(t *testing.T) {
	var log []string
	storeErr := errors.New("connection refused")
	first := &recordingStep{desc: "index relational", log: &log, err: storeErr}
	second := &recordingStep{desc: "index search", log: &log}
	r := NewRunner([]Step{first, second}, testLogger())

	outcome, err := r.Run(context.Background(), newRunContext(t, projectRoot()))
	if err == nil {
		t.Fatal("expected error")
	}
	if second.calls != 0 {
		t.Errorf("step after failure executed %d times", second.calls)
	}

	var pe *PipelineError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *PipelineError, got %T", err)
	}
	if pe.Step != "index relational" || pe.Index != 0 {
		t.Errorf("pipeline error = %+v", pe)
	}
	var se *StepExecutionError
	if !errors.As(err, &se) {
		t.Fatal("expected *StepExecutionError in chain")
	}
	if !errors.Is(err, storeErr) {
		t.Error("store error should be reachable with errors.Is")
	}

	if outcome.State != StateFailed {
		t.Errorf("state = %s, want FAILED", outcome.State)
	}
	if outcome.FailedStep != "index relational" || outcome.FailedIndex != 0 {
		t.Errorf("outcome failed step = %q/%d", outcome.FailedStep, outcome.FailedIndex)
	}
	if len(outcome.Steps) != 0 {
		t.Errorf("failed step should not be reported as a completed timing: %v", outcome.Steps)
	}
}

func TestRun_FailureInMiddleKeepsEarlierTimings(t *testing.T) {
	var log []string
	r := NewRunner([]Step{
		&recordingStep{desc: "a", log: &log},
		&recordingStep{desc: "b", log: &log, err: errors.New("boom")},
		&recordingStep{desc: "c", log: &log},
	}, testLogger())

	outcome, err := r.Run(context.Background(), newRunContext(t, projectRoot()))
	if err == nil {
		t.Fatal("expected error")
	}
	if len(log) != 2 {
		t.Errorf("executed %v", log)
	}
	if len(outcome.Steps) != 1 || outcome.Steps[0].Description != "a" {
		t.Errorf("timings = %+v", outcome.Steps)
	}
	if outcome.FailedIndex != 1 {
		t.Errorf("failed index = %d", outcome.FailedIndex)
	}
}

func TestRun_RootNotSet(t *testing.T) {
	var log []string
	step := &recordingStep{desc: "s", log: &log}
	r := NewRunner([]Step{step}, testLogger())

	_, err := r.Run(context.Background(), newRunContext(t, nil))
	if !IsConfigurationError(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if !errors.Is(err, component.ErrRootNotSet) {
		t.Errorf("expected ErrRootNotSet in chain, got %v", err)
	}
	if step.calls != 0 {
		t.Error("no step may run without a root")
	}
}

func TestRun_NilTree(t *testing.T) {
	r := NewRunner(nil, testLogger())
	_, err := r.Run(context.Background(), &RunContext{RunID: uuid.New()})
	if !IsConfigurationError(err) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestRun_ExactlyOncePerRunContext(t *testing.T) {
	var log []string
	step := &recordingStep{desc: "s", log: &log}
	r := NewRunner([]Step{step}, testLogger())
	rc := newRunContext(t, projectRoot())

	if _, err := r.Run(context.Background(), rc); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := r.Run(context.Background(), rc); !errors.Is(err, ErrRunAlreadyStarted) {
		t.Errorf("second run = %v, want ErrRunAlreadyStarted", err)
	}
	if step.calls != 1 {
		t.Errorf("step executed %d times, want 1", step.calls)
	}
}

func TestRun_CancelledBeforeStep(t *testing.T) {
	var log []string
	step := &recordingStep{desc: "s", log: &log}
	r := NewRunner([]Step{step}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := r.Run(ctx, newRunContext(t, projectRoot()))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if outcome.State != StateFailed {
		t.Errorf("state = %s", outcome.State)
	}
	if step.calls != 0 {
		t.Error("step should not start after cancellation")
	}
}

type fakeGate struct {
	err   error
	calls int
}

func (g *fakeGate) Wait(context.Context) error {
	g.calls++
	return g.err
}

func TestRun_BeforeRunGate(t *testing.T) {
	var log []string
	step := &recordingStep{desc: "s", log: &log}

	gate := &fakeGate{}
	r := NewRunner([]Step{step}, testLogger(), WithBeforeRun(gate))
	if _, err := r.Run(context.Background(), newRunContext(t, projectRoot())); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if gate.calls != 1 || step.calls != 1 {
		t.Errorf("gate calls = %d, step calls = %d", gate.calls, step.calls)
	}

	interrupted := &fakeGate{err: context.Canceled}
	step2 := &recordingStep{desc: "s", log: &log}
	r = NewRunner([]Step{step2}, testLogger(), WithBeforeRun(interrupted))
	outcome, err := r.Run(context.Background(), newRunContext(t, projectRoot()))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected cancellation from gate, got %v", err)
	}
	if outcome.State != StateNotStarted {
		t.Errorf("state = %s, want NOT_STARTED", outcome.State)
	}
	if step2.calls != 0 {
		t.Error("steps must not run when the gate is interrupted")
	}
}

type fakeTask struct {
	desc  string
	err   error
	calls int
	seen  *Outcome
}

func (t *fakeTask) Description() string { return t.desc }

func (t *fakeTask) Finished(_ context.Context, o *Outcome) error {
	t.calls++
	t.seen = o
	return t.err
}

func TestRun_PostRunTasks(t *testing.T) {
	var log []string
	failing := &fakeTask{desc: "failing", err: errors.New("ignored")}
	after := &fakeTask{desc: "after"}
	r := NewRunner([]Step{&recordingStep{desc: "s", log: &log}}, testLogger(),
		WithPostRunTasks(failing, after))

	outcome, err := r.Run(context.Background(), newRunContext(t, projectRoot()))
	if err != nil {
		t.Fatalf("ordinary post-task errors should not surface: %v", err)
	}
	if failing.calls != 1 || after.calls != 1 {
		t.Errorf("task calls = %d, %d", failing.calls, after.calls)
	}
	if after.seen != outcome || after.seen.State != StateCompleted {
		t.Error("tasks should receive the completed outcome")
	}
}

func TestRun_PostRunTaskCancellationIsReturned(t *testing.T) {
	var log []string
	interrupted := &fakeTask{desc: "pause", err: context.Canceled}
	after := &fakeTask{desc: "after"}
	r := NewRunner([]Step{&recordingStep{desc: "s", log: &log}}, testLogger(),
		WithPostRunTasks(interrupted, after))

	outcome, err := r.Run(context.Background(), newRunContext(t, projectRoot()))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if outcome.State != StateCompleted {
		t.Errorf("steps finished, state should stay COMPLETED, got %s", outcome.State)
	}
	if after.calls != 0 {
		t.Error("tasks after an interrupted one must not run")
	}
}

func TestRun_PostRunTasksSkippedOnFailure(t *testing.T) {
	var log []string
	task := &fakeTask{desc: "t"}
	r := NewRunner([]Step{&recordingStep{desc: "s", log: &log, err: errors.New("x")}}, testLogger(),
		WithPostRunTasks(task))
	_, _ = r.Run(context.Background(), newRunContext(t, projectRoot()))
	if task.calls != 0 {
		t.Error("post-run tasks only run after a completed run")
	}
}

type recordingObserver struct {
	started  int
	steps    []StepTiming
	stepErrs []error
	finished []*Outcome
}

func (o *recordingObserver) RunStarted(context.Context, *RunContext) { o.started++ }

func (o *recordingObserver) StepFinished(_ context.Context, _ *RunContext, timing StepTiming, err error) {
	o.steps = append(o.steps, timing)
	o.stepErrs = append(o.stepErrs, err)
}

func (o *recordingObserver) RunFinished(_ context.Context, outcome *Outcome) {
	o.finished = append(o.finished, outcome)
}

func TestRun_Observer(t *testing.T) {
	var log []string
	obs := &recordingObserver{}
	boom := errors.New("boom")
	r := NewRunner([]Step{
		&recordingStep{desc: "ok", log: &log},
		&recordingStep{desc: "ko", log: &log, err: boom},
	}, testLogger(), WithObserver(obs))

	_, _ = r.Run(context.Background(), newRunContext(t, projectRoot()))

	if obs.started != 1 {
		t.Errorf("started = %d", obs.started)
	}
	if len(obs.steps) != 2 || obs.stepErrs[0] != nil || !errors.Is(obs.stepErrs[1], boom) {
		t.Errorf("steps = %+v errs = %v", obs.steps, obs.stepErrs)
	}
	if len(obs.finished) != 1 || obs.finished[0].State != StateFailed {
		t.Errorf("finished = %+v", obs.finished)
	}
}

func TestRunner_StepsSharedAcrossConcurrentRuns(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}
	step := stepFunc{desc: "collect", fn: func(_ context.Context, rc *RunContext) error {
		mu.Lock()
		defer mu.Unlock()
		seen[rc.RootUUID()]++
		return nil
	}}
	r := NewRunner([]Step{step}, testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			root := models.NewBuilder(models.ComponentTypeProject, "P").Build()
			holder := component.NewTreeRootHolder()
			_ = holder.SetRoot(root)
			if _, err := r.Run(context.Background(), NewRunContext(uuid.New(), holder)); err != nil {
				t.Errorf("Run: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(seen) != 8 {
		t.Errorf("expected 8 distinct roots, got %d", len(seen))
	}
	for root, n := range seen {
		if n != 1 {
			t.Errorf("root %s indexed %d times", root, n)
		}
	}
}

type stepFunc struct {
	desc string
	fn   func(context.Context, *RunContext) error
}

func (s stepFunc) Description() string { return s.desc }

func (s stepFunc) Execute(ctx context.Context, rc *RunContext) error { return s.fn(ctx, rc) }

func TestDescriptions(t *testing.T) {
	var log []string
	r := NewRunner([]Step{&recordingStep{desc: "a", log: &log}, &recordingStep{desc: "b", log: &log}}, testLogger())
	got := r.Descriptions()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Descriptions() = %v", got)
	}
}

func TestNewStepError(t *testing.T) {
	if NewStepError("x", nil) != nil {
		t.Error("nil error should stay nil")
	}
	inner := &StepExecutionError{Step: "inner", Err: errors.New("e")}
	if got := NewStepError("outer", inner); got != inner {
		t.Error("an existing StepExecutionError should not be wrapped twice")
	}
}
