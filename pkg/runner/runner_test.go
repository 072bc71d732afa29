package runner

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	NopObserver

	mu        sync.Mutex
	r         *Runner
	started   []StepID
	finished  []StepID
	decisions []StepID
	outcomes  []OutcomeState
	maxActive int
}

func (o *recordingObserver) OnStepStarted(runID string, step Step) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, step.ID)
	active := 0
	for _, s := range o.r.Steps() {
		if s.Status == StatusRunning {
			active++
		}
	}
	if active > o.maxActive {
		o.maxActive = active
	}
}

func (o *recordingObserver) OnStepFinished(runID string, step Step, progress int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, step.ID)
}

func (o *recordingObserver) OnDecisionRequired(runID string, step Step) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.decisions = append(o.decisions, step.ID)
}

func (o *recordingObserver) OnRunFinished(out Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, out.State)
}

func defs(ids ...StepID) []StepDef {
	out := make([]StepDef, 0, len(ids))
	for _, id := range ids {
		out = append(out, StepDef{ID: id, Title: "Step " + string(id), Enabled: true})
	}
	return out
}

func ok(v any) Action {
	return func(ctx context.Context) (any, error) { return v, nil }
}

func fail(msg string) Action {
	return func(ctx context.Context) (any, error) { return nil, errors.New(msg) }
}

func newTestRunner(t *testing.T, d []StepDef, actions map[StepID]Action) (*Runner, *recordingObserver) {
	t.Helper()
	obs := &recordingObserver{}
	r, err := New(d, actions, Options{Observer: obs})
	require.NoError(t, err)
	obs.r = r
	return r, obs
}

func statuses(steps []Step) []Status {
	out := make([]Status, 0, len(steps))
	for _, s := range steps {
		out = append(out, s.Status)
	}
	return out
}

func TestRunner_FullRunCompletes(t *testing.T) {
	r, obs := newTestRunner(t, defs("a", "b", "c"), map[StepID]Action{
		"a": ok(1), "b": ok(2), "c": ok(3),
	})

	out, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, out.State)
	require.Equal(t, 100, out.Progress)
	require.Equal(t, []Status{StatusDone, StatusDone, StatusDone}, statuses(out.Steps))
	require.Equal(t, []any{1, 2, 3}, []any{out.Steps[0].Result, out.Steps[1].Result, out.Steps[2].Result})
	require.Equal(t, []StepID{"a", "b", "c"}, obs.started)
	require.Equal(t, 1, obs.maxActive)
	require.Equal(t, []OutcomeState{OutcomeCompleted}, obs.outcomes)
}

func TestRunner_FailureOnLastStep(t *testing.T) {
	r, obs := newTestRunner(t, defs("a", "b", "c"), map[StepID]Action{
		"a": ok("A"), "b": ok("B"), "c": fail("landing page template missing"),
	})

	out, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeAwaitingDecision, out.State)
	require.Equal(t, []Status{StatusDone, StatusDone, StatusFailed}, statuses(out.Steps))
	require.Equal(t, 66, out.Progress)
	require.NotNil(t, out.Failed)
	require.Equal(t, StepID("c"), out.Failed.ID)
	require.Equal(t, "landing page template missing", out.Failed.Error)
	require.Equal(t, "A", out.Steps[0].Result)
	require.Equal(t, []StepID{"c"}, obs.decisions)
	require.True(t, r.AwaitingDecision())
}

func TestRunner_FailureInMiddleLeavesLaterPending(t *testing.T) {
	r, obs := newTestRunner(t, defs("a", "b", "c", "d"), map[StepID]Action{
		"a": ok(nil), "b": fail("boom"), "c": ok(nil), "d": ok(nil),
	})

	out, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []Status{StatusDone, StatusFailed, StatusPending, StatusPending}, statuses(out.Steps))
	require.Equal(t, []StepID{"a", "b"}, obs.started)
	require.Equal(t, 25, out.Progress)
}

func TestRunner_HaltEndsRun(t *testing.T) {
	r, obs := newTestRunner(t, defs("a", "b"), map[StepID]Action{
		"a": fail("nope"), "b": ok(nil),
	})

	_, err := r.Run(context.Background())
	require.NoError(t, err)

	out, err := r.Resume(context.Background(), DecisionHalt)
	require.NoError(t, err)
	require.Equal(t, OutcomeHalted, out.State)
	require.Equal(t, StepID("a"), out.Failed.ID)
	require.Equal(t, []Status{StatusFailed, StatusPending}, statuses(out.Steps))
	require.False(t, r.AwaitingDecision())
	require.Equal(t, []OutcomeState{OutcomeHalted}, obs.outcomes)

	_, err = r.Run(context.Background())
	require.ErrorIs(t, err, ErrNeedsReset)
}

func TestRunner_ContinueSkipsToIndependentSteps(t *testing.T) {
	d := []StepDef{
		{ID: "project", Enabled: true, Independent: true},
		{ID: "offer", Enabled: true, Requires: []StepID{"project"}},
		{ID: "materials", Enabled: true, Requires: []StepID{"offer"}},
		{ID: "landing", Enabled: true, Requires: []StepID{"offer"}},
		{ID: "export", Enabled: true, Requires: []StepID{"project"}},
	}
	r, obs := newTestRunner(t, d, map[StepID]Action{
		"project":   ok("p"),
		"offer":     ok("o"),
		"materials": fail("ai failed"),
		"landing":   ok("l"),
		"export":    ok("e"),
	})

	out, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeAwaitingDecision, out.State)

	out, err = r.Resume(context.Background(), DecisionContinue)
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, out.State)
	require.Equal(t, []Status{StatusDone, StatusDone, StatusFailed, StatusDone, StatusDone}, statuses(out.Steps))
	require.Equal(t, 80, out.Progress)
	require.Equal(t, []StepID{"project", "offer", "materials", "landing", "export"}, obs.started)
}

func TestRunner_ContinueFailsStepWithUnmetPredecessor(t *testing.T) {
	called := false
	r, obs := newTestRunner(t, defs("a", "b", "c"), map[StepID]Action{
		"a": fail("first"),
		"b": func(ctx context.Context) (any, error) { called = true; return nil, nil },
		"c": ok(nil),
	})

	_, err := r.Run(context.Background())
	require.NoError(t, err)

	out, err := r.Resume(context.Background(), DecisionContinue)
	require.NoError(t, err)
	require.Equal(t, OutcomeAwaitingDecision, out.State)
	require.Equal(t, StepID("b"), out.Failed.ID)
	require.Contains(t, out.Failed.Error, "predecessor step not completed")
	require.False(t, called)
	require.Equal(t, []StepID{"a", "b"}, obs.decisions)
}

func requirePristine(t *testing.T, r *Runner) {
	t.Helper()
	for _, s := range r.Steps() {
		require.Equal(t, StatusPending, s.Status)
		require.Nil(t, s.Result)
		require.Empty(t, s.Error)
		require.True(t, s.StartedAt.IsZero())
	}
	require.Equal(t, 0, r.Progress())
	require.False(t, r.AwaitingDecision())
	require.False(t, r.Running())
}

func TestRunner_ResetClearsEverything(t *testing.T) {
	cases := []struct {
		name    string
		actions map[StepID]Action
		drive   func(t *testing.T, r *Runner)
	}{
		{
			name:    "awaiting decision",
			actions: map[StepID]Action{"a": ok(1), "b": ok(2), "c": fail("x")},
			drive:   func(t *testing.T, r *Runner) {},
		},
		{
			name:    "completed",
			actions: map[StepID]Action{"a": ok(1), "b": ok(2), "c": ok(3)},
			drive: func(t *testing.T, r *Runner) {
				require.Equal(t, 100, r.Progress())
			},
		},
		{
			name:    "halted",
			actions: map[StepID]Action{"a": ok(1), "b": fail("x"), "c": ok(3)},
			drive: func(t *testing.T, r *Runner) {
				out, err := r.Resume(context.Background(), DecisionHalt)
				require.NoError(t, err)
				require.Equal(t, OutcomeHalted, out.State)
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, _ := newTestRunner(t, defs("a", "b", "c"), tc.actions)
			_, err := r.Run(context.Background())
			require.NoError(t, err)
			tc.drive(t, r)

			require.NoError(t, r.Reset())
			requirePristine(t, r)

			_, err = r.Resume(context.Background(), DecisionContinue)
			require.ErrorIs(t, err, ErrNoDecisionPending)
		})
	}
}

type panickingObserver struct {
	NopObserver
}

func (panickingObserver) OnStepFinished(string, Step, int) { panic("observer broke") }

func TestRunner_PanickingObserverDoesNotWedgeRunner(t *testing.T) {
	r, err := New(defs("a", "b"), map[StepID]Action{"a": ok(1), "b": ok(2)}, Options{
		Observer: panickingObserver{},
	})
	require.NoError(t, err)

	out, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, out.State)
	require.False(t, r.Running())

	require.NoError(t, r.Reset())
	requirePristine(t, r)

	out, err = r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, out.State)
}

func TestRunner_MiddlewareBuiltOutsideLock(t *testing.T) {
	var r *Runner
	seen := 0
	inspect := func(step Step, next Action) Action {
		seen = len(r.Steps())
		return next
	}
	explode := func(step Step, next Action) Action {
		if step.ID == "b" {
			panic("bad middleware")
		}
		return next
	}
	var err error
	r, err = New(defs("a", "b"), map[StepID]Action{"a": ok(1), "b": ok(2)}, Options{
		Middlewares: []Middleware{inspect, explode},
	})
	require.NoError(t, err)

	done := make(chan Outcome, 1)
	go func() {
		out, _ := r.Run(context.Background())
		done <- out
	}()
	select {
	case out := <-done:
		require.Equal(t, OutcomeAwaitingDecision, out.State)
		require.Equal(t, StepID("b"), out.Failed.ID)
		require.Contains(t, out.Failed.Error, "bad middleware")
	case <-time.After(2 * time.Second):
		t.Fatal("runner deadlocked building middlewares")
	}
	require.Equal(t, 2, seen)
}

func TestStep_JSONOmitsUnsetTimes(t *testing.T) {
	r, _ := newTestRunner(t, defs("a"), map[StepID]Action{"a": ok(1)})
	b, err := json.Marshal(r.Steps()[0])
	require.NoError(t, err)
	require.NotContains(t, string(b), "started_at")
	require.NotContains(t, string(b), "finished_at")

	out, err := r.Run(context.Background())
	require.NoError(t, err)
	b, err = json.Marshal(out.Steps[0])
	require.NoError(t, err)
	require.Contains(t, string(b), "started_at")
}

func TestRunner_DisabledStepExcludedFromProgress(t *testing.T) {
	r, obs := newTestRunner(t, defs("a", "b", "c"), map[StepID]Action{
		"a": ok(nil), "b": ok(nil), "c": fail("x"),
	})
	require.NoError(t, r.SetEnabled("b", false))

	out, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []StepID{"a", "c"}, obs.started)
	require.Equal(t, []Status{StatusDone, StatusPending, StatusFailed}, statuses(out.Steps))
	require.Equal(t, 50, out.Progress)
}

func TestRunner_SetEnabledRejectedWhileAwaiting(t *testing.T) {
	r, _ := newTestRunner(t, defs("a", "b"), map[StepID]Action{
		"a": fail("x"), "b": ok(nil),
	})
	_, err := r.Run(context.Background())
	require.NoError(t, err)

	require.ErrorIs(t, r.SetEnabled("b", false), ErrAwaitingDecision)
	_, err = r.Run(context.Background())
	require.ErrorIs(t, err, ErrAwaitingDecision)
	require.ErrorIs(t, r.SetEnabled("zzz", false), ErrAwaitingDecision)

	require.NoError(t, r.Reset())
	require.ErrorIs(t, r.SetEnabled("zzz", false), ErrUnknownStep)
}

func TestRunner_RunWhileRunning(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	r, _ := newTestRunner(t, defs("a"), map[StepID]Action{
		"a": func(ctx context.Context) (any, error) {
			close(entered)
			<-release
			return nil, nil
		},
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = r.Run(context.Background())
	}()
	<-entered

	_, err := r.Run(context.Background())
	require.ErrorIs(t, err, ErrRunning)
	require.ErrorIs(t, r.Reset(), ErrRunning)
	require.True(t, r.Running())

	close(release)
	<-done
	require.False(t, r.Running())
}

func TestRunner_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r, obs := newTestRunner(t, defs("a", "b"), map[StepID]Action{
		"a": func(ctx context.Context) (any, error) {
			cancel()
			<-ctx.Done()
			return nil, ctx.Err()
		},
		"b": ok(nil),
	})

	out, err := r.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, OutcomeCanceled, out.State)
	require.Equal(t, []Status{StatusFailed, StatusPending}, statuses(out.Steps))
	require.Empty(t, obs.decisions)
	require.False(t, r.AwaitingDecision())
}

func TestRunner_StepDelayHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r, err := New(defs("a", "b"), map[StepID]Action{
		"a": func(context.Context) (any, error) { cancel(); return nil, nil },
		"b": ok(nil),
	}, Options{StepDelay: time.Hour})
	require.NoError(t, err)

	out, err := r.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, OutcomeCanceled, out.State)
	require.Equal(t, []Status{StatusDone, StatusPending}, statuses(out.Steps))
}

func TestRunner_PanicBecomesFailure(t *testing.T) {
	r, _ := newTestRunner(t, defs("a"), map[StepID]Action{
		"a": func(context.Context) (any, error) { panic("kaboom") },
	})
	out, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeAwaitingDecision, out.State)
	require.Contains(t, out.Failed.Error, "kaboom")
}

func TestRunner_MiddlewaresWrapInOrder(t *testing.T) {
	var calls []string
	mw := func(name string) Middleware {
		return func(step Step, next Action) Action {
			return func(ctx context.Context) (any, error) {
				calls = append(calls, name+":"+string(step.ID))
				return next(ctx)
			}
		}
	}
	r, err := New(defs("a"), map[StepID]Action{"a": ok(nil)}, Options{
		Middlewares: []Middleware{mw("outer"), mw("inner")},
	})
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"outer:a", "inner:a"}, calls)
}

func TestNew_ValidatesActionTable(t *testing.T) {
	_, err := New(defs("a", "b"), map[StepID]Action{"a": ok(nil)}, Options{})
	require.ErrorIs(t, err, ErrMissingAction)

	_, err = New(defs("a"), map[StepID]Action{"a": ok(nil), "x": ok(nil)}, Options{})
	require.ErrorIs(t, err, ErrUnknownAction)

	_, err = New(defs("a", "a"), map[StepID]Action{"a": ok(nil)}, Options{})
	require.ErrorIs(t, err, ErrDuplicateStep)

	_, err = New([]StepDef{
		{ID: "a", Requires: []StepID{"b"}},
		{ID: "b"},
	}, map[StepID]Action{"a": ok(nil), "b": ok(nil)}, Options{})
	require.ErrorIs(t, err, ErrBadRequires)
}

func TestProgress(t *testing.T) {
	require.Equal(t, 0, Progress(nil))
	require.Equal(t, 0, Progress([]Step{{Enabled: false, Status: StatusDone}}))
	require.Equal(t, 33, Progress([]Step{
		{Enabled: true, Status: StatusDone},
		{Enabled: true, Status: StatusFailed},
		{Enabled: true, Status: StatusPending},
		{Enabled: false, Status: StatusDone},
	}))
}
