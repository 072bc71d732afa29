package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrMissingAction      = errors.New("runner: step has no action")
	ErrUnknownAction      = errors.New("runner: action for unknown step")
	ErrDuplicateStep      = errors.New("runner: duplicate step id")
	ErrBadRequires        = errors.New("runner: step requires an unknown or later step")
	ErrUnknownStep        = errors.New("runner: unknown step")
	ErrRunning            = errors.New("runner: run in progress")
	ErrAwaitingDecision   = errors.New("runner: waiting for a continue/halt decision")
	ErrNoDecisionPending  = errors.New("runner: no decision pending")
	ErrNeedsReset         = errors.New("runner: failed steps present; reset before running again")
	ErrPredecessorNotDone = errors.New("predecessor step not completed")
)

type Options struct {
	// StepDelay is a cosmetic pause after each successful step so progress stays visible.
	StepDelay   time.Duration
	Observer    Observer
	Middlewares []Middleware
	Now         func() time.Time
}

type phase int

const (
	phaseIdle phase = iota
	phaseRunning
	phaseAwaiting
)

// Runner executes an ordered list of steps one at a time.
type Runner struct {
	mu      sync.Mutex
	steps   []Step
	index   map[StepID]int
	actions map[StepID]Action
	opts    Options

	phase  phase
	cursor int
	run    RunInfo
}

// New validates that every step has exactly one action and that declared predecessors
// refer to earlier steps.
func New(defs []StepDef, actions map[StepID]Action, opts Options) (*Runner, error) {
	// Observers always go through MultiObserver so a panicking callback cannot leave
	// the runner stuck mid-run.
	if _, ok := opts.Observer.(*MultiObserver); !ok {
		opts.Observer = NewMultiObserver(opts.Observer)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	r := &Runner{
		steps:   make([]Step, 0, len(defs)),
		index:   make(map[StepID]int, len(defs)),
		actions: make(map[StepID]Action, len(defs)),
		opts:    opts,
	}
	for i, d := range defs {
		if _, ok := r.index[d.ID]; ok {
			return nil, errors.Wrapf(ErrDuplicateStep, "%q", d.ID)
		}
		for _, req := range d.Requires {
			j, ok := r.index[req]
			if !ok || j >= i {
				return nil, errors.Wrapf(ErrBadRequires, "%q requires %q", d.ID, req)
			}
		}
		action, ok := actions[d.ID]
		if !ok || action == nil {
			return nil, errors.Wrapf(ErrMissingAction, "%q", d.ID)
		}
		r.index[d.ID] = i
		r.actions[d.ID] = action
		r.steps = append(r.steps, Step{
			ID:          d.ID,
			Title:       d.Title,
			Description: d.Description,
			Enabled:     d.Enabled,
			Requires:    append([]StepID(nil), d.Requires...),
			Independent: d.Independent,
			Status:      StatusPending,
		})
	}
	for id := range actions {
		if _, ok := r.index[id]; !ok {
			return nil, errors.Wrapf(ErrUnknownAction, "%q", id)
		}
	}
	return r, nil
}

func (r *Runner) Steps() []Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copySteps(r.steps)
}

func (r *Runner) Step(id StepID) (Step, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index[id]
	if !ok {
		return Step{}, false
	}
	return copySteps(r.steps[i : i+1])[0], true
}

func (r *Runner) Progress() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Progress(r.steps)
}

// AwaitingDecision reports whether a failed step is waiting for Resume.
func (r *Runner) AwaitingDecision() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase == phaseAwaiting
}

func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase == phaseRunning
}

func (r *Runner) SetEnabled(id StepID, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.idleLocked(); err != nil {
		return err
	}
	i, ok := r.index[id]
	if !ok {
		return errors.Wrapf(ErrUnknownStep, "%q", id)
	}
	r.steps[i].Enabled = enabled
	return nil
}

// Reset returns every step to pending and drops a pending decision.
func (r *Runner) Reset() error {
	r.mu.Lock()
	if r.phase == phaseRunning {
		r.mu.Unlock()
		return ErrRunning
	}
	for i := range r.steps {
		s := &r.steps[i]
		s.Status = StatusPending
		s.Result = nil
		s.Error = ""
		s.StartedAt = time.Time{}
		s.FinishedAt = time.Time{}
	}
	r.phase = phaseIdle
	r.cursor = 0
	r.run = RunInfo{}
	steps := copySteps(r.steps)
	r.mu.Unlock()

	r.opts.Observer.OnReset(steps)
	return nil
}

// Run executes pending enabled steps in order. It stops at the first failure and
// returns OutcomeAwaitingDecision; call Resume to continue or halt.
func (r *Runner) Run(ctx context.Context) (Outcome, error) {
	r.mu.Lock()
	if err := r.idleLocked(); err != nil {
		r.mu.Unlock()
		return Outcome{}, err
	}
	for _, s := range r.steps {
		if s.Status == StatusFailed {
			r.mu.Unlock()
			return Outcome{}, ErrNeedsReset
		}
	}
	r.phase = phaseRunning
	r.cursor = 0
	r.run = RunInfo{ID: uuid.NewString(), StartedAt: r.opts.Now(), Steps: copySteps(r.steps)}
	run := r.run
	r.mu.Unlock()

	r.opts.Observer.OnRunStarted(run)
	return r.loop(ctx)
}

func (r *Runner) Resume(ctx context.Context, d Decision) (Outcome, error) {
	r.mu.Lock()
	if r.phase != phaseAwaiting {
		r.mu.Unlock()
		return Outcome{}, ErrNoDecisionPending
	}
	switch d {
	case DecisionHalt:
		r.phase = phaseIdle
		out := r.outcomeLocked(OutcomeHalted, r.lastFailedLocked())
		r.mu.Unlock()
		r.opts.Observer.OnRunFinished(out)
		return out, nil
	case DecisionContinue:
		r.phase = phaseRunning
		r.mu.Unlock()
		return r.loop(ctx)
	default:
		r.mu.Unlock()
		return Outcome{}, errors.Errorf("runner: unknown decision %q", d)
	}
}

func (r *Runner) loop(ctx context.Context) (Outcome, error) {
	for {
		r.mu.Lock()
		i := r.nextPendingLocked()
		if i < 0 {
			r.phase = phaseIdle
			out := r.outcomeLocked(OutcomeCompleted, nil)
			r.mu.Unlock()
			r.opts.Observer.OnRunFinished(out)
			return out, nil
		}
		r.cursor = i + 1
		runID := r.run.ID

		if missing, ok := r.unmetRequiresLocked(i); !ok {
			s := &r.steps[i]
			now := r.opts.Now()
			s.Status = StatusFailed
			s.StartedAt, s.FinishedAt = now, now
			s.Error = fmt.Sprintf("%s: %s", ErrPredecessorNotDone.Error(), missing)
			return r.awaitLocked(runID, i)
		}

		s := &r.steps[i]
		s.Status = StatusRunning
		s.Error = ""
		s.Result = nil
		s.StartedAt = r.opts.Now()
		s.FinishedAt = time.Time{}
		started := copySteps(r.steps[i : i+1])[0]
		base := r.actions[s.ID]
		r.mu.Unlock()

		r.opts.Observer.OnStepStarted(runID, started)
		// Middlewares are applied outside the lock and inside invoke's recover.
		result, err := invoke(ctx, func(ctx context.Context) (any, error) {
			return r.wrap(started, base)(ctx)
		})

		r.mu.Lock()
		s = &r.steps[i]
		s.FinishedAt = r.opts.Now()
		if err != nil {
			s.Status = StatusFailed
			s.Error = err.Error()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return r.cancelLocked(runID, i, ctxErr)
			}
			return r.awaitLocked(runID, i)
		}
		s.Status = StatusDone
		s.Result = result
		finished := copySteps(r.steps[i : i+1])[0]
		progress := Progress(r.steps)
		more := r.nextPendingLocked() >= 0
		r.mu.Unlock()

		r.opts.Observer.OnStepFinished(runID, finished, progress)

		if more && r.opts.StepDelay > 0 {
			t := time.NewTimer(r.opts.StepDelay)
			select {
			case <-ctx.Done():
				t.Stop()
				r.mu.Lock()
				r.phase = phaseIdle
				out := r.outcomeLocked(OutcomeCanceled, nil)
				r.mu.Unlock()
				r.opts.Observer.OnRunFinished(out)
				return out, ctx.Err()
			case <-t.C:
			}
		}
	}
}

// awaitLocked must be called with r.mu held; it releases the lock.
func (r *Runner) awaitLocked(runID string, i int) (Outcome, error) {
	r.phase = phaseAwaiting
	failed := copySteps(r.steps[i : i+1])[0]
	progress := Progress(r.steps)
	out := r.outcomeLocked(OutcomeAwaitingDecision, &failed)
	r.mu.Unlock()

	r.opts.Observer.OnStepFinished(runID, failed, progress)
	r.opts.Observer.OnDecisionRequired(runID, failed)
	return out, nil
}

// cancelLocked must be called with r.mu held; it releases the lock.
func (r *Runner) cancelLocked(runID string, i int, cause error) (Outcome, error) {
	r.phase = phaseIdle
	failed := copySteps(r.steps[i : i+1])[0]
	progress := Progress(r.steps)
	out := r.outcomeLocked(OutcomeCanceled, &failed)
	r.mu.Unlock()

	r.opts.Observer.OnStepFinished(runID, failed, progress)
	r.opts.Observer.OnRunFinished(out)
	return out, cause
}

func (r *Runner) wrap(step Step, action Action) Action {
	for i := len(r.opts.Middlewares) - 1; i >= 0; i-- {
		action = r.opts.Middlewares[i](step, action)
	}
	return action
}

func invoke(ctx context.Context, action Action) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Errorf("step panicked: %v", p)
		}
	}()
	return action(ctx)
}

func (r *Runner) idleLocked() error {
	switch r.phase {
	case phaseRunning:
		return ErrRunning
	case phaseAwaiting:
		return ErrAwaitingDecision
	}
	return nil
}

func (r *Runner) nextPendingLocked() int {
	for i := r.cursor; i < len(r.steps); i++ {
		s := r.steps[i]
		if s.Enabled && s.Status == StatusPending {
			return i
		}
	}
	return -1
}

// unmetRequiresLocked returns the first predecessor of step i that is enabled but not
// done. Disabled predecessors count as satisfied; the step's own action reports any
// precondition they would have provided.
func (r *Runner) unmetRequiresLocked(i int) (StepID, bool) {
	s := r.steps[i]
	if s.Independent {
		return "", true
	}
	if s.Requires == nil {
		for j := i - 1; j >= 0; j-- {
			prev := r.steps[j]
			if !prev.Enabled {
				continue
			}
			if prev.Status != StatusDone {
				return prev.ID, false
			}
			return "", true
		}
		return "", true
	}
	for _, req := range s.Requires {
		prev := r.steps[r.index[req]]
		if prev.Enabled && prev.Status != StatusDone {
			return req, false
		}
	}
	return "", true
}

func (r *Runner) lastFailedLocked() *Step {
	for i := len(r.steps) - 1; i >= 0; i-- {
		if r.steps[i].Status == StatusFailed {
			s := copySteps(r.steps[i : i+1])[0]
			return &s
		}
	}
	return nil
}

func (r *Runner) outcomeLocked(state OutcomeState, failed *Step) Outcome {
	return Outcome{
		RunID:    r.run.ID,
		State:    state,
		Failed:   failed,
		Progress: Progress(r.steps),
		Steps:    copySteps(r.steps),
	}
}
