package runner

import (
	"context"
	"time"
)

type StepID string

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Action performs one remote call for a step and validates its response.
type Action func(ctx context.Context) (any, error)

// Middleware wraps the action of a step, e.g. to open a trace span around it.
type Middleware func(step Step, next Action) Action

type StepDef struct {
	ID          StepID
	Title       string
	Description string
	Enabled     bool

	// Requires lists predecessors that must be done before the step is attempted.
	// A nil Requires means "the previous enabled step". Independent steps have none.
	Requires    []StepID
	Independent bool
}

type Step struct {
	ID          StepID    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Enabled     bool      `json:"enabled"`
	Requires    []StepID  `json:"requires,omitempty"`
	Independent bool      `json:"independent,omitempty"`
	Status      Status    `json:"status"`
	Result      any       `json:"result,omitempty"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at,omitzero"`
	FinishedAt  time.Time `json:"finished_at,omitzero"`
}

func (s Step) Duration() time.Duration {
	if s.StartedAt.IsZero() || s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

type Decision string

const (
	DecisionContinue Decision = "continue"
	DecisionHalt     Decision = "halt"
)

type OutcomeState string

const (
	OutcomeCompleted        OutcomeState = "completed"
	OutcomeAwaitingDecision OutcomeState = "awaiting_decision"
	OutcomeHalted           OutcomeState = "halted"
	OutcomeCanceled         OutcomeState = "canceled"
)

type Outcome struct {
	RunID    string       `json:"run_id"`
	State    OutcomeState `json:"state"`
	Failed   *Step        `json:"failed,omitempty"`
	Progress int          `json:"progress"`
	Steps    []Step       `json:"steps"`
}

type RunInfo struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Steps     []Step    `json:"steps"`
}

// Progress is the share of enabled steps that are done, floored to a whole percent.
// Disabled steps count in neither the numerator nor the denominator.
func Progress(steps []Step) int {
	enabled, done := 0, 0
	for _, s := range steps {
		if !s.Enabled {
			continue
		}
		enabled++
		if s.Status == StatusDone {
			done++
		}
	}
	if enabled == 0 {
		return 0
	}
	return done * 100 / enabled
}

func copySteps(in []Step) []Step {
	out := make([]Step, len(in))
	for i, s := range in {
		s.Requires = append([]StepID(nil), s.Requires...)
		out[i] = s
	}
	return out
}
