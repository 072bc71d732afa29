package models

import (
	"time"

	"github.com/go-go-golems/offerforge/pkg/runner"
	"github.com/go-go-golems/offerforge/pkg/tui"
)

// RunState is the runner as last reported over the bus.
type RunState struct {
	RunID     string
	StartedAt time.Time
	Steps     []tui.StepView
	Progress  int
	Running   bool
	// Awaiting is the failed step a decision is pending for.
	Awaiting *tui.StepView
	Finished *tui.RunFinished
}

func NewRunState(steps []tui.StepView) RunState {
	return RunState{Steps: append([]tui.StepView(nil), steps...)}
}

func (s RunState) Idle() bool { return !s.Running && s.Awaiting == nil }

func (s RunState) Step(id runner.StepID) (tui.StepView, bool) {
	for _, st := range s.Steps {
		if st.ID == id {
			return st, true
		}
	}
	return tui.StepView{}, false
}

func (s RunState) withStep(v tui.StepView) RunState {
	steps := append([]tui.StepView(nil), s.Steps...)
	for i := range steps {
		if steps[i].ID == v.ID {
			steps[i] = v
		}
	}
	s.Steps = steps
	return s
}

// Apply folds a bus message into the state; unrelated messages are ignored.
func (s RunState) Apply(msg any) RunState {
	switch v := msg.(type) {
	case tui.RunStartedMsg:
		s = NewRunState(v.Run.Steps)
		s.RunID = v.Run.RunID
		s.StartedAt = v.Run.At
		s.Running = true
		s.Progress = progressOf(s.Steps)
	case tui.StepStartedMsg:
		if v.Event.RunID != s.RunID || s.Finished != nil {
			return s
		}
		// The bus does not order deliveries; a start that arrives after the step
		// settled is stale.
		if cur, ok := s.Step(v.Event.Step.ID); ok && (cur.Status == runner.StatusDone || cur.Status == runner.StatusFailed) {
			return s
		}
		s.Running = true
		s.Awaiting = nil
		s = s.withStep(v.Event.Step)
	case tui.StepFinishedMsg:
		if v.Event.RunID != s.RunID {
			return s
		}
		s = s.withStep(v.Event.Step)
		s.Progress = progressOf(s.Steps)
	case tui.DecisionRequiredMsg:
		if v.Event.RunID != s.RunID {
			return s
		}
		s = s.withStep(v.Event.Step)
		step := v.Event.Step
		s.Awaiting = &step
		s.Running = false
		s.Progress = progressOf(s.Steps)
	case tui.RunFinishedMsg:
		if v.Run.RunID != s.RunID {
			return s
		}
		run := v.Run
		s.Steps = append([]tui.StepView(nil), run.Steps...)
		s.Progress = run.Progress
		s.Running = false
		s.Awaiting = nil
		s.Finished = &run
	case tui.RunResetMsg:
		s = NewRunState(v.Reset.Steps)
	case tui.StepsChangedMsg:
		s.Steps = append([]tui.StepView(nil), v.Steps...)
		s.Progress = progressOf(s.Steps)
	}
	return s
}

func progressOf(steps []tui.StepView) int {
	rs := make([]runner.Step, 0, len(steps))
	for _, s := range steps {
		rs = append(rs, runner.Step{Enabled: s.Enabled, Status: s.Status})
	}
	return runner.Progress(rs)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
