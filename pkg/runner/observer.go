package runner

import "github.com/rs/zerolog/log"

// Observer receives runner transitions. Callbacks run on the runner's goroutine
// outside the runner lock and should return quickly.
type Observer interface {
	OnRunStarted(run RunInfo)
	OnStepStarted(runID string, step Step)
	OnStepFinished(runID string, step Step, progress int)
	OnDecisionRequired(runID string, step Step)
	OnRunFinished(out Outcome)
	OnReset(steps []Step)
}

type NopObserver struct{}

var _ Observer = NopObserver{}

func (NopObserver) OnRunStarted(RunInfo)             {}
func (NopObserver) OnStepStarted(string, Step)       {}
func (NopObserver) OnStepFinished(string, Step, int) {}
func (NopObserver) OnDecisionRequired(string, Step)  {}
func (NopObserver) OnRunFinished(Outcome)            {}
func (NopObserver) OnReset([]Step)                   {}

// MultiObserver fans out to several observers. A panicking observer is logged and
// does not stop delivery to the others.
type MultiObserver struct {
	observers []Observer
}

var _ Observer = (*MultiObserver)(nil)

func NewMultiObserver(observers ...Observer) *MultiObserver {
	filtered := make([]Observer, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	return &MultiObserver{observers: filtered}
}

func safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("runner observer panicked")
		}
	}()
	fn()
}

func (m *MultiObserver) OnRunStarted(run RunInfo) {
	for _, o := range m.observers {
		safeCall(func() { o.OnRunStarted(run) })
	}
}

func (m *MultiObserver) OnStepStarted(runID string, step Step) {
	for _, o := range m.observers {
		safeCall(func() { o.OnStepStarted(runID, step) })
	}
}

func (m *MultiObserver) OnStepFinished(runID string, step Step, progress int) {
	for _, o := range m.observers {
		safeCall(func() { o.OnStepFinished(runID, step, progress) })
	}
}

func (m *MultiObserver) OnDecisionRequired(runID string, step Step) {
	for _, o := range m.observers {
		safeCall(func() { o.OnDecisionRequired(runID, step) })
	}
}

func (m *MultiObserver) OnRunFinished(out Outcome) {
	for _, o := range m.observers {
		safeCall(func() { o.OnRunFinished(out) })
	}
}

func (m *MultiObserver) OnReset(steps []Step) {
	for _, o := range m.observers {
		safeCall(func() { o.OnReset(steps) })
	}
}

// LogObserver writes transitions to the global zerolog logger.
type LogObserver struct{}

var _ Observer = LogObserver{}

func (LogObserver) OnRunStarted(run RunInfo) {
	log.Info().Str("run", run.ID).Int("steps", len(run.Steps)).Msg("run started")
}

func (LogObserver) OnStepStarted(runID string, step Step) {
	log.Debug().Str("run", runID).Str("step", string(step.ID)).Msg("step started")
}

func (LogObserver) OnStepFinished(runID string, step Step, progress int) {
	ev := log.Info()
	if step.Status == StatusFailed {
		ev = log.Warn().Str("error", step.Error)
	}
	ev.Str("run", runID).
		Str("step", string(step.ID)).
		Str("status", string(step.Status)).
		Dur("duration", step.Duration()).
		Int("progress", progress).
		Msg("step finished")
}

func (LogObserver) OnDecisionRequired(runID string, step Step) {
	log.Debug().Str("run", runID).Str("step", string(step.ID)).Msg("waiting for continue/halt decision")
}

func (LogObserver) OnRunFinished(out Outcome) {
	log.Info().Str("run", out.RunID).Str("state", string(out.State)).Int("progress", out.Progress).Msg("run finished")
}

func (LogObserver) OnReset(steps []Step) {
	log.Debug().Int("steps", len(steps)).Msg("runner reset")
}
