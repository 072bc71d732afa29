package tui

import (
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/offerforge/pkg/runner"
	"github.com/rs/zerolog/log"
)

// Summarizer renders the one-line summary shown for a finished step.
type Summarizer func(step runner.Step) string

// BusObserver publishes runner notifications as domain events.
type BusObserver struct {
	Pub       message.Publisher
	Summarize Summarizer
}

var _ runner.Observer = (*BusObserver)(nil)

func NewStepView(s runner.Step, summarize Summarizer) StepView {
	v := StepView{
		ID:          s.ID,
		Title:       s.Title,
		Description: s.Description,
		Enabled:     s.Enabled,
		Status:      s.Status,
		Error:       s.Error,
		DurationMs:  s.Duration().Milliseconds(),
	}
	if s.Status == runner.StatusDone && summarize != nil {
		v.Summary = summarize(s)
	}
	return v
}

func NewStepViews(steps []runner.Step, summarize Summarizer) []StepView {
	out := make([]StepView, 0, len(steps))
	for _, s := range steps {
		out = append(out, NewStepView(s, summarize))
	}
	return out
}

func (o *BusObserver) publish(typ string, payload any) {
	if err := publishEnvelope(o.Pub, TopicDomainEvents, typ, payload); err != nil {
		log.Warn().Err(err).Str("type", typ).Msg("dropping domain event")
	}
}

func (o *BusObserver) OnRunStarted(run runner.RunInfo) {
	o.publish(DomainTypeRunStarted, RunStarted{RunID: run.ID, At: run.StartedAt, Steps: NewStepViews(run.Steps, o.Summarize)})
}

func (o *BusObserver) OnStepStarted(runID string, step runner.Step) {
	o.publish(DomainTypeStepStarted, StepStarted{RunID: runID, At: step.StartedAt, Step: NewStepView(step, o.Summarize)})
}

func (o *BusObserver) OnStepFinished(runID string, step runner.Step, progress int) {
	o.publish(DomainTypeStepFinished, StepFinished{
		RunID:    runID,
		At:       step.FinishedAt,
		Step:     NewStepView(step, o.Summarize),
		Progress: progress,
	})
}

func (o *BusObserver) OnDecisionRequired(runID string, step runner.Step) {
	o.publish(DomainTypeDecisionRequired, DecisionRequired{RunID: runID, At: step.FinishedAt, Step: NewStepView(step, o.Summarize)})
}

func (o *BusObserver) OnRunFinished(out runner.Outcome) {
	o.publish(DomainTypeRunFinished, RunFinished{
		RunID:    out.RunID,
		At:       time.Now(),
		State:    out.State,
		Progress: out.Progress,
		Steps:    NewStepViews(out.Steps, o.Summarize),
	})
}

func (o *BusObserver) OnReset(steps []runner.Step) {
	o.publish(DomainTypeRunReset, RunReset{At: time.Now(), Steps: NewStepViews(steps, o.Summarize)})
}
