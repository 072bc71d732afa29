package tui

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/offerforge/pkg/runner"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type chanSender struct {
	ch chan tea.Msg
}

func (s *chanSender) Send(msg tea.Msg) { s.ch <- msg }

// waitFor drains UI messages until one of type T satisfies ok.
func waitFor[T any](t *testing.T, s *chanSender, ok func(T) bool) T {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case m := <-s.ch:
			if v, match := m.(T); match && (ok == nil || ok(v)) {
				return v
			}
		case <-deadline:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages map[string][]Envelope
}

func (p *recordingPublisher) Publish(topic string, msgs ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.messages == nil {
		p.messages = map[string][]Envelope{}
	}
	for _, m := range msgs {
		var env Envelope
		if err := json.Unmarshal(m.Payload, &env); err != nil {
			return err
		}
		p.messages[topic] = append(p.messages[topic], env)
	}
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) envelopes(topic string) []Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Envelope(nil), p.messages[topic]...)
}

func startBus(t *testing.T, r *runner.Runner, bus *Bus) *chanSender {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	sender := &chanSender{ch: make(chan tea.Msg, 256)}

	RegisterDomainToUITransformer(bus)
	RegisterUIActionRunner(ctx, bus, &Session{Runner: r})
	RegisterUIForwarder(bus, sender)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = bus.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	select {
	case <-bus.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("bus did not start")
	}
	return sender
}

func TestSession_DrivesRunnerThroughBus(t *testing.T) {
	bus, err := NewInMemoryBus()
	require.NoError(t, err)

	defs := []runner.StepDef{
		{ID: "project", Title: "Create project", Enabled: true, Independent: true},
		{ID: "offer", Title: "Generate offer", Enabled: true},
		{ID: "export", Title: "Export", Enabled: true, Requires: []runner.StepID{"project"}},
	}
	actions := map[runner.StepID]runner.Action{
		"project": func(ctx context.Context) (any, error) { return "p1", nil },
		"offer":   func(ctx context.Context) (any, error) { return nil, errors.New("IA falhou") },
		"export":  func(ctx context.Context) (any, error) { return "zip", nil },
	}
	obs := &BusObserver{Pub: bus.Publisher, Summarize: func(s runner.Step) string { return "result=" + s.Result.(string) }}
	r, err := runner.New(defs, actions, runner.Options{Observer: obs})
	require.NoError(t, err)
	sender := startBus(t, r, bus)

	require.NoError(t, PublishAction(bus.Publisher, ActionRequest{Kind: ActionStart}))
	decision := waitFor[DecisionRequiredMsg](t, sender, nil)
	require.Equal(t, runner.StepID("offer"), decision.Event.Step.ID)
	require.Equal(t, "IA falhou", decision.Event.Step.Error)

	require.NoError(t, PublishAction(bus.Publisher, ActionRequest{Kind: ActionContinue}))
	finished := waitFor[RunFinishedMsg](t, sender, nil)
	require.Equal(t, runner.OutcomeCompleted, finished.Run.State)
	require.Equal(t, 66, finished.Run.Progress)
	require.Equal(t, "result=zip", finished.Run.Steps[2].Summary)
	require.Equal(t, "", finished.Run.Steps[1].Summary)

	// A second start needs a reset first; the refusal lands in the event log.
	require.NoError(t, PublishAction(bus.Publisher, ActionRequest{Kind: ActionStart}))
	waitFor(t, sender, func(m EventLogAppendMsg) bool {
		return m.Entry.Level == LogLevelError && m.Entry.Source == "system"
	})

	require.NoError(t, PublishAction(bus.Publisher, ActionRequest{Kind: ActionReset}))
	reset := waitFor[RunResetMsg](t, sender, nil)
	for _, s := range reset.Reset.Steps {
		require.Equal(t, runner.StatusPending, s.Status)
	}

	require.NoError(t, PublishAction(bus.Publisher, ActionRequest{Kind: ActionToggle, Step: "offer"}))
	changed := waitFor[StepsChangedMsg](t, sender, nil)
	require.False(t, changed.Steps[1].Enabled)
	st, _ := r.Step("offer")
	require.False(t, st.Enabled)
}

func TestTransform_StepFinishedAddsEventLine(t *testing.T) {
	pub := &recordingPublisher{}
	env, err := NewEnvelope(DomainTypeStepFinished, StepFinished{
		RunID:    "0123456789",
		Step:     StepView{ID: "landing", Title: "Landing page", Status: runner.StatusDone, Summary: "template mobile_modern, 4 KB", DurationMs: 12},
		Progress: 80,
	})
	require.NoError(t, err)
	require.NoError(t, transformDomainEvent(pub, env))

	ui := pub.envelopes(TopicUIMessages)
	require.Len(t, ui, 2)
	require.Equal(t, UITypeStepFinished, ui[0].Type)
	require.Equal(t, UITypeEventAppend, ui[1].Type)

	var entry EventLogEntry
	require.NoError(t, ui[1].Decode(&entry))
	require.Equal(t, "landing", entry.Source)
	require.Equal(t, "Landing page: done in 12ms (80%) template mobile_modern, 4 KB", entry.Text)
}

func TestTransform_IgnoresUnknownTypes(t *testing.T) {
	pub := &recordingPublisher{}
	require.NoError(t, transformDomainEvent(pub, Envelope{Type: "something.else"}))
	require.Empty(t, pub.envelopes(TopicUIMessages))
}

func TestPublishAction_Validation(t *testing.T) {
	pub := &recordingPublisher{}
	require.Error(t, PublishAction(pub, ActionRequest{}))
	require.Error(t, PublishAction(pub, ActionRequest{Kind: ActionToggle}))
	require.Error(t, PublishAction(nil, ActionRequest{Kind: ActionStart}))

	require.NoError(t, PublishAction(pub, ActionRequest{Kind: ActionHalt}))
	envs := pub.envelopes(TopicUIActions)
	require.Len(t, envs, 1)
	var req ActionRequest
	require.NoError(t, envs[0].Decode(&req))
	require.Equal(t, ActionHalt, req.Kind)
	require.False(t, req.At.IsZero())
}

func TestUIMessage_DecodesEveryType(t *testing.T) {
	cases := map[string]any{
		UITypeRunStarted:       RunStarted{RunID: "r"},
		UITypeStepStarted:      StepStarted{RunID: "r"},
		UITypeStepFinished:     StepFinished{RunID: "r"},
		UITypeDecisionRequired: DecisionRequired{RunID: "r"},
		UITypeRunFinished:      RunFinished{RunID: "r"},
		UITypeRunReset:         RunReset{},
		UITypeStepsChanged:     StepsChanged{},
		UITypeEventAppend:      EventLogEntry{Text: "x"},
	}
	for typ, payload := range cases {
		env, err := NewEnvelope(typ, payload)
		require.NoError(t, err)
		m, err := uiMessage(env)
		require.NoError(t, err, typ)
		require.NotNil(t, m, typ)
	}
}
