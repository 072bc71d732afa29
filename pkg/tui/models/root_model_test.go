package models

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/offerforge/pkg/engine"
	"github.com/go-go-golems/offerforge/pkg/runner"
	"github.com/go-go-golems/offerforge/pkg/tui"
	"github.com/stretchr/testify/require"
)

type actionRecorder struct {
	mu   sync.Mutex
	reqs []tui.ActionRequest
}

func (p *actionRecorder) Publish(topic string, msgs ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range msgs {
		var env tui.Envelope
		if err := json.Unmarshal(m.Payload, &env); err != nil {
			return err
		}
		var req tui.ActionRequest
		if err := env.Decode(&req); err != nil {
			return err
		}
		p.reqs = append(p.reqs, req)
	}
	return nil
}

func (p *actionRecorder) Close() error { return nil }

func (p *actionRecorder) kinds() []tui.ActionKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]tui.ActionKind, 0, len(p.reqs))
	for _, r := range p.reqs {
		out = append(out, r.Kind)
	}
	return out
}

func testSteps() []tui.StepView {
	return []tui.StepView{
		{ID: "project", Title: "Create project", Enabled: true, Status: runner.StatusPending},
		{ID: "offer", Title: "Generate AI offer", Enabled: true, Status: runner.StatusPending},
	}
}

func newTestRoot(pub message.Publisher) RootModel {
	m := NewRootModel(RootOptions{Brief: engine.DefaultBrief(), BackendURL: "http://localhost:8001", Steps: testSteps(), Publisher: pub})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(RootModel)
}

func update(t *testing.T, m RootModel, msg tea.Msg) RootModel {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(RootModel)
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestRootModel_ConfigScreenActions(t *testing.T) {
	pub := &actionRecorder{}
	m := newTestRoot(pub)
	require.Equal(t, ScreenConfig, m.Screen())

	view := m.View()
	require.Contains(t, view, "AutoDemo: Marketing Digital")
	require.Contains(t, view, "BRL 997")
	require.Contains(t, view, "4 pain points, 3 reviews, 3 faqs")
	require.Contains(t, view, "Generate AI offer")

	m = update(t, m, key("down"))
	m = update(t, m, key("space"))
	m = update(t, m, key("enter"))
	// continue and halt mean nothing without a pending decision
	m = update(t, m, key("c"))
	m = update(t, m, key("h"))
	require.Equal(t, []tui.ActionKind{tui.ActionToggle, tui.ActionStart}, pub.kinds())
	require.Equal(t, runner.StepID("offer"), pub.reqs[0].Step)
}

func TestRootModel_RunLifecycle(t *testing.T) {
	pub := &actionRecorder{}
	m := newTestRoot(pub)

	started := tui.RunStarted{RunID: "run-1", Steps: testSteps()}
	m = update(t, m, tui.RunStartedMsg{Run: started})
	require.Equal(t, ScreenProgress, m.Screen())
	require.True(t, m.State().Running)

	// keys that need an idle runner are ignored while running
	m = update(t, m, key("enter"))
	m = update(t, m, key("r"))
	require.Empty(t, pub.kinds())

	done := tui.StepView{ID: "project", Title: "Create project", Enabled: true, Status: runner.StatusDone, Summary: "AutoDemo (p1) research_completed"}
	m = update(t, m, tui.StepFinishedMsg{Event: tui.StepFinished{RunID: "run-1", Step: done, Progress: 50}})
	require.Equal(t, 50, m.State().Progress)

	failed := tui.StepView{ID: "offer", Title: "Generate AI offer", Enabled: true, Status: runner.StatusFailed, Error: "IA falhou"}
	m = update(t, m, tui.DecisionRequiredMsg{Event: tui.DecisionRequired{RunID: "run-1", Step: failed}})
	require.NotNil(t, m.State().Awaiting)
	view := m.View()
	require.Contains(t, view, "Generate AI offer failed: IA falhou")
	require.Contains(t, view, "[c] continue")

	m = update(t, m, key("h"))
	require.Equal(t, []tui.ActionKind{tui.ActionHalt}, pub.kinds())

	m = update(t, m, tui.RunFinishedMsg{Run: tui.RunFinished{RunID: "run-1", State: runner.OutcomeHalted, Progress: 50, Steps: []tui.StepView{done, failed}}})
	require.Equal(t, ScreenProgress, m.Screen())
	require.True(t, m.State().Idle())
	require.Contains(t, m.View(), "Run stopped")

	m = update(t, m, key("r"))
	require.Equal(t, []tui.ActionKind{tui.ActionHalt, tui.ActionReset}, pub.kinds())
	m = update(t, m, tui.RunResetMsg{Reset: tui.RunReset{Steps: testSteps()}})
	require.Equal(t, ScreenConfig, m.Screen())
	require.Nil(t, m.State().Finished)
}

func TestRootModel_CompleteScreen(t *testing.T) {
	m := newTestRoot(&actionRecorder{})
	m = update(t, m, tui.RunStartedMsg{Run: tui.RunStarted{RunID: "run-2", Steps: testSteps()}})

	steps := testSteps()
	steps[0].Status, steps[0].Summary = runner.StatusDone, "project ok"
	steps[1].Status, steps[1].Summary = runner.StatusDone, "3 bonuses"
	m = update(t, m, tui.RunFinishedMsg{Run: tui.RunFinished{RunID: "run-2", State: runner.OutcomeCompleted, Progress: 100, Steps: steps}})
	require.Equal(t, ScreenComplete, m.Screen())
	view := m.View()
	require.Contains(t, view, "All steps finished")
	require.Contains(t, view, "3 bonuses")
}

func TestRootModel_StaleEventsIgnored(t *testing.T) {
	m := newTestRoot(&actionRecorder{})
	m = update(t, m, tui.RunStartedMsg{Run: tui.RunStarted{RunID: "run-3", Steps: testSteps()}})

	done := testSteps()[0]
	done.Status = runner.StatusDone
	m = update(t, m, tui.StepFinishedMsg{Event: tui.StepFinished{RunID: "run-3", Step: done}})

	running := testSteps()[0]
	running.Status = runner.StatusRunning
	m = update(t, m, tui.StepStartedMsg{Event: tui.StepStarted{RunID: "run-3", Step: running}})
	st, _ := m.State().Step("project")
	require.Equal(t, runner.StatusDone, st.Status)

	other := testSteps()[1]
	other.Status = runner.StatusRunning
	m = update(t, m, tui.StepStartedMsg{Event: tui.StepStarted{RunID: "another-run", Step: other}})
	st, _ = m.State().Step("offer")
	require.Equal(t, runner.StatusPending, st.Status)
}

func TestRootModel_EventsTab(t *testing.T) {
	pub := &actionRecorder{}
	m := newTestRoot(pub)
	m = update(t, m, tui.EventLogAppendMsg{Entry: tui.EventLogEntry{Source: "runner", Level: tui.LogLevelInfo, Text: "run abc started"}})
	m = update(t, m, tui.EventLogAppendMsg{Entry: tui.EventLogEntry{Source: "offer", Level: tui.LogLevelError, Text: "offer failed"}})

	m = update(t, m, key("tab"))
	require.True(t, m.ShowingEvents())
	require.Contains(t, m.View(), "Events (2)")

	// enter belongs to the event log while it is shown
	m = update(t, m, key("enter"))
	require.Empty(t, pub.kinds())

	m = update(t, m, key("tab"))
	require.False(t, m.ShowingEvents())
}
