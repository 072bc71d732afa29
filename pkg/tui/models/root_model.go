package models

import (
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/offerforge/pkg/engine"
	"github.com/go-go-golems/offerforge/pkg/runner"
	"github.com/go-go-golems/offerforge/pkg/tui"
	"github.com/go-go-golems/offerforge/pkg/tui/styles"
	"github.com/go-go-golems/offerforge/pkg/tui/widgets"
	"github.com/rs/zerolog/log"
)

type ScreenID string

const (
	ScreenConfig   ScreenID = "config"
	ScreenProgress ScreenID = "progress"
	ScreenComplete ScreenID = "complete"
)

type RootOptions struct {
	Brief      engine.Brief
	BackendURL string
	Steps      []tui.StepView
	// Publisher receives the UI actions; keys are no-ops without it.
	Publisher message.Publisher
	Now       func() time.Time
}

type RootModel struct {
	width  int
	height int

	screen     ScreenID
	showEvents bool
	state      RunState
	pub        message.Publisher
	now        func() time.Time

	config   ConfigModel
	progress ProgressModel
	complete CompleteModel
	events   EventLogModel
}

func NewRootModel(opts RootOptions) RootModel {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return RootModel{
		screen:   ScreenConfig,
		state:    NewRunState(opts.Steps),
		pub:      opts.Publisher,
		now:      now,
		config:   NewConfigModel(opts.Brief, opts.BackendURL),
		progress: NewProgressModel(),
		complete: NewCompleteModel(),
		events:   NewEventLogModel(),
	}
}

func (m RootModel) Screen() ScreenID    { return m.screen }
func (m RootModel) State() RunState     { return m.state }
func (m RootModel) ShowingEvents() bool { return m.showEvents }

func (m RootModel) Init() tea.Cmd { return m.progress.Init() }

func (m RootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch v := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = v.Width, v.Height
		m.config = m.config.WithSize(v.Width)
		m.progress = m.progress.WithSize(v.Width)
		m.complete = m.complete.WithSize(v.Width)
		m.events = m.events.WithSize(v.Width, maxInt(0, v.Height-4))
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(v)
	case tui.EventLogAppendMsg:
		m.events = m.events.Append(v.Entry)
		return m, nil
	case tui.RunStartedMsg, tui.StepStartedMsg, tui.StepFinishedMsg, tui.DecisionRequiredMsg,
		tui.RunFinishedMsg, tui.RunResetMsg, tui.StepsChangedMsg:
		m.state = m.state.Apply(v)
		m.screen = m.screenFor(v)
		return m, nil
	}

	var cmd tea.Cmd
	m.progress, cmd = m.progress.Update(msg)
	return m, cmd
}

func (m RootModel) screenFor(msg tea.Msg) ScreenID {
	switch v := msg.(type) {
	case tui.RunStartedMsg:
		return ScreenProgress
	case tui.RunFinishedMsg:
		if v.Run.State == runner.OutcomeCompleted && v.Run.Progress == 100 {
			return ScreenComplete
		}
	case tui.RunResetMsg:
		return ScreenConfig
	}
	return m.screen
}

func (m RootModel) handleKey(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "tab":
		m.showEvents = !m.showEvents
		return m, nil
	}

	// The event log owns the keyboard while it is visible.
	if m.showEvents {
		if k.String() == "q" && !m.events.editing {
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.events, cmd = m.events.Update(k)
		return m, cmd
	}

	switch k.String() {
	case "q":
		return m, tea.Quit
	case "up", "k":
		m.config = m.config.Move(-1, len(m.state.Steps))
	case "down", "j":
		m.config = m.config.Move(1, len(m.state.Steps))
	case " ", "space":
		if m.screen == ScreenConfig && m.state.Idle() {
			if id, ok := m.config.Selected(m.state); ok {
				m.publish(tui.ActionRequest{Kind: tui.ActionToggle, Step: id})
			}
		}
	case "enter":
		if m.screen == ScreenConfig && m.state.Idle() {
			m.publish(tui.ActionRequest{Kind: tui.ActionStart})
		}
	case "c":
		if m.state.Awaiting != nil {
			m.publish(tui.ActionRequest{Kind: tui.ActionContinue})
		}
	case "h":
		if m.state.Awaiting != nil {
			m.publish(tui.ActionRequest{Kind: tui.ActionHalt})
		}
	case "r":
		if !m.state.Running {
			m.publish(tui.ActionRequest{Kind: tui.ActionReset})
		}
	}
	return m, nil
}

func (m RootModel) publish(req tui.ActionRequest) {
	if m.pub == nil {
		return
	}
	req.At = m.now()
	if err := tui.PublishAction(m.pub, req); err != nil {
		log.Warn().Err(err).Str("action", string(req.Kind)).Msg("publish ui action")
	}
}

func (m RootModel) keybinds() []widgets.Key {
	if m.showEvents {
		return []widgets.Key{{Key: "tab", Label: "back"}, {Key: "/", Label: "filter"}, {Key: "q", Label: "quit"}}
	}
	switch {
	case m.state.Awaiting != nil:
		return []widgets.Key{{Key: "c", Label: "continue"}, {Key: "h", Label: "halt"}, {Key: "r", Label: "reset"}, {Key: "tab", Label: "events"}, {Key: "q", Label: "quit"}}
	case m.state.Running:
		return []widgets.Key{{Key: "tab", Label: "events"}, {Key: "q", Label: "quit"}}
	case m.screen == ScreenConfig:
		return []widgets.Key{{Key: "↑/↓", Label: "select"}, {Key: "space", Label: "toggle"}, {Key: "enter", Label: "start"}, {Key: "tab", Label: "events"}, {Key: "q", Label: "quit"}}
	default:
		return []widgets.Key{{Key: "r", Label: "reset"}, {Key: "tab", Label: "events"}, {Key: "q", Label: "quit"}}
	}
}

func (m RootModel) View() string {
	status, ok := "ready", true
	switch {
	case m.state.Awaiting != nil:
		status, ok = "step failed", false
	case m.state.Running:
		status = "running"
	case m.state.Finished != nil:
		status = string(m.state.Finished.State)
		ok = m.state.Finished.State == runner.OutcomeCompleted
	}

	header := widgets.TitleBar{Title: "OfferForge", Status: status, OK: ok, Width: m.width}
	if !m.state.StartedAt.IsZero() && m.state.Running {
		header.Elapsed = m.now().Sub(m.state.StartedAt)
	}

	var body string
	switch {
	case m.showEvents:
		body = m.events.View()
	case m.screen == ScreenProgress:
		body = m.progress.View(m.state)
	case m.screen == ScreenComplete:
		body = m.complete.View(m.state)
	default:
		body = m.config.View(m.state)
	}

	theme := styles.DefaultTheme()
	footer := widgets.KeyHints(m.keybinds(), m.width, theme)
	return lipgloss.JoinVertical(lipgloss.Left, header.Render(theme), body, footer)
}
