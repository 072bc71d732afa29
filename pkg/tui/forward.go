package tui

import (
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
)

// Sender is the part of *tea.Program the forwarder needs.
type Sender interface {
	Send(msg tea.Msg)
}

var _ Sender = (*tea.Program)(nil)

func RegisterUIForwarder(bus *Bus, p Sender) {
	bus.Handle("offerforge-ui-forward", TopicUIMessages, func(msg *message.Message) error {
		defer msg.Ack()

		var env Envelope
		if err := json.Unmarshal(msg.Payload, &env); err != nil {
			return errors.Wrap(err, "unmarshal ui envelope")
		}
		m, err := uiMessage(env)
		if err != nil {
			return err
		}
		if m != nil {
			p.Send(m)
		}
		return nil
	})
}

func uiMessage(env Envelope) (tea.Msg, error) {
	switch env.Type {
	case UITypeEventAppend:
		var entry EventLogEntry
		if err := env.Decode(&entry); err != nil {
			return nil, err
		}
		return EventLogAppendMsg{Entry: entry}, nil
	case UITypeRunStarted:
		var ev RunStarted
		if err := env.Decode(&ev); err != nil {
			return nil, err
		}
		return RunStartedMsg{Run: ev}, nil
	case UITypeStepStarted:
		var ev StepStarted
		if err := env.Decode(&ev); err != nil {
			return nil, err
		}
		return StepStartedMsg{Event: ev}, nil
	case UITypeStepFinished:
		var ev StepFinished
		if err := env.Decode(&ev); err != nil {
			return nil, err
		}
		return StepFinishedMsg{Event: ev}, nil
	case UITypeDecisionRequired:
		var ev DecisionRequired
		if err := env.Decode(&ev); err != nil {
			return nil, err
		}
		return DecisionRequiredMsg{Event: ev}, nil
	case UITypeRunFinished:
		var ev RunFinished
		if err := env.Decode(&ev); err != nil {
			return nil, err
		}
		return RunFinishedMsg{Run: ev}, nil
	case UITypeRunReset:
		var ev RunReset
		if err := env.Decode(&ev); err != nil {
			return nil, err
		}
		return RunResetMsg{Reset: ev}, nil
	case UITypeStepsChanged:
		var ev StepsChanged
		if err := env.Decode(&ev); err != nil {
			return nil, err
		}
		return StepsChangedMsg{Steps: ev.Steps}, nil
	}
	return nil, nil
}
