package tui

import (
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/offerforge/pkg/runner"
	"github.com/pkg/errors"
)

// RegisterDomainToUITransformer re-publishes domain events as UI messages and appends a
// line to the event log for the ones a user cares about.
func RegisterDomainToUITransformer(bus *Bus) {
	bus.Handle("offerforge-domain-to-ui", TopicDomainEvents, func(msg *message.Message) error {
		defer msg.Ack()

		var env Envelope
		if err := json.Unmarshal(msg.Payload, &env); err != nil {
			return errors.Wrap(err, "unmarshal domain envelope")
		}
		return transformDomainEvent(bus.Publisher, env)
	})
}

func transformDomainEvent(pub message.Publisher, env Envelope) error {
	publishUI := func(uiType string, payload any) error {
		return publishEnvelope(pub, TopicUIMessages, uiType, payload)
	}
	publishEventText := func(entry EventLogEntry) error {
		return publishUI(UITypeEventAppend, entry)
	}

	switch env.Type {
	case DomainTypeRunStarted:
		var ev RunStarted
		if err := env.Decode(&ev); err != nil {
			return err
		}
		if err := publishUI(UITypeRunStarted, ev); err != nil {
			return err
		}
		enabled := 0
		for _, s := range ev.Steps {
			if s.Enabled {
				enabled++
			}
		}
		return publishEventText(EventLogEntry{At: ev.At, Source: "runner", Level: LogLevelInfo,
			Text: fmt.Sprintf("run %s started (%d steps)", shortID(ev.RunID), enabled)})

	case DomainTypeStepStarted:
		var ev StepStarted
		if err := env.Decode(&ev); err != nil {
			return err
		}
		if err := publishUI(UITypeStepStarted, ev); err != nil {
			return err
		}
		return publishEventText(EventLogEntry{At: ev.At, Source: string(ev.Step.ID), Level: LogLevelDebug,
			Text: ev.Step.Title + ": started"})

	case DomainTypeStepFinished:
		var ev StepFinished
		if err := env.Decode(&ev); err != nil {
			return err
		}
		if err := publishUI(UITypeStepFinished, ev); err != nil {
			return err
		}
		text := fmt.Sprintf("%s: done in %dms (%d%%)", ev.Step.Title, ev.Step.DurationMs, ev.Progress)
		if ev.Step.Summary != "" {
			text += " " + ev.Step.Summary
		}
		return publishEventText(EventLogEntry{At: ev.At, Source: string(ev.Step.ID), Level: LogLevelInfo, Text: text})

	case DomainTypeDecisionRequired:
		var ev DecisionRequired
		if err := env.Decode(&ev); err != nil {
			return err
		}
		if err := publishUI(UITypeDecisionRequired, ev); err != nil {
			return err
		}
		return publishEventText(EventLogEntry{At: ev.At, Source: string(ev.Step.ID), Level: LogLevelError,
			Text: fmt.Sprintf("%s failed: %s", ev.Step.Title, ev.Step.Error)})

	case DomainTypeRunFinished:
		var ev RunFinished
		if err := env.Decode(&ev); err != nil {
			return err
		}
		if err := publishUI(UITypeRunFinished, ev); err != nil {
			return err
		}
		level := LogLevelInfo
		if ev.State != runner.OutcomeCompleted {
			level = LogLevelWarn
		}
		return publishEventText(EventLogEntry{At: ev.At, Source: "runner", Level: level,
			Text: fmt.Sprintf("run %s %s (%d%%)", shortID(ev.RunID), ev.State, ev.Progress)})

	case DomainTypeRunReset:
		var ev RunReset
		if err := env.Decode(&ev); err != nil {
			return err
		}
		if err := publishUI(UITypeRunReset, ev); err != nil {
			return err
		}
		return publishEventText(EventLogEntry{At: ev.At, Source: "runner", Level: LogLevelInfo, Text: "steps reset"})

	case DomainTypeStepsChanged:
		var ev StepsChanged
		if err := env.Decode(&ev); err != nil {
			return err
		}
		return publishUI(UITypeStepsChanged, ev)

	case DomainTypeActionLog:
		var ev ActionLog
		if err := env.Decode(&ev); err != nil {
			return err
		}
		level := ev.Level
		if level == "" {
			level = LogLevelInfo
		}
		return publishEventText(EventLogEntry{At: ev.At, Source: "system", Level: level, Text: ev.Text})

	default:
		return nil
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
