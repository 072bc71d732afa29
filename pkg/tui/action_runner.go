package tui

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/offerforge/pkg/runner"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Session is what the action runner drives: the step runner plus whatever state must be
// dropped on reset.
type Session struct {
	Runner *runner.Runner
	// OnReset runs after a successful reset, e.g. to forget the shared project.
	OnReset   func()
	Summarize Summarizer
}

// RegisterUIActionRunner executes UI actions. The bus delivers them one at a time, so a
// run blocks later actions until the runner returns.
func RegisterUIActionRunner(ctx context.Context, bus *Bus, s *Session) {
	bus.Handle("offerforge-ui-actions", TopicUIActions, func(msg *message.Message) error {
		defer msg.Ack()

		var env Envelope
		if err := json.Unmarshal(msg.Payload, &env); err != nil {
			_ = publishActionLog(bus.Publisher, LogLevelWarn, "action: bad envelope (unmarshal failed)")
			return nil
		}
		if env.Type != UITypeActionRequest {
			return nil
		}
		var req ActionRequest
		if err := env.Decode(&req); err != nil {
			_ = publishActionLog(bus.Publisher, LogLevelWarn, "action: bad request (unmarshal failed)")
			return nil
		}
		if req.Kind == "" {
			return nil
		}

		log.Debug().Str("action", string(req.Kind)).Str("step", string(req.Step)).Msg("ui action")
		if err := s.Execute(ctx, bus.Publisher, req); err != nil {
			_ = publishActionLog(bus.Publisher, LogLevelError, "action failed: "+string(req.Kind)+": "+err.Error())
		}
		return nil
	})
}

// Execute performs one action. Step progress is reported by the runner observer, so only
// failures to act are returned.
func (s *Session) Execute(ctx context.Context, pub message.Publisher, req ActionRequest) error {
	if s == nil || s.Runner == nil {
		return errors.New("no runner")
	}
	r := s.Runner
	switch req.Kind {
	case ActionStart:
		_, err := r.Run(ctx)
		if errors.Is(err, runner.ErrNeedsReset) {
			return errors.New("previous run failed; press r to reset first")
		}
		return ignoreCanceled(err)
	case ActionContinue:
		_, err := r.Resume(ctx, runner.DecisionContinue)
		return ignoreCanceled(err)
	case ActionHalt:
		_, err := r.Resume(ctx, runner.DecisionHalt)
		return err
	case ActionReset:
		if err := r.Reset(); err != nil {
			return err
		}
		if s.OnReset != nil {
			s.OnReset()
		}
		return nil
	case ActionToggle:
		st, ok := r.Step(req.Step)
		if !ok {
			return errors.Wrapf(runner.ErrUnknownStep, "%s", req.Step)
		}
		if err := r.SetEnabled(req.Step, !st.Enabled); err != nil {
			return err
		}
		return publishEnvelope(pub, TopicDomainEvents, DomainTypeStepsChanged, StepsChanged{
			At:    time.Now(),
			Steps: NewStepViews(r.Steps(), s.Summarize),
		})
	default:
		return errors.Errorf("unknown action: %s", req.Kind)
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func publishActionLog(pub message.Publisher, level LogLevel, text string) error {
	return publishEnvelope(pub, TopicDomainEvents, DomainTypeActionLog, ActionLog{At: time.Now(), Level: level, Text: text})
}
