package tui

import (
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/offerforge/pkg/runner"
	"github.com/pkg/errors"
)

type ActionKind string

const (
	ActionStart    ActionKind = "start"
	ActionContinue ActionKind = "continue"
	ActionHalt     ActionKind = "halt"
	ActionReset    ActionKind = "reset"
	ActionToggle   ActionKind = "toggle"
)

type ActionRequest struct {
	Kind ActionKind `json:"kind"`
	At   time.Time  `json:"at"`
	// Step is the target of a toggle.
	Step runner.StepID `json:"step,omitempty"`
}

func PublishAction(pub message.Publisher, req ActionRequest) error {
	if req.Kind == "" {
		return errors.New("missing action kind")
	}
	if req.Kind == ActionToggle && req.Step == "" {
		return errors.New("toggle needs a step")
	}
	if req.At.IsZero() {
		req.At = time.Now()
	}
	return publishEnvelope(pub, TopicUIActions, UITypeActionRequest, req)
}
