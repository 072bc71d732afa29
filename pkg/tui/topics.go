package tui

const (
	TopicDomainEvents = "offerforge.events"
	TopicUIMessages   = "offerforge.ui.msgs"
	TopicUIActions    = "offerforge.ui.actions"
)

const (
	DomainTypeRunStarted       = "run.started"
	DomainTypeStepStarted      = "step.started"
	DomainTypeStepFinished     = "step.finished"
	DomainTypeDecisionRequired = "decision.required"
	DomainTypeRunFinished      = "run.finished"
	DomainTypeRunReset         = "run.reset"
	DomainTypeStepsChanged     = "steps.changed"
	DomainTypeActionLog        = "action.log"
)

const (
	UITypeRunStarted       = "tui.run.started"
	UITypeStepStarted      = "tui.step.started"
	UITypeStepFinished     = "tui.step.finished"
	UITypeDecisionRequired = "tui.decision.required"
	UITypeRunFinished      = "tui.run.finished"
	UITypeRunReset         = "tui.run.reset"
	UITypeStepsChanged     = "tui.steps.changed"
	UITypeEventAppend      = "tui.event.append"
	UITypeActionRequest    = "tui.action.request"
)
