package tui

type EventLogAppendMsg struct {
	Entry EventLogEntry
}

type RunStartedMsg struct {
	Run RunStarted
}

type StepStartedMsg struct {
	Event StepStarted
}

type StepFinishedMsg struct {
	Event StepFinished
}

type DecisionRequiredMsg struct {
	Event DecisionRequired
}

type RunFinishedMsg struct {
	Run RunFinished
}

type RunResetMsg struct {
	Reset RunReset
}

type StepsChangedMsg struct {
	Steps []StepView
}
