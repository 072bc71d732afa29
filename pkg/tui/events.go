package tui

import (
	"time"

	"github.com/go-go-golems/offerforge/pkg/runner"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

type EventLogEntry struct {
	At     time.Time `json:"at"`
	Source string    `json:"source,omitempty"`
	Level  LogLevel  `json:"level,omitempty"`
	Text   string    `json:"text"`
}

// StepView is a step as the screens see it. Results travel as their rendered summary
// because the bus is JSON and results are arbitrary values.
type StepView struct {
	ID          runner.StepID `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Enabled     bool          `json:"enabled"`
	Status      runner.Status `json:"status"`
	Summary     string        `json:"summary,omitempty"`
	Error       string        `json:"error,omitempty"`
	DurationMs  int64         `json:"duration_ms,omitempty"`
}

type RunStarted struct {
	RunID string     `json:"run_id"`
	At    time.Time  `json:"at"`
	Steps []StepView `json:"steps"`
}

type StepStarted struct {
	RunID string    `json:"run_id"`
	At    time.Time `json:"at"`
	Step  StepView  `json:"step"`
}

type StepFinished struct {
	RunID    string    `json:"run_id"`
	At       time.Time `json:"at"`
	Step     StepView  `json:"step"`
	Progress int       `json:"progress"`
}

type DecisionRequired struct {
	RunID string    `json:"run_id"`
	At    time.Time `json:"at"`
	Step  StepView  `json:"step"`
}

type RunFinished struct {
	RunID    string              `json:"run_id"`
	At       time.Time           `json:"at"`
	State    runner.OutcomeState `json:"state"`
	Progress int                 `json:"progress"`
	Steps    []StepView          `json:"steps"`
}

type RunReset struct {
	At    time.Time  `json:"at"`
	Steps []StepView `json:"steps"`
}

type StepsChanged struct {
	At    time.Time  `json:"at"`
	Steps []StepView `json:"steps"`
}

type ActionLog struct {
	At    time.Time `json:"at"`
	Level LogLevel  `json:"level,omitempty"`
	Text  string    `json:"text"`
}
