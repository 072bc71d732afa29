package hooks

import (
	"fmt"
	"time"
)

type Options struct {
	// Timeout bounds each hook call; zero disables the watchdog.
	Timeout time.Duration
}

type Stats struct {
	Validations  int64
	Rejections   int64
	Summaries    int64
	HookErrors   int64
	HookTimeouts int64
}

type Info struct {
	Name         string
	ScriptPath   string
	HasValidate  bool
	HasSummarize bool
	HasInit      bool
}

// RejectedError is returned when a validate hook refuses a step result.
type RejectedError struct {
	Hook    string
	Step    string
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("hook %q rejected %s result: %s", e.Hook, e.Step, e.Message)
}
