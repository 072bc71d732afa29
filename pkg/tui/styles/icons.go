package styles

const (
	IconSuccess   = "✓"
	IconError     = "✗"
	IconRunning   = "▶"
	IconPending   = "○"
	IconSkipped   = "⊘"
	IconSystem    = "●"
	IconChecked   = "☑"
	IconUnchecked = "☐"
)

var stepIcons = map[string]string{
	"done":    IconSuccess,
	"failed":  IconError,
	"running": IconRunning,
}

// StepIcon is the glyph for a runner step status; disabled steps show as skipped.
func StepIcon(status string, enabled bool) string {
	if !enabled {
		return IconSkipped
	}
	if icon, ok := stepIcons[status]; ok {
		return icon
	}
	return IconPending
}

func ToggleIcon(enabled bool) string {
	if enabled {
		return IconChecked
	}
	return IconUnchecked
}

var levelIcons = map[string]string{
	"error": IconError,
	"warn":  "⚠",
	"info":  "ℹ",
}

func LogLevelIcon(level string) string {
	if icon, ok := levelIcons[level]; ok {
		return icon
	}
	return "•"
}
