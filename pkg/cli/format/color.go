package format

import (
	"fmt"
	"os"
	"runtime"

	"github.com/rzbill/placer/pkg/types"
)

// Color codes
const (
	Reset      = "\033[0m"
	Bold       = "\033[1m"
	Red        = "\033[31m"
	Green      = "\033[32m"
	Yellow     = "\033[33m"
	Blue       = "\033[34m"
	Cyan       = "\033[36m"
	White      = "\033[37m"
	Gray       = "\033[90m"
	BoldRed    = "\033[1;31m"
	BoldGreen  = "\033[1;32m"
	BoldYellow = "\033[1;33m"
	BoldBlue   = "\033[1;34m"
	BoldCyan   = "\033[1;36m"
)

var useColor = true

func init() {
	if runtime.GOOS == "windows" {
		// ANSICON and WT_SESSION mark terminals that understand ANSI sequences
		_, hasAnsicon := os.LookupEnv("ANSICON")
		_, hasWT := os.LookupEnv("WT_SESSION")
		useColor = hasAnsicon || hasWT
	}

	if _, noColor := os.LookupEnv("PLACER_NO_COLOR"); noColor {
		useColor = false
	}
	if _, noColor := os.LookupEnv("NO_COLOR"); noColor {
		useColor = false
	}

	if _, forceColor := os.LookupEnv("PLACER_FORCE_COLOR"); !forceColor {
		fileInfo, err := os.Stdout.Stat()
		if err != nil || (fileInfo.Mode()&os.ModeCharDevice) == 0 {
			useColor = false
		}
	}
}

// EnableColor enables or disables colored output globally
func EnableColor(enable bool) {
	useColor = enable
}

// IsColorEnabled returns whether colored output is enabled
func IsColorEnabled() bool {
	return useColor
}

// Colorize adds color to a string if colors are enabled
func Colorize(color, text string) string {
	if useColor {
		return color + text + Reset
	}
	return text
}

// Success formats a message as a success (green)
func Success(format string, a ...interface{}) string {
	return Colorize(Green, fmt.Sprintf(format, a...))
}

// Warning formats a message as a warning (yellow)
func Warning(format string, a ...interface{}) string {
	return Colorize(Yellow, fmt.Sprintf(format, a...))
}

// Highlight formats a message as highlighted (bold cyan)
func Highlight(format string, a ...interface{}) string {
	return Colorize(BoldCyan, fmt.Sprintf(format, a...))
}

// Label formats a key and value with a label style
func Label(key, value string) string {
	return fmt.Sprintf("%s %s", Colorize(BoldCyan, key+":"), value)
}

// StateLabel colors a lifecycle state: pending intents yellow, deployed
// green, removed red.
func StateLabel(state types.State) string {
	switch state {
	case types.StateDeployed:
		return Colorize(BoldGreen, string(state))
	case types.StateSelected, types.StateSelectedAddition:
		return Colorize(BoldYellow, string(state))
	case types.StateRemoved:
		return Colorize(BoldRed, string(state))
	default:
		return Colorize(Gray, string(state))
	}
}

// NodeStateLabel colors a node record state.
func NodeStateLabel(state types.NodeState) string {
	if state == types.NodeStateRemoved {
		return Colorize(BoldRed, string(state))
	}
	return Colorize(BoldGreen, string(state))
}

// Bound renders a component max, "∞" when unbounded.
func Bound(max int) string {
	if max == types.Unbounded {
		return "∞"
	}
	return fmt.Sprintf("%d", max)
}
