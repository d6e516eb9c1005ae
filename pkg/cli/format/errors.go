package format

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/rzbill/placer/pkg/types"
)

// Error colors
var (
	ErrorColor     = color.New(color.FgRed, color.Bold)
	WarningColor   = color.New(color.FgYellow, color.Bold)
	SuccessColor   = color.New(color.FgGreen, color.Bold)
	HintColor      = color.New(color.FgYellow, color.Italic)
	HeadingColor   = color.New(color.FgHiWhite, color.Bold)
	DetailKeyColor = color.New(color.FgCyan)
	ContextColor   = color.New(color.FgHiBlack)
)

// hints by error kind
var hintTemplates = map[types.ErrorKind]string{
	types.KindValidation:  "Fix the request and submit it again. Nothing was changed.",
	types.KindConstraint:  "Adjust the node list so every component stays within its bounds.",
	types.KindNotFound:    "Check the identifiers with the list commands.",
	types.KindConsistency: "Stored placement data is inconsistent. Rerun with --verbose and check the placer log.",
}

// ErrorFormatter renders placement errors for a terminal.
type ErrorFormatter struct {
	Out           io.Writer
	TerminalWidth int

	// Verbose also prints the underlying cause of internal failures
	Verbose bool
}

// NewErrorFormatter creates a formatter writing to out, sized to the terminal
// attached to stdout.
func NewErrorFormatter(out io.Writer) *ErrorFormatter {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		width = 80
	}
	if width > 120 {
		width = 120
	}
	return &ErrorFormatter{Out: out, TerminalWidth: width}
}

// Title returns the headline shown for an error kind. Consistency failures are
// reported as opaque internal errors.
func Title(kind types.ErrorKind) string {
	switch kind {
	case types.KindValidation:
		return "INVALID REQUEST"
	case types.KindConstraint:
		return "CONSTRAINT VIOLATED"
	case types.KindNotFound:
		return "NOT FOUND"
	case types.KindStorage:
		return "STORAGE FAILURE"
	case types.KindConsistency:
		return "INTERNAL ERROR"
	default:
		return "ERROR"
	}
}

// Print renders err. Unclassified errors print as a single line.
func (f *ErrorFormatter) Print(err error) {
	if err == nil {
		return
	}

	var typed *types.Error
	if !errors.As(err, &typed) {
		ErrorColor.Fprint(f.Out, "× ")
		fmt.Fprintln(f.Out, err.Error())
		return
	}

	ErrorColor.Fprintln(f.Out, "×", Title(typed.Kind))
	fmt.Fprintln(f.Out, ContextColor.Sprint(strings.Repeat("─", f.TerminalWidth)))

	if typed.Kind == types.KindConsistency && !f.Verbose {
		fmt.Fprintln(f.Out, "  The operation failed because of an internal error.")
	} else {
		fmt.Fprintf(f.Out, "  %s\n", typed.Message)
		if typed.Cause != nil && (f.Verbose || typed.Kind == types.KindStorage) {
			fmt.Fprintf(f.Out, "  %s %v\n", ContextColor.Sprint("cause:"), typed.Cause)
		}
		f.printDetails(typed.Details)
	}

	hint, ok := hintTemplates[typed.Kind]
	if types.Retryable(err) {
		hint, ok = "The batch was rolled back and may be retried.", true
	}
	if ok {
		fmt.Fprintln(f.Out)
		fmt.Fprintf(f.Out, "  %s %s\n", HintColor.Sprint("hint:"), hint)
	}
}

func (f *ErrorFormatter) printDetails(details map[string]interface{}) {
	if len(details) == 0 {
		return
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintln(f.Out)
	for _, k := range keys {
		fmt.Fprintf(f.Out, "  %s %v\n", DetailKeyColor.Sprintf("%-16s", k+":"), details[k])
	}
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	switch types.KindOf(err) {
	case "":
		if err == nil {
			return 0
		}
		return 1
	case types.KindValidation, types.KindNotFound:
		return 2
	case types.KindConstraint:
		return 3
	case types.KindStorage:
		return 4
	default:
		return 5
	}
}
