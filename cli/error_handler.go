package cli

import (
	"fmt"
	"io"

	"github.com/grovetools/envwatch/errors"
	"github.com/grovetools/envwatch/tui/theme"
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates a new error handler writing to out.
func NewErrorHandler(out io.Writer, verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		Out:     out,
	}
}

// Handle prints a message and a hint for err, then returns err unchanged.
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}
	t := theme.DefaultTheme
	fail := t.Error.Render("x")

	envErr, _ := errors.As(err)
	detail := func(key string) interface{} {
		if envErr == nil {
			return ""
		}
		return envErr.Detail(key)
	}

	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(h.Out, "%s Configuration file %v not found.\n", fail, detail("path"))
		fmt.Fprintln(h.Out, t.Muted.Render("Drop --config to use defaults, or create envwatch.yml."))

	case errors.ErrCodeConfigInvalid, errors.ErrCodeConfigValidation:
		fmt.Fprintf(h.Out, "%s Invalid configuration: %v\n", fail, err)
		fmt.Fprintln(h.Out, t.Muted.Render("Run 'envwatch config validate' for details."))

	case errors.ErrCodeRootNotFound:
		fmt.Fprintf(h.Out, "%s Environment root %v does not exist.\n", fail, detail("root"))
		fmt.Fprintln(h.Out, t.Muted.Render("Pass --root, set ENVWATCH_ROOT, or set 'root' in envwatch.yml."))

	case errors.ErrCodeEnvNotFound:
		fmt.Fprintf(h.Out, "%s Environment '%v' not found.\n", fail, detail("env"))
		fmt.Fprintln(h.Out, t.Muted.Render("Run 'envwatch list' to see known environments."))

	case errors.ErrCodeDaemonNotRunning:
		fmt.Fprintf(h.Out, "%s The daemon is not running.\n", fail)
		fmt.Fprintln(h.Out, t.Muted.Render("Start it with 'envwatch daemon start'."))

	case errors.ErrCodeCommandNotFound:
		fmt.Fprintf(h.Out, "%s Required command %v not found.\n", fail, detail("command"))
		fmt.Fprintln(h.Out, t.Muted.Render("Check 'queries' in envwatch.yml."))

	case errors.ErrCodeCommandTimeout:
		fmt.Fprintf(h.Out, "%s Command %v did not finish within %v.\n", fail, detail("command"), detail("timeout"))
		fmt.Fprintln(h.Out, t.Muted.Render("Raise refresh.query_timeout in envwatch.yml."))

	case errors.ErrCodeSnapshotInvalid:
		fmt.Fprintf(h.Out, "%s Snapshot %v is unreadable.\n", fail, detail("path"))
		fmt.Fprintln(h.Out, t.Muted.Render("Delete the file; it is rebuilt on the next run."))

	default:
		fmt.Fprintf(h.Out, "%s Error: %v\n", fail, err)
	}

	if h.Verbose && envErr != nil {
		fmt.Fprintf(h.Out, "\nError details:\n%s\n", envErr.ToJSON())
	}
	return err
}
