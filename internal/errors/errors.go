package errors

import (
	"fmt"
	"os"

	"github.com/julianstephens/tally/internal/logger"
)

// Exit codes returned by Fatal, one per error kind.
const (
	ExitFailure    = 1
	ExitValidation = 2
	ExitPermission = 3
	ExitTransient  = 4
)

// Format renders err for the terminal. Classified errors carry their kind
// and, where the user can act on it, a hint on a second line.
func Format(err error) string {
	if err == nil {
		return ""
	}
	kind := KindOf(err)
	if kind == KindUnknown {
		return fmt.Sprintf("Error: %v", err)
	}
	msg := fmt.Sprintf("Error (%s): %v", kind, err)
	if hint := Hint(err); hint != "" {
		msg += "\n  " + hint
	}
	return msg
}

// Hint suggests what to do about err, or "" when nothing useful applies.
func Hint(err error) string {
	switch KindOf(err) {
	case KindPermission:
		return "The remote database refused access. Check the DSN role or run 'tally logout' to continue locally."
	case KindTransient:
		return "The remote database is unreachable. Your command can be retried once the connection is back."
	case KindStorage:
		return "Run 'tally doctor' to check the database."
	default:
		return ""
	}
}

// ExitCode maps err to the process exit status.
func ExitCode(err error) int {
	switch KindOf(err) {
	case KindValidation, KindNotFound:
		return ExitValidation
	case KindPermission:
		return ExitPermission
	case KindTransient:
		return ExitTransient
	default:
		return ExitFailure
	}
}

// Fatal logs err, prints it to stderr and exits. A nil err is a no-op.
func Fatal(err error) {
	if err != nil {
		logger.Error("command failed", "error", err, "kind", KindOf(err))
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		os.Exit(ExitCode(err))
	}
}
