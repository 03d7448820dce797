package cli

import (
	"errors"
	"fmt"

	"github.com/agentsh/backtrack/internal/backtrack"
	"github.com/agentsh/backtrack/internal/trace"
)

// Process exit codes. 65, 66 and 78 follow sysexits.h.
const (
	ExitFailure        = 1
	ExitUnknownPOI     = 3
	ExitMalformedTrace = 65
	ExitNoInput        = 66
	ExitConfig         = 78
)

// ExitError is returned by commands that want to control the process exit code
// without necessarily printing an additional error message.
type ExitError struct {
	code    int
	message string
}

func (e *ExitError) Error() string {
	if e == nil {
		return ""
	}
	if e.message != "" {
		return e.message
	}
	return fmt.Sprintf("exit %d", e.code)
}

func (e *ExitError) Code() int {
	if e == nil {
		return 1
	}
	return e.code
}

func (e *ExitError) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// exitFor maps analysis errors to exit codes. Errors that are already
// *ExitError, and nil, pass through unchanged.
func exitFor(err error) error {
	if err == nil {
		return nil
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return err
	}
	switch {
	case errors.Is(err, trace.ErrSourceNotFound):
		return &ExitError{code: ExitNoInput, message: err.Error()}
	case errors.Is(err, trace.ErrMalformedLine), errors.Is(err, trace.ErrUnmatchedExit):
		return &ExitError{code: ExitMalformedTrace, message: err.Error()}
	case errors.Is(err, backtrack.ErrUnknownPointOfInterest):
		return &ExitError{code: ExitUnknownPOI, message: err.Error()}
	default:
		return err
	}
}

func configError(err error) error {
	return &ExitError{code: ExitConfig, message: err.Error()}
}
