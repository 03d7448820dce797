package trace

import (
	"errors"
	"fmt"
)

var (
	ErrSourceNotFound = errors.New("trace source not found")
	ErrMalformedLine  = errors.New("malformed trace line")
	ErrUnmatchedExit  = errors.New("unmatched exit record")
)

// SourceNotFoundError is returned when the trace file cannot be opened.
type SourceNotFoundError struct {
	Path string
	Err  error
}

func (e *SourceNotFoundError) Error() string {
	return fmt.Sprintf("open trace %q: %v", e.Path, e.Err)
}

func (e *SourceNotFoundError) Unwrap() error { return e.Err }

func (e *SourceNotFoundError) Is(target error) bool { return target == ErrSourceNotFound }

// MalformedLineError identifies a trace line that could not be parsed.
// Line is 1-based.
type MalformedLineError struct {
	Line   int
	Reason string
	Err    error
}

func (e *MalformedLineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("line %d: %s: %v", e.Line, e.Reason, e.Err)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

func (e *MalformedLineError) Unwrap() error { return e.Err }

func (e *MalformedLineError) Is(target error) bool { return target == ErrMalformedLine }

// UnmatchedExitError is returned under UnmatchedError when an exit record
// has no pending entry for its (process, operation) pair.
type UnmatchedExitError struct {
	Line      int
	Index     int64
	Process   string
	Operation string
}

func (e *UnmatchedExitError) Error() string {
	return fmt.Sprintf("line %d: exit %d (%s %s) has no matching entry", e.Line, e.Index, e.Process, e.Operation)
}

func (e *UnmatchedExitError) Is(target error) bool { return target == ErrUnmatchedExit }
