package pipeline

import (
	"errors"
	"fmt"

	"github.com/banshee-data/sarsim/internal/config"
)

// Failure kinds. Every error returned by Run matches exactly one of these
// (or a context error when the run was interrupted) under errors.Is.
var (
	// ErrInput is a malformed or end-of-input console read.
	ErrInput = config.ErrInput
	// ErrUnknownMode is a mode character other than 's' or 'p'.
	ErrUnknownMode = config.ErrUnknownMode
	// ErrAcquisition is a failure to read raw radar data in process mode.
	ErrAcquisition = errors.New("failed to read radar data")
	// ErrAlgorithm is a failure of any processing stage.
	ErrAlgorithm = errors.New("processing stage failed")
	// ErrPersist is a failure to write the run output.
	ErrPersist = errors.New("failed to persist run output")
)

// StageError records which stage failed and the kind of failure.
type StageError struct {
	Stage string
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%v: stage %s: %v", e.Kind, e.Stage, e.Err)
}

// Unwrap exposes both the failure kind and the underlying cause.
func (e *StageError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Diagnostic returns the short operator-facing message for err.
func Diagnostic(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInput):
		return "Invalid input detected, closing."
	case errors.Is(err, ErrUnknownMode):
		return "Mode not recognized - exiting."
	case errors.Is(err, ErrAcquisition):
		return "Failed to read radar data, closing."
	case errors.Is(err, ErrAlgorithm):
		return "Processing failed, closing."
	case errors.Is(err, ErrPersist):
		return "Failed to write output, closing."
	}
	return "Run interrupted, closing."
}
