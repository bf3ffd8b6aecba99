package config

import (
	"errors"
	"fmt"
)

// Mode selects how raw radar returns are obtained.
type Mode int

const (
	// ModeUnknown is the zero value; a run never starts in this mode.
	ModeUnknown Mode = iota
	// ModeSimulate synthesizes raw returns from a generated scene.
	ModeSimulate
	// ModeProcess loads raw returns from a previously written file.
	ModeProcess
)

var (
	// ErrUnknownMode is returned when a mode character is neither 's' nor 'p'.
	ErrUnknownMode = errors.New("mode not recognized")
	// ErrInput is returned when operator input ends or cannot be parsed.
	ErrInput = errors.New("invalid input")
)

// ParseMode maps the operator's mode character to a Mode.
func ParseMode(c byte) (Mode, error) {
	switch c {
	case 's':
		return ModeSimulate, nil
	case 'p':
		return ModeProcess, nil
	}
	return ModeUnknown, fmt.Errorf("%w: %q", ErrUnknownMode, c)
}

// Char returns the single-character form of the mode.
func (m Mode) Char() byte {
	switch m {
	case ModeSimulate:
		return 's'
	case ModeProcess:
		return 'p'
	}
	return '?'
}

func (m Mode) String() string {
	switch m {
	case ModeSimulate:
		return "simulate"
	case ModeProcess:
		return "process"
	}
	return "unknown"
}

// DefaultOutputPath is where Persist writes when no output path is given.
const DefaultOutputPath = "sar_output.dat"

// Options are the operator decisions for one run. They are captured once,
// from flags or console prompts, before any stage executes.
type Options struct {
	Mode Mode
	// InputPath is the raw data file read in ModeProcess.
	InputPath string
	// OutputPath is the file Persist writes on success.
	OutputPath string
	// Denoise gates the CinSnow filter stage.
	Denoise bool
	// ImagePulseCompression gates pulse compression of the radar image.
	ImagePulseCompression bool
}

// Validate checks that the options describe a runnable pipeline.
func (o Options) Validate() error {
	switch o.Mode {
	case ModeSimulate:
	case ModeProcess:
		if o.InputPath == "" {
			return errors.New("input path is required in process mode")
		}
	default:
		return ErrUnknownMode
	}
	if o.OutputPath == "" {
		return errors.New("output path is required")
	}
	return nil
}
