package audit

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyTarget   = errors.New("audit: empty target")
	ErrNoBaseline    = errors.New("audit: baseline analyzer is required")
	ErrNotConfigured = errors.New("audit: analyzer not configured")
)

// Stage names reported in StageError.
const (
	StageBaseline = "baseline"
	StageAxe      = "axe"
	StagePa11y    = "pa11y"
	StageKeyboard = "keyboard"
	StageAxeScore = "axe-score"
	StageMerge    = "merge"
)

// StageError is a fatal failure of a mandatory stage. No partial result is
// produced when Analyze returns one.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("audit: %s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// IsFatal reports whether err carries a StageError.
func IsFatal(err error) bool {
	var se *StageError
	return errors.As(err, &se)
}
