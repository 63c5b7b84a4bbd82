package pipeline

import (
	"errors"
	"fmt"

	"github.com/keagan/fragcannon/internal/highlight"
)

// ErrNoClips means analysis and filtering left nothing to compile. The
// accompanying Result still carries batch failures and dropped intervals.
var ErrNoClips = errors.New("no highlight clips survived analysis")

// ExtractionError records a single interval whose clip extraction
// failed. The run continues without it.
type ExtractionError struct {
	Interval highlight.CutInterval
	Err      error
}

func (e ExtractionError) Error() string {
	return fmt.Sprintf("extract %v-%v: %v", e.Interval.Start, e.Interval.End, e.Err)
}

func (e ExtractionError) Unwrap() error {
	return e.Err
}
