package pipeline

import (
	"time"

	"github.com/keagan/fragcannon/internal/analyzer"
	"github.com/keagan/fragcannon/internal/ffmpeg"
	"github.com/keagan/fragcannon/internal/highlight"
)

// Result is everything a finished run produced. It is returned even on
// partial failure so callers can report what survived.
type Result struct {
	RunID  string
	Source *ffmpeg.VideoInfo
	Title  string

	// Intervals is the final ordered cut list.
	Intervals []highlight.CutInterval
	// Dropped holds merged intervals discarded for being too short.
	Dropped []highlight.CutInterval

	Compilation string
	Shorts      []string

	BatchFailures   []analyzer.BatchFailure
	ExtractFailures []ExtractionError

	StartedAt  time.Time
	FinishedAt time.Time
}
