package highlight

import (
	"sort"
	"time"
)

// Candidate is a raw highlight interval returned by the model for one
// batch. Start and End are absolute offsets into the source video; the
// analyzer rebases batch-local timestamps before candidates leave it.
type Candidate struct {
	Start       time.Duration
	End         time.Duration
	Description string
	Batch       int
}

// CutInterval is a finalized, non-overlapping interval ready for
// extraction.
type CutInterval struct {
	Start       time.Duration
	End         time.Duration
	Description string
}

// Duration returns the interval length.
func (c CutInterval) Duration() time.Duration {
	return c.End - c.Start
}

// MergeOptions controls interval normalization.
type MergeOptions struct {
	// MinDuration drops merged intervals shorter than this.
	MinDuration time.Duration
	// GapTolerance fuses intervals whose gap is at most this, which
	// repairs highlights split across a batch boundary.
	GapTolerance time.Duration
	// SourceDuration clamps interval ends. Zero disables clamping.
	SourceDuration time.Duration
}

// Merge collapses candidates into the minimal ordered set of
// non-overlapping cut intervals. The sweep is idempotent (merging its own
// output is a no-op) and invariant under permutation of the input.
// Intervals below MinDuration after merging are returned in dropped so the
// caller can log them.
func Merge(candidates []Candidate, opts MergeOptions) (merged, dropped []CutInterval) {
	clamped := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Start < 0 {
			c.Start = 0
		}
		if opts.SourceDuration > 0 && c.End > opts.SourceDuration {
			c.End = opts.SourceDuration
		}
		if c.End <= c.Start {
			continue
		}
		clamped = append(clamped, c)
	}

	// Full ordering, including description, keeps the result independent
	// of input order even for candidates with identical bounds.
	sort.Slice(clamped, func(i, j int) bool {
		a, b := clamped[i], clamped[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.End != b.End {
			return a.End < b.End
		}
		return a.Description < b.Description
	})

	var open *CutInterval
	emit := func(iv CutInterval) {
		if iv.Duration() >= opts.MinDuration {
			merged = append(merged, iv)
		} else {
			dropped = append(dropped, iv)
		}
	}

	for _, c := range clamped {
		if open != nil && c.Start <= open.End+opts.GapTolerance {
			if c.End > open.End {
				open.End = c.End
			}
			continue
		}
		if open != nil {
			emit(*open)
		}
		open = &CutInterval{Start: c.Start, End: c.End, Description: c.Description}
	}
	if open != nil {
		emit(*open)
	}
	return merged, dropped
}

// MergeIntervals re-runs the sweep over already-final intervals, used when
// rebuilding a cut list from persisted metadata.
func MergeIntervals(intervals []CutInterval, opts MergeOptions) (merged, dropped []CutInterval) {
	cands := make([]Candidate, len(intervals))
	for i, iv := range intervals {
		cands[i] = Candidate{Start: iv.Start, End: iv.End, Description: iv.Description}
	}
	return Merge(cands, opts)
}
