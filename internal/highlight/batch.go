package highlight

import (
	"fmt"
	"time"
)

// Batch is a contiguous analysis window of the source video. Windows are
// produced by SplitDuration and always tile [0, total) with no gaps and no
// overlap; overlap is only permitted in the highlights found inside them.
type Batch struct {
	Index int
	Start time.Duration
	End   time.Duration
}

// Duration returns the window length.
func (b Batch) Duration() time.Duration {
	return b.End - b.Start
}

// SplitDuration divides a source duration into ordered batches of at most
// max each. When maxCount > 0 and the plain split would exceed it, windows
// are widened so the count fits. A duration at or under max yields a single
// batch.
func SplitDuration(total, max time.Duration, maxCount int) ([]Batch, error) {
	if max <= 0 {
		return nil, fmt.Errorf("max batch duration must be positive, got %v", max)
	}
	if total <= 0 {
		return nil, fmt.Errorf("source duration must be positive, got %v", total)
	}

	count := int((total + max - 1) / max)
	if maxCount > 0 && count > maxCount {
		count = maxCount
		max = (total + time.Duration(count) - 1) / time.Duration(count)
	}

	batches := make([]Batch, 0, count)
	for start := time.Duration(0); start < total; start += max {
		end := start + max
		if end > total {
			end = total
		}
		batches = append(batches, Batch{
			Index: len(batches),
			Start: start,
			End:   end,
		})
	}
	return batches, nil
}
