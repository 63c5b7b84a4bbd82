package ffmpeg

import (
	"context"
	"fmt"
	"time"

	"github.com/keagan/fragcannon/pkg/util"
)

// SegmentCopy stream-copies the [start, end) window of input into
// output. Used to materialize analysis batches; keyframe-aligned cuts
// are fine here because batch bounds only feed the model, not the final
// edit.
func (e *Executor) SegmentCopy(ctx context.Context, input, output string, start, end time.Duration) error {
	if end <= start {
		return fmt.Errorf("invalid segment window: end must be after start")
	}

	e.logger.Debug().
		Str("input", input).
		Str("output", output).
		Dur("start", start).
		Dur("end", end).
		Msg("materializing segment")

	args := []string{
		"-ss", util.FormatDuration(start),
		"-i", input,
		"-t", util.FormatDuration(end - start),
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		output,
	}

	if err := e.Run(ctx, RunOptions{Args: args}); err != nil {
		return fmt.Errorf("segment copy failed: %w", err)
	}
	return nil
}
