package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/keagan/fragcannon/pkg/util"
)

// ClipOptions defines clip extraction parameters
type ClipOptions struct {
	Start     time.Duration
	End       time.Duration
	Output    string
	CopyCodec bool // If true, use -c copy for fast extraction
	Encoder   Encoder
}

// ExtractClip cuts a segment from a video. With CopyCodec the cut lands
// on the nearest keyframe; re-encoding gives frame-accurate bounds.
func (e *Executor) ExtractClip(ctx context.Context, input string, opts ClipOptions) error {
	duration := opts.End - opts.Start
	if duration <= 0 {
		return fmt.Errorf("invalid clip duration: end must be after start")
	}

	e.logger.Info().
		Str("input", input).
		Str("output", opts.Output).
		Dur("start", opts.Start).
		Dur("duration", duration).
		Bool("copy_codec", opts.CopyCodec).
		Msg("extracting clip")

	args := []string{
		"-ss", util.FormatDuration(opts.Start),
		"-i", input,
		"-t", util.FormatDuration(duration),
	}

	if opts.CopyCodec {
		args = append(args, "-c", "copy")
	} else {
		enc := opts.Encoder
		if enc.VideoCodec == "" {
			enc = CPUEncoder("")
		}
		args = append(args, enc.Args()...)
	}

	args = append(args, opts.Output)

	runOpts := RunOptions{
		Args: args,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("clip extraction")
		},
	}

	if err := e.Run(ctx, runOpts); err != nil {
		return fmt.Errorf("clip extraction failed: %w", err)
	}
	if err := verifyClip(opts.Output); err != nil {
		return fmt.Errorf("clip extraction failed: %w", err)
	}

	e.logger.Info().Str("output", opts.Output).Msg("clip extraction complete")
	return nil
}

// verifyClip rejects cuts that exited cleanly but wrote nothing usable,
// such as a seek landing past end of file.
func verifyClip(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("output not written: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("output %s is empty", path)
	}
	return nil
}
