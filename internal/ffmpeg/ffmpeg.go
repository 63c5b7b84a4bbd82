// Package ffmpeg wraps the external ffmpeg/ffprobe binaries behind a
// context-aware executor. Every media operation in the pipeline (batch
// segmentation, clip extraction, concatenation, short rendering) goes
// through Run.
package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// stderrTailLines is how many trailing stderr lines are kept for error
// reports.
const stderrTailLines = 30

// Executor handles all ffmpeg operations
type Executor struct {
	logger      zerolog.Logger
	ffmpegPath  string
	ffprobePath string
	threads     int
	timeout     time.Duration

	nvencProbed bool
	nvencOK     bool
}

// New creates a new ffmpeg executor. timeout bounds every external
// process invocation; zero disables the bound.
func New(logger zerolog.Logger, threads int, timeout time.Duration) (*Executor, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	return &Executor{
		logger:      logger.With().Str("component", "ffmpeg").Logger(),
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		threads:     threads,
		timeout:     timeout,
	}, nil
}

// invocationContext bounds one external process call so a wedged binary
// cannot hang the run.
func (e *Executor) invocationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout > 0 {
		return context.WithTimeout(ctx, e.timeout)
	}
	return ctx, func() {}
}

// Run executes ffmpeg with the given arguments. A non-zero exit carries
// the tail of stderr in the returned error.
func (e *Executor) Run(ctx context.Context, opts RunOptions) error {
	if len(opts.Args) == 0 {
		return fmt.Errorf("no arguments provided")
	}

	baseArgs := []string{"-y", "-hide_banner", "-loglevel", "info"}
	if e.threads > 0 {
		baseArgs = append(baseArgs, "-threads", fmt.Sprintf("%d", e.threads))
	}
	args := append(baseArgs, opts.Args...)

	e.logger.Debug().
		Str("cmd", "ffmpeg").
		Strs("args", args).
		Msg("executing ffmpeg")

	runCtx, cancel := e.invocationContext(ctx)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.ffmpegPath, args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	var tail []string
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if opts.LogHandler != nil {
			opts.LogHandler(line)
		}
		tail = append(tail, line)
		if len(tail) > stderrTailLines {
			tail = tail[1:]
		}
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if runCtx.Err() != nil {
			return fmt.Errorf("ffmpeg timed out after %v", e.timeout)
		}
		return fmt.Errorf("ffmpeg execution failed: %w\n%s", err, strings.Join(tail, "\n"))
	}

	e.logger.Debug().Msg("ffmpeg execution completed")
	return nil
}
