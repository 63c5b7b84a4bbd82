package ffmpeg

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// ApplySubtitles burns subtitles into the video
func (e *Executor) ApplySubtitles(ctx context.Context, input, subtitles, output string, enc Encoder) error {
	if input == "" {
		return fmt.Errorf("input path is required")
	}
	if subtitles == "" {
		return fmt.Errorf("subtitles path is required")
	}
	if output == "" {
		return fmt.Errorf("output path is required")
	}

	e.logger.Info().
		Str("input", input).
		Str("subtitles", subtitles).
		Str("output", output).
		Msg("applying subtitles")

	if enc.VideoCodec == "" {
		enc = CPUEncoder("")
	}

	args := []string{
		"-i", input,
		"-vf", fmt.Sprintf("subtitles=%s", escapeSubtitlePath(subtitles)),
	}
	args = append(args, enc.Args()...)
	args = append(args, output)

	runOpts := RunOptions{
		Args: args,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("subtitle output")
		},
	}

	if err := e.Run(ctx, runOpts); err != nil {
		return fmt.Errorf("subtitle application failed: %w", err)
	}

	e.logger.Info().Str("output", output).Msg("subtitles applied")
	return nil
}

// escapeSubtitlePath escapes the subtitle file path for ffmpeg filters
func escapeSubtitlePath(path string) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	// Windows: Convert backslashes to forward slashes
	if runtime.GOOS == "windows" {
		absPath = strings.ReplaceAll(absPath, "\\", "/")
	}

	// Escape special characters for ffmpeg filter
	escaped := strings.ReplaceAll(absPath, ":", "\\:")
	escaped = strings.ReplaceAll(escaped, "'", "\\'")

	return escaped
}
