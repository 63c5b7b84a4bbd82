// Package shorts re-renders a horizontal compilation into a 1080x1920
// vertical short. The source frame sits centered over a blurred,
// zoomed copy of itself, with optional webcam and kill-feed crops
// composited on top.
package shorts

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/keagan/fragcannon/internal/config"
	"github.com/keagan/fragcannon/internal/ffmpeg"
)

// Canvas dimensions for vertical video.
const (
	CanvasWidth  = 1080
	CanvasHeight = 1920
)

const (
	killFeedOpacity    = 0.6
	killFeedScale      = 0.45 // fraction of canvas width
	killFeedMargin     = 24
	backgroundBlur     = 20
	backgroundBlurPass = 5
)

// Options configures a short render.
type Options struct {
	Webcam       *config.CropRect
	KillFeed     *config.CropRect
	SubtitleFile string
	Encoder      ffmpeg.Encoder
}

// Renderer produces vertical shorts from finished compilations.
type Renderer struct {
	logger zerolog.Logger
	exec   *ffmpeg.Executor
}

// New creates a renderer backed by the given executor.
func New(logger zerolog.Logger, exec *ffmpeg.Executor) *Renderer {
	return &Renderer{
		logger: logger.With().Str("component", "shorts").Logger(),
		exec:   exec,
	}
}

// Render converts input into a vertical short at output. The whole
// composition runs as a single filter_complex pass.
func (r *Renderer) Render(ctx context.Context, input, output string, opts Options) error {
	if input == "" || output == "" {
		return fmt.Errorf("input and output paths are required")
	}

	info, err := r.exec.ProbeVideo(ctx, input)
	if err != nil {
		return fmt.Errorf("probe for short render: %w", err)
	}

	graph := BuildFilterGraph(opts)

	r.logger.Info().
		Str("input", input).
		Str("output", output).
		Int("src_width", info.Width).
		Int("src_height", info.Height).
		Msg("rendering vertical short")
	r.logger.Debug().Str("filter_complex", graph).Msg("composed filter graph")

	enc := opts.Encoder
	if enc.VideoCodec == "" {
		enc = ffmpeg.CPUEncoder("")
	}

	args := []string{
		"-i", input,
		"-filter_complex", graph,
		"-map", "[vout]",
	}
	if info.HasAudio {
		args = append(args, "-map", "0:a", "-c:a", ffmpeg.DefaultAudioCodec)
	}
	args = append(args, enc.Args()...)
	args = append(args, output)

	runOpts := ffmpeg.RunOptions{
		Args: args,
		LogHandler: func(line string) {
			r.logger.Debug().Str("ffmpeg", line).Msg("short render")
		},
	}
	if err := r.exec.Run(ctx, runOpts); err != nil {
		return fmt.Errorf("short render failed: %w", err)
	}

	r.logger.Info().Str("output", output).Msg("short render complete")
	return nil
}

// BuildFilterGraph composes the filter_complex for a vertical short.
// The graph always ends in a [vout] label.
func BuildFilterGraph(opts Options) string {
	splits := 2
	if opts.Webcam != nil {
		splits++
	}
	if opts.KillFeed != nil {
		splits++
	}

	labels := make([]string, splits)
	for i := range labels {
		labels[i] = fmt.Sprintf("[src%d]", i)
	}

	var chains []string
	chains = append(chains, fmt.Sprintf("[0:v]split=%d%s", splits, strings.Join(labels, "")))

	// Blurred, zoomed background filling the canvas.
	bg := ffmpeg.NewFilterBuilder().
		ScaleFill(CanvasWidth, CanvasHeight).
		Boxblur(backgroundBlur, backgroundBlurPass).
		Build()
	chains = append(chains, "[src0]"+bg+"[bg]")

	// Full-width foreground, centered vertically.
	fg := ffmpeg.NewFilterBuilder().
		Custom(fmt.Sprintf("scale=%d:-2", CanvasWidth)).
		Build()
	chains = append(chains, "[src1]"+fg+"[fg]")
	chains = append(chains, "[bg][fg]overlay=0:(H-h)/2[base]")

	last := "[base]"
	next := 2

	if opts.Webcam != nil {
		cam := ffmpeg.NewFilterBuilder().
			Crop(opts.Webcam.Width, opts.Webcam.Height, opts.Webcam.X, opts.Webcam.Y).
			Custom(fmt.Sprintf("scale=%d:-2", CanvasWidth)).
			Build()
		chains = append(chains, fmt.Sprintf("[src%d]%s[cam]", next, cam))
		chains = append(chains, last+"[cam]overlay=0:0[withcam]")
		last = "[withcam]"
		next++
	}

	if opts.KillFeed != nil {
		feedWidth := int(float64(CanvasWidth) * killFeedScale)
		feed := ffmpeg.NewFilterBuilder().
			Crop(opts.KillFeed.Width, opts.KillFeed.Height, opts.KillFeed.X, opts.KillFeed.Y).
			Custom(fmt.Sprintf("scale=%d:-2", feedWidth)).
			Alpha(killFeedOpacity).
			Build()
		chains = append(chains, fmt.Sprintf("[src%d]%s[feed]", next, feed))
		chains = append(chains, fmt.Sprintf("%s[feed]overlay=W-w-%d:%d[withfeed]", last, killFeedMargin, killFeedMargin))
		last = "[withfeed]"
	}

	final := ffmpeg.NewFilterBuilder().
		Subtitles(opts.SubtitleFile).
		Custom("setsar=1").
		Build()
	chains = append(chains, last+final+"[vout]")

	return strings.Join(chains, ";")
}
