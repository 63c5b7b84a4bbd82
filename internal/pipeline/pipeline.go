// Package pipeline orchestrates a full highlight run: probe, batch,
// analyze, merge, extract, compile, and optionally re-render as a
// vertical short.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/keagan/fragcannon/internal/analyzer"
	"github.com/keagan/fragcannon/internal/config"
	"github.com/keagan/fragcannon/internal/ffmpeg"
	"github.com/keagan/fragcannon/internal/highlight"
	"github.com/keagan/fragcannon/internal/prompts"
	"github.com/keagan/fragcannon/internal/shorts"
	"github.com/keagan/fragcannon/pkg/util"
)

// Media is the subset of the ffmpeg executor the pipeline drives.
type Media interface {
	ProbeVideo(ctx context.Context, filePath string) (*ffmpeg.VideoInfo, error)
	SegmentCopy(ctx context.Context, input, output string, start, end time.Duration) error
	ExtractClip(ctx context.Context, input string, opts ffmpeg.ClipOptions) error
	Concat(ctx context.Context, opts ffmpeg.ConcatOptions) error
	SelectEncoder(ctx context.Context, hwaccel bool, preset string) ffmpeg.Encoder
}

// ShortRenderer turns a compilation into a vertical short.
type ShortRenderer interface {
	Render(ctx context.Context, input, output string, opts shorts.Options) error
}

// Pipeline orchestrates the entire highlight extraction workflow.
type Pipeline struct {
	logger   zerolog.Logger
	cfg      *config.Config
	media    Media
	analyzer *analyzer.Analyzer
	shorts   ShortRenderer
}

// New wires a pipeline. short may be nil when vertical rendering is
// disabled.
func New(logger zerolog.Logger, cfg *config.Config, media Media, client analyzer.Client, short ShortRenderer) *Pipeline {
	a := analyzer.New(logger, client, analyzer.Config{
		Concurrency:             cfg.Analysis.Concurrency,
		MaxRetries:              cfg.Analysis.MaxRetries,
		RetryDelay:              cfg.Analysis.RetryDelay,
		MaxRetryDelay:           cfg.Analysis.MaxRetryDelay,
		MaxZeroHighlightRetries: cfg.Analysis.MaxZeroHighlightRetries,
		AttemptTimeout:          cfg.Analysis.AttemptTimeout,
	})
	return &Pipeline{
		logger:   logger.With().Str("component", "pipeline").Logger(),
		cfg:      cfg,
		media:    media,
		analyzer: a,
		shorts:   short,
	}
}

// Run processes one source video end to end. On ErrNoClips the returned
// Result is still populated with batch failures and dropped intervals.
func (p *Pipeline) Run(ctx context.Context, input string) (*Result, error) {
	if input == "" {
		return nil, fmt.Errorf("input path cannot be empty")
	}

	res := &Result{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	log := p.logger.With().Str("run", res.RunID[:8]).Logger()

	log.Info().Str("input", input).Msg("starting highlight run")

	info, err := p.media.ProbeVideo(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to probe video: %w", err)
	}
	res.Source = info

	log.Info().
		Dur("duration", info.Duration).
		Int("width", info.Width).
		Int("height", info.Height).
		Float64("fps", info.FPS).
		Msg("video metadata extracted")

	prompt, err := prompts.Render(p.cfg.Game(), prompts.Params{
		Username:                p.cfg.Analysis.Username,
		MinHighlightDurationSec: int(p.cfg.Analysis.MinHighlightDuration.Seconds()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render prompt: %w", err)
	}

	batches, err := highlight.SplitDuration(info.Duration, p.cfg.Analysis.MaxBatchDuration, p.cfg.Analysis.MaxBatchCount)
	if err != nil {
		return nil, fmt.Errorf("failed to split into batches: %w", err)
	}
	log.Info().Int("batches", len(batches)).Msg("source tiled into analysis batches")

	workDir, err := os.MkdirTemp(p.cfg.TempDir, "fragcannon-run-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	media, err := p.materializeBatches(ctx, input, batches, workDir)
	if err != nil {
		return nil, err
	}

	candidates, batchFailures := p.analyzer.Analyze(ctx, media, prompt)
	res.BatchFailures = batchFailures
	if ctx.Err() != nil {
		return res, ctx.Err()
	}

	merged, dropped := highlight.Merge(candidates, highlight.MergeOptions{
		MinDuration:    p.cfg.Analysis.MinHighlightDuration,
		GapTolerance:   p.cfg.Analysis.MergeGapTolerance,
		SourceDuration: info.Duration,
	})
	res.Intervals = merged
	res.Dropped = dropped
	for _, iv := range dropped {
		log.Info().
			Dur("start", iv.Start).
			Dur("duration", iv.Duration()).
			Str("description", iv.Description).
			Msg("interval below minimum duration, dropped")
	}

	if len(merged) == 0 {
		res.FinishedAt = time.Now()
		log.Warn().Int("failed_batches", len(batchFailures)).Msg("nothing to compile")
		return res, ErrNoClips
	}

	res.Title = p.pickTitle(merged, res.RunID)

	clipPaths := p.extractClips(ctx, input, merged, workDir, res)
	var surviving []string
	var keptIntervals []highlight.CutInterval
	for i, path := range clipPaths {
		if path != "" {
			surviving = append(surviving, path)
			keptIntervals = append(keptIntervals, merged[i])
		}
	}
	if len(surviving) == 0 {
		res.FinishedAt = time.Now()
		return res, ErrNoClips
	}
	res.Intervals = keptIntervals

	if err := util.EnsureDir(p.cfg.VideoDir); err != nil {
		return res, fmt.Errorf("failed to create video dir: %w", err)
	}
	res.Compilation = filepath.Join(p.cfg.VideoDir, res.Title+".mp4")
	err = p.media.Concat(ctx, ffmpeg.ConcatOptions{
		Inputs: surviving,
		Output: res.Compilation,
	})
	if err != nil {
		return res, fmt.Errorf("failed to compile highlights: %w", err)
	}
	log.Info().
		Str("output", res.Compilation).
		Int("clips", len(surviving)).
		Msg("compilation written")

	if p.cfg.Shorts.Enabled && p.shorts != nil {
		shortPath := filepath.Join(p.cfg.VideoDir, res.Title+"_short.mp4")
		err := p.shorts.Render(ctx, res.Compilation, shortPath, shorts.Options{
			Webcam:       p.cfg.Shorts.Webcam,
			KillFeed:     p.cfg.Shorts.KillFeed,
			SubtitleFile: p.cfg.Shorts.SubtitleFile,
			Encoder:      p.media.SelectEncoder(ctx, p.cfg.FFmpeg.Hwaccel, p.cfg.FFmpeg.Preset),
		})
		if err != nil {
			log.Warn().Err(err).Msg("short render failed, keeping compilation")
		} else {
			res.Shorts = append(res.Shorts, shortPath)
		}
	}

	res.FinishedAt = time.Now()
	if path, err := newRunMetadata(res).Write(p.cfg.MetadataDir); err != nil {
		log.Warn().Err(err).Msg("failed to write run metadata")
	} else {
		log.Debug().Str("metadata", path).Msg("run metadata written")
	}

	log.Info().
		Int("intervals", len(res.Intervals)).
		Int("failed_batches", len(res.BatchFailures)).
		Int("failed_extractions", len(res.ExtractFailures)).
		Msg("highlight run complete")
	return res, nil
}

// materializeBatches produces one media file per batch. A single batch
// analyzes the source directly; multiple batches are stream-copied into
// the work dir so uploads stay bounded.
func (p *Pipeline) materializeBatches(ctx context.Context, input string, batches []highlight.Batch, workDir string) ([]analyzer.BatchMedia, error) {
	if len(batches) == 1 {
		return []analyzer.BatchMedia{{Batch: batches[0], Path: input}}, nil
	}

	media := make([]analyzer.BatchMedia, len(batches))
	for i, b := range batches {
		out := filepath.Join(workDir, fmt.Sprintf("batch_%03d.mp4", b.Index))
		if err := p.media.SegmentCopy(ctx, input, out, b.Start, b.End); err != nil {
			return nil, fmt.Errorf("failed to materialize batch %d: %w", b.Index, err)
		}
		media[i] = analyzer.BatchMedia{Batch: b, Path: out}
	}
	return media, nil
}

// extractClips cuts every interval concurrently. The returned slice is
// index-aligned with intervals; failed entries are empty and recorded on
// res.
func (p *Pipeline) extractClips(ctx context.Context, input string, intervals []highlight.CutInterval, workDir string, res *Result) []string {
	encoder := ffmpeg.Encoder{}
	if !p.cfg.FFmpeg.StreamCopy {
		encoder = p.media.SelectEncoder(ctx, p.cfg.FFmpeg.Hwaccel, p.cfg.FFmpeg.Preset)
	}

	clipPaths := make([]string, len(intervals))
	failures := make([]*ExtractionError, len(intervals))

	workers := p.cfg.Analysis.Concurrency
	if workers < 1 {
		workers = 1
	}
	if workers > len(intervals) {
		workers = len(intervals)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				iv := intervals[i]
				out := filepath.Join(workDir, fmt.Sprintf("clip_%03d.mp4", i))
				err := p.media.ExtractClip(ctx, input, ffmpeg.ClipOptions{
					Start:     iv.Start,
					End:       iv.End,
					Output:    out,
					CopyCodec: p.cfg.FFmpeg.StreamCopy,
					Encoder:   encoder,
				})
				if err != nil {
					failures[i] = &ExtractionError{Interval: iv, Err: err}
					continue
				}
				clipPaths[i] = out
			}
		}()
	}
	for i := range intervals {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, f := range failures {
		if f != nil {
			p.logger.Warn().Err(f.Err).
				Dur("start", f.Interval.Start).
				Dur("end", f.Interval.End).
				Msg("clip extraction failed, skipping interval")
			res.ExtractFailures = append(res.ExtractFailures, *f)
		}
	}
	return clipPaths
}

// pickTitle derives the output name from the first non-empty interval
// description, suffixed with the run id to keep filenames unique.
func (p *Pipeline) pickTitle(intervals []highlight.CutInterval, runID string) string {
	title := "highlights"
	for _, iv := range intervals {
		if s := util.SanitizeTitle(iv.Description, 60); s != "" {
			title = s
			break
		}
	}
	return fmt.Sprintf("%s_%s", title, runID[:8])
}
