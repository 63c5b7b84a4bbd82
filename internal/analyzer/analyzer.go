// Package analyzer drives the AI analysis of video batches. It owns the
// retry, backoff, and zero-result recovery policy around the inference
// endpoint and guarantees that candidate timestamps leaving it are
// absolute offsets into the source video.
package analyzer

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/keagan/fragcannon/internal/gemini"
	"github.com/keagan/fragcannon/internal/highlight"
)

// Client performs a single inference attempt over one media file. Every
// error it returns is considered retryable; the analyzer decides how often
// to try.
type Client interface {
	AnalyzeMedia(ctx context.Context, mediaPath, prompt string) ([]gemini.RawHighlight, error)
}

// BatchMedia pairs an analysis window with the media file that holds it.
// Highlight timestamps in the model response are relative to this file.
type BatchMedia struct {
	Batch highlight.Batch
	Path  string
}

// BatchFailure records a batch whose retry budget ran out. The run keeps
// going; failures are reported alongside the surviving candidates.
type BatchFailure struct {
	Batch    highlight.Batch
	Attempts int
	Err      error
}

// Config holds the retry budgets and concurrency limit.
type Config struct {
	Concurrency             int
	MaxRetries              int
	RetryDelay              time.Duration
	MaxRetryDelay           time.Duration
	MaxZeroHighlightRetries int
	AttemptTimeout          time.Duration
}

// Analyzer fans batches out to the endpoint with bounded concurrency.
type Analyzer struct {
	logger zerolog.Logger
	client Client
	cfg    Config
}

// New creates an analyzer. Budgets and limits come in explicitly; there is
// no shared mutable state between batches.
func New(logger zerolog.Logger, client Client, cfg Config) *Analyzer {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	return &Analyzer{
		logger: logger.With().Str("component", "analyzer").Logger(),
		client: client,
		cfg:    cfg,
	}
}

// Analyze submits every batch and blocks until all of them reach a
// terminal state. Batches complete independently; one batch exhausting its
// retries never blocks or cancels the others. Cancelling ctx stops new
// submissions and fails the remaining batches with the context error.
func (a *Analyzer) Analyze(ctx context.Context, batches []BatchMedia, prompt string) ([]highlight.Candidate, []BatchFailure) {
	if len(batches) == 0 {
		return nil, nil
	}

	workers := a.cfg.Concurrency
	if workers > len(batches) {
		workers = len(batches)
	}

	jobs := make(chan BatchMedia)
	results := make([][]highlight.Candidate, len(batches))
	failures := make([]*BatchFailure, len(batches))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for bm := range jobs {
				cands, failure := a.analyzeBatch(ctx, bm, prompt)
				results[bm.Batch.Index] = cands
				failures[bm.Batch.Index] = failure
			}
		}()
	}

	for _, bm := range batches {
		select {
		case jobs <- bm:
		case <-ctx.Done():
			failures[bm.Batch.Index] = &BatchFailure{Batch: bm.Batch, Err: ctx.Err()}
		}
	}
	close(jobs)
	wg.Wait()

	var candidates []highlight.Candidate
	var failed []BatchFailure
	for i := range results {
		candidates = append(candidates, results[i]...)
		if failures[i] != nil {
			failed = append(failed, *failures[i])
		}
	}

	a.logger.Info().
		Int("batches", len(batches)).
		Int("candidates", len(candidates)).
		Int("failed_batches", len(failed)).
		Msg("analysis settled")
	return candidates, failed
}

// analyzeBatch runs the zero-highlight recovery loop around the transport
// retry loop. A zero result is not a failure, but it gets its own, smaller
// retry budget before being accepted as final.
func (a *Analyzer) analyzeBatch(ctx context.Context, bm BatchMedia, prompt string) ([]highlight.Candidate, *BatchFailure) {
	log := a.logger.With().Int("batch", bm.Batch.Index).Logger()

	attempts := 0
	for zeroTry := 0; ; zeroTry++ {
		raw, used, err := a.callWithRetries(ctx, bm.Path, prompt, &log)
		attempts += used
		if err != nil {
			log.Warn().Err(err).Int("attempts", attempts).Msg("batch failed, yielding empty result")
			return nil, &BatchFailure{Batch: bm.Batch, Attempts: attempts, Err: err}
		}

		cands := a.rebase(raw, bm.Batch, &log)
		if len(cands) > 0 {
			log.Debug().Int("candidates", len(cands)).Msg("batch analyzed")
			return cands, nil
		}

		if zeroTry >= a.cfg.MaxZeroHighlightRetries {
			log.Info().Int("retries", zeroTry).Msg("no highlights found, accepting empty batch")
			return nil, nil
		}
		log.Info().
			Int("retry", zeroTry+1).
			Int("max", a.cfg.MaxZeroHighlightRetries).
			Msg("no highlights found, re-submitting batch")
		if !sleepCtx(ctx, a.cfg.RetryDelay) {
			return nil, &BatchFailure{Batch: bm.Batch, Attempts: attempts, Err: ctx.Err()}
		}
	}
}

// callWithRetries performs up to MaxRetries attempts with exponential
// backoff. A per-attempt timeout counts as a transport failure.
func (a *Analyzer) callWithRetries(ctx context.Context, mediaPath, prompt string, log *zerolog.Logger) ([]gemini.RawHighlight, int, error) {
	var lastErr error
	for attempt := 0; attempt < a.cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, attempt, ctx.Err()
		}

		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if a.cfg.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, a.cfg.AttemptTimeout)
		}
		raw, err := a.client.AnalyzeMedia(attemptCtx, mediaPath, prompt)
		cancel()

		if err == nil {
			return raw, attempt + 1, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, attempt + 1, ctx.Err()
		}
		if attempt == a.cfg.MaxRetries-1 {
			break
		}

		delay := a.backoff(attempt)
		log.Debug().
			Err(err).
			Int("attempt", attempt+1).
			Dur("backoff", delay).
			Msg("inference attempt failed, retrying")
		if !sleepCtx(ctx, delay) {
			return nil, attempt + 1, ctx.Err()
		}
	}
	return nil, a.cfg.MaxRetries, lastErr
}

// backoff doubles the base delay per attempt, capped at MaxRetryDelay.
func (a *Analyzer) backoff(attempt int) time.Duration {
	delay := a.cfg.RetryDelay
	if delay <= 0 {
		return 0
	}
	for i := 0; i < attempt; i++ {
		delay *= 2
		if a.cfg.MaxRetryDelay > 0 && delay >= a.cfg.MaxRetryDelay {
			return a.cfg.MaxRetryDelay
		}
	}
	return delay
}

// rebase converts batch-local timestamps into absolute source offsets and
// drops malformed entries one by one. Dropping everything yields a zero
// result rather than an error.
func (a *Analyzer) rebase(raw []gemini.RawHighlight, b highlight.Batch, log *zerolog.Logger) []highlight.Candidate {
	cands := make([]highlight.Candidate, 0, len(raw))
	for _, r := range raw {
		if r.StartSeconds < 0 || r.EndSeconds <= r.StartSeconds || r.Description == "" {
			log.Warn().
				Float64("start", r.StartSeconds).
				Float64("end", r.EndSeconds).
				Msg("dropping malformed highlight entry")
			continue
		}
		start := time.Duration(r.StartSeconds * float64(time.Second))
		end := time.Duration(r.EndSeconds * float64(time.Second))
		cands = append(cands, highlight.Candidate{
			Start:       b.Start + start,
			End:         b.Start + end,
			Description: r.Description,
			Batch:       b.Index,
		})
	}
	return cands
}

// sleepCtx waits for d or until the context is cancelled. Returns false on
// cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
