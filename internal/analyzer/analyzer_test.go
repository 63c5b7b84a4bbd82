package analyzer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/keagan/fragcannon/internal/gemini"
	"github.com/keagan/fragcannon/internal/highlight"
)

// fakeClient scripts per-path responses.
type fakeClient struct {
	mu        sync.Mutex
	calls     map[string]int
	respond   func(path string, call int) ([]gemini.RawHighlight, error)
	inFlight  atomic.Int32
	maxSeen   atomic.Int32
	callDelay time.Duration
}

func (f *fakeClient) AnalyzeMedia(ctx context.Context, path, prompt string) ([]gemini.RawHighlight, error) {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		max := f.maxSeen.Load()
		if cur <= max || f.maxSeen.CompareAndSwap(max, cur) {
			break
		}
	}
	if f.callDelay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.callDelay):
		}
	}

	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	call := f.calls[path]
	f.calls[path]++
	f.mu.Unlock()

	return f.respond(path, call)
}

func (f *fakeClient) callCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func testConfig() Config {
	return Config{
		Concurrency:             2,
		MaxRetries:              3,
		RetryDelay:              0,
		MaxZeroHighlightRetries: 2,
	}
}

func batchMedia(index int, start, end time.Duration) BatchMedia {
	return BatchMedia{
		Batch: highlight.Batch{Index: index, Start: start, End: end},
		Path:  string(rune('a'+index)) + ".mp4",
	}
}

func TestAnalyzeRebasesToAbsoluteOffsets(t *testing.T) {
	client := &fakeClient{respond: func(path string, call int) ([]gemini.RawHighlight, error) {
		return []gemini.RawHighlight{
			{StartSeconds: 5, EndSeconds: 15, Description: "frag"},
		}, nil
	}}
	a := New(zerolog.Nop(), client, testConfig())

	cands, failures := a.Analyze(context.Background(), []BatchMedia{
		batchMedia(0, 0, 40*time.Second),
		batchMedia(1, 40*time.Second, 80*time.Second),
	}, "prompt")

	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	if len(cands) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(cands))
	}
	// candidates arrive in batch order
	if cands[0].Start != 5*time.Second || cands[0].End != 15*time.Second {
		t.Errorf("batch 0 candidate not rebased correctly: %+v", cands[0])
	}
	if cands[1].Start != 45*time.Second || cands[1].End != 55*time.Second {
		t.Errorf("batch 1 candidate not rebased correctly: %+v", cands[1])
	}
}

func TestAnalyzeDropsMalformedEntriesIndividually(t *testing.T) {
	client := &fakeClient{respond: func(path string, call int) ([]gemini.RawHighlight, error) {
		return []gemini.RawHighlight{
			{StartSeconds: 20, EndSeconds: 10, Description: "inverted"},
			{StartSeconds: -3, EndSeconds: 10, Description: "negative"},
			{StartSeconds: 5, EndSeconds: 10, Description: ""},
			{StartSeconds: 1, EndSeconds: 9, Description: "keeper"},
		}, nil
	}}
	a := New(zerolog.Nop(), client, testConfig())

	cands, failures := a.Analyze(context.Background(), []BatchMedia{batchMedia(0, 0, 40*time.Second)}, "p")
	if len(failures) != 0 {
		t.Fatalf("malformed entries must not fail the batch: %v", failures)
	}
	if len(cands) != 1 || cands[0].Description != "keeper" {
		t.Fatalf("expected only the valid entry to survive, got %v", cands)
	}
}

func TestAnalyzeAllMalformedCountsAsZeroResult(t *testing.T) {
	client := &fakeClient{respond: func(path string, call int) ([]gemini.RawHighlight, error) {
		return []gemini.RawHighlight{{StartSeconds: 9, EndSeconds: 2, Description: "bad"}}, nil
	}}
	cfg := testConfig()
	cfg.MaxZeroHighlightRetries = 2
	a := New(zerolog.Nop(), client, cfg)

	cands, failures := a.Analyze(context.Background(), []BatchMedia{batchMedia(0, 0, time.Minute)}, "p")
	if len(cands) != 0 || len(failures) != 0 {
		t.Fatalf("all-malformed should be an accepted empty result, got cands=%v failures=%v", cands, failures)
	}
	// initial call plus the zero-highlight retries
	if got := client.callCount("a.mp4"); got != 3 {
		t.Errorf("expected 3 submissions (1 + 2 zero retries), got %d", got)
	}
}

func TestAnalyzeZeroResultRetriesThenAccepts(t *testing.T) {
	client := &fakeClient{respond: func(path string, call int) ([]gemini.RawHighlight, error) {
		return nil, nil
	}}
	cfg := testConfig()
	cfg.MaxZeroHighlightRetries = 3
	a := New(zerolog.Nop(), client, cfg)

	cands, failures := a.Analyze(context.Background(), []BatchMedia{batchMedia(0, 0, time.Minute)}, "p")
	if len(cands) != 0 || len(failures) != 0 {
		t.Fatalf("zero result is not a failure, got cands=%v failures=%v", cands, failures)
	}
	if got := client.callCount("a.mp4"); got != 4 {
		t.Errorf("expected 4 submissions, got %d", got)
	}
}

func TestAnalyzeZeroRetrySucceedsOnSecondTry(t *testing.T) {
	client := &fakeClient{respond: func(path string, call int) ([]gemini.RawHighlight, error) {
		if call == 0 {
			return nil, nil
		}
		return []gemini.RawHighlight{{StartSeconds: 0, EndSeconds: 12, Description: "late bloom"}}, nil
	}}
	a := New(zerolog.Nop(), client, testConfig())

	cands, failures := a.Analyze(context.Background(), []BatchMedia{batchMedia(0, 0, time.Minute)}, "p")
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	if len(cands) != 1 {
		t.Fatalf("expected candidate from the zero-result retry, got %v", cands)
	}
}

func TestAnalyzeTransportExhaustionDoesNotAbortRun(t *testing.T) {
	transportErr := &gemini.TransportError{Status: 503, Err: errors.New("unavailable")}
	client := &fakeClient{respond: func(path string, call int) ([]gemini.RawHighlight, error) {
		if path == "a.mp4" {
			return nil, transportErr
		}
		return []gemini.RawHighlight{{StartSeconds: 2, EndSeconds: 14, Description: "survivor"}}, nil
	}}
	cfg := testConfig()
	cfg.MaxRetries = 4
	a := New(zerolog.Nop(), client, cfg)

	cands, failures := a.Analyze(context.Background(), []BatchMedia{
		batchMedia(0, 0, 40*time.Second),
		batchMedia(1, 40*time.Second, 80*time.Second),
	}, "p")

	if len(failures) != 1 {
		t.Fatalf("expected exactly one batch failure, got %v", failures)
	}
	if failures[0].Batch.Index != 0 {
		t.Errorf("wrong batch failed: %+v", failures[0])
	}
	if failures[0].Attempts != 4 {
		t.Errorf("expected 4 attempts before exhaustion, got %d", failures[0].Attempts)
	}
	if !errors.Is(failures[0].Err, transportErr) {
		t.Errorf("failure should carry the last transport error, got %v", failures[0].Err)
	}
	if len(cands) != 1 || cands[0].Batch != 1 {
		t.Fatalf("healthy batch output must survive, got %v", cands)
	}
}

func TestAnalyzeRecoversAfterTransientFailure(t *testing.T) {
	client := &fakeClient{respond: func(path string, call int) ([]gemini.RawHighlight, error) {
		if call < 2 {
			return nil, &gemini.TransportError{Err: errors.New("flaky")}
		}
		return []gemini.RawHighlight{{StartSeconds: 3, EndSeconds: 13, Description: "third time lucky"}}, nil
	}}
	a := New(zerolog.Nop(), client, testConfig())

	cands, failures := a.Analyze(context.Background(), []BatchMedia{batchMedia(0, 0, time.Minute)}, "p")
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	if len(cands) != 1 {
		t.Fatalf("expected recovery on third attempt, got %v", cands)
	}
}

func TestAnalyzeRespectsConcurrencyLimit(t *testing.T) {
	client := &fakeClient{
		callDelay: 20 * time.Millisecond,
		respond: func(path string, call int) ([]gemini.RawHighlight, error) {
			return []gemini.RawHighlight{{StartSeconds: 0, EndSeconds: 10, Description: "x"}}, nil
		},
	}
	cfg := testConfig()
	cfg.Concurrency = 2
	a := New(zerolog.Nop(), client, cfg)

	var batches []BatchMedia
	for i := 0; i < 8; i++ {
		batches = append(batches, batchMedia(i, time.Duration(i)*time.Minute, time.Duration(i+1)*time.Minute))
	}

	_, failures := a.Analyze(context.Background(), batches, "p")
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	if max := client.maxSeen.Load(); max > 2 {
		t.Errorf("concurrency limit exceeded: saw %d simultaneous requests", max)
	}
}

func TestAnalyzeCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &fakeClient{
		callDelay: 50 * time.Millisecond,
		respond: func(path string, call int) ([]gemini.RawHighlight, error) {
			return []gemini.RawHighlight{{StartSeconds: 0, EndSeconds: 10, Description: "x"}}, nil
		},
	}
	cfg := testConfig()
	cfg.Concurrency = 1
	a := New(zerolog.Nop(), client, cfg)

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	var batches []BatchMedia
	for i := 0; i < 6; i++ {
		batches = append(batches, batchMedia(i, time.Duration(i)*time.Minute, time.Duration(i+1)*time.Minute))
	}

	cands, failures := a.Analyze(ctx, batches, "p")
	if len(cands)+len(failures) != len(batches) {
		t.Fatalf("every batch must reach a terminal state: %d candidates batches, %d failures", len(cands), len(failures))
	}
	if len(failures) == 0 {
		t.Error("expected cancellation to fail pending batches")
	}
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	a := New(zerolog.Nop(), nil, Config{
		Concurrency:   1,
		MaxRetries:    10,
		RetryDelay:    2 * time.Second,
		MaxRetryDelay: 30 * time.Second,
	})

	want := []time.Duration{
		2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 30 * time.Second, 30 * time.Second,
	}
	for i, w := range want {
		if got := a.backoff(i); got != w {
			t.Errorf("backoff(%d) = %v, want %v", i, got, w)
		}
	}
}
