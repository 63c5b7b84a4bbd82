package highlight

import (
	"testing"
	"time"
)

func TestSplitDurationCoversSource(t *testing.T) {
	cases := []struct {
		name  string
		total time.Duration
		max   time.Duration
		want  int
	}{
		{"exact multiple", 120 * time.Second, 40 * time.Second, 3},
		{"remainder", 100 * time.Second, 40 * time.Second, 3},
		{"single", 30 * time.Second, 40 * time.Second, 1},
		{"one second over", 41 * time.Second, 40 * time.Second, 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			batches, err := SplitDuration(tc.total, tc.max, 0)
			if err != nil {
				t.Fatalf("SplitDuration failed: %v", err)
			}
			if len(batches) != tc.want {
				t.Fatalf("expected %d batches, got %d", tc.want, len(batches))
			}

			var sum time.Duration
			prev := time.Duration(0)
			for i, b := range batches {
				if b.Index != i {
					t.Errorf("batch %d has index %d", i, b.Index)
				}
				if b.Start != prev {
					t.Errorf("batch %d starts at %v, expected %v (gap or overlap)", i, b.Start, prev)
				}
				if b.Duration() > tc.max {
					t.Errorf("batch %d duration %v exceeds max %v", i, b.Duration(), tc.max)
				}
				sum += b.Duration()
				prev = b.End
			}
			if sum != tc.total {
				t.Errorf("batch durations sum to %v, expected %v", sum, tc.total)
			}
			if batches[len(batches)-1].End != tc.total {
				t.Errorf("last batch ends at %v, expected %v", batches[len(batches)-1].End, tc.total)
			}
		})
	}
}

func TestSplitDurationExample(t *testing.T) {
	batches, err := SplitDuration(100*time.Second, 40*time.Second, 0)
	if err != nil {
		t.Fatalf("SplitDuration failed: %v", err)
	}
	want := []Batch{
		{Index: 0, Start: 0, End: 40 * time.Second},
		{Index: 1, Start: 40 * time.Second, End: 80 * time.Second},
		{Index: 2, Start: 80 * time.Second, End: 100 * time.Second},
	}
	if len(batches) != len(want) {
		t.Fatalf("expected %d batches, got %d", len(want), len(batches))
	}
	for i := range want {
		if batches[i] != want[i] {
			t.Errorf("batch %d = %+v, want %+v", i, batches[i], want[i])
		}
	}
}

func TestSplitDurationMaxCount(t *testing.T) {
	batches, err := SplitDuration(100*time.Second, 10*time.Second, 4)
	if err != nil {
		t.Fatalf("SplitDuration failed: %v", err)
	}
	if len(batches) > 4 {
		t.Fatalf("expected at most 4 batches, got %d", len(batches))
	}
	if batches[len(batches)-1].End != 100*time.Second {
		t.Errorf("last batch ends at %v, expected 100s", batches[len(batches)-1].End)
	}
}

func TestSplitDurationInvalid(t *testing.T) {
	if _, err := SplitDuration(100*time.Second, 0, 0); err == nil {
		t.Error("expected error for zero max batch duration")
	}
	if _, err := SplitDuration(100*time.Second, -time.Second, 0); err == nil {
		t.Error("expected error for negative max batch duration")
	}
	if _, err := SplitDuration(0, 40*time.Second, 0); err == nil {
		t.Error("expected error for zero source duration")
	}
}
