package parallel

import (
	"sync/atomic"
	"testing"
)

func TestParallelizeNCoversEveryItem(t *testing.T) {
	tests := []struct {
		name    string
		items   int
		workers int
	}{
		{"more workers than items", 3, 8},
		{"single worker", 10, 1},
		{"uneven chunks", 17, 4},
		{"all cpus", 100, -1},
		{"empty", 0, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen := make([]int32, tt.items)
			ParallelizeN(tt.items, tt.workers, func(start, end int) {
				for i := start; i < end; i++ {
					atomic.AddInt32(&seen[i], 1)
				}
			})
			for i, c := range seen {
				if c != 1 {
					t.Errorf("item %d visited %d times", i, c)
				}
			}
		})
	}
}

func TestParallelizeWithThresholdRunsSequentially(t *testing.T) {
	calls := 0
	ParallelizeWithThreshold(5, 10, func(start, end int) {
		calls++
		if start != 0 || end != 5 {
			t.Errorf("got range [%d,%d), want [0,5)", start, end)
		}
	})
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}
