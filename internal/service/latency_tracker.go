package service

import (
	"sort"
	"sync"
	"time"
)

// DefaultLatencyWindow is the number of probe samples retained per region
const DefaultLatencyWindow = 100

// LatencyTracker maintains a bounded rolling window of observed probe
// latencies per region and computes the 95th percentile on demand.
type LatencyTracker struct {
	mu       sync.Mutex
	capacity int
	windows  map[string][]time.Duration
}

// NewLatencyTracker creates a tracker with the given window capacity.
// A non-positive capacity falls back to DefaultLatencyWindow.
func NewLatencyTracker(capacity int) *LatencyTracker {
	if capacity <= 0 {
		capacity = DefaultLatencyWindow
	}
	return &LatencyTracker{
		capacity: capacity,
		windows:  make(map[string][]time.Duration),
	}
}

// Record appends a latency sample for a region, evicting the oldest
// sample once the window exceeds its capacity
func (t *LatencyTracker) Record(regionID string, sample time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	window := append(t.windows[regionID], sample)
	if len(window) > t.capacity {
		window = window[len(window)-t.capacity:]
	}
	t.windows[regionID] = window
}

// P95 returns the 95th-percentile latency for a region, computed over a
// snapshot of the current window. Returns 0 when no samples exist.
func (t *LatencyTracker) P95(regionID string) time.Duration {
	t.mu.Lock()
	window := t.windows[regionID]
	snapshot := make([]time.Duration, len(window))
	copy(snapshot, window)
	t.mu.Unlock()

	if len(snapshot) == 0 {
		return 0
	}

	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i] < snapshot[j] })

	idx := int(float64(len(snapshot)) * 0.95)
	if idx >= len(snapshot) {
		idx = len(snapshot) - 1
	}
	return snapshot[idx]
}

// Count returns the number of samples currently held for a region
func (t *LatencyTracker) Count(regionID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.windows[regionID])
}
