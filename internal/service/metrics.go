package service

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects in-process counters for routing decisions, traffic
// feedback, and probe outcomes
type Metrics struct {
	decisionsTotal    int64
	unavailableTotal  int64
	feedbackSuccesses int64
	feedbackFailures  int64

	regionMetrics map[string]*RegionMetrics
	mu            sync.RWMutex
}

// RegionMetrics holds counters for a specific region
type RegionMetrics struct {
	Selections    int64     `json:"selections"`
	ProbeSuccess  int64     `json:"probe_successes"`
	ProbeFailures int64     `json:"probe_failures"`
	LastSelected  time.Time `json:"last_selected"`
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		regionMetrics: make(map[string]*RegionMetrics),
	}
}

func (m *Metrics) regionEntry(regionID string) *RegionMetrics {
	if m.regionMetrics[regionID] == nil {
		m.regionMetrics[regionID] = &RegionMetrics{}
	}
	return m.regionMetrics[regionID]
}

// RecordDecision counts a routing decision that selected the given region
func (m *Metrics) RecordDecision(regionID string) {
	atomic.AddInt64(&m.decisionsTotal, 1)

	m.mu.Lock()
	defer m.mu.Unlock()

	entry := m.regionEntry(regionID)
	entry.Selections++
	entry.LastSelected = time.Now()
}

// RecordUnavailable counts a decision that found no eligible region
func (m *Metrics) RecordUnavailable() {
	atomic.AddInt64(&m.decisionsTotal, 1)
	atomic.AddInt64(&m.unavailableTotal, 1)
}

// RecordFeedback counts a caller success/failure report
func (m *Metrics) RecordFeedback(success bool) {
	if success {
		atomic.AddInt64(&m.feedbackSuccesses, 1)
		return
	}
	atomic.AddInt64(&m.feedbackFailures, 1)
}

// RecordProbe counts a health probe outcome for a region
func (m *Metrics) RecordProbe(regionID string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := m.regionEntry(regionID)
	if success {
		entry.ProbeSuccess++
		return
	}
	entry.ProbeFailures++
}

// Stats returns a snapshot of current statistics
func (m *Metrics) Stats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	regions := make(map[string]RegionMetrics, len(m.regionMetrics))
	for id, entry := range m.regionMetrics {
		regions[id] = *entry
	}

	return map[string]interface{}{
		"decisions_total":    atomic.LoadInt64(&m.decisionsTotal),
		"unavailable_total":  atomic.LoadInt64(&m.unavailableTotal),
		"feedback_successes": atomic.LoadInt64(&m.feedbackSuccesses),
		"feedback_failures":  atomic.LoadInt64(&m.feedbackFailures),
		"regions":            regions,
	}
}
