package service

import (
	"sync"
	"time"

	"github.com/agent-mesh/region-router/internal/domain"
	"github.com/agent-mesh/region-router/internal/errors"
	"github.com/agent-mesh/region-router/pkg/logger"
)

// CircuitBreaker implements the per-region circuit breaker state machine.
// All failure signals, whether from synthetic health probes or from real
// traffic feedback, converge on RecordOutcome; there is exactly one place
// the CLOSED/OPEN/HALF_OPEN transition logic lives.
type CircuitBreaker struct {
	regionID string
	config   domain.CircuitBreakerConfig
	logger   *logger.Logger

	state           domain.CircuitState
	failureCount    int
	successCount    int
	lastFailureTime time.Time
	nextAttemptTime time.Time

	mu sync.Mutex
}

// NewCircuitBreaker creates a breaker for one region, starting CLOSED
func NewCircuitBreaker(regionID string, config domain.CircuitBreakerConfig, logger *logger.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		regionID: regionID,
		config:   config,
		logger:   logger.BreakerLogger(regionID),
		state:    domain.StateClosed,
	}
}

// Allow reports whether the region is eligible for routing. An OPEN
// breaker past its reset window lazily transitions to HALF_OPEN here;
// HALF_OPEN regions are eligible so recovery traffic gets exercised.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.maybeHalfOpen(time.Now())
	return cb.state != domain.StateOpen
}

// RecordOutcome registers a success or failure signal and drives the
// state machine
func (cb *CircuitBreaker) RecordOutcome(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	cb.maybeHalfOpen(now)

	if success {
		cb.recordSuccess()
		return
	}
	cb.recordFailure(now)
}

// maybeHalfOpen performs the lazy OPEN -> HALF_OPEN transition once the
// reset window has elapsed. Caller must hold the lock.
func (cb *CircuitBreaker) maybeHalfOpen(now time.Time) {
	if cb.state != domain.StateOpen {
		return
	}
	if now.Before(cb.nextAttemptTime) {
		return
	}

	cb.state = domain.StateHalfOpen
	cb.successCount = 0
	cb.failureCount = 0
	// next_attempt_time is only meaningful while OPEN
	cb.nextAttemptTime = time.Time{}
	cb.logger.Info("Circuit breaker transitioning to half-open state")
}

func (cb *CircuitBreaker) recordSuccess() {
	switch cb.state {
	case domain.StateClosed:
		cb.failureCount = 0

	case domain.StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.config.SuccessThreshold {
			cb.state = domain.StateClosed
			cb.failureCount = 0
			cb.successCount = 0
			cb.logger.Info("Circuit breaker closing after successful recovery")
		}
	}
}

func (cb *CircuitBreaker) recordFailure(now time.Time) {
	cb.lastFailureTime = now

	switch cb.state {
	case domain.StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.config.FailureThreshold {
			cb.state = domain.StateOpen
			cb.nextAttemptTime = now.Add(cb.config.ResetTimeout())
			cb.logger.WithFields(map[string]interface{}{
				"failures":          cb.failureCount,
				"failure_threshold": cb.config.FailureThreshold,
				"next_attempt":      cb.nextAttemptTime,
			}).Warn("Circuit breaker opening due to failures")
		}

	case domain.StateHalfOpen:
		// A single failure during recovery re-opens immediately
		cb.state = domain.StateOpen
		cb.nextAttemptTime = now.Add(cb.config.ResetTimeout())
		cb.successCount = 0
		cb.logger.Info("Circuit breaker opening again after failure in half-open state")

	case domain.StateOpen:
		cb.failureCount++
	}
}

// State returns the current breaker state after evaluating the lazy
// OPEN -> HALF_OPEN transition
func (cb *CircuitBreaker) State() domain.CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.maybeHalfOpen(time.Now())
	return cb.state
}

// Status returns a snapshot copy of the breaker's current state
func (cb *CircuitBreaker) Status() domain.CircuitBreakerStatus {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.maybeHalfOpen(time.Now())
	return domain.CircuitBreakerStatus{
		State:           cb.state,
		StateName:       cb.state.String(),
		FailureCount:    cb.failureCount,
		SuccessCount:    cb.successCount,
		LastFailureTime: cb.lastFailureTime,
		NextAttemptTime: cb.nextAttemptTime,
	}
}

// BreakerSet holds one circuit breaker per configured region. The map is
// fixed at construction; individual breakers serialize their own state.
type BreakerSet struct {
	breakers map[string]*CircuitBreaker
}

// NewBreakerSet creates a CLOSED breaker for every given region id
func NewBreakerSet(regionIDs []string, config domain.CircuitBreakerConfig, logger *logger.Logger) *BreakerSet {
	breakers := make(map[string]*CircuitBreaker, len(regionIDs))
	for _, id := range regionIDs {
		breakers[id] = NewCircuitBreaker(id, config, logger)
	}
	return &BreakerSet{breakers: breakers}
}

// RecordOutcome forwards a success/failure signal to a region's breaker.
// Unknown region ids are a caller error; no state is created for them.
func (s *BreakerSet) RecordOutcome(regionID string, success bool) error {
	breaker, ok := s.breakers[regionID]
	if !ok {
		return errors.NewUnknownRegionError(regionID)
	}
	breaker.RecordOutcome(success)
	return nil
}

// Allow reports routing eligibility for a region. Unknown ids are not
// eligible.
func (s *BreakerSet) Allow(regionID string) bool {
	breaker, ok := s.breakers[regionID]
	if !ok {
		return false
	}
	return breaker.Allow()
}

// Get returns the breaker for a region
func (s *BreakerSet) Get(regionID string) (*CircuitBreaker, bool) {
	breaker, ok := s.breakers[regionID]
	return breaker, ok
}

// Snapshot returns a defensive copy of every breaker's status
func (s *BreakerSet) Snapshot() map[string]domain.CircuitBreakerStatus {
	out := make(map[string]domain.CircuitBreakerStatus, len(s.breakers))
	for id, breaker := range s.breakers {
		out[id] = breaker.Status()
	}
	return out
}
