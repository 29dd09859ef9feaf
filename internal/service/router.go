package service

import (
	"github.com/agent-mesh/region-router/internal/catalog"
	"github.com/agent-mesh/region-router/internal/domain"
	"github.com/agent-mesh/region-router/internal/errors"
	"github.com/agent-mesh/region-router/pkg/logger"
)

// RegionRouter is the routing façade. It composes the catalog, latency
// tracker, health monitor, circuit breakers, and strategy engine behind
// the public decision API, and owns the background monitoring lifecycle.
//
// A router is explicitly constructed and injected into whatever component
// needs routing decisions; there is no package-level singleton.
type RegionRouter struct {
	catalog  *catalog.Catalog
	policy   domain.RoutingPolicy
	tracker  *LatencyTracker
	breakers *BreakerSet
	monitor  *HealthMonitor
	engine   *StrategyEngine
	metrics  *Metrics
	logger   *logger.Logger
}

// probeOutcomeSink fans a probe outcome into the region's circuit breaker
// and the metrics counters. Probe and traffic signals share one breaker
// per region; only the bookkeeping differs.
type probeOutcomeSink struct {
	breakers *BreakerSet
	metrics  *Metrics
}

func (s *probeOutcomeSink) RecordOutcome(regionID string, success bool) error {
	s.metrics.RecordProbe(regionID, success)
	return s.breakers.RecordOutcome(regionID, success)
}

// NewRegionRouter builds a router over a loaded catalog and policy. All
// per-region state (health record, breaker, latency window) is initialized
// here, so GetOptimalRegion is safe to call before any health check runs.
func NewRegionRouter(cat *catalog.Catalog, policy domain.RoutingPolicy, latencyWindow int, log *logger.Logger) *RegionRouter {
	tracker := NewLatencyTracker(latencyWindow)
	metrics := NewMetrics()

	regionIDs := make([]string, 0, cat.Len())
	for _, region := range cat.All() {
		regionIDs = append(regionIDs, region.ID)
	}
	breakers := NewBreakerSet(regionIDs, policy.CircuitBreaker, log)

	monitor := NewHealthMonitor(
		policy.HealthCheck,
		cat.All(),
		tracker,
		&probeOutcomeSink{breakers: breakers, metrics: metrics},
		log,
	)

	engine := NewStrategyEngine(cat, policy, tracker, monitor, breakers, log)

	return &RegionRouter{
		catalog:  cat,
		policy:   policy,
		tracker:  tracker,
		breakers: breakers,
		monitor:  monitor,
		engine:   engine,
		metrics:  metrics,
		logger:   log.RouterLogger(),
	}
}

// GetOptimalRegion returns the region that should serve a request with
// the given constraints, or a NO_REGION_AVAILABLE error when every region
// is filtered out. The decision is a pure computation over current state
// and performs no I/O.
func (r *RegionRouter) GetOptimalRegion(query domain.RouteQuery) (*domain.RegionConfig, error) {
	region, err := r.engine.Pick(query)
	if err != nil {
		r.metrics.RecordUnavailable()
		r.logger.WithFields(map[string]interface{}{
			"source_country": query.SourceCountry,
			"capability":     query.Capability,
			"data_residency": query.DataResidency,
		}).Warn("No eligible region for request")
		return nil, err
	}

	r.metrics.RecordDecision(region.ID)
	return region, nil
}

// RecordSuccess reports that real traffic dispatched to a region
// succeeded. Returns an error for unknown region ids.
func (r *RegionRouter) RecordSuccess(regionID string) error {
	if !r.catalog.Contains(regionID) {
		return errors.NewUnknownRegionError(regionID)
	}
	r.metrics.RecordFeedback(true)
	return r.breakers.RecordOutcome(regionID, true)
}

// RecordFailure reports that real traffic dispatched to a region failed.
// Returns an error for unknown region ids.
func (r *RegionRouter) RecordFailure(regionID string) error {
	if !r.catalog.Contains(regionID) {
		return errors.NewUnknownRegionError(regionID)
	}
	r.metrics.RecordFeedback(false)
	return r.breakers.RecordOutcome(regionID, false)
}

// RegionHealthStatus returns a defensive snapshot of every region's
// probe-driven health record
func (r *RegionRouter) RegionHealthStatus() map[string]domain.RegionHealth {
	return r.monitor.Snapshot()
}

// CircuitBreakerStatus returns a defensive snapshot of every region's
// breaker state
func (r *RegionRouter) CircuitBreakerStatus() map[string]domain.CircuitBreakerStatus {
	return r.breakers.Snapshot()
}

// StartHealthChecks starts the background probe loop
func (r *RegionRouter) StartHealthChecks() error {
	return r.monitor.Start()
}

// StopHealthChecks stops the background probe loop. Idempotent and safe
// to call before StartHealthChecks.
func (r *RegionRouter) StopHealthChecks() {
	r.monitor.Stop()
}

// IsMonitoring reports whether the background probe loop is running
func (r *RegionRouter) IsMonitoring() bool {
	return r.monitor.IsRunning()
}

// Catalog returns the region catalog
func (r *RegionRouter) Catalog() *catalog.Catalog {
	return r.catalog
}

// Policy returns the routing policy the router was built with
func (r *RegionRouter) Policy() domain.RoutingPolicy {
	return r.policy
}

// Metrics returns the router's metrics collector
func (r *RegionRouter) Metrics() *Metrics {
	return r.metrics
}
