package service

import (
	"testing"

	"github.com/agent-mesh/region-router/internal/catalog"
	"github.com/agent-mesh/region-router/internal/domain"
	"github.com/agent-mesh/region-router/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy(strategy domain.RoutingStrategy) domain.RoutingPolicy {
	return domain.RoutingPolicy{
		Strategy: strategy,
		HealthCheck: domain.HealthCheckConfig{
			IntervalSeconds:    30,
			TimeoutSeconds:     5,
			HealthyThreshold:   2,
			UnhealthyThreshold: 3,
		},
		CircuitBreaker: domain.CircuitBreakerConfig{
			FailureThreshold: 3,
			SuccessThreshold: 2,
			TimeoutSeconds:   60,
		},
	}
}

func newTestRouter(t *testing.T, strategy domain.RoutingStrategy) *RegionRouter {
	t.Helper()

	cat, err := catalog.New(testRegions())
	require.NoError(t, err)

	return NewRegionRouter(cat, testPolicy(strategy), 100, newTestLogger())
}

func TestRouterDecisionBeforeAnyProbe(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, domain.PriorityStrategy)

	// All regions start healthy with closed breakers, so a decision is
	// available before the monitor ever runs
	region, err := router.GetOptimalRegion(domain.RouteQuery{})
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", region.ID)
}

func TestRouterDecisionWithConstraints(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, domain.PriorityStrategy)

	region, err := router.GetOptimalRegion(domain.RouteQuery{Capability: "inference", DataResidency: "us"})
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", region.ID)
}

func TestRouterNoRegionAvailable(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, domain.PriorityStrategy)

	_, err := router.GetOptimalRegion(domain.RouteQuery{DataResidency: "antarctica"})
	require.Error(t, err)
	assert.True(t, errors.IsNoRegionAvailable(err))

	stats := router.Metrics().Stats()
	assert.Equal(t, int64(1), stats["unavailable_total"])
}

func TestRouterFeedbackOpensBreaker(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, domain.PriorityStrategy)

	// eu-west-1 wins on priority until its breaker opens
	for i := 0; i < 3; i++ {
		require.NoError(t, router.RecordFailure("eu-west-1"))
	}

	region, err := router.GetOptimalRegion(domain.RouteQuery{})
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", region.ID,
		"traffic feedback alone must be able to exclude a region")

	breakers := router.CircuitBreakerStatus()
	assert.Equal(t, "open", breakers["eu-west-1"].StateName)
}

func TestRouterFeedbackDoesNotTouchProbeHealth(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, domain.PriorityStrategy)

	for i := 0; i < 5; i++ {
		require.NoError(t, router.RecordFailure("eu-west-1"))
	}

	health := router.RegionHealthStatus()
	assert.True(t, health["eu-west-1"].Healthy,
		"traffic feedback drives the breaker, not the probe hysteresis record")
	assert.Equal(t, 0, health["eu-west-1"].ConsecutiveFailures)
}

func TestRouterFeedbackUnknownRegion(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, domain.PriorityStrategy)

	err := router.RecordSuccess("mars-1")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeUnknownRegion, errors.GetErrorCode(err))

	err = router.RecordFailure("mars-1")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeUnknownRegion, errors.GetErrorCode(err))

	// Rejected feedback must not create breaker state
	assert.NotContains(t, router.CircuitBreakerStatus(), "mars-1")
}

func TestRouterSuccessFeedbackCountsTowardRecovery(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, domain.PriorityStrategy)

	for i := 0; i < 3; i++ {
		require.NoError(t, router.RecordFailure("eu-west-1"))
	}

	breaker, ok := router.breakers.Get("eu-west-1")
	require.True(t, ok)
	rewindResetWindow(breaker)

	require.NoError(t, router.RecordSuccess("eu-west-1"))
	require.NoError(t, router.RecordSuccess("eu-west-1"))

	assert.Equal(t, "closed", router.CircuitBreakerStatus()["eu-west-1"].StateName)
}

func TestRouterHealthSnapshotIsDefensive(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, domain.PriorityStrategy)

	first := router.RegionHealthStatus()
	entry := first["eu-west-1"]
	entry.ConsecutiveFailures = 99
	first["eu-west-1"] = entry

	second := router.RegionHealthStatus()
	assert.Equal(t, 0, second["eu-west-1"].ConsecutiveFailures,
		"snapshot mutation must not leak into router state")
}

func TestRouterMetricsTrackDecisions(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, domain.PriorityStrategy)

	for i := 0; i < 3; i++ {
		_, err := router.GetOptimalRegion(domain.RouteQuery{})
		require.NoError(t, err)
	}

	stats := router.Metrics().Stats()
	assert.Equal(t, int64(3), stats["decisions_total"])
}

func TestRouterMonitoringLifecycle(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, domain.PriorityStrategy)

	assert.False(t, router.IsMonitoring())
	require.NoError(t, router.StartHealthChecks())
	assert.True(t, router.IsMonitoring())

	assert.Error(t, router.StartHealthChecks())

	router.StopHealthChecks()
	assert.False(t, router.IsMonitoring())
	router.StopHealthChecks()
}

func TestRouterAccessors(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, domain.GeoStrategy)

	assert.Equal(t, 4, router.Catalog().Len())
	assert.Equal(t, domain.GeoStrategy, router.Policy().Strategy)
	assert.NotNil(t, router.Metrics())
}
