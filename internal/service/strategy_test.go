package service

import (
	"testing"
	"time"

	"github.com/agent-mesh/region-router/internal/catalog"
	"github.com/agent-mesh/region-router/internal/domain"
	"github.com/agent-mesh/region-router/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubHealth marks every region healthy unless listed
type stubHealth struct {
	unhealthy map[string]bool
}

func (s stubHealth) Healthy(regionID string) bool {
	return !s.unhealthy[regionID]
}

// stubBreakers admits every region unless listed as open
type stubBreakers struct {
	open map[string]bool
}

func (s stubBreakers) Allow(regionID string) bool {
	return !s.open[regionID]
}

func testRegions() []domain.RegionConfig {
	endpoint := []domain.HealthEndpoint{{Path: "/healthz", ExpectedStatus: 200}}
	return []domain.RegionConfig{
		{
			ID: "eu-west-1", Name: "Europe West", Priority: 1, Status: domain.StatusActive,
			Capabilities: []string{"inference", "training"}, DataResidency: "eu",
			DeploymentURL: "https://eu-west-1.example.com", HealthEndpoints: endpoint,
		},
		{
			ID: "eu-central-1", Name: "Europe Central", Priority: 2, Status: domain.StatusActive,
			Capabilities: []string{"inference"}, DataResidency: "eu",
			DeploymentURL: "https://eu-central-1.example.com", HealthEndpoints: endpoint,
		},
		{
			ID: "us-east-1", Name: "US East", Priority: 1, Status: domain.StatusActive,
			Capabilities: []string{"inference", "training"}, DataResidency: "us",
			DeploymentURL: "https://us-east-1.example.com", HealthEndpoints: endpoint,
		},
		{
			ID: "ap-northeast-1", Name: "Tokyo", Priority: 3, Status: domain.StatusMaintenance,
			Capabilities: []string{"inference"}, DataResidency: "apac",
			DeploymentURL: "https://ap-northeast-1.example.com", HealthEndpoints: endpoint,
		},
	}
}

func newTestEngine(t *testing.T, strategy domain.RoutingStrategy, geoRules []domain.GeoRoutingRule,
	tracker *LatencyTracker, health domain.HealthSource, breakers domain.BreakerSource) *StrategyEngine {
	t.Helper()

	cat, err := catalog.New(testRegions())
	require.NoError(t, err)

	if tracker == nil {
		tracker = NewLatencyTracker(100)
	}
	if health == nil {
		health = stubHealth{}
	}
	if breakers == nil {
		breakers = stubBreakers{}
	}

	policy := domain.RoutingPolicy{Strategy: strategy, GeoRules: geoRules}
	return NewStrategyEngine(cat, policy, tracker, health, breakers, newTestLogger())
}

func TestFilterExcludesNonActiveRegions(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, domain.PriorityStrategy, nil, nil, nil, nil)

	candidates := engine.filterCandidates(domain.RouteQuery{})
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	assert.NotContains(t, ids, "ap-northeast-1", "maintenance regions must never be candidates")
	assert.Len(t, candidates, 3)
}

func TestFilterByCapability(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, domain.PriorityStrategy, nil, nil, nil, nil)

	candidates := engine.filterCandidates(domain.RouteQuery{Capability: "training"})
	assert.Len(t, candidates, 2)
	for _, c := range candidates {
		assert.True(t, c.HasCapability("training"))
	}
}

func TestFilterByDataResidency(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, domain.PriorityStrategy, nil, nil, nil, nil)

	candidates := engine.filterCandidates(domain.RouteQuery{DataResidency: "eu"})
	assert.Len(t, candidates, 2)
	for _, c := range candidates {
		assert.Equal(t, "eu", c.DataResidency)
	}
}

func TestFilterExcludesOpenBreakerDespiteHealthy(t *testing.T) {
	t.Parallel()

	breakers := stubBreakers{open: map[string]bool{"eu-west-1": true}}
	engine := newTestEngine(t, domain.PriorityStrategy, nil, nil, nil, breakers)

	candidates := engine.filterCandidates(domain.RouteQuery{DataResidency: "eu"})
	require.Len(t, candidates, 1)
	assert.Equal(t, "eu-central-1", candidates[0].ID,
		"an open breaker excludes a region even when probes report it healthy")
}

func TestFilterExcludesUnhealthyRegions(t *testing.T) {
	t.Parallel()

	health := stubHealth{unhealthy: map[string]bool{"eu-west-1": true, "us-east-1": true}}
	engine := newTestEngine(t, domain.PriorityStrategy, nil, nil, health, nil)

	candidates := engine.filterCandidates(domain.RouteQuery{})
	require.Len(t, candidates, 1)
	assert.Equal(t, "eu-central-1", candidates[0].ID)
}

func TestPickEmptyCandidateSet(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, domain.PriorityStrategy, nil, nil, nil, nil)

	_, err := engine.Pick(domain.RouteQuery{Capability: "quantum"})
	require.Error(t, err)
	assert.True(t, errors.IsNoRegionAvailable(err))
}

func TestPriorityStrategySelectsLowestValue(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, domain.PriorityStrategy, nil, nil, nil, nil)

	region, err := engine.Pick(domain.RouteQuery{})
	require.NoError(t, err)
	// eu-west-1 and us-east-1 share priority 1; catalog order breaks the tie
	assert.Equal(t, "eu-west-1", region.ID)
}

func TestPriorityStrategyTieBreakIsDeterministic(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, domain.PriorityStrategy, nil, nil, nil, nil)

	for i := 0; i < 20; i++ {
		region, err := engine.Pick(domain.RouteQuery{})
		require.NoError(t, err)
		assert.Equal(t, "eu-west-1", region.ID, "identical inputs must yield identical decisions")
	}
}

func TestGeoStrategyMatchesRule(t *testing.T) {
	t.Parallel()

	rules := []domain.GeoRoutingRule{
		{SourceCountries: []string{"DE", "FR"}, TargetRegionID: "eu-west-1", FallbackRegionID: "eu-central-1"},
		{SourceCountries: []string{"US"}, TargetRegionID: "us-east-1"},
	}
	engine := newTestEngine(t, domain.GeoStrategy, rules, nil, nil, nil)

	region, err := engine.Pick(domain.RouteQuery{SourceCountry: "DE"})
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", region.ID)

	region, err = engine.Pick(domain.RouteQuery{SourceCountry: "US"})
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", region.ID)
}

func TestGeoStrategyFallsBackWhenTargetIneligible(t *testing.T) {
	t.Parallel()

	rules := []domain.GeoRoutingRule{
		{SourceCountries: []string{"DE"}, TargetRegionID: "eu-west-1", FallbackRegionID: "eu-central-1"},
	}
	health := stubHealth{unhealthy: map[string]bool{"eu-west-1": true}}
	engine := newTestEngine(t, domain.GeoStrategy, rules, nil, health, nil)

	region, err := engine.Pick(domain.RouteQuery{SourceCountry: "DE"})
	require.NoError(t, err)
	assert.Equal(t, "eu-central-1", region.ID)
}

func TestGeoStrategySurvivorWhenTargetAndFallbackIneligible(t *testing.T) {
	t.Parallel()

	rules := []domain.GeoRoutingRule{
		{SourceCountries: []string{"DE"}, TargetRegionID: "eu-west-1", FallbackRegionID: "eu-central-1"},
	}
	health := stubHealth{unhealthy: map[string]bool{"eu-west-1": true, "eu-central-1": true}}
	engine := newTestEngine(t, domain.GeoStrategy, rules, nil, health, nil)

	region, err := engine.Pick(domain.RouteQuery{SourceCountry: "DE"})
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", region.ID, "rule exhaustion falls through to the first surviving candidate")
}

func TestGeoStrategyNoMatchingRule(t *testing.T) {
	t.Parallel()

	rules := []domain.GeoRoutingRule{
		{SourceCountries: []string{"DE"}, TargetRegionID: "eu-west-1"},
	}
	engine := newTestEngine(t, domain.GeoStrategy, rules, nil, nil, nil)

	region, err := engine.Pick(domain.RouteQuery{SourceCountry: "BR"})
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", region.ID, "no matching rule resolves to the first surviving candidate")
}

func TestGeoStrategyFirstMatchingRuleWins(t *testing.T) {
	t.Parallel()

	rules := []domain.GeoRoutingRule{
		{SourceCountries: []string{"DE"}, TargetRegionID: "eu-central-1"},
		{SourceCountries: []string{"DE"}, TargetRegionID: "us-east-1"},
	}
	engine := newTestEngine(t, domain.GeoStrategy, rules, nil, nil, nil)

	region, err := engine.Pick(domain.RouteQuery{SourceCountry: "DE"})
	require.NoError(t, err)
	assert.Equal(t, "eu-central-1", region.ID)
}

func TestLatencyStrategySelectsLowestP95(t *testing.T) {
	t.Parallel()

	tracker := NewLatencyTracker(100)
	tracker.Record("eu-west-1", 120*time.Millisecond)
	tracker.Record("eu-central-1", 30*time.Millisecond)
	tracker.Record("us-east-1", 80*time.Millisecond)

	engine := newTestEngine(t, domain.LatencyStrategy, nil, tracker, nil, nil)

	region, err := engine.Pick(domain.RouteQuery{})
	require.NoError(t, err)
	assert.Equal(t, "eu-central-1", region.ID)
}

func TestLatencyStrategyUnprobedRegionsSortLast(t *testing.T) {
	t.Parallel()

	tracker := NewLatencyTracker(100)
	// Only eu-central-1 has samples; unprobed regions must not win on
	// their zero-valued p95
	tracker.Record("eu-central-1", 500*time.Millisecond)

	engine := newTestEngine(t, domain.LatencyStrategy, nil, tracker, nil, nil)

	region, err := engine.Pick(domain.RouteQuery{})
	require.NoError(t, err)
	assert.Equal(t, "eu-central-1", region.ID)
}

func TestLatencyStrategyAllUnprobedFallsBackToCatalogOrder(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, domain.LatencyStrategy, nil, nil, nil, nil)

	region, err := engine.Pick(domain.RouteQuery{})
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", region.ID)
}
