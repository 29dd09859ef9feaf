package service

import (
	"math"
	"sort"
	"time"

	"github.com/agent-mesh/region-router/internal/catalog"
	"github.com/agent-mesh/region-router/internal/domain"
	"github.com/agent-mesh/region-router/internal/errors"
	"github.com/agent-mesh/region-router/pkg/logger"
)

// StrategyEngine applies the candidate filtering pipeline and the
// configured selection strategy to produce a single target region.
type StrategyEngine struct {
	catalog  *catalog.Catalog
	strategy domain.RoutingStrategy
	geoRules []domain.GeoRoutingRule
	tracker  *LatencyTracker
	health   domain.HealthSource
	breakers domain.BreakerSource
	logger   *logger.Logger
}

// NewStrategyEngine creates an engine for the given policy. The strategy
// must already be validated at configuration load.
func NewStrategyEngine(
	cat *catalog.Catalog,
	policy domain.RoutingPolicy,
	tracker *LatencyTracker,
	health domain.HealthSource,
	breakers domain.BreakerSource,
	logger *logger.Logger,
) *StrategyEngine {
	return &StrategyEngine{
		catalog:  cat,
		strategy: policy.Strategy,
		geoRules: policy.GeoRules,
		tracker:  tracker,
		health:   health,
		breakers: breakers,
		logger:   logger.StrategyLogger(string(policy.Strategy)),
	}
}

// Pick filters the catalog down to eligible candidates and applies the
// configured strategy. Returns a NO_REGION_AVAILABLE error when the
// candidate set is empty.
func (e *StrategyEngine) Pick(query domain.RouteQuery) (*domain.RegionConfig, error) {
	candidates := e.filterCandidates(query)
	if len(candidates) == 0 {
		return nil, errors.NewNoRegionAvailableError()
	}

	var selected domain.RegionConfig
	switch e.strategy {
	case domain.GeoStrategy:
		selected = e.selectGeo(query.SourceCountry, candidates)
	case domain.LatencyStrategy:
		selected = e.selectLatency(candidates)
	default:
		selected = e.selectPriority(candidates)
	}

	e.logger.WithField("region_id", selected.ID).Debug("Selected region for request")
	return &selected, nil
}

// filterCandidates applies the eligibility pipeline in its fixed order:
// active status, requested capability, required data residency, breaker
// not OPEN, and hysteresis-filtered health.
func (e *StrategyEngine) filterCandidates(query domain.RouteQuery) []domain.RegionConfig {
	var candidates []domain.RegionConfig
	for _, region := range e.catalog.All() {
		if region.Status != domain.StatusActive {
			continue
		}
		if query.Capability != "" && !region.HasCapability(query.Capability) {
			continue
		}
		if query.DataResidency != "" && region.DataResidency != query.DataResidency {
			continue
		}
		if !e.breakers.Allow(region.ID) {
			continue
		}
		if !e.health.Healthy(region.ID) {
			continue
		}
		candidates = append(candidates, region)
	}
	return candidates
}

// selectGeo evaluates geo rules in declaration order against the source
// country. On the first match the rule's target is preferred, then its
// fallback, then the first surviving candidate. No matching rule also
// resolves to the first surviving candidate.
func (e *StrategyEngine) selectGeo(sourceCountry string, candidates []domain.RegionConfig) domain.RegionConfig {
	if sourceCountry != "" {
		for _, rule := range e.geoRules {
			if !rule.Matches(sourceCountry) {
				continue
			}
			if region, ok := findCandidate(candidates, rule.TargetRegionID); ok {
				return region
			}
			if region, ok := findCandidate(candidates, rule.FallbackRegionID); ok {
				return region
			}
			break
		}
	}
	return candidates[0]
}

// selectLatency picks the candidate with the lowest p95 probe latency.
// Regions with no recorded samples sort last; ties resolve to catalog
// order via the stable sort.
func (e *StrategyEngine) selectLatency(candidates []domain.RegionConfig) domain.RegionConfig {
	keys := make(map[string]time.Duration, len(candidates))
	for _, region := range candidates {
		if e.tracker.Count(region.ID) == 0 {
			keys[region.ID] = time.Duration(math.MaxInt64)
			continue
		}
		keys[region.ID] = e.tracker.P95(region.ID)
	}

	sorted := make([]domain.RegionConfig, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return keys[sorted[i].ID] < keys[sorted[j].ID]
	})
	return sorted[0]
}

// selectPriority picks the candidate with the lowest priority value.
// Ties resolve to catalog order via the stable sort.
func (e *StrategyEngine) selectPriority(candidates []domain.RegionConfig) domain.RegionConfig {
	sorted := make([]domain.RegionConfig, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	return sorted[0]
}

func findCandidate(candidates []domain.RegionConfig, regionID string) (domain.RegionConfig, bool) {
	if regionID == "" {
		return domain.RegionConfig{}, false
	}
	for _, region := range candidates {
		if region.ID == regionID {
			return region, true
		}
	}
	return domain.RegionConfig{}, false
}
