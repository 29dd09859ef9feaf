package domain

import "time"

// RegionStatus represents the administrative status of a region
type RegionStatus string

const (
	// StatusActive indicates the region participates in routing
	StatusActive RegionStatus = "active"
	// StatusInactive indicates the region is configured but disabled
	StatusInactive RegionStatus = "inactive"
	// StatusMaintenance indicates the region is temporarily drained
	StatusMaintenance RegionStatus = "maintenance"
)

// Valid reports whether the status is one of the known values
func (s RegionStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusMaintenance:
		return true
	}
	return false
}

// HealthEndpoint is a single probe target declared by a region
type HealthEndpoint struct {
	Path           string `json:"path" yaml:"path"`
	ExpectedStatus int    `json:"expected_status" yaml:"expected_status"`
}

// RegionConfig describes a regional backend deployment.
// Immutable after catalog load; runtime state lives elsewhere, keyed by ID.
type RegionConfig struct {
	ID              string           `json:"id" yaml:"id"`
	Name            string           `json:"name" yaml:"name"`
	Provider        string           `json:"provider" yaml:"provider"`
	Priority        int              `json:"priority" yaml:"priority"`
	Status          RegionStatus     `json:"status" yaml:"status"`
	Capabilities    []string         `json:"capabilities" yaml:"capabilities"`
	DataResidency   string           `json:"data_residency" yaml:"data_residency"`
	HealthEndpoints []HealthEndpoint `json:"health_endpoints" yaml:"health_endpoints"`
	DeploymentURL   string           `json:"deployment_url" yaml:"deployment_url"`
}

// HasCapability reports whether the region declares the given capability
func (r *RegionConfig) HasCapability(capability string) bool {
	for _, c := range r.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// RegionHealth is a point-in-time snapshot of a region's probe-driven health
type RegionHealth struct {
	Healthy              bool          `json:"healthy"`
	ConsecutiveFailures  int           `json:"consecutive_failures"`
	ConsecutiveSuccesses int           `json:"consecutive_successes"`
	LastCheckTime        time.Time     `json:"last_check_time"`
	LatencyP95           time.Duration `json:"latency_p95_ns"`
}

// CircuitState represents the state of a per-region circuit breaker
type CircuitState int

const (
	// StateClosed - breaker is closed, the region takes traffic normally
	StateClosed CircuitState = iota
	// StateOpen - breaker is open, the region is excluded from routing
	StateOpen
	// StateHalfOpen - breaker allows trial traffic to test recovery
	StateHalfOpen
)

// String returns the string representation of CircuitState
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerStatus is a point-in-time snapshot of a region's breaker
type CircuitBreakerStatus struct {
	State           CircuitState `json:"-"`
	StateName       string       `json:"state"`
	FailureCount    int          `json:"failure_count"`
	SuccessCount    int          `json:"success_count"`
	LastFailureTime time.Time    `json:"last_failure_time"`
	NextAttemptTime time.Time    `json:"next_attempt_time"`
}

// RoutingStrategy defines the strategy for selecting a target region
type RoutingStrategy string

const (
	// GeoStrategy routes by source country through ordered geo rules
	GeoStrategy RoutingStrategy = "geo-based"
	// LatencyStrategy routes to the region with the lowest p95 probe latency
	LatencyStrategy RoutingStrategy = "latency-based"
	// PriorityStrategy routes to the region with the lowest priority value
	PriorityStrategy RoutingStrategy = "priority-based"
)

// Valid reports whether the strategy is one of the known values
func (s RoutingStrategy) Valid() bool {
	switch s {
	case GeoStrategy, LatencyStrategy, PriorityStrategy:
		return true
	}
	return false
}

// GeoRoutingRule maps a set of source countries to a target region.
// Rules are evaluated in declaration order; first match wins.
type GeoRoutingRule struct {
	SourceCountries  []string `json:"source_countries" yaml:"source_countries"`
	TargetRegionID   string   `json:"target_region_id" yaml:"target_region_id"`
	FallbackRegionID string   `json:"fallback_region_id" yaml:"fallback_region_id"`
}

// Matches reports whether the rule covers the given source country
func (r *GeoRoutingRule) Matches(sourceCountry string) bool {
	for _, c := range r.SourceCountries {
		if c == sourceCountry {
			return true
		}
	}
	return false
}

// HealthCheckConfig defines configuration for health probing
type HealthCheckConfig struct {
	IntervalSeconds    int `json:"interval_seconds" yaml:"interval_seconds"`
	TimeoutSeconds     int `json:"timeout_seconds" yaml:"timeout_seconds"`
	HealthyThreshold   int `json:"healthy_threshold" yaml:"healthy_threshold"`
	UnhealthyThreshold int `json:"unhealthy_threshold" yaml:"unhealthy_threshold"`
}

// Interval returns the probe interval as a duration
func (c HealthCheckConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// Timeout returns the per-probe timeout as a duration
func (c HealthCheckConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CircuitBreakerConfig defines configuration for per-region breakers
type CircuitBreakerConfig struct {
	FailureThreshold int `json:"failure_threshold" yaml:"failure_threshold"`
	SuccessThreshold int `json:"success_threshold" yaml:"success_threshold"`
	TimeoutSeconds   int `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// ResetTimeout returns the OPEN reset window as a duration
func (c CircuitBreakerConfig) ResetTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RoutingPolicy is the global routing and failover policy
type RoutingPolicy struct {
	Strategy       RoutingStrategy      `json:"strategy" yaml:"strategy"`
	GeoRules       []GeoRoutingRule     `json:"geo_rules" yaml:"geo_rules"`
	HealthCheck    HealthCheckConfig    `json:"health_check" yaml:"health_check"`
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker" yaml:"circuit_breaker"`
}

// RouteQuery carries the caller-supplied constraints for a routing decision.
// Empty fields mean "no constraint".
type RouteQuery struct {
	SourceCountry string `json:"source_country"`
	Capability    string `json:"capability"`
	DataResidency string `json:"data_residency"`
}

// HealthSource exposes probe-driven health to the routing pipeline
type HealthSource interface {
	// Healthy reports the hysteresis-filtered health flag for a region
	Healthy(regionID string) bool
}

// BreakerSource exposes circuit breaker eligibility to the routing pipeline
type BreakerSource interface {
	// Allow reports whether the region's breaker admits traffic,
	// performing the lazy OPEN to HALF_OPEN transition when due
	Allow(regionID string) bool
}

// OutcomeRecorder is the single merge point for success/failure signals.
// Both synthetic probes and real-traffic feedback report through it.
type OutcomeRecorder interface {
	RecordOutcome(regionID string, success bool) error
}
