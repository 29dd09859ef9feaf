package config

import (
	"fmt"
	"os"
	"time"

	"github.com/agent-mesh/region-router/internal/domain"
	"gopkg.in/yaml.v2"
)

// Config represents the main configuration structure
type Config struct {
	Server    ServerConfig          `yaml:"server"`
	Routing   RoutingConfig         `yaml:"routing"`
	Regions   []domain.RegionConfig `yaml:"regions"`
	Logging   LoggingConfig         `yaml:"logging"`
	RateLimit RateLimitConfig       `yaml:"rate_limit"`
	Auth      AuthConfig            `yaml:"auth"`
}

// ServerConfig contains HTTP server specific configuration
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// RoutingConfig contains the routing strategy and failover policy
type RoutingConfig struct {
	Strategy       string                      `yaml:"strategy"`
	GeoRules       []domain.GeoRoutingRule     `yaml:"geo_rules"`
	HealthCheck    domain.HealthCheckConfig    `yaml:"health_check"`
	CircuitBreaker domain.CircuitBreakerConfig `yaml:"circuit_breaker"`
	LatencyWindow  int                         `yaml:"latency_window"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	File   string `yaml:"file"`
}

// RateLimitConfig defines configuration for decision API rate limiting
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size"`
}

// AuthConfig defines configuration for admin API authentication
type AuthConfig struct {
	Enabled   bool   `yaml:"enabled"`
	SecretKey string `yaml:"secret_key"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8090,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Routing: RoutingConfig{
			Strategy: string(domain.PriorityStrategy),
			HealthCheck: domain.HealthCheckConfig{
				IntervalSeconds:    30,
				TimeoutSeconds:     5,
				HealthyThreshold:   2,
				UnhealthyThreshold: 3,
			},
			CircuitBreaker: domain.CircuitBreakerConfig{
				FailureThreshold: 5,
				SuccessThreshold: 2,
				TimeoutSeconds:   60,
			},
			LatencyWindow: 100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerSecond: 100,
			BurstSize:         200,
		},
		Auth: AuthConfig{
			Enabled: false,
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadConfig loads configuration from CONFIG_FILE (or the default path) and
// applies environment variable overrides on top
func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = "configs/config.yaml"
	}

	config := DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvironment(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate validates the configuration for correctness
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	// Validate strategy
	strategy := domain.RoutingStrategy(c.Routing.Strategy)
	if !strategy.Valid() {
		return fmt.Errorf("unsupported routing strategy: %s", c.Routing.Strategy)
	}

	// Validate regions
	if len(c.Regions) == 0 {
		return fmt.Errorf("at least one region must be configured")
	}

	regionIDs := make(map[string]bool)
	for i, region := range c.Regions {
		if region.ID == "" {
			return fmt.Errorf("region[%d]: ID cannot be empty", i)
		}

		if regionIDs[region.ID] {
			return fmt.Errorf("region[%d]: duplicate ID '%s'", i, region.ID)
		}
		regionIDs[region.ID] = true

		if !region.Status.Valid() {
			return fmt.Errorf("region[%d]: invalid status '%s'", i, region.Status)
		}

		if region.Priority < 0 {
			return fmt.Errorf("region[%d]: priority cannot be negative", i)
		}

		if region.DeploymentURL == "" {
			return fmt.Errorf("region[%d]: deployment_url cannot be empty", i)
		}

		if len(region.HealthEndpoints) == 0 {
			return fmt.Errorf("region[%d]: at least one health endpoint is required", i)
		}

		for j, ep := range region.HealthEndpoints {
			if ep.Path == "" {
				return fmt.Errorf("region[%d].health_endpoints[%d]: path cannot be empty", i, j)
			}
			if ep.ExpectedStatus < 100 || ep.ExpectedStatus > 599 {
				return fmt.Errorf("region[%d].health_endpoints[%d]: invalid expected status %d", i, j, ep.ExpectedStatus)
			}
		}
	}

	// Geo rules must reference configured regions
	for i, rule := range c.Routing.GeoRules {
		if len(rule.SourceCountries) == 0 {
			return fmt.Errorf("geo_rules[%d]: source_countries cannot be empty", i)
		}
		if !regionIDs[rule.TargetRegionID] {
			return fmt.Errorf("geo_rules[%d]: unknown target region '%s'", i, rule.TargetRegionID)
		}
		if rule.FallbackRegionID != "" && !regionIDs[rule.FallbackRegionID] {
			return fmt.Errorf("geo_rules[%d]: unknown fallback region '%s'", i, rule.FallbackRegionID)
		}
	}

	// Validate health check configuration
	if c.Routing.HealthCheck.IntervalSeconds <= 0 {
		return fmt.Errorf("health_check.interval_seconds must be positive")
	}
	if c.Routing.HealthCheck.TimeoutSeconds <= 0 {
		return fmt.Errorf("health_check.timeout_seconds must be positive")
	}
	if c.Routing.HealthCheck.HealthyThreshold <= 0 {
		return fmt.Errorf("health_check.healthy_threshold must be positive")
	}
	if c.Routing.HealthCheck.UnhealthyThreshold <= 0 {
		return fmt.Errorf("health_check.unhealthy_threshold must be positive")
	}

	// Validate circuit breaker configuration
	if c.Routing.CircuitBreaker.FailureThreshold <= 0 {
		return fmt.Errorf("circuit_breaker.failure_threshold must be positive")
	}
	if c.Routing.CircuitBreaker.SuccessThreshold <= 0 {
		return fmt.Errorf("circuit_breaker.success_threshold must be positive")
	}
	if c.Routing.CircuitBreaker.TimeoutSeconds <= 0 {
		return fmt.Errorf("circuit_breaker.timeout_seconds must be positive")
	}

	if c.Routing.LatencyWindow <= 0 {
		return fmt.Errorf("latency_window must be positive")
	}

	// Validate rate limiting configuration
	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limit.requests_per_second must be positive")
		}
		if c.RateLimit.BurstSize <= 0 {
			return fmt.Errorf("rate_limit.burst_size must be positive")
		}
	}

	// Validate auth configuration
	if c.Auth.Enabled && c.Auth.SecretKey == "" {
		return fmt.Errorf("auth.secret_key is required when auth is enabled")
	}

	// Validate logging configuration
	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	validOutputs := map[string]bool{"stdout": true, "stderr": true, "file": true}
	if !validOutputs[c.Logging.Output] {
		return fmt.Errorf("invalid log output: %s", c.Logging.Output)
	}

	return nil
}

// ToRoutingPolicy converts to the domain RoutingPolicy
func (c *Config) ToRoutingPolicy() domain.RoutingPolicy {
	return domain.RoutingPolicy{
		Strategy:       domain.RoutingStrategy(c.Routing.Strategy),
		GeoRules:       c.Routing.GeoRules,
		HealthCheck:    c.Routing.HealthCheck,
		CircuitBreaker: c.Routing.CircuitBreaker,
	}
}

// SaveToFile saves the configuration to a YAML file
func (c *Config) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", filename, err)
	}

	return nil
}
