package config

import (
	"os"
	"strconv"
	"strings"
)

// applyEnvironment overrides configuration fields from RR_* environment
// variables. Unset or unparsable values leave the existing config untouched.
func applyEnvironment(config *Config) {
	if port := os.Getenv("RR_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 && p <= 65535 {
			config.Server.Port = p
		}
	}

	if strategy := os.Getenv("RR_STRATEGY"); strategy != "" {
		config.Routing.Strategy = strategy
	}

	if logLevel := os.Getenv("RR_LOG_LEVEL"); logLevel != "" {
		config.Logging.Level = logLevel
	}

	if format := os.Getenv("RR_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}

	// Health check configuration
	if interval := os.Getenv("RR_HEALTH_INTERVAL_SECONDS"); interval != "" {
		if i, err := strconv.Atoi(interval); err == nil && i > 0 {
			config.Routing.HealthCheck.IntervalSeconds = i
		}
	}

	if timeout := os.Getenv("RR_HEALTH_TIMEOUT_SECONDS"); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil && t > 0 {
			config.Routing.HealthCheck.TimeoutSeconds = t
		}
	}

	if threshold := os.Getenv("RR_HEALTHY_THRESHOLD"); threshold != "" {
		if t, err := strconv.Atoi(threshold); err == nil && t > 0 {
			config.Routing.HealthCheck.HealthyThreshold = t
		}
	}

	if threshold := os.Getenv("RR_UNHEALTHY_THRESHOLD"); threshold != "" {
		if t, err := strconv.Atoi(threshold); err == nil && t > 0 {
			config.Routing.HealthCheck.UnhealthyThreshold = t
		}
	}

	// Circuit breaker configuration
	if threshold := os.Getenv("RR_CB_FAILURE_THRESHOLD"); threshold != "" {
		if t, err := strconv.Atoi(threshold); err == nil && t > 0 {
			config.Routing.CircuitBreaker.FailureThreshold = t
		}
	}

	if threshold := os.Getenv("RR_CB_SUCCESS_THRESHOLD"); threshold != "" {
		if t, err := strconv.Atoi(threshold); err == nil && t > 0 {
			config.Routing.CircuitBreaker.SuccessThreshold = t
		}
	}

	if timeout := os.Getenv("RR_CB_TIMEOUT_SECONDS"); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil && t > 0 {
			config.Routing.CircuitBreaker.TimeoutSeconds = t
		}
	}

	// Rate limiting configuration
	if enabled := os.Getenv("RR_RATE_LIMIT_ENABLED"); enabled != "" {
		config.RateLimit.Enabled = strings.ToLower(enabled) == "true"
	}

	if rps := os.Getenv("RR_RATE_LIMIT_RPS"); rps != "" {
		if r, err := strconv.ParseFloat(rps, 64); err == nil && r > 0 {
			config.RateLimit.RequestsPerSecond = r
		}
	}

	if burst := os.Getenv("RR_RATE_LIMIT_BURST"); burst != "" {
		if b, err := strconv.Atoi(burst); err == nil && b > 0 {
			config.RateLimit.BurstSize = b
		}
	}

	// Auth configuration
	if enabled := os.Getenv("RR_AUTH_ENABLED"); enabled != "" {
		config.Auth.Enabled = strings.ToLower(enabled) == "true"
	}

	if secret := os.Getenv("RR_AUTH_SECRET"); secret != "" {
		config.Auth.SecretKey = secret
	}
}
