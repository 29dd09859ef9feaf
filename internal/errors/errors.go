package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents a specific error type for better error handling
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigLoad      ErrorCode = "CONFIG_LOAD_FAILED"
	ErrCodeInvalidStrategy ErrorCode = "INVALID_STRATEGY"
	ErrCodeDuplicateRegion ErrorCode = "DUPLICATE_REGION_ID"

	// Routing errors
	ErrCodeNoRegionAvailable ErrorCode = "NO_REGION_AVAILABLE"
	ErrCodeUnknownRegion     ErrorCode = "UNKNOWN_REGION"
	ErrCodeCircuitOpen       ErrorCode = "CIRCUIT_BREAKER_OPEN"

	// Health monitoring errors
	ErrCodeProbeFailed   ErrorCode = "HEALTH_PROBE_FAILED"
	ErrCodeProbeTimeout  ErrorCode = "HEALTH_PROBE_TIMEOUT"
	ErrCodeMonitorActive ErrorCode = "MONITOR_ALREADY_RUNNING"

	// Request processing errors
	ErrCodeInvalidRequest       ErrorCode = "INVALID_REQUEST"
	ErrCodeAuthenticationFailed ErrorCode = "AUTHENTICATION_FAILED"
	ErrCodeRateLimitExceeded    ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Internal errors
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// RouterError represents a structured error with context
type RouterError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Component string                 `json:"component,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Cause     error                  `json:"-"`
}

// Error implements the error interface
func (e *RouterError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Component, e.Message)
}

// Unwrap returns the underlying error
func (e *RouterError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error code
func (e *RouterError) Is(target error) bool {
	if t, ok := target.(*RouterError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithMetadata adds metadata to the error
func (e *RouterError) WithMetadata(key string, value interface{}) *RouterError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *RouterError) HTTPStatusCode() int {
	switch e.Code {
	case ErrCodeInvalidRequest:
		return 400
	case ErrCodeAuthenticationFailed:
		return 401
	case ErrCodeUnknownRegion:
		return 404
	case ErrCodeRateLimitExceeded:
		return 429
	case ErrCodeNoRegionAvailable, ErrCodeCircuitOpen:
		return 503
	case ErrCodeProbeTimeout:
		return 504
	default:
		return 500
	}
}

// NewError creates a new RouterError
func NewError(code ErrorCode, component, message string) *RouterError {
	return &RouterError{
		Code:      code,
		Component: component,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// WrapError wraps an existing error with RouterError structure
func WrapError(err error, code ErrorCode, component, message string) *RouterError {
	if err == nil {
		return nil
	}

	return &RouterError{
		Code:      code,
		Component: component,
		Message:   message,
		Timestamp: time.Now(),
		Cause:     err,
		Details:   err.Error(),
	}
}

// Common error constructors for frequently used errors

// NewNoRegionAvailableError creates an error when the candidate set is empty
func NewNoRegionAvailableError() *RouterError {
	return NewError(
		ErrCodeNoRegionAvailable,
		"region_router",
		"No eligible region available for request",
	)
}

// NewUnknownRegionError creates an error for feedback against an unconfigured region
func NewUnknownRegionError(regionID string) *RouterError {
	return NewError(
		ErrCodeUnknownRegion,
		"region_router",
		fmt.Sprintf("Region '%s' is not configured", regionID),
	).WithMetadata("region_id", regionID)
}

// NewCircuitOpenError creates a circuit breaker error
func NewCircuitOpenError(regionID string) *RouterError {
	return NewError(
		ErrCodeCircuitOpen,
		"circuit_breaker",
		fmt.Sprintf("Circuit breaker is open for region %s", regionID),
	).WithMetadata("region_id", regionID)
}

// NewInvalidStrategyError creates an error for an unrecognized routing strategy
func NewInvalidStrategyError(strategy string) *RouterError {
	return NewError(
		ErrCodeInvalidStrategy,
		"config",
		fmt.Sprintf("Unsupported routing strategy: %s", strategy),
	).WithMetadata("strategy", strategy)
}

// IsNoRegionAvailable reports whether err signals an empty candidate set
func IsNoRegionAvailable(err error) bool {
	var rErr *RouterError
	if errors.As(err, &rErr) {
		return rErr.Code == ErrCodeNoRegionAvailable
	}
	return false
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var rErr *RouterError
	if errors.As(err, &rErr) {
		return rErr.Code
	}
	return ErrCodeInternalError
}

// GetHTTPStatusCode gets the appropriate HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	var rErr *RouterError
	if errors.As(err, &rErr) {
		return rErr.HTTPStatusCode()
	}
	return 500
}
