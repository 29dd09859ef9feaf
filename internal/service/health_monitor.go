package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/agent-mesh/region-router/internal/domain"
	"github.com/agent-mesh/region-router/pkg/logger"
	"golang.org/x/time/rate"
)

// probeLaunchRate caps the aggregate probe-launch rate across all regions.
// Each region still has at most one probe round in flight.
const probeLaunchRate = 50

// HealthMonitor runs the periodic probe loop for every active region,
// applies hysteresis to the per-region healthy flag, and feeds probe
// outcomes into the latency tracker and circuit breakers.
type HealthMonitor struct {
	config   domain.HealthCheckConfig
	regions  []domain.RegionConfig
	client   *http.Client
	logger   *logger.Logger
	tracker  *LatencyTracker
	outcomes domain.OutcomeRecorder
	limiter  *rate.Limiter

	states map[string]*regionHealthState

	cancel    context.CancelFunc
	stopChan  chan struct{}
	wg        sync.WaitGroup
	isRunning bool
	mu        sync.Mutex
}

// regionHealthState is the mutable probe-driven record for one region.
// Guarded by its own mutex so regions never serialize against each other.
type regionHealthState struct {
	mu                   sync.Mutex
	healthy              bool
	consecutiveFailures  int
	consecutiveSuccesses int
	lastCheckTime        time.Time
}

// NewHealthMonitor creates a monitor with one health record per configured
// region. Every region starts healthy with zeroed counters, so routing is
// safe before the first probe round completes.
func NewHealthMonitor(
	config domain.HealthCheckConfig,
	regions []domain.RegionConfig,
	tracker *LatencyTracker,
	outcomes domain.OutcomeRecorder,
	logger *logger.Logger,
) *HealthMonitor {
	states := make(map[string]*regionHealthState, len(regions))
	for _, region := range regions {
		states[region.ID] = &regionHealthState{healthy: true}
	}

	return &HealthMonitor{
		config:  config,
		regions: regions,
		client: &http.Client{
			Timeout: config.Timeout(),
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				DisableCompression:  true,
				MaxIdleConnsPerHost: 2,
			},
		},
		logger:   logger.HealthMonitorLogger(),
		tracker:  tracker,
		outcomes: outcomes,
		limiter:  rate.NewLimiter(rate.Limit(probeLaunchRate), probeLaunchRate),
		states:   states,
		stopChan: make(chan struct{}),
	}
}

// ProbeOnce issues one probe round against every declared health endpoint
// of a region. The round succeeds only if every endpoint responds with its
// expected status within the timeout; any single failure fails the round.
// Returns the round-trip time of the full round.
func (m *HealthMonitor) ProbeOnce(ctx context.Context, region domain.RegionConfig) (time.Duration, error) {
	probeCtx, cancel := context.WithTimeout(ctx, m.config.Timeout())
	defer cancel()

	log := m.logger.RegionLogger(region.ID, region.Name)
	start := time.Now()

	for _, endpoint := range region.HealthEndpoints {
		probeURL := strings.TrimRight(region.DeploymentURL, "/") + endpoint.Path

		req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, probeURL, nil)
		if err != nil {
			return 0, fmt.Errorf("failed to create probe request for %s: %w", probeURL, err)
		}
		req.Header.Set("User-Agent", "RegionRouter-HealthMonitor/1.0")
		req.Header.Set("Accept", "application/json, text/plain, */*")

		resp, err := m.client.Do(req)
		if err != nil {
			log.WithError(err).WithField("endpoint", endpoint.Path).
				Debug("Health probe request failed")
			return 0, fmt.Errorf("probe request to %s failed: %w", probeURL, err)
		}
		resp.Body.Close()

		if resp.StatusCode != endpoint.ExpectedStatus {
			log.WithFields(map[string]interface{}{
				"endpoint":        endpoint.Path,
				"status_code":     resp.StatusCode,
				"expected_status": endpoint.ExpectedStatus,
			}).Debug("Health probe returned unexpected status")
			return 0, fmt.Errorf("probe to %s returned %d, expected %d",
				probeURL, resp.StatusCode, endpoint.ExpectedStatus)
		}
	}

	return time.Since(start), nil
}

// probeAndRecord runs one probe round and folds the result into the
// hysteresis counters, latency tracker, and circuit breaker. Probe errors
// are converted into failure signals, never propagated.
func (m *HealthMonitor) probeAndRecord(ctx context.Context, region domain.RegionConfig) {
	elapsed, err := m.ProbeOnce(ctx, region)
	success := err == nil

	if success {
		m.tracker.Record(region.ID, elapsed)
	}

	m.applyHysteresis(region, success)

	if recErr := m.outcomes.RecordOutcome(region.ID, success); recErr != nil {
		m.logger.WithError(recErr).WithField("region_id", region.ID).
			Error("Failed to record probe outcome")
	}
}

// applyHysteresis updates the consecutive counters and flips the healthy
// flag only once the configured threshold is reached, preventing single
// flakes from causing routing churn
func (m *HealthMonitor) applyHysteresis(region domain.RegionConfig, success bool) {
	state, ok := m.states[region.ID]
	if !ok {
		return
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	state.lastCheckTime = time.Now()
	log := m.logger.RegionLogger(region.ID, region.Name)

	if success {
		state.consecutiveSuccesses++
		state.consecutiveFailures = 0

		if !state.healthy && state.consecutiveSuccesses >= m.config.HealthyThreshold {
			state.healthy = true
			log.WithField("consecutive_successes", state.consecutiveSuccesses).
				Info("Region recovered and marked as healthy")
		}
		return
	}

	state.consecutiveFailures++
	state.consecutiveSuccesses = 0

	if state.healthy && state.consecutiveFailures >= m.config.UnhealthyThreshold {
		state.healthy = false
		log.WithField("consecutive_failures", state.consecutiveFailures).
			Warn("Region marked as unhealthy due to repeated probe failures")
	} else if state.healthy {
		log.WithField("consecutive_failures", state.consecutiveFailures).
			Debug("Probe failed but unhealthy threshold not reached")
	}
}

// Start begins the periodic probe loop, one goroutine per active region.
// Probes across regions run independently; a slow region never stalls the
// others. Returns an error if the monitor is already running.
func (m *HealthMonitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isRunning {
		return fmt.Errorf("health monitor is already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.stopChan = make(chan struct{})
	m.isRunning = true

	m.logger.Infof("Starting health monitor with interval %v", m.config.Interval())

	for _, region := range m.regions {
		if region.Status != domain.StatusActive {
			continue
		}
		m.wg.Add(1)
		go m.probeLoop(ctx, region)
	}

	return nil
}

// Stop cancels the probe scheduling and waits for in-flight loops to
// drain. Idempotent and safe to call before Start.
func (m *HealthMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.isRunning {
		return
	}

	m.logger.Info("Stopping health monitor")
	m.cancel()
	close(m.stopChan)
	m.wg.Wait()
	m.isRunning = false

	m.logger.Info("Health monitor stopped")
}

// IsRunning reports whether the probe loop is active
func (m *HealthMonitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isRunning
}

// probeLoop drives the probe schedule for a single region
func (m *HealthMonitor) probeLoop(ctx context.Context, region domain.RegionConfig) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.Interval())
	defer ticker.Stop()

	log := m.logger.RegionLogger(region.ID, region.Name)
	log.Debug("Starting health probe loop")

	// Initial probe so routing state converges without waiting a full interval
	if err := m.limiter.Wait(ctx); err == nil {
		m.probeAndRecord(ctx, region)
	}

	for {
		select {
		case <-ctx.Done():
			log.Debug("Health probe loop stopped due to context cancellation")
			return
		case <-m.stopChan:
			log.Debug("Health probe loop stopped")
			return
		case <-ticker.C:
			if err := m.limiter.Wait(ctx); err != nil {
				return
			}
			m.probeAndRecord(ctx, region)
		}
	}
}

// Healthy reports the hysteresis-filtered health flag for a region.
// Unknown regions report unhealthy.
func (m *HealthMonitor) Healthy(regionID string) bool {
	state, ok := m.states[regionID]
	if !ok {
		return false
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	return state.healthy
}

// Snapshot returns a defensive copy of every region's health record,
// with the latency p95 derived from the tracker
func (m *HealthMonitor) Snapshot() map[string]domain.RegionHealth {
	out := make(map[string]domain.RegionHealth, len(m.states))
	for id, state := range m.states {
		state.mu.Lock()
		out[id] = domain.RegionHealth{
			Healthy:              state.healthy,
			ConsecutiveFailures:  state.consecutiveFailures,
			ConsecutiveSuccesses: state.consecutiveSuccesses,
			LastCheckTime:        state.lastCheckTime,
			LatencyP95:           m.tracker.P95(id),
		}
		state.mu.Unlock()
	}
	return out
}
