package monitor

import (
	"sync"
	"time"
)

// SamplerMonitor tracks sampler loop health and collection failures.
type SamplerMonitor struct {
	mu                sync.RWMutex
	interval          time.Duration
	lastSuccess       time.Time
	lastAttempt       time.Time
	consecutiveErrors int
	lastError         string
}

// NewSamplerMonitor creates a monitor for a sampler firing at the given
// interval.
func NewSamplerMonitor(interval time.Duration) *SamplerMonitor {
	return &SamplerMonitor{interval: interval}
}

// RecordSuccess records a successful collection tick.
func (sm *SamplerMonitor) RecordSuccess() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.lastSuccess = time.Now()
	sm.lastAttempt = time.Now()
	sm.consecutiveErrors = 0
	sm.lastError = ""
}

// RecordFailure records a failed collection tick.
func (sm *SamplerMonitor) RecordFailure(err error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.lastAttempt = time.Now()
	sm.consecutiveErrors++
	if err != nil {
		sm.lastError = err.Error()
	}
}

// IsHealthy returns true if the sampler is producing snapshots.
// Unhealthy conditions:
//   - Never succeeded
//   - No success within the last 5 sampler intervals
//   - More than 3 consecutive failures
func (sm *SamplerMonitor) IsHealthy() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.isHealthyLocked()
}

// SamplerStatus is the sampler section of the health check response.
type SamplerStatus struct {
	Healthy           bool   `json:"healthy"`
	LastSuccess       string `json:"last_success,omitempty"`
	TimeSinceSuccess  string `json:"time_since_success,omitempty"`
	LastAttempt       string `json:"last_attempt,omitempty"`
	ConsecutiveErrors int    `json:"consecutive_errors,omitempty"`
	LastError         string `json:"last_error,omitempty"`
}

// Status returns the sampler's current status for health checks.
func (sm *SamplerMonitor) Status() SamplerStatus {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	status := SamplerStatus{
		Healthy: sm.isHealthyLocked(),
	}

	if !sm.lastSuccess.IsZero() {
		status.LastSuccess = sm.lastSuccess.Format(time.RFC3339)
		status.TimeSinceSuccess = time.Since(sm.lastSuccess).String()
	}

	if !sm.lastAttempt.IsZero() {
		status.LastAttempt = sm.lastAttempt.Format(time.RFC3339)
	}

	if sm.consecutiveErrors > 0 {
		status.ConsecutiveErrors = sm.consecutiveErrors
		status.LastError = sm.lastError
	}

	return status
}

// isHealthyLocked applies the health conditions. Caller holds the lock.
func (sm *SamplerMonitor) isHealthyLocked() bool {
	if sm.lastSuccess.IsZero() {
		return false
	}
	if time.Since(sm.lastSuccess) > 5*sm.interval {
		return false
	}
	return sm.consecutiveErrors <= 3
}
