package monitor

import (
	"sync"
	"time"
)

type HealthStatus string

const (
	StatusHealthy  HealthStatus = "healthy"
	StatusDegraded HealthStatus = "degraded"
	StatusFailed   HealthStatus = "failed"
)

// SamplerStatus is a point-in-time copy of one sampler's health.
type SamplerStatus struct {
	Family              string        `json:"family"`
	Cadence             time.Duration `json:"cadence"`
	Status              HealthStatus  `json:"status"`
	ConsecutiveFailures int           `json:"consecutiveFailures"`
	LastError           string        `json:"lastError,omitempty"`
	LastSuccess         time.Time     `json:"lastSuccess,omitempty"`
	SkippedTicks        int64         `json:"skippedTicks"`
	Running             bool          `json:"running"`
}

// samplerHealth tracks consecutive failures for a single sampler. Fields are
// protected by mu because runs write them while the HTTP health endpoint
// reads them.
type samplerHealth struct {
	mu          sync.Mutex
	failures    int
	lastErr     string
	lastFail    time.Time
	lastSuccess time.Time
	loggedErr   string
}

func newSamplerHealth() *samplerHealth {
	return &samplerHealth{}
}

func (h *samplerHealth) recordSuccess(now time.Time) (recovered bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	recovered = h.failures > 0
	h.failures = 0
	h.lastErr = ""
	h.loggedErr = ""
	h.lastSuccess = now
	return recovered
}

// recordFailure records err and reports whether it should be logged: only
// the first occurrence of a given error message in a failure streak is.
func (h *samplerHealth) recordFailure(err error, now time.Time) (shouldLog bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures++
	h.lastErr = err.Error()
	h.lastFail = now
	if h.lastErr != h.loggedErr {
		h.loggedErr = h.lastErr
		return true
	}
	return false
}

// recordPanic records a recovered panic. Panics count as failures like any
// provider error.
func (h *samplerHealth) recordPanic(err error, now time.Time) bool {
	return h.recordFailure(err, now)
}

// statusLocked computes health status. Caller must hold h.mu.
func (h *samplerHealth) statusLocked(threshold int) HealthStatus {
	switch {
	case h.failures == 0:
		return StatusHealthy
	case h.failures >= threshold:
		return StatusFailed
	default:
		return StatusDegraded
	}
}

// snapshot returns a consistent copy of the health fields.
func (h *samplerHealth) snapshot(threshold int) (status HealthStatus, failures int, lastErr string, lastSuccess time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.statusLocked(threshold), h.failures, h.lastErr, h.lastSuccess
}
