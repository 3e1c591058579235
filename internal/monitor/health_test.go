package monitor

import (
	"fmt"
	"testing"
	"time"
)

func TestSamplerHealthFailureTracking(t *testing.T) {
	h := newSamplerHealth()
	now := time.Unix(1_700_000_000, 0)

	if status, _, _, _ := h.snapshot(3); status != StatusHealthy {
		t.Fatal("new health should be healthy")
	}

	h.recordFailure(fmt.Errorf("connection refused"), now)
	h.recordFailure(fmt.Errorf("timeout"), now)
	if status, _, _, _ := h.snapshot(3); status != StatusDegraded {
		t.Errorf("status = %v below threshold, want degraded", status)
	}

	h.recordFailure(fmt.Errorf("still broken"), now)
	status, failures, lastErr, _ := h.snapshot(3)
	if status != StatusFailed {
		t.Errorf("status = %v at threshold, want failed", status)
	}
	if failures != 3 {
		t.Errorf("failures = %d, want 3", failures)
	}
	if lastErr != "still broken" {
		t.Errorf("lastErr = %q, want %q", lastErr, "still broken")
	}
}

func TestSamplerHealthRecovery(t *testing.T) {
	h := newSamplerHealth()
	now := time.Unix(1_700_000_000, 0)

	for i := 0; i < 5; i++ {
		h.recordFailure(fmt.Errorf("fail %d", i), now)
	}
	if !h.recordSuccess(now.Add(time.Second)) {
		t.Error("recordSuccess after failures should report recovery")
	}
	status, failures, lastErr, lastSuccess := h.snapshot(3)
	if status != StatusHealthy || failures != 0 || lastErr != "" {
		t.Errorf("after recovery: status=%v failures=%d lastErr=%q", status, failures, lastErr)
	}
	if !lastSuccess.Equal(now.Add(time.Second)) {
		t.Errorf("lastSuccess = %v", lastSuccess)
	}
	if h.recordSuccess(now) {
		t.Error("recordSuccess without failures should not report recovery")
	}
}

func TestSamplerHealthLogsChangedErrorsOnly(t *testing.T) {
	h := newSamplerHealth()
	now := time.Unix(1_700_000_000, 0)

	if !h.recordFailure(fmt.Errorf("sensor missing"), now) {
		t.Error("first failure should be logged")
	}
	if h.recordFailure(fmt.Errorf("sensor missing"), now) {
		t.Error("repeated failure should not be logged")
	}
	if !h.recordFailure(fmt.Errorf("permission denied"), now) {
		t.Error("changed failure should be logged")
	}

	h.recordSuccess(now)
	if !h.recordFailure(fmt.Errorf("permission denied"), now) {
		t.Error("failure after recovery should be logged again")
	}
}

func TestSamplerHealthPanicCountsAsFailure(t *testing.T) {
	h := newSamplerHealth()
	h.recordPanic(fmt.Errorf("%w: boom", errSamplerPanic), time.Now())
	if _, failures, _, _ := h.snapshot(3); failures != 1 {
		t.Errorf("failures = %d, want 1", failures)
	}
}
