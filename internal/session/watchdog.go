package session

import (
	"context"
	"sync"
	"time"

	"github.com/hostpulse/server/internal/task"
)

// watchdog enforces the heartbeat contract: exactly one heartbeat per
// period. Each period tick arms a grace timer; when it fires a count of zero
// expires the session, otherwise the count is reset.
type watchdog struct {
	grace    time.Duration
	onExpire func()
	task     *task.Periodic

	mu    sync.Mutex
	count int
	phase Phase
}

func newWatchdog(id string, interval, grace time.Duration, onExpire func()) *watchdog {
	w := &watchdog{
		grace:    grace,
		onExpire: onExpire,
	}
	w.task = task.New("watchdog "+id, interval, w.check)
	return w
}

// beat records one heartbeat. It returns false when the period has already
// seen one, which the caller treats as a flood.
func (w *watchdog) beat() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.count++
	return w.count <= 1
}

func (w *watchdog) check(ctx context.Context) {
	w.setPhase(Armed)

	timer := time.NewTimer(w.grace)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	w.mu.Lock()
	if w.count == 0 {
		w.phase = Expired
		w.mu.Unlock()
		w.onExpire()
		return
	}
	w.count = 0
	w.phase = Satisfied
	w.mu.Unlock()
}

func (w *watchdog) setPhase(p Phase) {
	w.mu.Lock()
	w.phase = p
	w.mu.Unlock()
}

func (w *watchdog) Phase() Phase {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.phase
}
