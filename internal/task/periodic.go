package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var ErrAlreadyRunning = errors.New("task already running")

// Periodic runs fn on a fixed interval in a single goroutine until stopped.
// Start, Stop and Restart are serialized, so a Periodic never has more than
// one live loop. fn must not call Stop or Restart on its own Periodic.
type Periodic struct {
	name      string
	fn        func(ctx context.Context)
	immediate bool

	mu       sync.Mutex
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}

	loops atomic.Int32 // live loop goroutines
}

type Option func(*Periodic)

// Immediate makes the loop run fn once as soon as it starts instead of
// waiting for the first tick.
func Immediate() Option {
	return func(p *Periodic) { p.immediate = true }
}

func New(name string, interval time.Duration, fn func(ctx context.Context), opts ...Option) *Periodic {
	p := &Periodic{
		name:     name,
		fn:       fn,
		interval: interval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Periodic) Name() string { return p.name }

func (p *Periodic) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

func (p *Periodic) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.startLocked(ctx)
}

// Stop cancels the loop and blocks until it has exited.
func (p *Periodic) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

// Restart stops the current loop, waits for it to exit, then starts a single
// new loop at interval.
func (p *Periodic) Restart(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("interval must be positive")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.interval = interval
	return p.startLocked(ctx)
}

func (p *Periodic) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runningLocked()
}

func (p *Periodic) runningLocked() bool {
	if p.done == nil {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *Periodic) startLocked(ctx context.Context) error {
	if p.runningLocked() {
		return ErrAlreadyRunning
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	p.loops.Add(1)
	go p.loop(loopCtx, p.interval, done)
	return nil
}

func (p *Periodic) stopLocked() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel = nil
}

func (p *Periodic) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	defer p.loops.Add(-1)

	if p.immediate {
		p.fn(ctx)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// A tick can race with cancellation; cancellation wins.
			if ctx.Err() != nil {
				return
			}
			p.fn(ctx)
		}
	}
}
