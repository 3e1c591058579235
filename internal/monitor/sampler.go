package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hostpulse/server/internal/task"
	"github.com/hostpulse/server/internal/telemetry"
)

var errSamplerPanic = errors.New("sampler panicked")

type sampleFunc func(ctx context.Context) error

// Sampler refreshes one metric family on its own cadence. A tick that fires
// while the previous run is still in flight is skipped, never queued, so a
// slow provider call only delays this sampler.
type Sampler struct {
	family  telemetry.Family
	cadence time.Duration
	sample  sampleFunc
	task    *task.Periodic
	health  *samplerHealth
	now     func() time.Time

	running  atomic.Bool
	skipped  atomic.Int64
	inflight sync.WaitGroup
}

func newSampler(family telemetry.Family, cadence time.Duration, sample sampleFunc) *Sampler {
	s := &Sampler{
		family:  family,
		cadence: cadence,
		sample:  sample,
		health:  newSamplerHealth(),
		now:     time.Now,
	}
	s.task = task.New("sampler "+string(family), cadence, s.tick, task.Immediate())
	return s
}

func (s *Sampler) Family() telemetry.Family { return s.family }

// Running reports whether a run is in flight.
func (s *Sampler) Running() bool { return s.running.Load() }

func (s *Sampler) SkippedTicks() int64 { return s.skipped.Load() }

func (s *Sampler) start(ctx context.Context) error {
	return s.task.Start(ctx)
}

// stop cancels the ticker and waits for any in-flight run to return.
func (s *Sampler) stop() {
	s.task.Stop()
	s.inflight.Wait()
}

func (s *Sampler) tick(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		return
	}
	s.inflight.Add(1)
	go s.run(ctx)
}

func (s *Sampler) run(ctx context.Context) {
	defer s.inflight.Done()
	defer s.running.Store(false)

	err := s.safeSample(ctx)
	if err != nil && ctx.Err() != nil {
		// Shutting down; provider calls were cancelled under us.
		return
	}

	now := s.now()
	if err != nil {
		var shouldLog bool
		if errors.Is(err, errSamplerPanic) {
			shouldLog = s.health.recordPanic(err, now)
		} else {
			shouldLog = s.health.recordFailure(err, now)
		}
		if shouldLog {
			log.Printf("sampler %s: %v", s.family, err)
		}
		return
	}
	if s.health.recordSuccess(now) {
		log.Printf("sampler %s: recovered", s.family)
	}
}

func (s *Sampler) safeSample(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errSamplerPanic, r)
		}
	}()
	return s.sample(ctx)
}

func (s *Sampler) status(threshold int) SamplerStatus {
	status, failures, lastErr, lastSuccess := s.health.snapshot(threshold)
	return SamplerStatus{
		Family:              string(s.family),
		Cadence:             s.cadence,
		Status:              status,
		ConsecutiveFailures: failures,
		LastError:           lastErr,
		LastSuccess:         lastSuccess,
		SkippedTicks:        s.skipped.Load(),
		Running:             s.running.Load(),
	}
}
