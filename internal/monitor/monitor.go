package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/hostpulse/server/internal/config"
	"github.com/hostpulse/server/internal/provider"
	"github.com/hostpulse/server/internal/telemetry"
)

const defaultFailureLimit = 3

// Monitor is the process-wide sampler set. It owns one Sampler per metric
// family, all writing into the shared Store.
type Monitor struct {
	mu       sync.Mutex
	store    *telemetry.Store
	provider provider.Provider
	samplers []*Sampler
	limit    int
	started  bool
}

func New(cfg config.SamplerConfig, store *telemetry.Store, p provider.Provider) *Monitor {
	m := &Monitor{
		store:    store,
		provider: p,
		limit:    cfg.FailureLimit,
	}
	if m.limit <= 0 {
		m.limit = defaultFailureLimit
	}

	net := newNetSampler(p, store, cfg.NetRetry)
	fsStats := newFsStatsSampler(p, store)

	m.samplers = []*Sampler{
		newSampler(telemetry.FamilyCPU, cfg.CPU, m.sampleCPU),
		newSampler(telemetry.FamilyRAM, cfg.RAM, m.sampleRAM),
		newSampler(telemetry.FamilyNet, cfg.Net, net.sample),
		newSampler(telemetry.FamilyUptime, cfg.Uptime, m.sampleUptime),
		newSampler(telemetry.FamilyDisks, cfg.Disks, m.sampleDisks),
		newSampler(telemetry.FamilyFsStats, cfg.FsStats, fsStats.sample),
		newSampler(telemetry.FamilyFsSize, cfg.FsSize, m.sampleFsSize),
	}
	return m
}

// Start launches every sampler. Each runs once immediately and then on its
// own cadence until Stop or ctx cancellation.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return errors.New("monitor already started")
	}

	for i, s := range m.samplers {
		if err := s.start(ctx); err != nil {
			for _, started := range m.samplers[:i] {
				started.stop()
			}
			return fmt.Errorf("starting sampler %s: %w", s.family, err)
		}
	}
	m.started = true

	names := make([]string, len(m.samplers))
	for i, s := range m.samplers {
		names[i] = fmt.Sprintf("%s/%v", s.family, s.cadence)
	}
	log.Printf("Monitor started with samplers: %v", names)
	return nil
}

// Stop cancels every sampler and waits for in-flight runs to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return
	}
	for _, s := range m.samplers {
		s.stop()
	}
	m.started = false
	log.Println("Monitor stopped")
}

// Shutdown is Stop bounded by ctx. A provider call that ignores cancellation
// is abandoned once ctx expires.
func (m *Monitor) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stopping samplers: %w", ctx.Err())
	}
}

func (m *Monitor) Samplers() []*Sampler {
	return m.samplers
}

func (m *Monitor) Health() []SamplerStatus {
	out := make([]SamplerStatus, len(m.samplers))
	for i, s := range m.samplers {
		out[i] = s.status(m.limit)
	}
	return out
}

// sampleCPU merges the three CPU readings into the previous value, so a
// missing temperature sensor does not hold back load and speed.
func (m *Monitor) sampleCPU(ctx context.Context) error {
	next := m.store.CPU()
	var errs []error
	updated := false

	if load, err := m.provider.CPULoad(ctx); err != nil {
		errs = append(errs, err)
	} else {
		next.Load = load
		updated = true
	}
	if speed, err := m.provider.CPUSpeed(ctx); err != nil {
		errs = append(errs, err)
	} else {
		next.Speed = speed
		updated = true
	}
	if temp, err := m.provider.CPUTemperature(ctx); err != nil {
		errs = append(errs, err)
	} else {
		next.Temp = temp
		updated = true
	}

	if updated {
		m.store.SetCPU(next)
	}
	return errors.Join(errs...)
}

func (m *Monitor) sampleRAM(ctx context.Context) error {
	mem, err := m.provider.Memory(ctx)
	if err != nil {
		return err
	}
	m.store.SetRAM(telemetry.RAM{Total: int64(mem.Total), Used: int64(mem.Used)})
	return nil
}

func (m *Monitor) sampleUptime(ctx context.Context) error {
	up, err := m.provider.Uptime(ctx)
	if err != nil {
		return err
	}
	m.store.SetUptime(int64(up))
	return nil
}

func (m *Monitor) sampleDisks(ctx context.Context) error {
	disks, err := m.provider.DiskLayout(ctx)
	if err != nil {
		return err
	}
	m.store.SetDisks(disks)
	return nil
}

func (m *Monitor) sampleFsSize(ctx context.Context) error {
	sizes, err := m.provider.FsSize(ctx)
	if err != nil {
		return err
	}
	m.store.SetFsSize(sizes)
	return nil
}
