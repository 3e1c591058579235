package mock

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/hostpulse/server/internal/provider"
	"github.com/hostpulse/server/internal/telemetry"
)

// Load patterns for the synthetic CPU and network curves.
const (
	PatternSteady = "steady"
	PatternBurst  = "burst"
	PatternIdle   = "idle"
)

// Provider is a synthetic Metrics Provider for demos (-mock) and tests. It
// never touches the host; values follow the configured load pattern.
type Provider struct {
	// HostInfo is returned by Host; tests may replace it before use.
	HostInfo provider.Host

	mu       sync.Mutex
	rng      *rand.Rand
	pattern  string
	start    time.Time
	tick     int
	totalMem uint64
	sent     uint64
	recv     uint64
	read     uint64
	write    uint64
}

var _ provider.Provider = (*Provider)(nil)

func NewProvider(pattern string) *Provider {
	switch pattern {
	case PatternSteady, PatternBurst, PatternIdle:
	default:
		pattern = PatternSteady
	}
	return &Provider{
		HostInfo: provider.Host{
			Manufacturer:   "Intel",
			Brand:          "Core i7-12700K",
			Cores:          20,
			OS:             "linux",
			Platform:       "ubuntu",
			PlatformFamily: "debian",
			Release:        "24.04",
		},
		rng:      rand.New(rand.NewSource(42)),
		pattern:  pattern,
		start:    time.Now(),
		totalMem: 32 << 30,
	}
}

// load advances the curve by one step and returns a utilisation in [0, 1].
// Caller must hold p.mu.
func (p *Provider) loadLocked() float64 {
	p.tick++
	jitter := (p.rng.Float64() - 0.5) * 0.06
	var v float64
	switch p.pattern {
	case PatternBurst:
		v = 0.15
		if p.tick%10 >= 7 {
			v = 0.92
		}
	case PatternIdle:
		v = 0.03
	default:
		v = 0.35 + 0.2*math.Sin(float64(p.tick)/6)
	}
	return math.Min(1, math.Max(0, v+jitter))
}

func (p *Provider) CPULoad(ctx context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return math.Round(p.loadLocked()*10000) / 100, nil
}

func (p *Provider) CPUSpeed(ctx context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return math.Round((2.4+p.rng.Float64()*2.4)*100) / 100, nil
}

func (p *Provider) CPUTemperature(ctx context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return math.Round((38+p.loadLocked()*45)*10) / 10, nil
}

func (p *Provider) Memory(ctx context.Context) (provider.Memory, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	used := uint64(float64(p.totalMem) * (0.4 + 0.2*p.loadLocked()))
	return provider.Memory{Total: p.totalMem, Used: used}, nil
}

func (p *Provider) DefaultInterface(ctx context.Context) (string, error) {
	return "eth0", nil
}

func (p *Provider) NetCounters(ctx context.Context, iface string) (provider.NetCounters, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	l := p.loadLocked()
	p.recv += uint64(l * 12_000_000)
	p.sent += uint64(l * 3_000_000)
	return provider.NetCounters{BytesSent: p.sent, BytesRecv: p.recv}, nil
}

func (p *Provider) DiskLayout(ctx context.Context) ([]telemetry.Disk, error) {
	return []telemetry.Disk{
		{Device: "/dev/nvme0n1", Type: "SSD", Name: "Samsung SSD 980 PRO 1TB"},
		{Device: "/dev/sda", Type: "HD", Name: "WDC WD40EFRX"},
	}, nil
}

func (p *Provider) DiskIO(ctx context.Context) (provider.DiskIO, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	l := p.loadLocked()
	p.read += uint64(l * 40_000_000)
	p.write += uint64(l * 15_000_000)
	return provider.DiskIO{ReadBytes: p.read, WriteBytes: p.write}, nil
}

func (p *Provider) FsSize(ctx context.Context) ([]telemetry.FsSize, error) {
	return []telemetry.FsSize{
		{Fs: "/dev/nvme0n1p2", Type: "ext4", Size: 982 << 30, Used: 412 << 30, Available: 520 << 30, Use: 41.95, Mount: "/"},
		{Fs: "/dev/sda1", Type: "ext4", Size: 3726 << 30, Used: 1810 << 30, Available: 1726 << 30, Use: 48.58, Mount: "/data"},
	}, nil
}

func (p *Provider) Uptime(ctx context.Context) (uint64, error) {
	return 86400 + uint64(time.Since(p.start).Seconds()), nil
}

func (p *Provider) Host(ctx context.Context) (provider.Host, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.HostInfo, nil
}
