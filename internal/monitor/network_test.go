package monitor

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/hostpulse/server/internal/provider"
	"github.com/hostpulse/server/internal/telemetry"
)

// fakeClock is advanced manually by tests.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestToMbps(t *testing.T) {
	if got := toMbps(125_000); !approxEqual(got, 1) {
		t.Errorf("toMbps(125000) = %v, want 1", got)
	}
}

func TestPerSecond(t *testing.T) {
	tests := []struct {
		name      string
		prev, cur uint64
		elapsed   time.Duration
		want      float64
	}{
		{"steady", 1000, 3000, 2 * time.Second, 1000},
		{"counter reset", 5000, 100, time.Second, 0},
		{"no time elapsed", 0, 100, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := perSecond(tt.prev, tt.cur, tt.elapsed); !approxEqual(got, tt.want) {
				t.Errorf("perSecond(%d, %d, %v) = %v, want %v", tt.prev, tt.cur, tt.elapsed, got, tt.want)
			}
		})
	}
}

func TestNetSampler_BaselineThenRate(t *testing.T) {
	p := newFakeProvider()
	p.net = provider.NetCounters{BytesSent: 1_000_000, BytesRecv: 2_000_000}
	store := telemetry.NewStore()
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}

	n := newNetSampler(p, store, 30*time.Second)
	n.now = clock.now
	ctx := context.Background()

	if err := n.sample(ctx); err != nil {
		t.Fatalf("first sample() error: %v", err)
	}
	if n.iface != "eth0" {
		t.Fatalf("iface = %q, want eth0", n.iface)
	}
	if got := store.Net(); got != telemetry.UnknownNet() {
		t.Errorf("Net = %+v after baseline, want sentinel until a delta exists", got)
	}

	clock.advance(2 * time.Second)
	p.mu.Lock()
	p.net = provider.NetCounters{BytesSent: 1_250_000, BytesRecv: 3_000_000}
	p.mu.Unlock()

	if err := n.sample(ctx); err != nil {
		t.Fatalf("second sample() error: %v", err)
	}
	got := store.Net()
	// 1,000,000 bytes received over 2s = 500,000 B/s = 4 Mbps.
	if !approxEqual(got.Down, 4) {
		t.Errorf("Down = %v, want 4", got.Down)
	}
	// 250,000 bytes sent over 2s = 125,000 B/s = 1 Mbps.
	if !approxEqual(got.Up, 1) {
		t.Errorf("Up = %v, want 1", got.Up)
	}
	if got.Sent != 1_250_000 || got.Received != 3_000_000 {
		t.Errorf("Sent/Received = %d/%d, want cumulative counters", got.Sent, got.Received)
	}
	if p.callCount("iface") != 1 {
		t.Errorf("DefaultInterface called %d times, want once", p.callCount("iface"))
	}
}

func TestNetSampler_RetriesResolutionAfterDelay(t *testing.T) {
	p := newFakeProvider()
	p.setErr("iface", errors.New("no route"))
	store := telemetry.NewStore()
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}

	n := newNetSampler(p, store, 30*time.Second)
	n.now = clock.now
	ctx := context.Background()

	if err := n.sample(ctx); err == nil {
		t.Fatal("sample() with failing resolution returned nil")
	}

	// Within the retry window the provider is not asked again.
	clock.advance(10 * time.Second)
	if err := n.sample(ctx); err != nil {
		t.Errorf("sample() inside retry window = %v, want nil", err)
	}
	if got := p.callCount("iface"); got != 1 {
		t.Errorf("DefaultInterface called %d times inside retry window, want 1", got)
	}

	p.setErr("iface", nil)
	clock.advance(25 * time.Second)
	if err := n.sample(ctx); err != nil {
		t.Fatalf("sample() after retry window error: %v", err)
	}
	if n.iface != "eth0" {
		t.Errorf("iface = %q after retry, want eth0", n.iface)
	}
	if got := p.callCount("iface"); got != 2 {
		t.Errorf("DefaultInterface called %d times, want 2", got)
	}
}

func TestNetSampler_CounterErrorKeepsPrevious(t *testing.T) {
	p := newFakeProvider()
	store := telemetry.NewStore()
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	n := newNetSampler(p, store, time.Second)
	n.now = clock.now
	ctx := context.Background()

	_ = n.sample(ctx)
	clock.advance(time.Second)
	p.mu.Lock()
	p.net = provider.NetCounters{BytesSent: 125_000, BytesRecv: 125_000}
	p.mu.Unlock()
	if err := n.sample(ctx); err != nil {
		t.Fatal(err)
	}
	want := store.Net()

	p.setErr("net", errors.New("interface vanished"))
	clock.advance(time.Second)
	if err := n.sample(ctx); err == nil {
		t.Fatal("sample() with failing counters returned nil")
	}
	if got := store.Net(); got != want {
		t.Errorf("Net = %+v after failure, want previous %+v", got, want)
	}
}

func TestFsStatsSampler_Rates(t *testing.T) {
	p := newFakeProvider()
	p.io = provider.DiskIO{ReadBytes: 10_000, WriteBytes: 5_000}
	store := telemetry.NewStore()
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	f := newFsStatsSampler(p, store)
	f.now = clock.now
	ctx := context.Background()

	if err := f.sample(ctx); err != nil {
		t.Fatal(err)
	}
	first := store.FsStats()
	if first.Read != 10_000 || first.Write != 5_000 || first.Total != 15_000 {
		t.Errorf("counters = %+v", first)
	}
	if first.ReadSec != telemetry.Unknown {
		t.Errorf("ReadSec = %v on first sample, want sentinel", first.ReadSec)
	}

	clock.advance(4 * time.Second)
	p.mu.Lock()
	p.io = provider.DiskIO{ReadBytes: 50_000, WriteBytes: 25_000}
	p.mu.Unlock()
	if err := f.sample(ctx); err != nil {
		t.Fatal(err)
	}
	got := store.FsStats()
	if !approxEqual(got.ReadSec, 10_000) || !approxEqual(got.WriteSec, 5_000) || !approxEqual(got.TotalSec, 15_000) {
		t.Errorf("rates = %v/%v/%v, want 10000/5000/15000", got.ReadSec, got.WriteSec, got.TotalSec)
	}
}
