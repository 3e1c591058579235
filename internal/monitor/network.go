package monitor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hostpulse/server/internal/provider"
	"github.com/hostpulse/server/internal/telemetry"
)

func toMbps(bytesPerSec float64) float64 {
	return bytesPerSec * 8 / 1_000_000
}

// perSecond returns the rate between two cumulative counter readings. A
// counter that went backwards (interface reset, wrap) yields 0.
func perSecond(prev, cur uint64, elapsed time.Duration) float64 {
	if cur < prev || elapsed <= 0 {
		return 0
	}
	return float64(cur-prev) / elapsed.Seconds()
}

// netSampler resolves the default interface once and then reports rates as
// the counter delta between consecutive runs. Runs never overlap, so its
// fields need no locking.
type netSampler struct {
	provider provider.Provider
	store    *telemetry.Store
	retry    time.Duration
	now      func() time.Time

	iface       string
	lastResolve time.Time
	prev        provider.NetCounters
	prevAt      time.Time
}

func newNetSampler(p provider.Provider, store *telemetry.Store, retry time.Duration) *netSampler {
	return &netSampler{
		provider: p,
		store:    store,
		retry:    retry,
		now:      time.Now,
	}
}

func (n *netSampler) sample(ctx context.Context) error {
	if n.iface == "" {
		return n.resolve(ctx)
	}

	cur, err := n.provider.NetCounters(ctx, n.iface)
	if err != nil {
		return fmt.Errorf("counters for %s: %w", n.iface, err)
	}
	now := n.now()
	elapsed := now.Sub(n.prevAt)

	n.store.SetNet(telemetry.Net{
		Down:     toMbps(perSecond(n.prev.BytesRecv, cur.BytesRecv, elapsed)),
		Up:       toMbps(perSecond(n.prev.BytesSent, cur.BytesSent, elapsed)),
		Sent:     int64(cur.BytesSent),
		Received: int64(cur.BytesRecv),
	})
	n.prev = cur
	n.prevAt = now
	return nil
}

// resolve finds the default interface and takes the baseline reading. After
// a failure it waits retry before asking the provider again.
func (n *netSampler) resolve(ctx context.Context) error {
	now := n.now()
	if !n.lastResolve.IsZero() && now.Sub(n.lastResolve) < n.retry {
		return nil
	}
	n.lastResolve = now

	iface, err := n.provider.DefaultInterface(ctx)
	if err != nil {
		return fmt.Errorf("resolving default interface: %w", err)
	}
	if iface == "" {
		return fmt.Errorf("resolving default interface: %w", provider.ErrUnavailable)
	}

	baseline, err := n.provider.NetCounters(ctx, iface)
	if err != nil {
		return fmt.Errorf("baseline counters for %s: %w", iface, err)
	}
	log.Printf("sampler net: using interface %s", iface)
	n.iface = iface
	n.prev = baseline
	n.prevAt = n.now()
	return nil
}

// fsStatsSampler reports cumulative disk I/O and its rates, with the same
// baseline-then-delta approach as netSampler.
type fsStatsSampler struct {
	provider provider.Provider
	store    *telemetry.Store
	now      func() time.Time

	primed bool
	prev   provider.DiskIO
	prevAt time.Time
}

func newFsStatsSampler(p provider.Provider, store *telemetry.Store) *fsStatsSampler {
	return &fsStatsSampler{provider: p, store: store, now: time.Now}
}

func (f *fsStatsSampler) sample(ctx context.Context) error {
	cur, err := f.provider.DiskIO(ctx)
	if err != nil {
		return fmt.Errorf("disk io: %w", err)
	}
	now := f.now()

	stats := telemetry.FsStats{
		Read:     int64(cur.ReadBytes),
		Write:    int64(cur.WriteBytes),
		Total:    int64(cur.ReadBytes + cur.WriteBytes),
		ReadSec:  telemetry.Unknown,
		WriteSec: telemetry.Unknown,
		TotalSec: telemetry.Unknown,
	}
	if f.primed {
		elapsed := now.Sub(f.prevAt)
		stats.ReadSec = perSecond(f.prev.ReadBytes, cur.ReadBytes, elapsed)
		stats.WriteSec = perSecond(f.prev.WriteBytes, cur.WriteBytes, elapsed)
		stats.TotalSec = stats.ReadSec + stats.WriteSec
	}
	f.store.SetFsStats(stats)

	f.primed = true
	f.prev = cur
	f.prevAt = now
	return nil
}
