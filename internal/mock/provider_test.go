package mock

import (
	"context"
	"testing"
)

func TestNewProvider_UnknownPatternFallsBackToSteady(t *testing.T) {
	p := NewProvider("sawtooth")
	if p.pattern != PatternSteady {
		t.Errorf("pattern = %q, want %q", p.pattern, PatternSteady)
	}
}

func TestProvider_LoadStaysInRange(t *testing.T) {
	ctx := context.Background()
	for _, pattern := range []string{PatternSteady, PatternBurst, PatternIdle} {
		t.Run(pattern, func(t *testing.T) {
			p := NewProvider(pattern)
			for i := 0; i < 200; i++ {
				load, err := p.CPULoad(ctx)
				if err != nil {
					t.Fatalf("CPULoad() error: %v", err)
				}
				if load < 0 || load > 100 {
					t.Fatalf("CPULoad() = %v, want within [0, 100]", load)
				}
			}
		})
	}
}

func TestProvider_BurstPatternSpikes(t *testing.T) {
	ctx := context.Background()
	p := NewProvider(PatternBurst)

	var high, low int
	for i := 0; i < 30; i++ {
		load, _ := p.CPULoad(ctx)
		if load > 80 {
			high++
		}
		if load < 30 {
			low++
		}
	}
	if high == 0 || low == 0 {
		t.Errorf("burst pattern produced %d high and %d low samples, want both", high, low)
	}
}

func TestProvider_CountersAreMonotonic(t *testing.T) {
	ctx := context.Background()
	p := NewProvider(PatternSteady)

	prev, _ := p.NetCounters(ctx, "eth0")
	for i := 0; i < 20; i++ {
		cur, err := p.NetCounters(ctx, "eth0")
		if err != nil {
			t.Fatalf("NetCounters() error: %v", err)
		}
		if cur.BytesRecv < prev.BytesRecv || cur.BytesSent < prev.BytesSent {
			t.Fatalf("counters went backwards: %+v -> %+v", prev, cur)
		}
		prev = cur
	}

	prevIO, _ := p.DiskIO(ctx)
	curIO, _ := p.DiskIO(ctx)
	if curIO.ReadBytes < prevIO.ReadBytes || curIO.WriteBytes < prevIO.WriteBytes {
		t.Errorf("disk counters went backwards: %+v -> %+v", prevIO, curIO)
	}
}

func TestProvider_MemoryWithinTotal(t *testing.T) {
	p := NewProvider(PatternBurst)
	m, err := p.Memory(context.Background())
	if err != nil {
		t.Fatalf("Memory() error: %v", err)
	}
	if m.Used == 0 || m.Used > m.Total {
		t.Errorf("Memory() = %+v, want 0 < Used <= Total", m)
	}
}
