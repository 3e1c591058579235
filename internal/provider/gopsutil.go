package provider

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"slices"
	"sort"
	"strings"

	"github.com/hostpulse/server/internal/telemetry"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
)

// Gopsutil reads metrics from the local host through gopsutil.
type Gopsutil struct{}

func NewGopsutil() *Gopsutil {
	return &Gopsutil{}
}

var _ Provider = (*Gopsutil)(nil)

func (g *Gopsutil) CPULoad(ctx context.Context) (float64, error) {
	// Interval 0 compares against the previous call, so the sampler cadence
	// is the measurement window.
	pct, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, fmt.Errorf("cpu percent: %w", err)
	}
	if len(pct) == 0 {
		return 0, fmt.Errorf("cpu percent: %w", ErrUnavailable)
	}
	return round2(pct[0]), nil
}

func (g *Gopsutil) CPUSpeed(ctx context.Context) (float64, error) {
	infos, err := cpu.InfoWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("cpu info: %w", err)
	}
	if len(infos) == 0 || infos[0].Mhz <= 0 {
		return 0, fmt.Errorf("cpu speed: %w", ErrUnavailable)
	}
	return round2(infos[0].Mhz / 1000), nil
}

// cpuSensorHints are substrings of sensor keys that report the CPU package
// temperature, most specific first.
var cpuSensorHints = []string{"package", "tctl", "tdie", "cpu", "coretemp", "k10temp", "soc"}

func (g *Gopsutil) CPUTemperature(ctx context.Context) (float64, error) {
	temps, err := host.SensorsTemperaturesWithContext(ctx)
	// gopsutil returns partial readings together with a warnings error.
	if err != nil && len(temps) == 0 {
		return 0, fmt.Errorf("sensors: %w", err)
	}
	for _, hint := range cpuSensorHints {
		for _, t := range temps {
			if t.Temperature > 0 && strings.Contains(strings.ToLower(t.SensorKey), hint) {
				return round2(t.Temperature), nil
			}
		}
	}
	return 0, fmt.Errorf("cpu temperature: %w", ErrUnavailable)
}

func (g *Gopsutil) Memory(ctx context.Context) (Memory, error) {
	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Memory{}, fmt.Errorf("virtual memory: %w", err)
	}
	return Memory{Total: v.Total, Used: v.Used}, nil
}

// DefaultInterface picks the up, non-loopback interface that has an address
// and has moved the most bytes.
func (g *Gopsutil) DefaultInterface(ctx context.Context) (string, error) {
	ifaces, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("interfaces: %w", err)
	}
	counters, err := psnet.IOCountersWithContext(ctx, true)
	if err != nil {
		return "", fmt.Errorf("net io counters: %w", err)
	}
	traffic := make(map[string]uint64, len(counters))
	for _, c := range counters {
		traffic[c.Name] = c.BytesRecv + c.BytesSent
	}

	var candidates []string
	for _, iface := range ifaces {
		if !slices.Contains(iface.Flags, "up") || slices.Contains(iface.Flags, "loopback") {
			continue
		}
		if len(iface.Addrs) == 0 {
			continue
		}
		candidates = append(candidates, iface.Name)
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("default interface: %w", ErrUnavailable)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return traffic[candidates[i]] > traffic[candidates[j]]
	})
	return candidates[0], nil
}

func (g *Gopsutil) NetCounters(ctx context.Context, iface string) (NetCounters, error) {
	counters, err := psnet.IOCountersWithContext(ctx, true)
	if err != nil {
		return NetCounters{}, fmt.Errorf("net io counters: %w", err)
	}
	for _, c := range counters {
		if c.Name == iface {
			return NetCounters{BytesSent: c.BytesSent, BytesRecv: c.BytesRecv}, nil
		}
	}
	return NetCounters{}, fmt.Errorf("interface %q: %w", iface, ErrUnavailable)
}

func (g *Gopsutil) DiskLayout(ctx context.Context) ([]telemetry.Disk, error) {
	counters, err := disk.IOCountersWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("disk io counters: %w", err)
	}
	disks := make([]telemetry.Disk, 0, len(counters))
	for name, c := range counters {
		kind, whole := blockDeviceType(name)
		if !whole {
			continue
		}
		label := c.Label
		if label == "" {
			label = name
		}
		disks = append(disks, telemetry.Disk{
			Device: "/dev/" + name,
			Type:   kind,
			Name:   label,
		})
	}
	sort.Slice(disks, func(i, j int) bool { return disks[i].Device < disks[j].Device })
	return disks, nil
}

func (g *Gopsutil) DiskIO(ctx context.Context) (DiskIO, error) {
	counters, err := disk.IOCountersWithContext(ctx)
	if err != nil {
		return DiskIO{}, fmt.Errorf("disk io counters: %w", err)
	}
	var io DiskIO
	for name, c := range counters {
		// Partitions repeat their parent's traffic.
		if _, whole := blockDeviceType(name); !whole {
			continue
		}
		io.ReadBytes += c.ReadBytes
		io.WriteBytes += c.WriteBytes
	}
	return io, nil
}

func (g *Gopsutil) FsSize(ctx context.Context) ([]telemetry.FsSize, error) {
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("partitions: %w", err)
	}
	var (
		sizes []telemetry.FsSize
		errs  []error
	)
	for _, p := range parts {
		u, err := disk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil {
			errs = append(errs, fmt.Errorf("usage %s: %w", p.Mountpoint, err))
			continue
		}
		sizes = append(sizes, telemetry.FsSize{
			Fs:        p.Device,
			Type:      p.Fstype,
			Size:      int64(u.Total),
			Used:      int64(u.Used),
			Available: int64(u.Free),
			Use:       round2(u.UsedPercent),
			Mount:     p.Mountpoint,
		})
	}
	if len(sizes) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return sizes, nil
}

func (g *Gopsutil) Uptime(ctx context.Context) (uint64, error) {
	up, err := host.UptimeWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("uptime: %w", err)
	}
	return up, nil
}

// Host gathers the static identity of the machine. Whatever could be read is
// returned alongside a joined error for the calls that failed.
func (g *Gopsutil) Host(ctx context.Context) (Host, error) {
	h := Host{OS: runtime.GOOS}
	var errs []error

	if infos, err := cpu.InfoWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("cpu info: %w", err))
	} else if len(infos) > 0 {
		h.Manufacturer = vendorName(infos[0].VendorID)
		h.Brand = strings.TrimSpace(infos[0].ModelName)
	}

	if n, err := cpu.CountsWithContext(ctx, true); err != nil {
		errs = append(errs, fmt.Errorf("cpu counts: %w", err))
	} else {
		h.Cores = n
	}

	if info, err := host.InfoWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("host info: %w", err))
	} else {
		if info.OS != "" {
			h.OS = info.OS
		}
		h.Platform = info.Platform
		h.PlatformFamily = info.PlatformFamily
		h.Release = info.PlatformVersion
	}

	return h, errors.Join(errs...)
}

func vendorName(id string) string {
	switch id {
	case "GenuineIntel":
		return "Intel"
	case "AuthenticAMD":
		return "AMD"
	case "":
		if runtime.GOARCH == "arm64" && runtime.GOOS == "darwin" {
			return "Apple"
		}
	}
	return id
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
