// Package provider defines the Metrics Provider consumed by the samplers and
// the static summary, and its gopsutil implementation.
package provider

import (
	"context"
	"errors"

	"github.com/hostpulse/server/internal/telemetry"
)

// ErrUnavailable is returned for metrics the host cannot report, such as a
// CPU temperature on a machine without sensors.
var ErrUnavailable = errors.New("metric unavailable")

// Provider supplies point-in-time and cumulative OS metrics. Every call may
// block and may fail independently of the others.
type Provider interface {
	CPULoad(ctx context.Context) (float64, error)
	CPUSpeed(ctx context.Context) (float64, error)
	CPUTemperature(ctx context.Context) (float64, error)
	Memory(ctx context.Context) (Memory, error)
	DefaultInterface(ctx context.Context) (string, error)
	NetCounters(ctx context.Context, iface string) (NetCounters, error)
	DiskLayout(ctx context.Context) ([]telemetry.Disk, error)
	DiskIO(ctx context.Context) (DiskIO, error)
	FsSize(ctx context.Context) ([]telemetry.FsSize, error)
	Uptime(ctx context.Context) (uint64, error)
	Host(ctx context.Context) (Host, error)
}

type Memory struct {
	Total uint64
	Used  uint64
}

// NetCounters are cumulative byte counters for one interface.
type NetCounters struct {
	BytesSent uint64
	BytesRecv uint64
}

// DiskIO are cumulative byte counters summed over all block devices.
type DiskIO struct {
	ReadBytes  uint64
	WriteBytes uint64
}

type Host struct {
	Manufacturer   string
	Brand          string
	Cores          int
	OS             string // runtime OS, e.g. "linux", "darwin"
	Platform       string // distribution, e.g. "ubuntu"
	PlatformFamily string
	Release        string
}
