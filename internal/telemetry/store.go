package telemetry

import (
	"slices"
	"sync/atomic"
)

// Store holds the latest Snapshot. Each family has exactly one writer (its
// sampler) and is replaced atomically, so readers never block on a sampler
// and never see a half-written family.
type Store struct {
	cpu     atomic.Pointer[CPU]
	ram     atomic.Pointer[RAM]
	net     atomic.Pointer[Net]
	uptime  atomic.Int64
	disks   atomic.Pointer[[]Disk]
	fsStats atomic.Pointer[FsStats]
	fsSize  atomic.Pointer[[]FsSize]
}

func NewStore() *Store {
	s := &Store{}
	s.SetCPU(UnknownCPU())
	s.SetRAM(UnknownRAM())
	s.SetNet(UnknownNet())
	s.SetUptime(Unknown)
	s.SetDisks(nil)
	s.SetFsStats(UnknownFsStats())
	s.SetFsSize(nil)
	return s
}

// Snapshot returns a copy of every family. Slices are cloned so callers may
// keep or modify the result freely.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		CPU:     *s.cpu.Load(),
		RAM:     *s.ram.Load(),
		Net:     *s.net.Load(),
		Uptime:  s.uptime.Load(),
		Disks:   slices.Clone(*s.disks.Load()),
		FsStats: *s.fsStats.Load(),
		FsSize:  slices.Clone(*s.fsSize.Load()),
	}
}

func (s *Store) CPU() CPU         { return *s.cpu.Load() }
func (s *Store) Net() Net         { return *s.net.Load() }
func (s *Store) FsStats() FsStats { return *s.fsStats.Load() }

func (s *Store) SetCPU(v CPU) { s.cpu.Store(&v) }

func (s *Store) SetRAM(v RAM) { s.ram.Store(&v) }

func (s *Store) SetNet(v Net) { s.net.Store(&v) }

func (s *Store) SetUptime(seconds int64) { s.uptime.Store(seconds) }

func (s *Store) SetDisks(v []Disk) {
	v = cloneOrEmpty(v)
	s.disks.Store(&v)
}

func (s *Store) SetFsStats(v FsStats) { s.fsStats.Store(&v) }

func (s *Store) SetFsSize(v []FsSize) {
	v = cloneOrEmpty(v)
	s.fsSize.Store(&v)
}

// cloneOrEmpty copies v so the writer cannot mutate stored data, and turns
// nil into an empty slice so it encodes as [] rather than null.
func cloneOrEmpty[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return slices.Clone(v)
}
