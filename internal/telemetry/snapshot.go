package telemetry

// Unknown marks a numeric field that has not been measured yet.
const Unknown = -999

type Family string

const (
	FamilyCPU     Family = "cpu"
	FamilyRAM     Family = "ram"
	FamilyNet     Family = "net"
	FamilyUptime  Family = "uptime"
	FamilyDisks   Family = "disks"
	FamilyFsStats Family = "fsStats"
	FamilyFsSize  Family = "fsSize"
)

// Families lists every metric family in push order.
var Families = []Family{
	FamilyCPU,
	FamilyRAM,
	FamilyNet,
	FamilyUptime,
	FamilyDisks,
	FamilyFsStats,
	FamilyFsSize,
}

type CPU struct {
	Temp  float64 `json:"temp"`  // Celsius
	Speed float64 `json:"speed"` // GHz
	Load  float64 `json:"load"`  // percent
}

type RAM struct {
	Total int64 `json:"total"`
	Used  int64 `json:"used"`
}

type Net struct {
	Down     float64 `json:"down"` // Mbps
	Up       float64 `json:"up"`   // Mbps
	Sent     int64   `json:"sent"`
	Received int64   `json:"received"`
}

type Disk struct {
	Device string `json:"device"`
	Type   string `json:"type"`
	Name   string `json:"name"`
}

// FsStats holds cumulative disk I/O byte counters and their per-second rates.
type FsStats struct {
	Read     int64   `json:"rx"`
	Write    int64   `json:"wx"`
	Total    int64   `json:"tx"`
	ReadSec  float64 `json:"rx_sec"`
	WriteSec float64 `json:"wx_sec"`
	TotalSec float64 `json:"tx_sec"`
}

type FsSize struct {
	Fs        string  `json:"fs"`
	Type      string  `json:"type"`
	Size      int64   `json:"size"`
	Used      int64   `json:"used"`
	Available int64   `json:"available"`
	Use       float64 `json:"use"`
	Mount     string  `json:"mount"`
}

// Snapshot is the latest known value of every family. Fields are sampled
// independently and may be stale relative to each other.
type Snapshot struct {
	CPU     CPU      `json:"cpu"`
	RAM     RAM      `json:"ram"`
	Net     Net      `json:"net"`
	Uptime  int64    `json:"uptime"`
	Disks   []Disk   `json:"disks"`
	FsStats FsStats  `json:"fsStats"`
	FsSize  []FsSize `json:"fsSize"`
}

type FamilyValue struct {
	Family Family
	Value  any
}

// Families returns each family with its value, in push order.
func (s Snapshot) Families() []FamilyValue {
	return []FamilyValue{
		{FamilyCPU, s.CPU},
		{FamilyRAM, s.RAM},
		{FamilyNet, s.Net},
		{FamilyUptime, s.Uptime},
		{FamilyDisks, s.Disks},
		{FamilyFsStats, s.FsStats},
		{FamilyFsSize, s.FsSize},
	}
}

func UnknownCPU() CPU {
	return CPU{Temp: Unknown, Speed: Unknown, Load: Unknown}
}

func UnknownRAM() RAM {
	return RAM{Total: Unknown, Used: Unknown}
}

func UnknownNet() Net {
	return Net{Down: Unknown, Up: Unknown, Sent: Unknown, Received: Unknown}
}

func UnknownFsStats() FsStats {
	return FsStats{
		Read: Unknown, Write: Unknown, Total: Unknown,
		ReadSec: Unknown, WriteSec: Unknown, TotalSec: Unknown,
	}
}
