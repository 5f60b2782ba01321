// Package stats defines the snapshot data model shared by the collector,
// the retention engine, and the history stores. A Snapshot is one raw
// measurement of every tracked metric; consolidated entries reuse the same
// shape with numeric fields aggregated over a window.
package stats

import "time"

// Snapshot is a point-in-time measurement of all tracked host metrics.
// Snapshots are immutable once produced: the collector builds one per tick
// and hands ownership to the retention engine.
type Snapshot struct {
	General        GeneralStats `json:"general"`
	CPU            CPUStats     `json:"cpu"`
	Memory         MemoryStats  `json:"memory"`
	Filesystems    []MountStats `json:"filesystems"`
	Network        NetworkStats `json:"network"`
	CollectionTime time.Time    `json:"collectionTime"`
}

// GeneralStats holds uptime, boot time and load averages.
type GeneralStats struct {
	UptimeSeconds uint64       `json:"uptimeSeconds"`
	BootTimestamp int64        `json:"bootTimestamp"`
	LoadAverages  LoadAverages `json:"loadAverages"`
}

// LoadAverages holds the standard 1/5/15 minute load averages.
type LoadAverages struct {
	OneMinute      float64 `json:"oneMinute"`
	FiveMinutes    float64 `json:"fiveMinutes"`
	FifteenMinutes float64 `json:"fifteenMinutes"`
}

// CPUStats holds per-core and aggregate CPU load plus temperature.
type CPUStats struct {
	PerLogicalCPULoadPercent []float64 `json:"perLogicalCpuLoadPercent"`
	AggregateLoadPercent     float64   `json:"aggregateLoadPercent"`
	TempCelsius              float64   `json:"tempCelsius"`
}

// MemoryStats holds memory usage in megabytes.
type MemoryStats struct {
	UsedMB  uint64 `json:"usedMb"`
	TotalMB uint64 `json:"totalMb"`
}

// MountStats holds usage for one mounted filesystem. Mounts are identified
// by MountedOn when windows of snapshots are consolidated.
type MountStats struct {
	FSType      string `json:"fsType"`
	MountedFrom string `json:"mountedFrom"`
	MountedOn   string `json:"mountedOn"`
	UsedMB      uint64 `json:"usedMb"`
	TotalMB     uint64 `json:"totalMb"`
}

// NetworkStats holds per-interface counters and socket table counts.
type NetworkStats struct {
	Interfaces []InterfaceStats `json:"interfaces"`
	Sockets    SocketStats      `json:"sockets"`
}

// InterfaceStats holds cumulative-since-boot counters for one network
// interface. Interfaces are identified by Name during consolidation.
type InterfaceStats struct {
	Name            string   `json:"name"`
	Addresses       []string `json:"addresses"`
	SentMB          uint64   `json:"sentMb"`
	ReceivedMB      uint64   `json:"receivedMb"`
	SentPackets     uint64   `json:"sentPackets"`
	ReceivedPackets uint64   `json:"receivedPackets"`
	SendErrors      uint64   `json:"sendErrors"`
	ReceiveErrors   uint64   `json:"receiveErrors"`
}

// SocketStats holds socket table counts.
type SocketStats struct {
	TCPInUse    uint64 `json:"tcpInUse"`
	TCPOrphaned uint64 `json:"tcpOrphaned"`
	UDPInUse    uint64 `json:"udpInUse"`
	TCP6InUse   uint64 `json:"tcp6InUse"`
	UDP6InUse   uint64 `json:"udp6InUse"`
}
