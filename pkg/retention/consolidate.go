package retention

import (
	"math"

	"sysobs/pkg/stats"
)

// Consolidate reduces an ordered window of snapshots into a single entry
// with the same shape. It is pure and deterministic: the same window always
// produces the same entry.
//
// Reduction policies:
//   - Gauges (load averages, CPU load, temperature, memory, socket counts,
//     filesystem usage) are reduced by arithmetic mean over the window.
//   - Cumulative counters (interface bytes, packets, errors) are reduced by
//     taking the last observed value. The OS reports these as totals since
//     boot, so summing them across the window would double count.
//   - Keyed lists (filesystems by mount point, interfaces by name) are
//     merged by key in first-appearance order. A key present in every
//     snapshot gets field-wise reduction; a key that vanishes mid-window
//     (e.g. a filesystem unmounted) keeps its last-seen values.
//   - Identity fields (uptime, boot time, addresses) and the entry's
//     timestamp come from the window's last snapshot.
//
// The window must not be empty; the engine only calls this with a full one.
func Consolidate(window []stats.Snapshot) stats.Snapshot {
	last := window[len(window)-1]

	return stats.Snapshot{
		General: stats.GeneralStats{
			UptimeSeconds: last.General.UptimeSeconds,
			BootTimestamp: last.General.BootTimestamp,
			LoadAverages: stats.LoadAverages{
				OneMinute:      meanOf(window, func(s stats.Snapshot) float64 { return s.General.LoadAverages.OneMinute }),
				FiveMinutes:    meanOf(window, func(s stats.Snapshot) float64 { return s.General.LoadAverages.FiveMinutes }),
				FifteenMinutes: meanOf(window, func(s stats.Snapshot) float64 { return s.General.LoadAverages.FifteenMinutes }),
			},
		},
		CPU: stats.CPUStats{
			PerLogicalCPULoadPercent: meanPerCore(window),
			AggregateLoadPercent:     meanOf(window, func(s stats.Snapshot) float64 { return s.CPU.AggregateLoadPercent }),
			TempCelsius:              meanOf(window, func(s stats.Snapshot) float64 { return s.CPU.TempCelsius }),
		},
		Memory: stats.MemoryStats{
			UsedMB:  roundMean(window, func(s stats.Snapshot) uint64 { return s.Memory.UsedMB }),
			TotalMB: maxOf(window, func(s stats.Snapshot) uint64 { return s.Memory.TotalMB }),
		},
		Filesystems: mergeFilesystems(window),
		Network: stats.NetworkStats{
			Interfaces: mergeInterfaces(window),
			Sockets: stats.SocketStats{
				TCPInUse:    roundMean(window, func(s stats.Snapshot) uint64 { return s.Network.Sockets.TCPInUse }),
				TCPOrphaned: roundMean(window, func(s stats.Snapshot) uint64 { return s.Network.Sockets.TCPOrphaned }),
				UDPInUse:    roundMean(window, func(s stats.Snapshot) uint64 { return s.Network.Sockets.UDPInUse }),
				TCP6InUse:   roundMean(window, func(s stats.Snapshot) uint64 { return s.Network.Sockets.TCP6InUse }),
				UDP6InUse:   roundMean(window, func(s stats.Snapshot) uint64 { return s.Network.Sockets.UDP6InUse }),
			},
		},
		CollectionTime: last.CollectionTime,
	}
}

// meanOf averages a float field over the window.
func meanOf(window []stats.Snapshot, field func(stats.Snapshot) float64) float64 {
	var sum float64
	for _, s := range window {
		sum += field(s)
	}
	return sum / float64(len(window))
}

// roundMean averages an integer gauge over the window and rounds to nearest.
func roundMean(window []stats.Snapshot, field func(stats.Snapshot) uint64) uint64 {
	var sum float64
	for _, s := range window {
		sum += float64(field(s))
	}
	return uint64(math.Round(sum / float64(len(window))))
}

// maxOf returns the maximum of an integer field over the window.
func maxOf(window []stats.Snapshot, field func(stats.Snapshot) uint64) uint64 {
	var max uint64
	for _, s := range window {
		if v := field(s); v > max {
			max = v
		}
	}
	return max
}

// meanPerCore averages per-core loads index-wise. Snapshots that report
// fewer cores than the widest snapshot contribute zero for the missing
// indexes, matching how a core appearing mid-window should drag the average
// down rather than skew it up.
func meanPerCore(window []stats.Snapshot) []float64 {
	width := 0
	for _, s := range window {
		if len(s.CPU.PerLogicalCPULoadPercent) > width {
			width = len(s.CPU.PerLogicalCPULoadPercent)
		}
	}
	if width == 0 {
		return nil
	}

	means := make([]float64, width)
	for _, s := range window {
		for i, v := range s.CPU.PerLogicalCPULoadPercent {
			means[i] += v
		}
	}
	for i := range means {
		means[i] /= float64(len(window))
	}
	return means
}

// mergeFilesystems merges mount lists by mount point, in first-appearance
// order across the window.
func mergeFilesystems(window []stats.Snapshot) []stats.MountStats {
	type mountAgg struct {
		last      stats.MountStats
		usedSum   float64
		totalSum  float64
		seenCount int
	}

	var order []string
	byMount := make(map[string]*mountAgg)

	for _, s := range window {
		for _, m := range s.Filesystems {
			agg, ok := byMount[m.MountedOn]
			if !ok {
				agg = &mountAgg{}
				byMount[m.MountedOn] = agg
				order = append(order, m.MountedOn)
			}
			agg.last = m
			agg.usedSum += float64(m.UsedMB)
			agg.totalSum += float64(m.TotalMB)
			agg.seenCount++
		}
	}

	if len(order) == 0 {
		return nil
	}

	merged := make([]stats.MountStats, 0, len(order))
	for _, mount := range order {
		agg := byMount[mount]
		m := agg.last
		// Only average usage for mounts observed in the whole window; a
		// mount that came or went mid-window keeps its last-seen values.
		if agg.seenCount == len(window) {
			m.UsedMB = uint64(math.Round(agg.usedSum / float64(agg.seenCount)))
			m.TotalMB = uint64(math.Round(agg.totalSum / float64(agg.seenCount)))
		}
		merged = append(merged, m)
	}
	return merged
}

// mergeInterfaces merges interface lists by name, in first-appearance order.
// Every interface field is either identity (name, addresses) or a cumulative
// counter, so the merge keeps each interface's last-seen record.
func mergeInterfaces(window []stats.Snapshot) []stats.InterfaceStats {
	var order []string
	byName := make(map[string]stats.InterfaceStats)

	for _, s := range window {
		for _, iface := range s.Network.Interfaces {
			if _, ok := byName[iface.Name]; !ok {
				order = append(order, iface.Name)
			}
			byName[iface.Name] = iface
		}
	}

	if len(order) == 0 {
		return nil
	}

	merged := make([]stats.InterfaceStats, 0, len(order))
	for _, name := range order {
		merged = append(merged, byName[name])
	}
	return merged
}
