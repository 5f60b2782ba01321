package collector

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"sysobs/pkg/stats"
)

// cpuTimes holds one /proc/stat CPU line as cumulative jiffies.
type cpuTimes struct {
	idle  uint64
	total uint64
}

// parseUptime parses /proc/uptime ("12345.67 8901.23") into whole seconds.
func parseUptime(data []byte) (uint64, error) {
	fields := strings.Fields(string(data))
	if len(fields) < 1 {
		return 0, fmt.Errorf("unexpected uptime format: %q", data)
	}
	seconds, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected uptime format: %w", err)
	}
	return uint64(seconds), nil
}

// parseLoadAvg parses /proc/loadavg ("0.52 0.58 0.59 1/467 12345").
func parseLoadAvg(data []byte) (stats.LoadAverages, error) {
	fields := strings.Fields(string(data))
	if len(fields) < 3 {
		return stats.LoadAverages{}, fmt.Errorf("unexpected loadavg format: %q", data)
	}

	values := make([]float64, 3)
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return stats.LoadAverages{}, fmt.Errorf("unexpected loadavg format: %w", err)
		}
		values[i] = v
	}
	return stats.LoadAverages{
		OneMinute:      values[0],
		FiveMinutes:    values[1],
		FifteenMinutes: values[2],
	}, nil
}

// parseCPUStat parses the cpu lines of /proc/stat into cumulative times
// keyed by CPU name ("cpu" for the aggregate, "cpu0"... per core).
func parseCPUStat(data []byte) (map[string]cpuTimes, error) {
	times := make(map[string]cpuTimes)

	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "cpu") {
			continue
		}
		fields := strings.Fields(line)
		// name user nice system idle [iowait irq softirq steal ...]
		if len(fields) < 5 {
			return nil, fmt.Errorf("unexpected /proc/stat line: %q", line)
		}

		var t cpuTimes
		for i, field := range fields[1:] {
			v, err := strconv.ParseUint(field, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("unexpected /proc/stat line: %w", err)
			}
			t.total += v
			// idle is the 4th value; iowait (5th) counts as idle time too.
			if i == 3 || i == 4 {
				t.idle += v
			}
		}
		times[fields[0]] = t
	}

	if _, ok := times["cpu"]; !ok {
		return nil, fmt.Errorf("no aggregate cpu line in /proc/stat")
	}
	return times, nil
}

// deriveCPULoad turns two cumulative readings into load percentages.
func deriveCPULoad(first, second map[string]cpuTimes) stats.CPUStats {
	var cpu stats.CPUStats
	cpu.AggregateLoadPercent = loadBetween(first["cpu"], second["cpu"])

	var cores []string
	for name := range second {
		if name != "cpu" {
			cores = append(cores, name)
		}
	}
	sort.Slice(cores, func(i, j int) bool {
		return coreIndex(cores[i]) < coreIndex(cores[j])
	})

	for _, name := range cores {
		cpu.PerLogicalCPULoadPercent = append(cpu.PerLogicalCPULoadPercent, loadBetween(first[name], second[name]))
	}
	return cpu
}

func coreIndex(name string) int {
	idx, err := strconv.Atoi(strings.TrimPrefix(name, "cpu"))
	if err != nil {
		return 0
	}
	return idx
}

// loadBetween computes the busy percentage between two cumulative readings.
func loadBetween(before, after cpuTimes) float64 {
	if after.total <= before.total || after.idle < before.idle {
		return 0
	}
	totalDelta := after.total - before.total
	idleDelta := after.idle - before.idle
	return (1 - float64(idleDelta)/float64(totalDelta)) * 100
}

// parseMilliCelsius parses a sysfs thermal reading ("42000" = 42C).
func parseMilliCelsius(data []byte) (float64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, err
	}
	return float64(v) / 1000, nil
}

// parseMemInfo parses /proc/meminfo. Used memory is MemTotal minus
// MemAvailable (falling back to MemFree on kernels without it).
func parseMemInfo(data []byte) (stats.MemoryStats, error) {
	values := make(map[string]uint64)

	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		key := strings.TrimSuffix(fields[0], ":")
		switch key {
		case "MemTotal", "MemFree", "MemAvailable":
			v, err := strconv.ParseUint(fields[1], 10, 64)
			if err != nil {
				return stats.MemoryStats{}, fmt.Errorf("unexpected meminfo line: %q", line)
			}
			values[key] = v * 1024 // values are in KiB
		}
	}

	total, ok := values["MemTotal"]
	if !ok {
		return stats.MemoryStats{}, fmt.Errorf("no MemTotal in meminfo")
	}
	free, ok := values["MemAvailable"]
	if !ok {
		free = values["MemFree"]
	}

	var used uint64
	if total > free {
		used = total - free
	}
	return stats.MemoryStats{
		UsedMB:  used / bytesPerMB,
		TotalMB: total / bytesPerMB,
	}, nil
}

// parseNetDev parses /proc/net/dev into per-interface cumulative counters.
func parseNetDev(data []byte) ([]stats.InterfaceStats, error) {
	var ifaces []stats.InterfaceStats

	for i, line := range strings.Split(string(data), "\n") {
		// First two lines are headers.
		if i < 2 || strings.TrimSpace(line) == "" {
			continue
		}
		name, rest, found := strings.Cut(line, ":")
		if !found {
			return nil, fmt.Errorf("unexpected /proc/net/dev line: %q", line)
		}

		fields := strings.Fields(rest)
		// rx: bytes packets errs drop fifo frame compressed multicast
		// tx: bytes packets errs drop fifo colls carrier compressed
		if len(fields) < 16 {
			return nil, fmt.Errorf("unexpected /proc/net/dev line: %q", line)
		}

		values := make([]uint64, 16)
		for j := 0; j < 16; j++ {
			v, err := strconv.ParseUint(fields[j], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("unexpected /proc/net/dev line: %w", err)
			}
			values[j] = v
		}

		ifaces = append(ifaces, stats.InterfaceStats{
			Name:            strings.TrimSpace(name),
			ReceivedMB:      values[0] / bytesPerMB,
			ReceivedPackets: values[1],
			ReceiveErrors:   values[2],
			SentMB:          values[8] / bytesPerMB,
			SentPackets:     values[9],
			SendErrors:      values[10],
		})
	}
	return ifaces, nil
}

// parseSockstat parses /proc/net/sockstat or sockstat6 lines into the
// matching SocketStats fields, leaving the others untouched.
func parseSockstat(data []byte, sockets *stats.SocketStats) {
	for _, line := range strings.Split(string(data), "\n") {
		proto, rest, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		fields := strings.Fields(rest)

		get := func(key string) (uint64, bool) {
			for i := 0; i+1 < len(fields); i += 2 {
				if fields[i] == key {
					v, err := strconv.ParseUint(fields[i+1], 10, 64)
					if err != nil {
						return 0, false
					}
					return v, true
				}
			}
			return 0, false
		}

		switch proto {
		case "TCP":
			if v, ok := get("inuse"); ok {
				sockets.TCPInUse = v
			}
			if v, ok := get("orphan"); ok {
				sockets.TCPOrphaned = v
			}
		case "UDP":
			if v, ok := get("inuse"); ok {
				sockets.UDPInUse = v
			}
		case "TCP6":
			if v, ok := get("inuse"); ok {
				sockets.TCP6InUse = v
			}
		case "UDP6":
			if v, ok := get("inuse"); ok {
				sockets.UDP6InUse = v
			}
		}
	}
}
