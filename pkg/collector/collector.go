// Package collector gathers one snapshot of host metrics per call. The
// retention engine treats it as an opaque source; everything here is thin
// I/O over procfs and sysfs, with pure parsing split out for tests.
//
// Metrics that a platform does not expose (CPU temperature on most VMs,
// socket stats outside Linux) are logged at debug level and left at their
// zero values rather than failing the whole snapshot.
package collector

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"sysobs/pkg/stats"
)

// Source produces one raw snapshot per call. Collect blocks for the CPU
// sample duration; failure of one tick must never crash the sampler loop.
type Source interface {
	Collect(ctx context.Context) (stats.Snapshot, error)
}

const (
	// Time between the two /proc/stat readings used to derive CPU load.
	// Must stay well under the sampler interval.
	cpuSampleDuration = 500 * time.Millisecond

	bytesPerMB = 1_000_000
)

// Collector reads host metrics from procfs and sysfs.
type Collector struct {
	procRoot string
	sysRoot  string
	logger   zerolog.Logger
}

// New creates a collector reading from the real /proc and /sys.
func New(logger zerolog.Logger) *Collector {
	return &Collector{procRoot: "/proc", sysRoot: "/sys", logger: logger}
}

// Collect gathers one snapshot. It blocks for the CPU sample duration. An
// error is returned only when the core CPU reading fails; partial metric
// failures degrade to zero values.
func (c *Collector) Collect(ctx context.Context) (stats.Snapshot, error) {
	first, err := c.readCPUTimes()
	if err != nil {
		return stats.Snapshot{}, fmt.Errorf("read cpu times: %w", err)
	}

	select {
	case <-time.After(cpuSampleDuration):
	case <-ctx.Done():
		return stats.Snapshot{}, ctx.Err()
	}

	second, err := c.readCPUTimes()
	if err != nil {
		return stats.Snapshot{}, fmt.Errorf("read cpu times: %w", err)
	}

	now := time.Now()
	snap := stats.Snapshot{
		General:        c.collectGeneral(now),
		CPU:            c.collectCPU(first, second),
		Memory:         c.collectMemory(),
		Filesystems:    c.collectFilesystems(),
		Network:        c.collectNetwork(),
		CollectionTime: now,
	}
	return snap, nil
}

func (c *Collector) collectGeneral(now time.Time) stats.GeneralStats {
	var general stats.GeneralStats

	if data, err := os.ReadFile(filepath.Join(c.procRoot, "uptime")); err != nil {
		c.debugUnavailable("uptime", err)
	} else if uptime, err := parseUptime(data); err != nil {
		c.logger.Error().Err(err).Msg("failed to parse uptime")
	} else {
		general.UptimeSeconds = uptime
		general.BootTimestamp = now.Unix() - int64(uptime)
	}

	if data, err := os.ReadFile(filepath.Join(c.procRoot, "loadavg")); err != nil {
		c.debugUnavailable("load averages", err)
	} else if loads, err := parseLoadAvg(data); err != nil {
		c.logger.Error().Err(err).Msg("failed to parse load averages")
	} else {
		general.LoadAverages = loads
	}

	return general
}

func (c *Collector) readCPUTimes() (map[string]cpuTimes, error) {
	data, err := os.ReadFile(filepath.Join(c.procRoot, "stat"))
	if err != nil {
		return nil, err
	}
	return parseCPUStat(data)
}

func (c *Collector) collectCPU(first, second map[string]cpuTimes) stats.CPUStats {
	cpu := deriveCPULoad(first, second)

	if temp, ok := c.readCPUTemp(); ok {
		cpu.TempCelsius = temp
	}
	return cpu
}

// readCPUTemp scans thermal zones for a CPU-ish sensor. Missing sysfs
// entries are normal on VMs and containers.
func (c *Collector) readCPUTemp() (float64, bool) {
	zones, err := filepath.Glob(filepath.Join(c.sysRoot, "class", "thermal", "thermal_zone*"))
	if err != nil || len(zones) == 0 {
		return 0, false
	}

	for _, zone := range zones {
		data, err := os.ReadFile(filepath.Join(zone, "temp"))
		if err != nil {
			continue
		}
		if temp, err := parseMilliCelsius(data); err == nil {
			return temp, true
		}
	}
	return 0, false
}

func (c *Collector) collectMemory() stats.MemoryStats {
	data, err := os.ReadFile(filepath.Join(c.procRoot, "meminfo"))
	if err != nil {
		c.debugUnavailable("memory stats", err)
		return stats.MemoryStats{}
	}
	mem, err := parseMemInfo(data)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to parse meminfo")
		return stats.MemoryStats{}
	}
	return mem
}

func (c *Collector) collectFilesystems() []stats.MountStats {
	mounts, err := c.readMounts()
	if err != nil {
		c.debugUnavailable("filesystem stats", err)
		return nil
	}
	return mounts
}

func (c *Collector) collectNetwork() stats.NetworkStats {
	var network stats.NetworkStats

	if data, err := os.ReadFile(filepath.Join(c.procRoot, "net", "dev")); err != nil {
		c.debugUnavailable("interface stats", err)
	} else if ifaces, err := parseNetDev(data); err != nil {
		c.logger.Error().Err(err).Msg("failed to parse interface stats")
	} else {
		attachAddresses(ifaces)
		network.Interfaces = ifaces
	}

	sockets := stats.SocketStats{}
	if data, err := os.ReadFile(filepath.Join(c.procRoot, "net", "sockstat")); err != nil {
		c.debugUnavailable("socket stats", err)
	} else {
		parseSockstat(data, &sockets)
	}
	if data, err := os.ReadFile(filepath.Join(c.procRoot, "net", "sockstat6")); err != nil {
		c.debugUnavailable("ipv6 socket stats", err)
	} else {
		parseSockstat(data, &sockets)
	}
	network.Sockets = sockets

	return network
}

// attachAddresses fills in IP addresses from the standard library's
// interface table, matched by name.
func attachAddresses(ifaces []stats.InterfaceStats) {
	sysIfaces, err := net.Interfaces()
	if err != nil {
		return
	}

	byName := make(map[string][]string, len(sysIfaces))
	for _, si := range sysIfaces {
		addrs, err := si.Addrs()
		if err != nil {
			continue
		}
		list := make([]string, 0, len(addrs))
		for _, addr := range addrs {
			if ipNet, ok := addr.(*net.IPNet); ok {
				list = append(list, ipNet.IP.String())
			}
		}
		byName[si.Name] = list
	}

	for i := range ifaces {
		if addrs, ok := byName[ifaces[i].Name]; ok {
			ifaces[i].Addresses = addrs
		}
	}
}

// debugUnavailable logs a metric subsystem that this host does not expose.
func (c *Collector) debugUnavailable(what string, err error) {
	c.logger.Debug().Err(err).Msgf("%s unavailable", what)
}
