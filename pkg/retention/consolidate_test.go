package retention

import (
	"reflect"
	"testing"
	"time"

	"sysobs/pkg/stats"
)

func snapAt(sec int, load float64, usedMB uint64) stats.Snapshot {
	return stats.Snapshot{
		General: stats.GeneralStats{
			UptimeSeconds: uint64(1000 + sec),
			BootTimestamp: 1_750_000_000,
			LoadAverages:  stats.LoadAverages{OneMinute: load, FiveMinutes: load / 2, FifteenMinutes: load / 4},
		},
		CPU: stats.CPUStats{
			PerLogicalCPULoadPercent: []float64{load, load * 2},
			AggregateLoadPercent:     load * 1.5,
			TempCelsius:              40 + load,
		},
		Memory: stats.MemoryStats{UsedMB: usedMB, TotalMB: 16000},
		Network: stats.NetworkStats{
			Sockets: stats.SocketStats{TCPInUse: usedMB / 100, UDPInUse: 3},
		},
		CollectionTime: time.Date(2025, 6, 1, 12, 0, sec, 0, time.UTC),
	}
}

func TestConsolidate_GaugesAveraged(t *testing.T) {
	window := []stats.Snapshot{
		snapAt(0, 10, 1000),
		snapAt(3, 20, 2000),
	}

	entry := Consolidate(window)

	if entry.General.LoadAverages.OneMinute != 15 {
		t.Errorf("expected mean 1m load 15, got %v", entry.General.LoadAverages.OneMinute)
	}
	if entry.CPU.AggregateLoadPercent != 22.5 {
		t.Errorf("expected mean aggregate load 22.5, got %v", entry.CPU.AggregateLoadPercent)
	}
	if entry.Memory.UsedMB != 1500 {
		t.Errorf("expected mean used memory 1500, got %d", entry.Memory.UsedMB)
	}
	if got := entry.CPU.PerLogicalCPULoadPercent; !reflect.DeepEqual(got, []float64{15, 30}) {
		t.Errorf("expected per-core means [15 30], got %v", got)
	}
}

func TestConsolidate_AggregateLoadMean(t *testing.T) {
	first := snapAt(0, 1, 100)
	first.CPU.AggregateLoadPercent = 10.0
	second := snapAt(3, 1, 100)
	second.CPU.AggregateLoadPercent = 20.0

	entry := Consolidate([]stats.Snapshot{first, second})

	if entry.CPU.AggregateLoadPercent != 15.0 {
		t.Errorf("expected aggregate load 15.0, got %v", entry.CPU.AggregateLoadPercent)
	}
}

func TestConsolidate_MemoryTotalIsMax(t *testing.T) {
	window := []stats.Snapshot{snapAt(0, 1, 100), snapAt(3, 1, 100)}
	window[0].Memory.TotalMB = 16000
	window[1].Memory.TotalMB = 15998 // hotplug or reporting jitter

	entry := Consolidate(window)

	if entry.Memory.TotalMB != 16000 {
		t.Errorf("expected max total 16000, got %d", entry.Memory.TotalMB)
	}
}

func TestConsolidate_SocketCountsRounded(t *testing.T) {
	window := []stats.Snapshot{snapAt(0, 1, 100), snapAt(3, 1, 100), snapAt(6, 1, 100)}
	window[0].Network.Sockets.TCPInUse = 10
	window[1].Network.Sockets.TCPInUse = 11
	window[2].Network.Sockets.TCPInUse = 11

	entry := Consolidate(window)

	// mean 10.67 rounds to 11
	if entry.Network.Sockets.TCPInUse != 11 {
		t.Errorf("expected rounded mean 11, got %d", entry.Network.Sockets.TCPInUse)
	}
}

func TestConsolidate_InterfaceCountersKeepLastValue(t *testing.T) {
	first := snapAt(0, 1, 100)
	first.Network.Interfaces = []stats.InterfaceStats{
		{Name: "eth0", SentMB: 100, ReceivedMB: 200, SentPackets: 5000},
	}
	second := snapAt(3, 1, 100)
	second.Network.Interfaces = []stats.InterfaceStats{
		{Name: "eth0", SentMB: 150, ReceivedMB: 260, SentPackets: 7500},
	}

	entry := Consolidate([]stats.Snapshot{first, second})

	if len(entry.Network.Interfaces) != 1 {
		t.Fatalf("expected 1 interface, got %d", len(entry.Network.Interfaces))
	}
	iface := entry.Network.Interfaces[0]
	if iface.SentMB != 150 || iface.ReceivedMB != 260 || iface.SentPackets != 7500 {
		t.Errorf("cumulative counters must keep the last value, got %+v", iface)
	}
}

func TestConsolidate_FilesystemsMergedByMountPoint(t *testing.T) {
	first := snapAt(0, 1, 100)
	first.Filesystems = []stats.MountStats{
		{FSType: "ext4", MountedFrom: "/dev/sda1", MountedOn: "/", UsedMB: 100, TotalMB: 500},
		{FSType: "vfat", MountedFrom: "/dev/sdb1", MountedOn: "/mnt/usb", UsedMB: 10, TotalMB: 64},
	}
	second := snapAt(3, 1, 100)
	second.Filesystems = []stats.MountStats{
		// usb stick unmounted mid-window
		{FSType: "ext4", MountedFrom: "/dev/sda1", MountedOn: "/", UsedMB: 120, TotalMB: 500},
	}

	entry := Consolidate([]stats.Snapshot{first, second})

	if len(entry.Filesystems) != 2 {
		t.Fatalf("expected 2 mounts in first-appearance order, got %d", len(entry.Filesystems))
	}
	root := entry.Filesystems[0]
	if root.MountedOn != "/" || root.UsedMB != 110 {
		t.Errorf("expected root mount averaged to 110 MB used, got %+v", root)
	}
	usb := entry.Filesystems[1]
	if usb.MountedOn != "/mnt/usb" || usb.UsedMB != 10 {
		t.Errorf("expected unmounted stick to keep last-seen values, got %+v", usb)
	}
}

func TestConsolidate_TimestampAndIdentityFromLast(t *testing.T) {
	window := []stats.Snapshot{snapAt(0, 1, 100), snapAt(3, 1, 100), snapAt(6, 1, 100)}

	entry := Consolidate(window)

	if !entry.CollectionTime.Equal(window[2].CollectionTime) {
		t.Errorf("expected timestamp of last snapshot, got %v", entry.CollectionTime)
	}
	if entry.General.UptimeSeconds != window[2].General.UptimeSeconds {
		t.Errorf("expected uptime from last snapshot, got %d", entry.General.UptimeSeconds)
	}
}

func TestConsolidate_Deterministic(t *testing.T) {
	window := []stats.Snapshot{snapAt(0, 10, 1000), snapAt(3, 20, 2000), snapAt(6, 30, 3000)}

	first := Consolidate(window)
	second := Consolidate(window)

	if !reflect.DeepEqual(first, second) {
		t.Error("consolidating the same window twice must produce identical entries")
	}
}
