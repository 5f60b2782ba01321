package collector

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

// fakeProc builds a minimal procfs/sysfs tree for Collect.
func fakeProc(t *testing.T) *Collector {
	t.Helper()
	root := t.TempDir()
	procRoot := filepath.Join(root, "proc")
	sysRoot := filepath.Join(root, "sys")

	files := map[string]string{
		"proc/uptime":  "54321.00 100000.00\n",
		"proc/loadavg": "0.50 0.40 0.30 1/467 12345\n",
		"proc/stat": "cpu  100 0 100 700 100 0 0 0 0 0\n" +
			"cpu0 100 0 100 700 100 0 0 0 0 0\n",
		"proc/meminfo": "MemTotal: 16000000 kB\nMemAvailable: 8000000 kB\n",
		"proc/net/dev": "header\nheader\n" +
			"  eth0: 250000000  90000    2    0    0     0          0         0 75000000   60000    1    0    0     0       0          0\n",
		"proc/net/sockstat":              "TCP: inuse 25 orphan 2\nUDP: inuse 8\n",
		"proc/net/sockstat6":             "TCP6: inuse 12\nUDP6: inuse 4\n",
		"sys/class/thermal/thermal_zone0/temp": "42500\n",
	}
	for path, content := range files {
		full := filepath.Join(root, path)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}

	return &Collector{procRoot: procRoot, sysRoot: sysRoot, logger: zerolog.Nop()}
}

func TestCollect_FromFakeProc(t *testing.T) {
	c := fakeProc(t)

	snap, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	if snap.General.UptimeSeconds != 54321 {
		t.Errorf("unexpected uptime: %d", snap.General.UptimeSeconds)
	}
	if snap.General.BootTimestamp == 0 {
		t.Error("boot timestamp must be derived from uptime")
	}
	if snap.General.LoadAverages.OneMinute != 0.50 {
		t.Errorf("unexpected 1m load: %v", snap.General.LoadAverages.OneMinute)
	}

	// Both readings are identical, so load is zero, but the core list must
	// still have the right width.
	if len(snap.CPU.PerLogicalCPULoadPercent) != 1 {
		t.Errorf("expected 1 core, got %d", len(snap.CPU.PerLogicalCPULoadPercent))
	}
	if snap.CPU.TempCelsius != 42.5 {
		t.Errorf("unexpected cpu temp: %v", snap.CPU.TempCelsius)
	}

	if snap.Memory.TotalMB == 0 || snap.Memory.UsedMB == 0 {
		t.Errorf("memory stats missing: %+v", snap.Memory)
	}

	if len(snap.Network.Interfaces) != 1 || snap.Network.Interfaces[0].Name != "eth0" {
		t.Fatalf("unexpected interfaces: %+v", snap.Network.Interfaces)
	}
	if snap.Network.Sockets.TCPInUse != 25 || snap.Network.Sockets.UDP6InUse != 4 {
		t.Errorf("unexpected socket stats: %+v", snap.Network.Sockets)
	}

	if snap.CollectionTime.IsZero() {
		t.Error("collection time must be set")
	}
}

func TestCollect_MissingCPUStatFails(t *testing.T) {
	c := &Collector{procRoot: t.TempDir(), sysRoot: t.TempDir(), logger: zerolog.Nop()}

	if _, err := c.Collect(context.Background()); err == nil {
		t.Error("expected error when /proc/stat is unreadable")
	}
}

func TestCollect_CancelledContext(t *testing.T) {
	c := fakeProc(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Collect(ctx); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestCollect_PartialMetricsDegradeToZero(t *testing.T) {
	// Only /proc/stat present: the snapshot still succeeds with zero values
	// for everything else.
	root := t.TempDir()
	procRoot := filepath.Join(root, "proc")
	if err := os.MkdirAll(procRoot, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	statData := "cpu  100 0 100 700 100 0 0 0 0 0\n"
	if err := os.WriteFile(filepath.Join(procRoot, "stat"), []byte(statData), 0o644); err != nil {
		t.Fatalf("write stat: %v", err)
	}

	c := &Collector{procRoot: procRoot, sysRoot: filepath.Join(root, "sys"), logger: zerolog.Nop()}

	snap, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if snap.General.UptimeSeconds != 0 || snap.Memory.TotalMB != 0 {
		t.Error("missing subsystems must degrade to zero values")
	}
}
