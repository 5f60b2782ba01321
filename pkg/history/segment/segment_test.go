package segment

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"sysobs/pkg/stats"
)

// testEntry builds entries with a fixed encoded size so size-cap tests can
// reason in whole records. usedMB must stay three digits.
func testEntry(sec int, usedMB uint64) stats.Snapshot {
	return stats.Snapshot{
		Memory:         stats.MemoryStats{UsedMB: usedMB, TotalMB: 16000},
		CollectionTime: time.Date(2025, 6, 1, 12, 0, 10+sec, 0, time.UTC),
	}
}

// recordLen returns the on-disk line length for one entry.
func recordLen(t *testing.T, entry stats.Snapshot) int64 {
	t.Helper()
	data, err := json.Marshal(entry)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	// 16 hex checksum chars, a space, the JSON, a newline.
	return int64(16 + 1 + len(data) + 1)
}

func TestStore_AppendReadRoundtrip(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir, 1<<20, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	for i := 0; i < 3; i++ {
		if err := store.Append(testEntry(i, uint64(100+i))); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	entries, err := store.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, entry := range entries {
		if entry.Memory.UsedMB != uint64(100+i) {
			t.Errorf("entry %d: expected used=%d, got %d", i, 100+i, entry.Memory.UsedMB)
		}
	}
}

func TestStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir, 1<<20, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := store.Append(testEntry(0, 100)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(dir, 1<<20, zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	if err := reopened.Append(testEntry(1, 101)); err != nil {
		t.Fatalf("Append after reopen failed: %v", err)
	}

	entries, err := reopened.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries across restart, got %d", len(entries))
	}
	if entries[0].Memory.UsedMB != 100 || entries[1].Memory.UsedMB != 101 {
		t.Errorf("entries out of order after restart: %d, %d", entries[0].Memory.UsedMB, entries[1].Memory.UsedMB)
	}
}

func TestStore_EvictsOldestSegments(t *testing.T) {
	dir := t.TempDir()

	// Cap sized to four records: each segment holds exactly one record, so
	// every append past the fourth evicts the oldest.
	lineLen := recordLen(t, testEntry(0, 100))
	sizeCap := 4 * lineLen

	store, err := Open(dir, sizeCap, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	for i := 0; i < 10; i++ {
		if err := store.Append(testEntry(i, uint64(100+i))); err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}

	if size := store.SizeBytes(); size > sizeCap {
		t.Errorf("footprint %d exceeds cap %d", size, sizeCap)
	}

	entries, err := store.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(entries) == 0 || len(entries) > 4 {
		t.Fatalf("expected 1-4 surviving entries, got %d", len(entries))
	}

	// The newest entry always survives, the oldest never does.
	newest := entries[len(entries)-1]
	if newest.Memory.UsedMB != 109 {
		t.Errorf("expected newest entry used=109, got %d", newest.Memory.UsedMB)
	}
	for _, entry := range entries {
		if entry.Memory.UsedMB == 100 {
			t.Error("oldest entry should have been evicted")
		}
	}
}

func TestStore_SkipsCorruptRecords(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir, 1<<20, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := store.Append(testEntry(0, 100)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.Append(testEntry(1, 101)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Simulate a torn tail write from a crash.
	path := filepath.Join(dir, "history-000001.seg")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open segment: %v", err)
	}
	if _, err := f.WriteString("00000000deadbeef {\"general\":{\"upti"); err != nil {
		t.Fatalf("write torn record: %v", err)
	}
	f.Close()

	reopened, err := Open(dir, 1<<20, zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	entries, err := reopened.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected the 2 intact entries, got %d", len(entries))
	}
}

func TestOpen_RejectsNonPositiveCap(t *testing.T) {
	if _, err := Open(t.TempDir(), 0, zerolog.Nop()); err == nil {
		t.Error("expected error for zero size cap")
	}
}
