package badger

import (
	"testing"
	"time"

	"sysobs/pkg/stats"
)

func testEntry(sec int, usedMB uint64) stats.Snapshot {
	return stats.Snapshot{
		Memory:         stats.MemoryStats{UsedMB: usedMB, TotalMB: 16000},
		CollectionTime: time.Date(2025, 6, 1, 12, 0, sec, 0, time.UTC),
	}
}

func TestStore_AppendReadRoundtrip(t *testing.T) {
	store, err := Open(Config{InMemory: true, MaxBytes: 1 << 20})
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
			t.Errorf("entry %d: expected used=%d, got %d (order lost)", i, 100+i, entry.Memory.UsedMB)
		}
	}
}

func TestStore_EvictsOldestWhenOverCap(t *testing.T) {
	// Cap of ~3 entries; each entry is well over 100 bytes encoded.
	store, err := Open(Config{InMemory: true, MaxBytes: 900})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	for i := 0; i < 10; i++ {
		if err := store.Append(testEntry(i, uint64(100+i))); err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}

	if size := store.SizeBytes(); size > 900 {
		t.Errorf("logical footprint %d exceeds cap", size)
	}

	entries, err := store.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(entries) == 0 || len(entries) >= 10 {
		t.Fatalf("expected some but not all entries to survive, got %d", len(entries))
	}
	if newest := entries[len(entries)-1]; newest.Memory.UsedMB != 109 {
		t.Errorf("newest entry must survive eviction, got used=%d", newest.Memory.UsedMB)
	}
	for _, entry := range entries {
		if entry.Memory.UsedMB == 100 {
			t.Error("oldest entry should have been evicted")
		}
	}
}

func TestStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(Config{Path: dir, MaxBytes: 1 << 20})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := store.Append(testEntry(0, 100)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	sizeBefore := store.SizeBytes()
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(Config{Path: dir, MaxBytes: 1 << 20})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	if reopened.SizeBytes() != sizeBefore {
		t.Errorf("logical footprint not recovered: %d != %d", reopened.SizeBytes(), sizeBefore)
	}

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
