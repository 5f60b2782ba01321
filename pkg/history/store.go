// Package history defines the persistent tier for consolidated snapshots.
// Implementations: segment (append log files, default), badger (LSM tree),
// memory (testing).
package history

import "sysobs/pkg/stats"

// Store is an ordered, size-capped, durable log of consolidated snapshots.
//
// Append and eviction are only ever called from the retention engine's
// single writer goroutine; ReadAll may be called concurrently from request
// handlers and must observe either the pre- or post-append state, never a
// partially written entry.
type Store interface {
	// Append durably writes one entry, then evicts the oldest entries if
	// the store's byte footprint exceeds its cap. Returns after the write
	// is flushed.
	Append(entry stats.Snapshot) error

	// ReadAll returns every durable entry, oldest first.
	ReadAll() ([]stats.Snapshot, error)

	// SizeBytes returns the store's current byte footprint.
	SizeBytes() int64

	// Close cleanly shuts down the store.
	Close() error
}
