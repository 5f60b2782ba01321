// Package badger implements the persistent history store on BadgerDB.
// Entries are keyed by a monotonic big-endian sequence number, so key order
// is insertion order. The byte cap is enforced on the logical footprint (sum
// of encoded entry sizes); value-log GC reclaims the physical space behind
// evicted entries.
package badger

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"sysobs/pkg/stats"
)

// Store is a BadgerDB backed history store.
type Store struct {
	db       *badger.DB
	maxBytes int64

	// nextSeq is only touched from the single writer goroutine. logicalSize
	// is atomic because SizeBytes is served to concurrent readers.
	nextSeq     uint64
	logicalSize atomic.Int64
}

// Config holds BadgerDB store configuration.
type Config struct {
	// Path to store database files.
	Path string

	// InMemory mode (for testing).
	InMemory bool

	// MaxBytes is the logical size cap for stored history.
	MaxBytes int64
}

// Open creates or reopens a BadgerDB history store.
func Open(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	// History entries are small and written once every consolidation window,
	// so the DB is tuned for a minimal footprint rather than throughput.
	opts = opts.
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1).
		WithMemTableSize(8 << 20).
		WithNumMemtables(2).
		WithBlockCacheSize(4 << 20).
		WithIndexCacheSize(2 << 20).
		WithMaxLevels(4).
		WithNumCompactors(2).
		WithValueLogFileSize(16 << 20).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger history: %w", err)
	}

	s := &Store{db: db, maxBytes: cfg.MaxBytes}
	if err := s.loadState(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// loadState recovers the next sequence number and the logical footprint from
// the existing entries.
func (s *Store) loadState() error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			seq := binary.BigEndian.Uint64(item.Key())
			if seq >= s.nextSeq {
				s.nextSeq = seq + 1
			}
			s.logicalSize.Add(int64(len(item.Key())) + item.ValueSize())
		}
		return nil
	})
}

// Append writes one entry and evicts the oldest entries while the logical
// footprint exceeds the cap.
func (s *Store) Append(entry stats.Snapshot) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode history entry: %w", err)
	}

	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, s.nextSeq)

	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	}); err != nil {
		return fmt.Errorf("append history entry: %w", err)
	}
	s.nextSeq++
	s.logicalSize.Add(int64(len(key) + len(value)))

	return s.evict()
}

// evict deletes entries oldest-first until the logical footprint is at or
// under the cap. The entry just written is never evicted unless it exceeds
// the cap on its own.
func (s *Store) evict() error {
	if s.logicalSize.Load() <= s.maxBytes {
		return nil
	}

	return s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid() && s.logicalSize.Load() > s.maxBytes; it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			size := int64(len(key)) + item.ValueSize()
			if err := txn.Delete(key); err != nil {
				return fmt.Errorf("evict history entry: %w", err)
			}
			s.logicalSize.Add(-size)
		}
		return nil
	})
}

// ReadAll returns every entry, oldest first.
func (s *Store) ReadAll() ([]stats.Snapshot, error) {
	var entries []stats.Snapshot

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 64

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var entry stats.Snapshot
				if err := json.Unmarshal(val, &entry); err != nil {
					return fmt.Errorf("decode history entry: %w", err)
				}
				entries = append(entries, entry)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// SizeBytes returns the logical footprint of stored history.
func (s *Store) SizeBytes() int64 {
	return s.logicalSize.Load()
}

// Close shuts down BadgerDB cleanly.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunGC runs BadgerDB's value log garbage collection, reclaiming physical
// disk space behind evicted entries. discardRatio as in badger.DB.RunValueLogGC.
func (s *Store) RunGC(discardRatio float64) error {
	return s.db.RunValueLogGC(discardRatio)
}
