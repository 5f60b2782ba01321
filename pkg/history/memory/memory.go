// Package memory implements the history store in memory. Data is lost on
// restart. Useful for testing.
package memory

import (
	"encoding/json"
	"sync"

	"sysobs/pkg/stats"
)

// Store keeps entries in a slice, sized by their JSON encoding so cap
// behavior matches the durable backends.
type Store struct {
	mu       sync.RWMutex
	maxBytes int64
	entries  []stats.Snapshot
	sizes    []int64
	total    int64
}

// New creates an in-memory history store with the given byte cap.
func New(maxBytes int64) *Store {
	return &Store{maxBytes: maxBytes}
}

// Append stores one entry and evicts the oldest while over the cap.
func (s *Store) Append(entry stats.Snapshot) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry)
	s.sizes = append(s.sizes, int64(len(data)))
	s.total += int64(len(data))

	for s.total > s.maxBytes && len(s.entries) > 1 {
		s.total -= s.sizes[0]
		s.entries = s.entries[1:]
		s.sizes = s.sizes[1:]
	}
	return nil
}

// ReadAll returns a copy of every entry, oldest first.
func (s *Store) ReadAll() ([]stats.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]stats.Snapshot, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

// SizeBytes returns the summed encoded size of stored entries.
func (s *Store) SizeBytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// Close is a no-op for memory storage.
func (s *Store) Close() error {
	return nil
}
