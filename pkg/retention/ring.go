package retention

import "sysobs/pkg/stats"

// Ring is a fixed-capacity FIFO of consolidated entries, oldest first.
// Pushing into a full ring evicts exactly the oldest entry. The ring is not
// safe for concurrent use on its own; the engine's lock guards it.
type Ring struct {
	entries []stats.Snapshot
	head    int // index of the oldest entry once full
	count   int
}

// NewRing creates a ring with the given capacity. Capacity must be at least
// 1; the config layer validates this before the engine is built.
func NewRing(capacity int) *Ring {
	return &Ring{entries: make([]stats.Snapshot, capacity)}
}

// Push appends an entry, evicting the oldest if the ring is full.
func (r *Ring) Push(entry stats.Snapshot) {
	if r.count < len(r.entries) {
		r.entries[(r.head+r.count)%len(r.entries)] = entry
		r.count++
		return
	}
	r.entries[r.head] = entry
	r.head = (r.head + 1) % len(r.entries)
}

// Len returns the number of entries currently held.
func (r *Ring) Len() int {
	return r.count
}

// Cap returns the ring's fixed capacity.
func (r *Ring) Cap() int {
	return len(r.entries)
}

// Items returns a copy of the entries, oldest first.
func (r *Ring) Items() []stats.Snapshot {
	out := make([]stats.Snapshot, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.entries[(r.head+i)%len(r.entries)]
	}
	return out
}
