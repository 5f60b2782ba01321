// Package retention implements the tiered retention engine: a current
// buffer of raw snapshots, a bounded ring of consolidated entries, and
// best-effort fan-out to a persistent history store.
package retention

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"sysobs/pkg/history"
	"sysobs/pkg/stats"
)

// ErrPersistenceDisabled is returned by PersistentWindow when the engine was
// built without a history store.
var ErrPersistenceDisabled = errors.New("history persistence is disabled")

// Engine owns the in-memory retention tiers. There is exactly one writer
// (the sampler loop calling Ingest) and any number of concurrent readers.
//
// The mutex guards the current buffer, the latest snapshot, and the recent
// ring. It is held across the whole consolidation transaction so a reader
// can never observe the buffer cleared without the ring updated. The
// persistent append deliberately happens after the lock is released: the
// store serializes its own access, and disk latency must not block readers
// of the in-memory tiers.
type Engine struct {
	limit  int
	logger zerolog.Logger
	store  history.Store // nil when persistence is disabled

	mu      sync.RWMutex
	window  []stats.Snapshot
	latest  stats.Snapshot
	hasData bool
	recent  *Ring
}

// NewEngine creates an engine. store may be nil to disable persistence.
func NewEngine(consolidationLimit, recentSize int, store history.Store, logger zerolog.Logger) *Engine {
	return &Engine{
		limit:  consolidationLimit,
		logger: logger,
		store:  store,
		window: make([]stats.Snapshot, 0, consolidationLimit),
		recent: NewRing(recentSize),
	}
}

// Ingest accepts one raw snapshot. When the current buffer reaches the
// consolidation limit, the window is reduced to a single entry, pushed into
// the recent ring, and the buffer is cleared, all atomically with respect to
// readers. The entry is then appended to the persistent store; a store
// failure drops that one entry and leaves the in-memory tiers untouched.
func (e *Engine) Ingest(snap stats.Snapshot) {
	var entry *stats.Snapshot

	e.mu.Lock()
	e.window = append(e.window, snap)
	e.latest = snap
	e.hasData = true
	if len(e.window) == e.limit {
		consolidated := Consolidate(e.window)
		e.recent.Push(consolidated)
		e.window = make([]stats.Snapshot, 0, e.limit)
		entry = &consolidated
	}
	e.mu.Unlock()

	if entry == nil || e.store == nil {
		return
	}
	if err := e.store.Append(*entry); err != nil {
		e.logger.Error().Err(err).Msg("failed to persist consolidated entry, dropping it")
	}
}

// Latest returns the most recent raw snapshot. ok is false until the first
// snapshot has been ingested.
func (e *Engine) Latest() (snap stats.Snapshot, ok bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.latest, e.hasData
}

// RecentWindow returns a copy of the recent ring, oldest first.
func (e *Engine) RecentWindow() []stats.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.recent.Items()
}

// PersistentWindow returns every persisted entry, oldest first.
func (e *Engine) PersistentWindow() ([]stats.Snapshot, error) {
	if e.store == nil {
		return nil, ErrPersistenceDisabled
	}
	return e.store.ReadAll()
}

// PersistenceEnabled reports whether the engine fans out to a history store.
func (e *Engine) PersistenceEnabled() bool {
	return e.store != nil
}

// CurrentWindowLen returns the number of snapshots collected since the last
// consolidation.
func (e *Engine) CurrentWindowLen() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.window)
}
