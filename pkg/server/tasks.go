package server

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sysobs/pkg/collector"
	"sysobs/pkg/history"
	historybadger "sysobs/pkg/history/badger"
	"sysobs/pkg/retention"
	"sysobs/pkg/server/monitor"
)

const badgerGCInterval = 10 * time.Minute

// RunSampler is the sampler loop: every interval it pulls one snapshot from
// the source and feeds it into the retention engine. It is the engine's only
// writer. A single goroutine runs the loop, so ticks never overlap; if a
// tick runs long the next one is delayed, not stacked. A failed collection
// is recorded and skipped, never fatal.
func RunSampler(
	ctx context.Context,
	src collector.Source,
	engine *retention.Engine,
	hub *Hub,
	samplerMonitor *monitor.SamplerMonitor,
	interval time.Duration,
	logger zerolog.Logger,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("stopping sampler loop")
			return
		case <-ticker.C:
			snap, err := src.Collect(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				samplerMonitor.RecordFailure(err)
				logger.Error().Err(err).Msg("snapshot collection failed, skipping tick")
				continue
			}

			engine.Ingest(snap)
			samplerMonitor.RecordSuccess()
			logger.Debug().Time("collected_at", snap.CollectionTime).Msg("snapshot ingested")

			// Push the fresh snapshot to live viewers. Skipped when nobody
			// is connected.
			if hub != nil && hub.HasClients() {
				update := map[string]interface{}{
					"type":      "snapshot",
					"timestamp": snap.CollectionTime.Unix(),
					"stats":     snap,
				}
				if err := hub.Broadcast(update); err != nil {
					logger.Warn().Err(err).Msg("failed to broadcast snapshot")
				}
			}
		}
	}
}

// RunBadgerGC periodically runs BadgerDB value log garbage collection to
// reclaim disk space behind evicted history entries. No-op for other
// backends.
func RunBadgerGC(store history.Store, stop chan struct{}, wg *sync.WaitGroup, logger zerolog.Logger) {
	defer wg.Done()

	badgerStore, ok := store.(*historybadger.Store)
	if !ok {
		return
	}

	logger.Info().Dur("interval", badgerGCInterval).Msg("badger GC scheduler started")

	ticker := time.NewTicker(badgerGCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			// RunGC errors when no rewrite was needed; that is not a failure.
			if err := badgerStore.RunGC(0.5); err != nil {
				logger.Debug().Dur("took", time.Since(start)).Msg("badger GC: no rewrite needed")
			} else {
				logger.Info().Dur("took", time.Since(start)).Msg("badger GC reclaimed disk space")
			}
		case <-stop:
			logger.Info().Msg("stopping badger GC scheduler")
			return
		}
	}
}
