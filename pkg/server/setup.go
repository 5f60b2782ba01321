package server

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"sysobs/pkg/config"
	"sysobs/pkg/history"
	historybadger "sysobs/pkg/history/badger"
	"sysobs/pkg/history/segment"
	"sysobs/pkg/server/monitor"
)

// InitializeStore opens the configured persistent history backend. Returns
// a nil store and monitor when persistence is disabled.
func InitializeStore(cfg config.Config, logger zerolog.Logger) (history.Store, *monitor.StorageMonitor, error) {
	if !cfg.PersistHistory {
		logger.Info().Msg("history persistence disabled, keeping in-memory tiers only")
		return nil, nil, nil
	}

	if err := os.MkdirAll(cfg.HistoryFilesDirectory, 0755); err != nil {
		return nil, nil, fmt.Errorf("create history directory %s: %w", cfg.HistoryFilesDirectory, err)
	}

	var (
		store history.Store
		err   error
	)
	switch cfg.HistoryBackend {
	case config.BackendSegment:
		store, err = segment.Open(cfg.HistoryFilesDirectory, cfg.HistoryFilesMaxSizeByte, logger)
	case config.BackendBadger:
		store, err = historybadger.Open(historybadger.Config{
			Path:     cfg.HistoryFilesDirectory,
			MaxBytes: cfg.HistoryFilesMaxSizeByte,
		})
	default:
		err = fmt.Errorf("unknown history backend %q", cfg.HistoryBackend)
	}
	if err != nil {
		return nil, nil, err
	}

	logger.Info().
		Str("backend", cfg.HistoryBackend).
		Str("dir", cfg.HistoryFilesDirectory).
		Int64("max_bytes", cfg.HistoryFilesMaxSizeByte).
		Msg("persistent history store opened")

	storageMonitor := monitor.NewStorageMonitor(cfg.HistoryFilesDirectory, cfg.HistoryFilesMaxSizeByte)
	return store, storageMonitor, nil
}
