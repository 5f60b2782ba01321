package export

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"sysobs/pkg/httpx"
	"sysobs/pkg/stats"
)

// HistorySource provides the consolidated history tiers. Satisfied by the
// retention engine.
type HistorySource interface {
	RecentWindow() []stats.Snapshot
	PersistentWindow() ([]stats.Snapshot, error)
	PersistenceEnabled() bool
}

// Handler serves history downloads.
type Handler struct {
	source HistorySource
	logger zerolog.Logger
}

// NewHandler creates an export handler backed by the given history source.
func NewHandler(source HistorySource, logger zerolog.Logger) *Handler {
	return &Handler{source: source, logger: logger}
}

// HandleExport handles GET /v1/export
// Query params:
//   - format: "json" or "csv" (default: json)
//   - source: "persistent" or "recent" (default: persistent when enabled,
//     otherwise recent)
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	format := query.Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		httpx.RespondErrorString(w, http.StatusBadRequest, "invalid format, must be 'json' or 'csv'")
		return
	}

	source := query.Get("source")
	if source == "" {
		if h.source.PersistenceEnabled() {
			source = "persistent"
		} else {
			source = "recent"
		}
	}

	var entries []stats.Snapshot
	switch source {
	case "recent":
		entries = h.source.RecentWindow()
	case "persistent":
		var err error
		entries, err = h.source.PersistentWindow()
		if err != nil {
			httpx.RespondError(w, http.StatusNotFound, err)
			return
		}
	default:
		httpx.RespondErrorString(w, http.StatusBadRequest, "invalid source, must be 'persistent' or 'recent'")
		return
	}

	timestamp := time.Now().Format("20060102-150405")
	if format == "json" {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=sysobs-history-%s.json", timestamp))
	} else {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=sysobs-history-%s.csv", timestamp))
	}

	var result *Result
	var err error
	if format == "json" {
		result, err = WriteJSON(w, entries, source)
	} else {
		result, err = WriteCSV(w, entries, source)
	}
	if err != nil {
		// Headers are already out; all we can do is log.
		h.logger.Error().Err(err).Str("format", format).Msg("history export failed")
		return
	}

	h.logger.Info().
		Int("entries", result.EntriesExported).
		Str("format", result.Format).
		Str("source", result.Source).
		Msg("history exported")
}
