// Package export writes consolidated history as downloadable JSON or CSV.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"sysobs/pkg/stats"
)

// csvHeader defines the flattened per-entry columns. Keyed lists
// (filesystems, interfaces) are summed into totals so every entry fits one
// row regardless of how many mounts or NICs the host has.
var csvHeader = []string{
	"timestamp",
	"uptime_seconds",
	"load_1m",
	"load_5m",
	"load_15m",
	"cpu_load_percent",
	"cpu_temp_celsius",
	"memory_used_mb",
	"memory_total_mb",
	"fs_used_mb",
	"fs_total_mb",
	"net_sent_mb",
	"net_received_mb",
	"tcp_in_use",
	"udp_in_use",
}

// Result contains stats about a completed export.
type Result struct {
	EntriesExported int       `json:"entries_exported"`
	Source          string    `json:"source"`
	Format          string    `json:"format"`
	ExportedAt      time.Time `json:"exported_at"`
}

// WriteJSON writes history entries as a JSON document with export metadata.
func WriteJSON(w io.Writer, entries []stats.Snapshot, source string) (*Result, error) {
	exportedAt := time.Now()

	doc := struct {
		Metadata struct {
			ExportedAt time.Time `json:"exportedAt"`
			Source     string    `json:"source"`
			EntryCount int       `json:"entryCount"`
			Version    string    `json:"version"`
		} `json:"metadata"`
		Entries []stats.Snapshot `json:"entries"`
	}{
		Entries: entries,
	}
	doc.Metadata.ExportedAt = exportedAt
	doc.Metadata.Source = source
	doc.Metadata.EntryCount = len(entries)
	doc.Metadata.Version = "1.0"

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode JSON export: %w", err)
	}

	return &Result{
		EntriesExported: len(entries),
		Source:          source,
		Format:          "json",
		ExportedAt:      exportedAt,
	}, nil
}

// WriteCSV writes history entries as CSV, one flattened row per entry.
func WriteCSV(w io.Writer, entries []stats.Snapshot, source string) (*Result, error) {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write CSV header: %w", err)
	}

	for _, entry := range entries {
		if err := writer.Write(csvRow(entry)); err != nil {
			return nil, fmt.Errorf("write CSV row: %w", err)
		}
	}
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush CSV: %w", err)
	}

	return &Result{
		EntriesExported: len(entries),
		Source:          source,
		Format:          "csv",
		ExportedAt:      time.Now(),
	}, nil
}

func csvRow(entry stats.Snapshot) []string {
	var fsUsed, fsTotal uint64
	for _, m := range entry.Filesystems {
		fsUsed += m.UsedMB
		fsTotal += m.TotalMB
	}

	var sentMB, receivedMB uint64
	for _, iface := range entry.Network.Interfaces {
		sentMB += iface.SentMB
		receivedMB += iface.ReceivedMB
	}

	return []string{
		entry.CollectionTime.Format(time.RFC3339),
		strconv.FormatUint(entry.General.UptimeSeconds, 10),
		formatFloat(entry.General.LoadAverages.OneMinute),
		formatFloat(entry.General.LoadAverages.FiveMinutes),
		formatFloat(entry.General.LoadAverages.FifteenMinutes),
		formatFloat(entry.CPU.AggregateLoadPercent),
		formatFloat(entry.CPU.TempCelsius),
		strconv.FormatUint(entry.Memory.UsedMB, 10),
		strconv.FormatUint(entry.Memory.TotalMB, 10),
		strconv.FormatUint(fsUsed, 10),
		strconv.FormatUint(fsTotal, 10),
		strconv.FormatUint(sentMB, 10),
		strconv.FormatUint(receivedMB, 10),
		strconv.FormatUint(entry.Network.Sockets.TCPInUse, 10),
		strconv.FormatUint(entry.Network.Sockets.UDPInUse, 10),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
