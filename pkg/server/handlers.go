package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"sysobs/pkg/export"
	"sysobs/pkg/httpx"
	"sysobs/pkg/retention"
	"sysobs/pkg/server/monitor"
	"sysobs/pkg/stats"
)

var startTime = time.Now()

// StorageUsage represents current history storage usage.
type StorageUsage struct {
	UsedBytes int64 `json:"used_bytes"`
	MaxBytes  int64 `json:"max_bytes"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string                `json:"status"`
	Version     string                `json:"version"`
	Uptime      string                `json:"uptime"`
	Sampler     monitor.SamplerStatus `json:"sampler"`
	Persistence bool                  `json:"persistence_enabled"`
}

// handleSnapshot serves a projection of the most recent raw snapshot. Until
// the sampler produces its first snapshot there is nothing to serve.
func handleSnapshot(engine *retention.Engine, project func(stats.Snapshot) interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, ok := engine.Latest()
		if !ok {
			httpx.RespondErrorString(w, http.StatusServiceUnavailable, "no snapshot collected yet")
			return
		}
		httpx.RespondJSON(w, http.StatusOK, project(snap))
	}
}

// handleRecentHistory serves the consolidated in-memory history window,
// oldest first.
func handleRecentHistory(engine *retention.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.RespondJSON(w, http.StatusOK, engine.RecentWindow())
	}
}

// handlePersistentHistory serves the full on-disk history, oldest first.
func handlePersistentHistory(engine *retention.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := engine.PersistentWindow()
		if err != nil {
			if errors.Is(err, retention.ErrPersistenceDisabled) {
				httpx.RespondError(w, http.StatusNotFound, err)
				return
			}
			httpx.RespondError(w, http.StatusInternalServerError, err)
			return
		}
		httpx.RespondJSON(w, http.StatusOK, entries)
	}
}

// handleHealth returns service health status. The service is degraded when
// the sampler stops producing snapshots.
func handleHealth(engine *retention.Engine, samplerMonitor *monitor.SamplerMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		samplerHealthy := samplerMonitor.IsHealthy()
		overallStatus := "healthy"
		statusCode := http.StatusOK

		if !samplerHealthy {
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		response := HealthResponse{
			Status:      overallStatus,
			Version:     "1.0.0",
			Uptime:      time.Since(startTime).String(),
			Sampler:     samplerMonitor.Status(),
			Persistence: engine.PersistenceEnabled(),
		}

		httpx.RespondJSON(w, statusCode, response)
	}
}

// handleStorageUsage returns current history storage usage.
func handleStorageUsage(storageMonitor *monitor.StorageMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if storageMonitor == nil {
			httpx.RespondErrorString(w, http.StatusNotFound, "history persistence is disabled")
			return
		}

		usedBytes, err := storageMonitor.GetUsage()
		if err != nil {
			httpx.RespondError(w, http.StatusInternalServerError, err)
			return
		}

		usage := StorageUsage{
			UsedBytes: usedBytes,
			MaxBytes:  storageMonitor.GetLimit(),
		}

		httpx.RespondJSON(w, http.StatusOK, usage)
	}
}

// SetupRoutes configures all HTTP routes for the server. storageMonitor is
// nil when history persistence is disabled.
func SetupRoutes(
	router *mux.Router,
	engine *retention.Engine,
	exportHandler *export.Handler,
	storageMonitor *monitor.StorageMonitor,
	samplerMonitor *monitor.SamplerMonitor,
	hub *Hub,
	port string,
) {
	// CORS middleware for API access
	router.Use(corsMiddleware(port))

	// API routes
	api := router.PathPrefix("/v1").Subrouter()

	// Current snapshot, whole and per subsystem
	api.HandleFunc("/stats", handleSnapshot(engine, func(s stats.Snapshot) interface{} { return s })).Methods("GET")
	api.HandleFunc("/stats/general", handleSnapshot(engine, func(s stats.Snapshot) interface{} { return s.General })).Methods("GET")
	api.HandleFunc("/stats/cpu", handleSnapshot(engine, func(s stats.Snapshot) interface{} { return s.CPU })).Methods("GET")
	api.HandleFunc("/stats/memory", handleSnapshot(engine, func(s stats.Snapshot) interface{} { return s.Memory })).Methods("GET")
	api.HandleFunc("/stats/filesystems", handleSnapshot(engine, func(s stats.Snapshot) interface{} { return s.Filesystems })).Methods("GET")
	api.HandleFunc("/stats/network", handleSnapshot(engine, func(s stats.Snapshot) interface{} { return s.Network })).Methods("GET")

	// Consolidated history tiers
	api.HandleFunc("/stats/history/recent", handleRecentHistory(engine)).Methods("GET")
	api.HandleFunc("/stats/history/persistent", handlePersistentHistory(engine)).Methods("GET")

	// Service introspection
	api.HandleFunc("/storage", handleStorageUsage(storageMonitor)).Methods("GET")
	api.HandleFunc("/health", handleHealth(engine, samplerMonitor)).Methods("GET")

	// WebSocket for the live snapshot feed
	api.HandleFunc("/ws", hub.HandleWebSocket()).Methods("GET")

	// History download
	api.HandleFunc("/export", exportHandler.HandleExport).Methods("GET")
}

// corsMiddleware creates CORS middleware that restricts to localhost origins only.
func corsMiddleware(port string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// Allow localhost origins for local development
			allowedOrigins := []string{
				"http://localhost:" + port,
				"http://127.0.0.1:" + port,
				"http://localhost:3000",
				"http://127.0.0.1:3000",
			}

			// Check if origin is allowed
			allowed := false
			for _, allowedOrigin := range allowedOrigins {
				if origin == allowedOrigin {
					allowed = true
					break
				}
			}

			// Only set CORS headers for allowed origins
			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
