package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	zlog "github.com/rs/zerolog/log"

	"sysobs/pkg/collector"
	"sysobs/pkg/config"
	"sysobs/pkg/export"
	applog "sysobs/pkg/log"
	"sysobs/pkg/retention"
	"sysobs/pkg/server"
	"sysobs/pkg/server/monitor"
)

const (
	serverReadTimeout  = 10 * time.Second
	serverWriteTimeout = 10 * time.Second
	shutdownTimeout    = 30 * time.Second
	taskDrainTimeout   = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "sysobs.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Err(err).Str("path", *configPath).Msg("invalid configuration")
	}

	logger := applog.Setup(cfg.Debug)
	logger.Info().Str("config", *configPath).Msg("starting sysobs server")

	// Persistent history tier. Both are nil when persistence is disabled.
	store, storageMonitor, err := server.InitializeStore(cfg, applog.Component(logger, "history"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open history store")
	}
	if store != nil {
		defer store.Close()
	}

	engine := retention.NewEngine(
		cfg.ConsolidationLimit,
		cfg.RecentHistorySize,
		store,
		applog.Component(logger, "retention"),
	)

	src := collector.New(applog.Component(logger, "collector"))
	interval := time.Duration(cfg.UpdateFrequencySeconds) * time.Second
	samplerMonitor := monitor.NewSamplerMonitor(interval)

	hub := server.NewHub(applog.Component(logger, "ws"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		server.RunSampler(ctx, src, engine, hub, samplerMonitor, interval, applog.Component(logger, "sampler"))
	}()
	logger.Info().Dur("interval", interval).Int("consolidation_limit", cfg.ConsolidationLimit).Msg("sampler started")

	// Value log GC for the badger backend; no-op otherwise.
	stopGC := make(chan struct{})
	wg.Add(1)
	go server.RunBadgerGC(store, stopGC, &wg, applog.Component(logger, "badger-gc"))

	exportHandler := export.NewHandler(engine, applog.Component(logger, "export"))

	router := mux.NewRouter()
	server.SetupRoutes(router, engine, exportHandler, storageMonitor, samplerMonitor, hub, listenPort(cfg.ListenAddr))

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
	}

	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutdown signal received")

	// Stop background tasks before waiting on them.
	cancel()
	close(stopGC)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http server shutdown")
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info().Msg("all background tasks stopped")
	case <-time.After(taskDrainTimeout):
		logger.Warn().Msg("some background tasks did not stop in time")
	}

	logger.Info().Msg("sysobs server exited")
}

// listenPort extracts the port from a listen address for CORS origin checks.
func listenPort(addr string) string {
	_, port, err := net.SplitHostPort(addr)
	if err != nil || port == "" {
		return "8080"
	}
	return port
}
