package main

import (
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/coderelay/internal/adapter/httpserver"
	"github.com/pscheid92/coderelay/internal/adapter/metrics"
	"github.com/pscheid92/coderelay/internal/platform/config"
	"github.com/pscheid92/coderelay/internal/platform/logging"
	"github.com/pscheid92/coderelay/internal/platform/version"
	"github.com/pscheid92/coderelay/internal/relay"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// waitForShutdown blocks until SIGINT or SIGTERM, or until the listener
// fails, and then runs the ordered shutdown.
func waitForShutdown(coordinator *relay.Coordinator, serverErr <-chan error) int {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		slog.Info("Shutdown signal received, closing connections", "signal", sig.String())
		return coordinator.Run()
	case err := <-serverErr:
		slog.Error("Server error", "error", err)
		coordinator.Run()
		return 1
	}
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	info := version.Get("relay")
	slog.Info("Relay starting", "env", cfg.AppEnv, "port", cfg.Port, "version", info.Version, "commit", info.Commit)

	registry := metrics.NewRegistry()
	relayMetrics := metrics.NewRelayMetrics(registry)

	hub := relay.NewHub(relay.Options{
		LivenessInterval: cfg.LivenessInterval,
		CloseGrace:       cfg.CloseGrace,
		SendBuffer:       cfg.SendBuffer,
		Clock:            clock,
		Metrics:          relayMetrics,
	})

	srv := httpserver.NewServer(cfg, hub, registry, clock)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	coordinator := relay.NewCoordinator(hub, cfg.ShutdownTimeout, clock, os.Exit, srv)
	os.Exit(waitForShutdown(coordinator, serverErr))
}
