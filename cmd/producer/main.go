package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/coderelay/internal/adapter/redis"
	"github.com/pscheid92/coderelay/internal/domain"
	"github.com/pscheid92/coderelay/internal/platform/config"
	"github.com/pscheid92/coderelay/internal/platform/logging"
	"github.com/pscheid92/coderelay/internal/producer"
)

func setupConfig() *config.ProducerConfig {
	cfg, err := config.LoadProducer()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// setupDeduper returns the in-memory window, shared through Redis when
// REDIS_URL is set. An unreachable Redis degrades to the local window.
func setupDeduper(ctx context.Context, cfg *config.ProducerConfig, clock clockwork.Clock) (domain.Deduper, func()) {
	local := producer.NewMemoryDeduper(cfg.DedupeWindow, clock)
	if cfg.RedisURL == "" {
		return local, func() {}
	}

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, err := redis.NewClient(connectCtx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis, deduplicating locally", "error", err)
		return local, func() {}
	}

	shared := redis.NewDeduper(client, cfg.DedupeWindow)
	return redis.NewFallbackDeduper(shared, local), func() { _ = client.Close() }
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Producer starting", "relay_url", cfg.RelayURL, "producer_id", cfg.ProducerID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deduper, closeDeduper := setupDeduper(ctx, cfg, clock)
	defer closeDeduper()

	client := producer.NewClient(producer.ClientOptions{
		URL:            cfg.RelayURL,
		ID:             cfg.ProducerID,
		ReconnectDelay: cfg.ReconnectDelay,
		DialTimeout:    cfg.DialTimeout,
		Deduper:        deduper,
		Clock:          clock,
	})

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := client.Run(runCtx); err != nil {
			slog.Error("Producer client stopped", "error", err)
		}
	}()

	// Scan blocks on stdin, so a signal must not wait for Watch to return.
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		if err := producer.Watch(runCtx, os.Stdin, client); err != nil {
			slog.Error("Failed to read chat messages", "error", err)
		}
	}()

	select {
	case <-watchDone:
		slog.Info("Chat input closed")
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	}

	cancel()
	<-done
	slog.Info("Producer stopped")
}
