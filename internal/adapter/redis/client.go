package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pscheid92/coderelay/internal/platform/retry"
	goredis "github.com/redis/go-redis/v9"
)

const (
	connectAttempts    = 5
	connectBackoff     = 500 * time.Millisecond
	connectSlowBackoff = 3 * time.Second
)

// NewClient parses redisURL and pings the server until it answers, retrying
// while Redis is unreachable or still loading its dataset.
func NewClient(ctx context.Context, redisURL string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := goredis.NewClient(opts)

	p := retry.Policy{
		MaxAttempts:    connectAttempts,
		InitialBackoff: connectBackoff,
		SlowBackoff:    connectSlowBackoff,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			slog.Warn("Redis not ready, retrying", "attempt", attempt, "backoff_seconds", backoff.Seconds(), "error", err)
		},
	}

	err = retry.DoVoid(ctx, p, classifyPingError, func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return rdb, nil
}

func classifyPingError(err error) retry.Action {
	msg := err.Error()
	switch {
	case strings.HasPrefix(msg, "LOADING"):
		return retry.After
	case strings.HasPrefix(msg, "NOAUTH"), strings.HasPrefix(msg, "WRONGPASS"):
		return retry.Stop
	default:
		return retry.Retry
	}
}
