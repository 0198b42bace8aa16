package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/pscheid92/coderelay/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "coderelay:sent:"

// Deduper shares the recently-sent window between producer processes.
// Each sent code is a key that expires after the window.
type Deduper struct {
	rdb    *goredis.Client
	window time.Duration
}

var _ domain.Deduper = (*Deduper)(nil)

func NewDeduper(rdb *goredis.Client, window time.Duration) *Deduper {
	return &Deduper{rdb: rdb, window: window}
}

func (d *Deduper) Seen(ctx context.Context, code string) (bool, error) {
	n, err := d.rdb.Exists(ctx, sentKey(code)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check sent code: %w", err)
	}
	return n > 0, nil
}

// Record marks code as sent, restarting its window if it was already present.
func (d *Deduper) Record(ctx context.Context, code string) error {
	args := goredis.SetArgs{TTL: d.window}
	if err := d.rdb.SetArgs(ctx, sentKey(code), "1", args).Err(); err != nil {
		return fmt.Errorf("failed to record sent code: %w", err)
	}
	return nil
}

func sentKey(code string) string {
	return keyPrefix + code
}
