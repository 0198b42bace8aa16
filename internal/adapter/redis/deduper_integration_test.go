package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_Connects(t *testing.T) {
	client := setupTestClient(t)

	require.NoError(t, client.Ping(context.Background()).Err())
}

func TestNewClient_RejectsInvalidURL(t *testing.T) {
	_, err := NewClient(context.Background(), "://not-a-url")
	assert.Error(t, err)
}

func TestDeduper_SeenAfterRecord(t *testing.T) {
	client := setupTestClient(t)
	d := NewDeduper(client, time.Minute)
	ctx := context.Background()

	seen, err := d.Seen(ctx, "ABC123")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, d.Record(ctx, "ABC123"))

	seen, err = d.Seen(ctx, "ABC123")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = d.Seen(ctx, "OTHER")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestDeduper_KeyExpiresWithWindow(t *testing.T) {
	client := setupTestClient(t)
	d := NewDeduper(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, d.Record(ctx, "ABC123"))

	ttl, err := client.TTL(ctx, "coderelay:sent:ABC123").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestDeduper_SharedBetweenInstances(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	first := NewDeduper(client, time.Minute)
	second := NewDeduper(client, time.Minute)

	require.NoError(t, first.Record(ctx, "SHARED"))

	seen, err := second.Seen(ctx, "SHARED")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestDeduper_ExpiredCodeIsNotSeen(t *testing.T) {
	client := setupTestClient(t)
	d := NewDeduper(client, 100*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, d.Record(ctx, "SHORT"))

	require.Eventually(t, func() bool {
		seen, err := d.Seen(ctx, "SHORT")
		return err == nil && !seen
	}, 2*time.Second, 20*time.Millisecond)
}
