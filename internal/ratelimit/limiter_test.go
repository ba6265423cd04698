package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_Window(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(3, time.Minute)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, ok, "call %d", i)
	}
	ok, _ := l.Allow(ctx, "u1")
	assert.False(t, ok)

	// другой ключ считается отдельно
	ok, _ = l.Allow(ctx, "u2")
	assert.True(t, ok)

	now = now.Add(time.Minute)
	ok, _ = l.Allow(ctx, "u1")
	assert.True(t, ok)
}

func TestMemoryLimiter_Prune(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	l := NewMemoryLimiter(1, time.Second)
	l.now = func() time.Time { return now }

	for i := 0; i < 5000; i++ {
		_, _ = l.Allow(ctx, uuid.NewString())
	}
	now = now.Add(2 * time.Second)
	_, _ = l.Allow(ctx, "fresh")

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Len(t, l.windows, 1)
}

func TestUnlimited(t *testing.T) {
	ok, err := Unlimited{}.Allow(context.Background(), "any")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLimiter(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	l := NewRedisLimiter(client, 2, time.Minute)
	key := "test:" + uuid.NewString()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}
