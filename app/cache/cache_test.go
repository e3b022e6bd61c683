package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCache(t *testing.T) *Cache {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	c := NewCache(addr, os.Getenv("TEST_REDIS_PASSWORD"))
	if err := c.Ping(context.Background()); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestGetMiss(t *testing.T) {
	c := testCache(t)
	_, err := c.Get(context.Background(), "test", uuid.NewString())
	assert.ErrorIs(t, err, ErrMiss)
}

func TestSetGet(t *testing.T) {
	c := testCache(t)
	ctx := context.Background()
	key := uuid.NewString()

	require.NoError(t, c.Set(ctx, "test", key, "v", time.Minute))
	v, err := c.Get(ctx, "test", key)
	require.NoError(t, err)
	assert.Equal(t, "v", v)
	require.NoError(t, c.Delete(ctx, "test", key))
}

func TestLimiter(t *testing.T) {
	c := testCache(t)
	l := NewLimiter(c, "test_rate", time.Hour, 2)
	key := uuid.NewString()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(context.Background(), key)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, ok)
}
