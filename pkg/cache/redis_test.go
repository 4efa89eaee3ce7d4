package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestCache connects to REDIS_ADDR and skips when no server is reachable.
func newTestCache(t *testing.T) *Cache {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := New(ctx, WithAddress(addr), WithDB(15))
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCache_GetSet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	type row struct {
		Name  string   `json:"name"`
		Score *float64 `json:"score"`
	}
	score := 4.25
	require.NoError(t, c.Set(ctx, "test:cache:row", []row{{Name: "Dr. Rao", Score: &score}}, time.Minute))

	var got []row
	require.NoError(t, c.Get(ctx, "test:cache:row", &got))
	require.Len(t, got, 1)
	assert.Equal(t, 4.25, *got[0].Score)

	err := c.Get(ctx, "test:cache:missing", &got)
	assert.True(t, errors.Is(err, redis.Nil))
}

func TestCache_DeletePrefix(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	for _, k := range []string{"test:purge:a", "test:purge:b", "test:keep:a"} {
		require.NoError(t, c.Set(ctx, k, 1, time.Minute))
	}

	n, err := c.DeletePrefix(ctx, "test:purge:")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var v int
	assert.ErrorIs(t, c.Get(ctx, "test:purge:a", &v), redis.Nil)
	require.NoError(t, c.Get(ctx, "test:keep:a", &v))
	assert.Equal(t, 1, v)
}

func TestNew_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_, err := New(ctx, WithAddress("127.0.0.1:1"))
	assert.Error(t, err)
}
