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

// redisAddr returns REDIS_TEST_ADDR or skips the test.
func redisAddr(t *testing.T) string {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	return addr
}

func TestNewRedisClient_EmptyAddr(t *testing.T) {
	c, err := NewRedisClient(context.Background(), RedisOptions{})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestRedisCacheAndLocker(t *testing.T) {
	ctx := context.Background()
	client, err := NewRedisClient(ctx, RedisOptions{Addr: redisAddr(t)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	prefix := "test:" + uuid.NewString() + ":"
	c := NewRedisCache(client, prefix)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", string(got))
	require.NoError(t, c.Delete(ctx, "k"))
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	l := NewRedisLocker(client, prefix)
	unlock, err := l.Lock(ctx, "lock", 5*time.Second)
	require.NoError(t, err)

	tctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, err = l.Lock(tctx, "lock", 5*time.Second)
	assert.ErrorIs(t, err, ErrLockTimeout)

	unlock()
	unlock2, err := l.Lock(ctx, "lock", 5*time.Second)
	require.NoError(t, err)
	unlock2()
}
