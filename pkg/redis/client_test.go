package redis

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/config"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewClient(config.RedisConfig{Addr: mr.Addr(), PoolSize: 2})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestNewClientFailsWithoutServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewClient(config.RedisConfig{Addr: addr})
	assert.Error(t, err)
}

func TestGetSetAndNil(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	_, err := c.Get(ctx, "absent")
	assert.True(t, IsNilError(err))

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
	assert.Equal(t, time.Minute, mr.TTL("k"))
}

func TestHashCounters(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	n, err := c.HIncrBy(ctx, "counter:a", "2024-01-01", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	n, err = c.HIncrBy(ctx, "counter:a", "2024-01-01", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	all, err := c.HGetAll(ctx, "counter:a")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"2024-01-01": "5"}, all)

	many, err := c.HGetAllMany(ctx, []string{"counter:a", "counter:missing"})
	require.NoError(t, err)
	require.Len(t, many, 2)
	assert.Equal(t, "5", many[0]["2024-01-01"])
	assert.Empty(t, many[1])
}

func TestHIncrByEach(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.HIncrByEach(ctx, []string{"counter:a", "counter:b", "counter:a"}, "2024-01-01", 2))
	assert.Equal(t, "4", mr.HGet("counter:a", "2024-01-01"))
	assert.Equal(t, "2", mr.HGet("counter:b", "2024-01-01"))
	assert.NoError(t, c.HIncrByEach(ctx, nil, "2024-01-01", 1))
}

func TestScanAndFlushByPattern(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	mr.Set("cache:1", "x")
	mr.Set("cache:2", "y")
	mr.Set("other", "z")

	keys, err := c.ScanKeys(ctx, "cache:*")
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"cache:1", "cache:2"}, keys)

	deleted, err := c.FlushByPattern(ctx, "cache:*")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	assert.True(t, mr.Exists("other"))
	assert.False(t, mr.Exists("cache:1"))
}
