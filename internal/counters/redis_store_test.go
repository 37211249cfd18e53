package counters

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/errors"
	pkgredis "github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/redis"
)

func newTestRedis(t *testing.T) (*pkgredis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := pkgredis.NewClient(config.RedisConfig{Addr: mr.Addr(), PoolSize: 2, CacheTTL: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func day(s string) time.Time {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func dayPtr(s string) *time.Time {
	t := day(s)
	return &t
}

func TestRedisStoreIncrementAndRead(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	require.NoError(t, store.Increment(ctx, "page/view", 2, day("2020-01-01").Add(5*time.Hour)))
	require.NoError(t, store.Increment(ctx, "page/view", 1, day("2020-01-01").Add(20*time.Hour)))
	require.NoError(t, store.Increment(ctx, "page/view", 7, day("2020-01-03")))
	require.NoError(t, store.Increment(ctx, "page/view", 4, day("2020-02-01")))

	data, err := store.GetCounterData(ctx, []string{"page/view", "api/call"}, dayPtr("2020-01-01"), dayPtr("2020-01-31"))
	require.NoError(t, err)

	assert.Equal(t, []DataPoint{
		{Timestamp: day("2020-01-01").Unix(), Value: 3},
		{Timestamp: day("2020-01-03").Unix(), Value: 7},
	}, data["page/view"])
	assert.Equal(t, []DataPoint{}, data["api/call"])

	body, err := json.Marshal(data)
	require.NoError(t, err)
	assert.JSONEq(t, `{"api/call":[],"page/view":[[1577836800,3],[1578009600,7]]}`, string(body))
}

func TestRedisStoreIncrementAll(t *testing.T) {
	client, mr := newTestRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	require.NoError(t, store.IncrementAll(ctx, []string{"a", "b"}, 3, day("2020-01-01")))
	assert.Equal(t, "3", mr.HGet("counter:a", "2020-01-01"))
	assert.Equal(t, "3", mr.HGet("counter:b", "2020-01-01"))

	err := store.IncrementAll(ctx, []string{"c", ""}, 1, day("2020-01-01"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.False(t, mr.Exists("counter:c"))
}

func TestRedisStoreOpenRange(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	for _, d := range []string{"2019-12-31", "2020-01-15", "2020-03-01"} {
		require.NoError(t, store.Increment(ctx, "x", 1, day(d)))
	}

	all, err := store.GetCounterData(ctx, []string{"x"}, nil, nil)
	require.NoError(t, err)
	assert.Len(t, all["x"], 3)

	fromJan, err := store.GetCounterData(ctx, []string{"x"}, dayPtr("2020-01-01"), nil)
	require.NoError(t, err)
	assert.Len(t, fromJan["x"], 2)

	untilJan, err := store.GetCounterData(ctx, []string{"x"}, nil, dayPtr("2020-01-15"))
	require.NoError(t, err)
	assert.Len(t, untilJan["x"], 2)
}

func TestRedisStoreEmptyNames(t *testing.T) {
	client, _ := newTestRedis(t)
	data, err := NewRedisStore(client).GetCounterData(context.Background(), []string{}, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestRedisStoreSkipsForeignFields(t *testing.T) {
	client, mr := newTestRedis(t)
	mr.HSet("counter:x", "2020-01-01", "5")
	mr.HSet("counter:x", "not-a-day", "9")

	data, err := NewRedisStore(client).GetCounterData(context.Background(), []string{"x"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []DataPoint{{Timestamp: 1577836800, Value: 5}}, data["x"])
}

func TestRedisStoreRejectsEmptyName(t *testing.T) {
	client, _ := newTestRedis(t)
	err := NewRedisStore(client).Increment(context.Background(), "", 1, time.Now())
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestRedisStoreNamesAndDays(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	require.NoError(t, store.Increment(ctx, "b", 1, day("2020-01-01")))
	require.NoError(t, store.Increment(ctx, "a", 2, day("2020-01-02")))
	require.NoError(t, store.Increment(ctx, "a", 3, day("2020-01-03")))

	names, err := store.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	days, err := store.Days(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"2020-01-02": 2, "2020-01-03": 3}, days)
}

func TestDataPointJSON(t *testing.T) {
	var p DataPoint
	require.NoError(t, json.Unmarshal([]byte(`[1577836800, 12]`), &p))
	assert.Equal(t, DataPoint{Timestamp: 1577836800, Value: 12}, p)
	assert.Error(t, json.Unmarshal([]byte(`{"t":1}`), &p))
}
