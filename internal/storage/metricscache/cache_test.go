package metricscache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	DeletePrefix(ctx context.Context, prefix string) error
	Close() error
}

type cachedMetric struct {
	Value decimal.Decimal `json:"value"`
}

func newRedisCache(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	return NewRedisWithClient(client, "test:", time.Minute), mr
}

func TestCaches(t *testing.T) {
	redisCache, _ := newRedisCache(t)

	caches := map[string]cache{
		"memory": NewMemory(time.Minute),
		"redis":  redisCache,
	}

	for name, c := range caches {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			defer c.Close()

			var got cachedMetric
			found, err := c.Get(ctx, "twr:7d", &got)
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, c.Set(ctx, "twr:7d", cachedMetric{Value: decimal.RequireFromString("0.05")}))
			require.NoError(t, c.Set(ctx, "pnl:7d", cachedMetric{Value: decimal.NewFromInt(500)}))
			require.NoError(t, c.Set(ctx, "balances", cachedMetric{Value: decimal.NewFromInt(1)}))

			found, err = c.Get(ctx, "twr:7d", &got)
			require.NoError(t, err)
			require.True(t, found)
			assert.True(t, got.Value.Equal(decimal.RequireFromString("0.05")))

			require.NoError(t, c.DeletePrefix(ctx, "twr:"))

			found, err = c.Get(ctx, "twr:7d", &got)
			require.NoError(t, err)
			assert.False(t, found)

			found, err = c.Get(ctx, "pnl:7d", &got)
			require.NoError(t, err)
			assert.True(t, found)

			found, err = c.Get(ctx, "balances", &got)
			require.NoError(t, err)
			assert.True(t, found)
		})
	}
}

func TestMemory_Expires(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory(time.Minute)
	m.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "balances", cachedMetric{Value: decimal.NewFromInt(1)}))

	now = now.Add(2 * time.Minute)

	var got cachedMetric
	found, err := m.Get(ctx, "balances", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemory_DeleteExpiredKeepsReplacedEntry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory(time.Minute)
	m.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "twr:days:0", cachedMetric{Value: decimal.NewFromInt(1)}))
	now = now.Add(2 * time.Minute)
	require.NoError(t, m.Set(ctx, "twr:days:0", cachedMetric{Value: decimal.NewFromInt(2)}))

	m.deleteExpired("twr:days:0")

	var got cachedMetric
	found, err := m.Get(ctx, "twr:days:0", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, got.Value.Equal(decimal.NewFromInt(2)))

	now = now.Add(2 * time.Minute)
	m.deleteExpired("twr:days:0")
	assert.Empty(t, m.entries)
}

func TestRedis_TTL(t *testing.T) {
	c, mr := newRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "balances", cachedMetric{Value: decimal.NewFromInt(1)}))
	mr.FastForward(2 * time.Minute)

	var got cachedMetric
	found, err := c.Get(ctx, "balances", &got)
	require.NoError(t, err)
	assert.False(t, found)
}
