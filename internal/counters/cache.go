package counters

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const cacheKeyPrefix = "counterdata:"

// CachedService is a read-through Redis cache in front of another Service.
// Concurrent misses for the same query share one backend call.
type CachedService struct {
	next    Service
	client  *pkgredis.Client
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewCachedService wraps next. m may be nil.
func NewCachedService(next Service, client *pkgredis.Client, cfg config.RedisConfig, m *metrics.Metrics) *CachedService {
	return &CachedService{
		next:    next,
		client:  client,
		ttl:     cfg.CacheTTL,
		metrics: m,
		logger:  slog.Default().With("component", "counter-cache"),
	}
}

func (c *CachedService) GetCounterData(ctx context.Context, names []string, start, end *time.Time) (AggregateData, error) {
	key := buildCacheKey(names, start, end)
	if data, ok := c.get(ctx, key); ok {
		c.recordHit()
		return project(data, names), nil
	}
	c.recordMiss()

	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if data, ok := c.get(ctx, key); ok {
			return data, nil
		}
		data, err := c.next.GetCounterData(ctx, names, start, end)
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return project(val.(AggregateData), names), nil
}

// Invalidate drops every cached query.
func (c *CachedService) Invalidate(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, cacheKeyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating counter cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *CachedService) get(ctx context.Context, key string) (AggregateData, bool) {
	raw, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	var data AggregateData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return nil, false
	}
	return data, true
}

func (c *CachedService) set(ctx context.Context, key string, data AggregateData) {
	raw, err := json.Marshal(data)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

func (c *CachedService) recordHit() {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *CachedService) recordMiss() {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// project returns a fresh map holding exactly the requested names, so callers
// never share slices with the singleflight result or see foreign keys.
func project(data AggregateData, names []string) AggregateData {
	out := newAggregate(names)
	for _, name := range names {
		if points, ok := data[name]; ok {
			out[name] = append([]DataPoint{}, points...)
		}
	}
	return out
}

// buildCacheKey hashes the query after sorting and deduplicating names; the
// result does not depend on name order.
func buildCacheKey(names []string, start, end *time.Time) string {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	unique := sorted[:0]
	for _, name := range sorted {
		if len(unique) == 0 || name != unique[len(unique)-1] {
			unique = append(unique, name)
		}
	}
	raw := fmt.Sprintf("%s|%s|%s", strings.Join(unique, "\x00"), dateArgString(start), dateArgString(end))
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", cacheKeyPrefix, hash[:16])
}

func dateArgString(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(DayLayout)
}
