package counters

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	pkgredis "github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/redis"
)

const counterKeyPrefix = "counter:"

// RedisStore keeps one hash per counter, "counter:<name>", whose fields are
// day buckets and whose values are that day's total.
type RedisStore struct {
	client *pkgredis.Client
	logger *slog.Logger
}

func NewRedisStore(client *pkgredis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		logger: slog.Default().With("component", "counter-redis-store"),
	}
}

func counterKey(name string) string {
	return counterKeyPrefix + name
}

func (s *RedisStore) Increment(ctx context.Context, name string, delta int64, at time.Time) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	total, err := s.client.HIncrBy(ctx, counterKey(name), DayKey(at), delta)
	if err != nil {
		return fmt.Errorf("incrementing counter %s: %w", name, err)
	}
	s.logger.Debug("counter incremented", "counter", name, "day", DayKey(at), "total", total)
	return nil
}

// IncrementAll increments every name in one Redis transaction.
func (s *RedisStore) IncrementAll(ctx context.Context, names []string, delta int64, at time.Time) error {
	keys := make([]string, len(names))
	for i, name := range names {
		if err := ValidateName(name); err != nil {
			return err
		}
		keys[i] = counterKey(name)
	}
	if err := s.client.HIncrByEach(ctx, keys, DayKey(at), delta); err != nil {
		return fmt.Errorf("incrementing %d counters: %w", len(names), err)
	}
	s.logger.Debug("counters incremented", "counters", len(names), "day", DayKey(at))
	return nil
}

func (s *RedisStore) GetCounterData(ctx context.Context, names []string, start, end *time.Time) (AggregateData, error) {
	data := newAggregate(names)
	if len(names) == 0 {
		return data, nil
	}

	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = counterKey(name)
	}
	hashes, err := s.client.HGetAllMany(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("reading counters: %w", err)
	}

	for i, name := range names {
		points, err := pointsFromDays(hashes[i], start, end)
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", name, err)
		}
		data[name] = points
	}
	return data, nil
}

// Days returns every stored day total for name.
func (s *RedisStore) Days(ctx context.Context, name string) (map[string]int64, error) {
	raw, err := s.client.HGetAll(ctx, counterKey(name))
	if err != nil {
		return nil, fmt.Errorf("reading counter %s: %w", name, err)
	}
	days := make(map[string]int64, len(raw))
	for day, v := range raw {
		value, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.logger.Warn("skipping malformed bucket", "counter", name, "day", day, "value", v)
			continue
		}
		days[day] = value
	}
	return days, nil
}

// Names lists every stored counter, sorted.
func (s *RedisStore) Names(ctx context.Context) ([]string, error) {
	keys, err := s.client.ScanKeys(ctx, counterKeyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("listing counters: %w", err)
	}
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		names = append(names, strings.TrimPrefix(key, counterKeyPrefix))
	}
	sort.Strings(names)
	return names, nil
}
