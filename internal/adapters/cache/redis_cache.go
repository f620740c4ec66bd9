package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/reybrally/fulfillment-service/internal/domain/analytics"
)

const (
	defaultPrefix    = "fulfillment:"
	defaultOpTimeout = 2 * time.Second
	scanBatchSize    = 100
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

func (cfg RedisConfig) prefix() string {
	if cfg.Prefix == "" {
		return defaultPrefix
	}
	return cfg.Prefix
}

func NewRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// RedisReportCache stores JSON-encoded reports under <prefix>analytics:<key>.
// Expiry is left to Redis.
type RedisReportCache struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisReportCache(cfg RedisConfig) *RedisReportCache {
	return NewRedisReportCacheWithClient(NewRedisClient(cfg), cfg.Prefix)
}

func NewRedisReportCacheWithClient(rdb *redis.Client, prefix string) *RedisReportCache {
	return &RedisReportCache{rdb: rdb, prefix: RedisConfig{Prefix: prefix}.prefix() + "analytics:"}
}

func (c *RedisReportCache) makeKey(key string) string {
	return c.prefix + key
}

func (c *RedisReportCache) Set(ctx context.Context, key string, r analytics.Report, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, defaultOpTimeout)
	defer cancel()

	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.makeKey(key), data, ttl).Err()
}

func (c *RedisReportCache) Get(ctx context.Context, key string) (analytics.Report, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultOpTimeout)
	defer cancel()

	b, err := c.rdb.Get(ctx, c.makeKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return analytics.Report{}, false, nil
	}
	if err != nil {
		return analytics.Report{}, false, err
	}

	var r analytics.Report
	if err := json.Unmarshal(b, &r); err != nil {
		return analytics.Report{}, false, fmt.Errorf("decode cached report: %w", err)
	}
	return r, true, nil
}

// Clear walks the keyspace with SCAN and deletes matching keys batch by batch.
func (c *RedisReportCache) Clear(ctx context.Context, prefix string) error {
	pattern := c.makeKey(prefix) + "*"
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			return fmt.Errorf("scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("delete cached reports: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (c *RedisReportCache) Close() error {
	return c.rdb.Close()
}

// RedisCodeStore keeps one-time codes under <prefix>otp:<subject>.
type RedisCodeStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisCodeStoreWithClient(rdb *redis.Client, prefix string) *RedisCodeStore {
	return &RedisCodeStore{rdb: rdb, prefix: RedisConfig{Prefix: prefix}.prefix() + "otp:"}
}

func (s *RedisCodeStore) Save(ctx context.Context, subject, code string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, defaultOpTimeout)
	defer cancel()
	return s.rdb.Set(ctx, s.prefix+subject, code, ttl).Err()
}

// Consume deletes the code only when it matches. Of two concurrent matching
// calls only the one whose DEL removed the key succeeds.
func (s *RedisCodeStore) Consume(ctx context.Context, subject, code string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultOpTimeout)
	defer cancel()

	key := s.prefix + subject
	stored, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if stored != code {
		return false, nil
	}
	n, err := s.rdb.Del(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
