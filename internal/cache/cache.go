// Package cache provides a two-tier cache for scored results: an
// in-process LRU in front of an optional shared Redis tier. Entries are
// keyed by a digest of the canonical patient input, so identical inputs
// reuse the same result.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/obiboss/ckd/internal/domain"
)

const keyPrefix = "ckd:result:"

// Stats counts cache effectiveness per tier.
type Stats struct {
	MemoryHits  uint64 `json:"memory_hits"`
	RedisHits   uint64 `json:"redis_hits"`
	Misses      uint64 `json:"misses"`
	RedisErrors uint64 `json:"redis_errors"`
}

// ResultCache is the two-tier result cache. The Redis tier is optional
// and its failures degrade to misses rather than errors.
type ResultCache struct {
	logger *logrus.Logger
	memory *lru.Cache[string, *domain.RiskResult]
	redis  *redis.Client
	ttl    time.Duration

	memoryHits  atomic.Uint64
	redisHits   atomic.Uint64
	misses      atomic.Uint64
	redisErrors atomic.Uint64
}

// New creates a result cache from configuration. A Redis connection is
// only attempted when cfg.RedisURL is set.
func New(logger *logrus.Logger, cfg domain.CacheConfig) (*ResultCache, error) {
	maxItems := cfg.MaxItems
	if maxItems <= 0 {
		maxItems = 1024
	}

	memory, err := lru.New[string, *domain.RiskResult](maxItems)
	if err != nil {
		return nil, fmt.Errorf("creating memory cache: %w", err)
	}

	c := &ResultCache{
		logger: logger,
		memory: memory,
		ttl:    cfg.TTL,
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing Redis URL: %w", err)
		}
		client := redis.NewClient(opts)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connecting to Redis: %w", err)
		}

		c.redis = client
		logger.Info("Redis result cache tier enabled")
	}

	return c, nil
}

// Key derives the cache key for a patient input. The input is marshaled
// with encoding/json, whose fixed struct field order makes the digest
// canonical for equal inputs.
func Key(input *domain.PatientInput) (string, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("marshaling input for digest: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// Get returns the cached result for the key, or nil on a miss.
func (c *ResultCache) Get(ctx context.Context, key string) *domain.RiskResult {
	if result, ok := c.memory.Get(key); ok {
		c.memoryHits.Add(1)
		return result
	}

	if c.redis != nil {
		val, err := c.redis.Get(ctx, keyPrefix+key).Result()
		switch {
		case err == redis.Nil:
			// fall through to miss
		case err != nil:
			c.redisErrors.Add(1)
			c.logger.WithError(err).Warn("Redis cache read failed")
		default:
			var result domain.RiskResult
			if err := json.Unmarshal([]byte(val), &result); err != nil {
				c.redisErrors.Add(1)
				c.logger.WithError(err).Warn("Discarding corrupt Redis cache entry")
			} else {
				c.redisHits.Add(1)
				c.memory.Add(key, &result)
				return &result
			}
		}
	}

	c.misses.Add(1)
	return nil
}

// Put stores the result in both tiers.
func (c *ResultCache) Put(ctx context.Context, key string, result *domain.RiskResult) {
	c.memory.Add(key, result)

	if c.redis == nil {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		c.logger.WithError(err).Warn("Could not marshal result for Redis cache")
		return
	}
	if err := c.redis.Set(ctx, keyPrefix+key, payload, c.ttl).Err(); err != nil {
		c.redisErrors.Add(1)
		c.logger.WithError(err).Warn("Redis cache write failed")
	}
}

// Stats returns a snapshot of the hit and miss counters.
func (c *ResultCache) Stats() Stats {
	return Stats{
		MemoryHits:  c.memoryHits.Load(),
		RedisHits:   c.redisHits.Load(),
		Misses:      c.misses.Load(),
		RedisErrors: c.redisErrors.Load(),
	}
}

// Close releases the Redis connection if one was opened.
func (c *ResultCache) Close() error {
	if c.redis != nil {
		return c.redis.Close()
	}
	return nil
}
