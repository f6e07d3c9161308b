// Package cache keeps the latest scoring run of each submission in a two-tier cache: an optional
// shared Redis instance backed by an in-process LRU. Every failure degrades to a miss.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/coaching-health-scorer/internal/domain"
)

const keyPrefix = "health-scorer"

// CacheStats represents cache performance statistics
type CacheStats struct {
	MemoryHits   int64 `json:"memory_hits"`
	MemoryMisses int64 `json:"memory_misses"`
	RedisHits    int64 `json:"redis_hits"`
	RedisMisses  int64 `json:"redis_misses"`
	ErrorCount   int64 `json:"error_count"`
}

type memoryEntry struct {
	value  interface{}
	expiry time.Time
}

// cachedRun is the Redis representation of one run.
type cachedRun[T any] struct {
	Records  []T       `json:"records"`
	CachedAt time.Time `json:"cached_at"`
}

// ResultCache implements domain.ResultCache.
type ResultCache struct {
	memory *lru.Cache[string, memoryEntry]
	redis  *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
	now    func() time.Time

	statsMu sync.Mutex
	stats   CacheStats
}

// New creates a result cache. An empty RedisURL keeps the cache in memory only.
func New(config domain.CacheConfig, logger *logrus.Logger) (*ResultCache, error) {
	var client *redis.Client
	if config.RedisURL != "" {
		opts, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		if config.PoolSize > 0 {
			opts.PoolSize = config.PoolSize
		}
		if config.PoolTimeout > 0 {
			opts.PoolTimeout = config.PoolTimeout
		}
		if config.MaxRetries > 0 {
			opts.MaxRetries = config.MaxRetries
		}
		client = redis.NewClient(opts)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
	}
	return NewWithClient(client, config, logger)
}

// NewWithClient creates a result cache over an existing Redis client, which may be nil.
func NewWithClient(client *redis.Client, config domain.CacheConfig, logger *logrus.Logger) (*ResultCache, error) {
	size := config.MemoryItems
	if size <= 0 {
		size = 1024
	}
	ttl := config.DefaultTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	memory, err := lru.New[string, memoryEntry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"memory_items": size,
		"ttl":          ttl,
		"redis":        client != nil,
	}).Info("Result cache initialized")

	return &ResultCache{
		memory: memory,
		redis:  client,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}, nil
}

// GetSectionScores returns the cached latest NAQ run of a submission.
func (c *ResultCache) GetSectionScores(ctx context.Context, submissionID string) ([]domain.SectionScoreRecord, bool) {
	return get[domain.SectionScoreRecord](ctx, c, key(domain.ASSESSMENT_NAQ, submissionID))
}

// SetSectionScores caches the latest NAQ run of a submission.
func (c *ResultCache) SetSectionScores(ctx context.Context, submissionID string, records []domain.SectionScoreRecord) {
	set(ctx, c, key(domain.ASSESSMENT_NAQ, submissionID), records)
}

// GetNutrientResults returns the cached latest micronutrient run of a submission.
func (c *ResultCache) GetNutrientResults(ctx context.Context, submissionID string) ([]domain.NutrientResultRecord, bool) {
	return get[domain.NutrientResultRecord](ctx, c, key(domain.ASSESSMENT_MICRONUTRIENT, submissionID))
}

// SetNutrientResults caches the latest micronutrient run of a submission.
func (c *ResultCache) SetNutrientResults(ctx context.Context, submissionID string, records []domain.NutrientResultRecord) {
	set(ctx, c, key(domain.ASSESSMENT_MICRONUTRIENT, submissionID), records)
}

// Stats returns a snapshot of the hit counters.
func (c *ResultCache) Stats() CacheStats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

// Close releases the Redis connection pool.
func (c *ResultCache) Close() error {
	c.memory.Purge()
	if c.redis != nil {
		return c.redis.Close()
	}
	return nil
}

func key(kind domain.AssessmentKind, submissionID string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, kind, submissionID)
}

// get reads Redis first when it is configured, so every replica sees the newest run another replica
// wrote. The memory tier answers alone without Redis, and stands in for it while Redis is failing.
func get[T any](ctx context.Context, c *ResultCache, k string) ([]T, bool) {
	if c.redis == nil {
		return getMemory[T](c, k)
	}

	val, err := c.redis.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		c.memory.Remove(k)
		c.count(func(s *CacheStats) { s.RedisMisses++ })
		return nil, false
	}
	if err != nil {
		c.count(func(s *CacheStats) { s.ErrorCount++ })
		c.logger.WithError(err).WithField("key", k).Warn("Redis read failed, falling back to memory")
		return getMemory[T](c, k)
	}

	var cached cachedRun[T]
	if err := json.Unmarshal(val, &cached); err != nil {
		// Remove corrupted cache entry
		c.redis.Del(ctx, k)
		c.memory.Remove(k)
		c.count(func(s *CacheStats) { s.RedisMisses++ })
		return nil, false
	}

	c.count(func(s *CacheStats) { s.RedisHits++ })
	c.memory.Add(k, memoryEntry{value: cached.Records, expiry: c.now().Add(c.ttl)})
	return cached.Records, true
}

func getMemory[T any](c *ResultCache, k string) ([]T, bool) {
	if entry, ok := c.memory.Get(k); ok {
		if c.now().Before(entry.expiry) {
			if records, ok := entry.value.([]T); ok {
				c.count(func(s *CacheStats) { s.MemoryHits++ })
				return records, true
			}
		}
		c.memory.Remove(k)
	}
	c.count(func(s *CacheStats) { s.MemoryMisses++ })
	return nil, false
}

func set[T any](ctx context.Context, c *ResultCache, k string, records []T) {
	c.memory.Add(k, memoryEntry{value: records, expiry: c.now().Add(c.ttl)})

	if c.redis == nil {
		return
	}
	data, err := json.Marshal(cachedRun[T]{Records: records, CachedAt: c.now().UTC()})
	if err != nil {
		c.count(func(s *CacheStats) { s.ErrorCount++ })
		return
	}
	if err := c.redis.Set(ctx, k, data, c.ttl).Err(); err != nil {
		c.count(func(s *CacheStats) { s.ErrorCount++ })
		c.logger.WithError(err).WithField("key", k).Warn("Redis write failed")
	}
}

func (c *ResultCache) count(update func(*CacheStats)) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	update(&c.stats)
}
