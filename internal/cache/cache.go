// Package cache is a Redis-backed TTL cache in front of the profile
// store, with per-document-type expirations and hit/miss accounting.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Document types understood by the cache. TTLs differ because edit
// status changes far more often than the documents themselves.
const (
	TypeUser       = "user"
	TypeStation    = "station"
	TypeEditStatus = "editStatus"
)

// ErrMiss is returned by Get when the key is absent.
var ErrMiss = errors.New("cache miss")

type Config struct {
	Addr          string
	Password      string
	DB            int
	UserTTL       time.Duration
	StationTTL    time.Duration
	EditStatusTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		Addr:          "localhost:6379",
		UserTTL:       10 * time.Minute,
		StationTTL:    5 * time.Minute,
		EditStatusTTL: 30 * time.Second,
	}
}

// Stats are monotonically increasing operation counters.
type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Sets    int64 `json:"sets"`
	Deletes int64 `json:"deletes"`
}

// HitRate reports hits over total lookups as a percentage.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Cache wraps a Redis client with typed keys and TTLs.
type Cache struct {
	client *redis.Client
	cfg    Config

	hits    atomic.Int64
	misses  atomic.Int64
	sets    atomic.Int64
	deletes atomic.Int64
}

func New(cfg Config) *Cache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Cache{client: client, cfg: cfg}
}

// Ping verifies the Redis connection.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}

// Key builds the canonical cache key for a document type and params.
func Key(docType string, params ...string) string {
	return docType + ":" + strings.Join(params, ":")
}

func (c *Cache) ttlFor(docType string) time.Duration {
	switch docType {
	case TypeUser:
		return c.cfg.UserTTL
	case TypeStation:
		return c.cfg.StationTTL
	case TypeEditStatus:
		return c.cfg.EditStatusTTL
	default:
		return c.cfg.StationTTL
	}
}

// Get loads and decodes a cached value into dest. Returns ErrMiss when
// the key is absent.
func (c *Cache) Get(ctx context.Context, key string, dest any) error {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.misses.Add(1)
		return ErrMiss
	}
	if err != nil {
		c.misses.Add(1)
		return fmt.Errorf("failed to get cache key %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.misses.Add(1)
		return fmt.Errorf("failed to decode cache key %s: %w", key, err)
	}
	c.hits.Add(1)
	return nil
}

// Set stores value under key with the TTL of docType.
func (c *Cache) Set(ctx context.Context, docType, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache key %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, raw, c.ttlFor(docType)).Err(); err != nil {
		return fmt.Errorf("failed to set cache key %s: %w", key, err)
	}
	c.sets.Add(1)
	return nil
}

// Delete removes keys. Missing keys are not an error.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete cache keys: %w", err)
	}
	c.deletes.Add(int64(len(keys)))
	return nil
}

// DeleteByType removes every key of one document type.
func (c *Cache) DeleteByType(ctx context.Context, docType string) error {
	iter := c.client.Scan(ctx, 0, docType+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys for %s: %w", docType, err)
	}
	return c.Delete(ctx, keys...)
}

// GetOrFetch reads through the cache: on a miss (or any cache error) it
// calls fetch and stores the result. A broken cache degrades to direct
// fetches instead of failing the request.
func GetOrFetch[T any](ctx context.Context, c *Cache, docType, key string, fetch func(ctx context.Context) (T, error)) (T, error) {
	var cached T
	err := c.Get(ctx, key, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, ErrMiss) {
		log.Warn().Err(err).Str("key", key).Msg("cache read failed, fetching directly")
	}

	fetched, err := fetch(ctx)
	if err != nil {
		return fetched, err
	}
	if err := c.Set(ctx, docType, key, fetched); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
	return fetched, nil
}

// Stats snapshots the operation counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Sets:    c.sets.Load(),
		Deletes: c.deletes.Load(),
	}
}
