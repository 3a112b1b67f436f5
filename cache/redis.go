package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dreamsoft-pro/rae/telemetry"
)

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	URL            string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// RedisCache implements ContextCache against a shared Redis instance, so
// multiple service replicas observe the same cache and the same
// invalidation: ParseURL-based dialing, a dial-timeout-bounded Ping on
// construct, and JSON payloads over string keys.
type RedisCache struct {
	client    *redis.Client
	telemetry *telemetry.Instruments

	hits      int64
	misses    int64
	evictions int64
}

// WithTelemetry attaches in as the cache's metrics collaborator, recording
// every Get as a hit or miss in addition to the in-process Stats counters.
// Returns c for chaining at construction time.
func (c *RedisCache) WithTelemetry(in *telemetry.Instruments) *RedisCache {
	c.telemetry = in
	return c
}

const keyPrefix = "rae:ctxcache:"
const scopeSetPrefix = "rae:ctxcache:scope:"

// NewRedisCache dials Redis and verifies connectivity before returning.
func NewRedisCache(opts RedisOptions) (*RedisCache, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 3 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 3 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache: connect to redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

var _ ContextCache = (*RedisCache)(nil)

func scopeSetKey(tenantID, projectID string) string {
	return scopeSetPrefix + tenantID + ":" + projectID
}

func (c *RedisCache) Get(ctx context.Context, fingerprint string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, keyPrefix+fingerprint).Bytes()
	if err == redis.Nil {
		atomic.AddInt64(&c.misses, 1)
		c.telemetry.RecordCacheMiss(ctx)
		return nil, false, nil
	}
	if err != nil {
		// Cache errors degrade to a miss; they never fail the request.
		atomic.AddInt64(&c.misses, 1)
		c.telemetry.RecordCacheMiss(ctx)
		return nil, false, nil
	}
	atomic.AddInt64(&c.hits, 1)
	c.telemetry.RecordCacheHit(ctx)
	return val, true, nil
}

func (c *RedisCache) Put(ctx context.Context, fingerprint string, value []byte, tenantID, projectID string, ttl time.Duration) error {
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, keyPrefix+fingerprint, value, ttl)
	pipe.SAdd(ctx, scopeSetKey(tenantID, projectID), fingerprint)
	pipe.Expire(ctx, scopeSetKey(tenantID, projectID), ttl+time.Minute)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *RedisCache) Invalidate(ctx context.Context, tenantID, projectID string) error {
	if projectID != "" {
		return c.invalidateOne(ctx, tenantID, projectID)
	}

	// Project-wide wildcard invalidation: scan scope-set keys for this
	// tenant. SCAN is used instead of KEYS to avoid blocking Redis on large
	// keyspaces.
	pattern := scopeSetPrefix + tenantID + ":*"
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		setKey := iter.Val()
		if err := c.invalidateSet(ctx, setKey); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (c *RedisCache) invalidateOne(ctx context.Context, tenantID, projectID string) error {
	return c.invalidateSet(ctx, scopeSetKey(tenantID, projectID))
}

func (c *RedisCache) invalidateSet(ctx context.Context, setKey string) error {
	members, err := c.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return err
	}
	if len(members) == 0 {
		return nil
	}

	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = keyPrefix + m
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, keys...)
	pipe.Del(ctx, setKey)
	_, err = pipe.Exec(ctx)
	if err == nil {
		atomic.AddInt64(&c.evictions, int64(len(keys)))
	}
	return err
}

func (c *RedisCache) Stats() Stats {
	return Stats{
		Hits:      atomic.LoadInt64(&c.hits),
		Misses:    atomic.LoadInt64(&c.misses),
		Evictions: atomic.LoadInt64(&c.evictions),
	}
}

// Close releases the underlying Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Start verifies connectivity; the client itself needs no background loop
// since go-redis pools and reconnects internally. Present to satisfy the
// lifecycle contract orchestrator.Engine manages uniformly across cache,
// coordination, and the sweepers.
func (c *RedisCache) Start(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Stop closes the underlying connection pool.
func (c *RedisCache) Stop(ctx context.Context) error {
	return c.client.Close()
}
