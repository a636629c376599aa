/*
Copyright 2024 The Metamist Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/populationgenomics/metamist-sub002/config"
	redis_db "github.com/populationgenomics/metamist-sub002/internal/redis-db"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// ErrMiss is returned by Get when the key is not cached.
var ErrMiss = cache.ErrCacheMiss

// Cache interface provides the basic operations for a cache system.
type Cache interface {
	// Set stores a value in the cache with a specified time-to-live (TTL).
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Get decodes the value stored under key into data. Returns ErrMiss when absent.
	Get(ctx context.Context, key string, data interface{}) error

	// Delete removes a value from the cache based on the provided key.
	Delete(ctx context.Context, key string) error
}

// RedisCache implements Cache with a bounded TinyLFU local tier and an optional Redis tier.
type RedisCache struct {
	cache *cache.Cache
}

// NewCache builds the cache from configuration. Without a Redis DNS the cache is process local.
func NewCache() (*RedisCache, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	size, ttl := cfg.Cache.Size, cfg.Cache.TTL()
	if size <= 0 {
		size = config.DEFAULT_CACHE_SIZE
	}
	if ttl <= 0 {
		ttl = config.DEFAULT_CACHE_TTL_SECS * time.Second
	}

	if cfg.Redis.Dns == "" {
		return New(nil, size, ttl), nil
	}

	client, err := redis_db.NewRedisClient([]string{cfg.Redis.Dns})
	if err != nil {
		return nil, err
	}
	return New(client.Client(), size, ttl), nil
}

// New creates a cache holding at most size local entries for ttl each. client may be nil.
func New(client redis.UniversalClient, size int, ttl time.Duration) *RedisCache {
	opts := &cache.Options{
		LocalCache: cache.NewTinyLFU(size, ttl),
	}
	if client != nil {
		opts.Redis = client
	}
	return &RedisCache{cache: cache.New(opts)}
}

func (r *RedisCache) Set(ctx context.Context, key string, data interface{}, ttl time.Duration) error {
	return r.cache.Set(&cache.Item{
		Ctx:   ctx,
		Key:   key,
		Value: data,
		TTL:   ttl,
	})
}

func (r *RedisCache) Get(ctx context.Context, key string, data interface{}) error {
	return r.cache.Get(ctx, key, data)
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	err := r.cache.Delete(ctx, key)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}
	return err
}

// Lookup caches small reference values, loading them on a miss. Concurrent misses for
// the same key share one load. Writers of the underlying data call Invalidate.
type Lookup[T any] struct {
	cache  Cache
	prefix string
	ttl    time.Duration
	load   func(ctx context.Context, key string) (T, error)
	group  singleflight.Group

	// generations count invalidations per key. A load that straddles an Invalidate
	// returns its value to its callers but does not cache it.
	mu          sync.Mutex
	generations map[string]uint64
}

func NewLookup[T any](c Cache, prefix string, ttl time.Duration, load func(ctx context.Context, key string) (T, error)) *Lookup[T] {
	return &Lookup[T]{cache: c, prefix: prefix, ttl: ttl, load: load, generations: make(map[string]uint64)}
}

func (l *Lookup[T]) generation(key string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.generations[key]
}

func (l *Lookup[T]) Get(ctx context.Context, key string) (T, error) {
	var value T
	err := l.cache.Get(ctx, l.prefix+key, &value)
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, ErrMiss) {
		logrus.WithError(err).WithField("key", l.prefix+key).Warn("lookup cache read failed")
	}

	v, err, _ := l.group.Do(key, func() (interface{}, error) {
		gen := l.generation(key)
		loaded, err := l.load(ctx, key)
		if err != nil {
			return nil, err
		}
		if l.generation(key) != gen {
			return loaded, nil
		}
		if err := l.cache.Set(ctx, l.prefix+key, loaded, l.ttl); err != nil {
			logrus.WithError(err).WithField("key", l.prefix+key).Warn("lookup cache write failed")
		}
		return loaded, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	value, _ = v.(T)
	return value, nil
}

// Invalidate drops the cached value for key and keeps any load already in flight from
// caching what it read.
func (l *Lookup[T]) Invalidate(ctx context.Context, key string) error {
	l.mu.Lock()
	l.generations[key]++
	l.mu.Unlock()
	l.group.Forget(key)
	return l.cache.Delete(ctx, l.prefix+key)
}
