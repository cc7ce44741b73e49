// Package cache provides a memoising key/value store that loads each key at
// most once.
package cache

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Key is implemented by composite cache keys. CacheKey must return the same
// string for keys that are equal by value, including element-wise equality
// of any slice fields.
type Key interface {
	CacheKey() string
}

// LoaderFunc computes the value for a key on a cache miss.
type LoaderFunc[K Key, V any] func(ctx context.Context, key K) (V, error)

// Loading is a loading cache. A miss triggers exactly one call of the loader
// for that key; concurrent callers for the same key wait for and share the
// result, while different keys load independently. Errors are returned to
// every waiting caller and are not cached.
type Loading[K Key, V any] struct {
	load LoaderFunc[K, V]

	mu     sync.RWMutex
	values map[string]V
	group  singleflight.Group
}

// NewLoading creates an empty cache backed by load.
func NewLoading[K Key, V any](load LoaderFunc[K, V]) *Loading[K, V] {
	return &Loading[K, V]{
		load:   load,
		values: make(map[string]V),
	}
}

// Get returns the cached value for key, loading it if necessary.
func (c *Loading[K, V]) Get(ctx context.Context, key K) (V, error) {
	k := key.CacheKey()
	if v, ok := c.lookup(k); ok {
		return v, nil
	}

	res, err, _ := c.group.Do(k, func() (interface{}, error) {
		// a Put may have landed between the lookup above and this call
		if v, ok := c.lookup(k); ok {
			return v, nil
		}
		v, err := c.load(ctx, key)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if existing, ok := c.values[k]; ok {
			v = existing
		} else {
			c.values[k] = v
		}
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

// GetIfPresent returns the cached value without loading.
func (c *Loading[K, V]) GetIfPresent(key K) (V, bool) {
	return c.lookup(key.CacheKey())
}

// Put stores a value computed elsewhere. Later Gets for the key return it
// without invoking the loader.
func (c *Loading[K, V]) Put(key K, value V) {
	c.mu.Lock()
	c.values[key.CacheKey()] = value
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *Loading[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}

func (c *Loading[K, V]) lookup(k string) (V, bool) {
	c.mu.RLock()
	v, ok := c.values[k]
	c.mu.RUnlock()
	return v, ok
}
