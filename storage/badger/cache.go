package badger

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pixanchor/pixanchor/module"
	"github.com/pixanchor/pixanchor/storage"
)

// DefaultCacheSize is the number of entries kept by the read caches.
const DefaultCacheSize = 1000

func withLimit[K comparable, V any](limit uint) func(*Cache[K, V]) {
	return func(c *Cache[K, V]) {
		c.limit = limit
	}
}

type retrieveFunc[K comparable, V any] func(key K) func(*badger.Txn) (V, error)

func withRetrieve[K comparable, V any](retrieve retrieveFunc[K, V]) func(*Cache[K, V]) {
	return func(c *Cache[K, V]) {
		c.retrieve = retrieve
	}
}

func noRetrieve[K comparable, V any](K) func(*badger.Txn) (V, error) {
	return func(*badger.Txn) (V, error) {
		var nullV V
		return nullV, fmt.Errorf("no retrieve function for cache get available")
	}
}

// Cache is a read-through LRU cache in front of a badger retrieval. Writers
// must Remove or Insert the keys they change after their transaction
// committed.
type Cache[K comparable, V any] struct {
	metrics  module.CacheMetrics
	limit    uint
	retrieve retrieveFunc[K, V]
	resource string
	cache    *lru.Cache[K, V]
}

func newCache[K comparable, V any](collector module.CacheMetrics, resource string, options ...func(*Cache[K, V])) (*Cache[K, V], error) {
	c := Cache[K, V]{
		metrics:  collector,
		limit:    DefaultCacheSize,
		retrieve: noRetrieve[K, V],
		resource: resource,
	}
	for _, option := range options {
		option(&c)
	}
	cache, err := lru.New[K, V](int(c.limit))
	if err != nil {
		return nil, fmt.Errorf("could not create %s cache: %w", resource, err)
	}
	c.cache = cache
	c.metrics.CacheEntries(c.resource, uint(c.cache.Len()))
	return &c, nil
}

// Get will try to retrieve the resource from cache first, and then from the
// injected retrieval. During normal operations, the following error returns
// are expected:
//   - `storage.ErrNotFound` if key is unknown.
func (c *Cache[K, V]) Get(key K) func(*badger.Txn) (V, error) {
	return func(tx *badger.Txn) (V, error) {

		// check if we have it in the cache
		resource, cached := c.cache.Get(key)
		if cached {
			c.metrics.CacheHit(c.resource)
			return resource, nil
		}

		// get it from the database
		resource, err := c.retrieve(key)(tx)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.metrics.CacheNotFound(c.resource)
			}
			var nullV V
			return nullV, fmt.Errorf("could not retrieve resource: %w", err)
		}

		c.metrics.CacheMiss(c.resource)

		// cache the resource and eject least recently used one if we reached limit
		c.Insert(key, resource)

		return resource, nil
	}
}

// Insert will add a resource directly to the cache with the given key.
func (c *Cache[K, V]) Insert(key K, resource V) {
	evicted := c.cache.Add(key, resource)
	if !evicted {
		c.metrics.CacheEntries(c.resource, uint(c.cache.Len()))
	}
}

func (c *Cache[K, V]) Remove(key K) {
	if c.cache.Remove(key) {
		c.metrics.CacheEntries(c.resource, uint(c.cache.Len()))
	}
}
