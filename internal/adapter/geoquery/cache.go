package geoquery

import (
	"context"
	"sync"

	"github.com/couchcryptid/storm-track-viewer/internal/domain"
	"github.com/couchcryptid/storm-track-viewer/internal/observability"
	"github.com/couchcryptid/storm-track-viewer/internal/query"
)

// CachedExecutor wraps an Executor with an in-memory LRU cache keyed
// by pipeline fingerprint.
type CachedExecutor struct {
	inner   Executor
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedExecutor creates a cache decorator around an executor.
func NewCachedExecutor(inner Executor, maxEntries int, metrics *observability.Metrics) *CachedExecutor {
	return &CachedExecutor{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedExecutor) Execute(ctx context.Context, p query.Pipeline) (domain.FeatureCollection, error) {
	key := p.Fingerprint()
	if key != "" {
		if fc, ok := c.cache.get(key); ok {
			c.metrics.QueryCache.WithLabelValues("hit").Inc()
			return fc, nil
		}
	}
	c.metrics.QueryCache.WithLabelValues("miss").Inc()

	fc, err := c.inner.Execute(ctx, p)
	if err != nil {
		return fc, err
	}
	// Only cache non-empty results so transient empty responses can be retried.
	if key != "" && fc.Len() > 0 {
		c.cache.put(key, fc)
	}
	return fc, nil
}

// lruCache is a simple thread-safe LRU cache for feature collections.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value domain.FeatureCollection
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (domain.FeatureCollection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.FeatureCollection{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value domain.FeatureCollection) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
