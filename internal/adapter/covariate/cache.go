package covariate

import (
	"context"
	"sync"

	"github.com/zschroder/pred-casualties/internal/cluster"
	"github.com/zschroder/pred-casualties/internal/observability"
	"github.com/zschroder/pred-casualties/internal/pipeline"
)

// CachedProvider wraps a CovariateProvider with an in-memory LRU cache keyed
// by the cluster's compound key. Re-running the pipeline over an overlapping
// catalog hits the same clusters repeatedly, and provider responses for a
// fixed (day, footprint) are stable.
type CachedProvider struct {
	inner   pipeline.CovariateProvider
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedProvider creates a cache decorator around a covariate provider.
func NewCachedProvider(inner pipeline.CovariateProvider, maxEntries int, metrics *observability.Metrics) *CachedProvider {
	return &CachedProvider{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedProvider) ClusterCovariates(ctx context.Context, b cluster.BigDay) (map[string]float64, error) {
	key := b.Key()
	if covs, ok := c.cache.get(key); ok {
		c.metrics.CovariateCache.WithLabelValues("hit").Inc()
		return covs, nil
	}
	c.metrics.CovariateCache.WithLabelValues("miss").Inc()

	covs, err := c.inner.ClusterCovariates(ctx, b)
	if err != nil {
		return nil, err
	}
	// Only cache non-empty results so transient "no data" responses can be
	// retried on a later run.
	if len(covs) > 0 {
		c.cache.put(key, covs)
	}
	return covs, nil
}

// lruCache is a simple thread-safe LRU cache for covariate maps.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value map[string]float64
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (map[string]float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value map[string]float64) {
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
