package tiles

import (
	"context"
	"image"
	"sync"

	"github.com/couchcryptid/crime-change-map/internal/observability"
)

// CachedFetcher wraps a Fetcher with an in-memory LRU cache.
type CachedFetcher struct {
	inner   Fetcher
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedFetcher creates a cache decorator around a tile fetcher.
func NewCachedFetcher(inner Fetcher, maxEntries int, metrics *observability.Metrics) *CachedFetcher {
	return &CachedFetcher{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedFetcher) Fetch(ctx context.Context, t Tile) (image.Image, error) {
	if img, ok := c.cache.get(t); ok {
		c.metrics.TileCache.WithLabelValues("hit").Inc()
		return img, nil
	}
	c.metrics.TileCache.WithLabelValues("miss").Inc()

	img, err := c.inner.Fetch(ctx, t)
	if err != nil {
		return nil, err
	}
	c.cache.put(t, img)
	return img, nil
}

// lruCache is a thread-safe LRU of decoded tiles.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[Tile]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   Tile
	value image.Image
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[Tile]*entry),
	}
}

func (c *lruCache) get(key Tile) (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key Tile, value image.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.pushFront(e)

	for len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.unlink(e)
	c.pushFront(e)
}

func (c *lruCache) pushFront(e *entry) {
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

func (c *lruCache) unlink(e *entry) {
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
	c.unlink(c.tail)
}
