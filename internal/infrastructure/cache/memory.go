package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/cigarlens/backend/internal/domain"
)

const (
	// DefaultCapacity is the default number of entries kept
	DefaultCapacity = 100
	// DefaultTTL is the default time an entry stays valid
	DefaultTTL = 5 * time.Minute
)

// cacheItem represents a single item in the cache with its access timestamp
type cacheItem struct {
	key      string
	entry    *domain.CatalogEntry
	storedAt time.Time
}

// HitRecorder receives cache hit/miss observations
type HitRecorder interface {
	CacheHit()
	CacheMiss()
}

// MemoryConfig holds configuration for the in-memory cache
type MemoryConfig struct {
	Capacity int
	TTL      time.Duration
	Clock    domain.Clock
	Metrics  HitRecorder
}

// MemoryCache is a bounded, time-expiring LRU cache of catalog snapshots
type MemoryCache struct {
	capacity int
	ttl      time.Duration
	now      domain.Clock
	metrics  HitRecorder

	mutex sync.Mutex
	items map[string]*list.Element
	order *list.List // front = most recently used

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryCache creates a new in-memory cache and starts its expiry sweep
func NewMemoryCache(config MemoryConfig) *MemoryCache {
	c := newMemoryCache(config)

	// Sweep expired entries once per TTL
	go c.sweepExpired(c.ttl)

	return c
}

func newMemoryCache(config MemoryConfig) *MemoryCache {
	capacity := config.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	ttl := config.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := config.Clock
	if now == nil {
		now = time.Now
	}

	return &MemoryCache{
		capacity: capacity,
		ttl:      ttl,
		now:      now,
		metrics:  config.Metrics,
		items:    make(map[string]*list.Element),
		order:    list.New(),
		stop:     make(chan struct{}),
	}
}

// Get returns the cached snapshot for (brand, name). Expired entries are deleted
// and reported as absent; hits move to the most-recently-used position.
func (c *MemoryCache) Get(ctx context.Context, brand, name string) (*domain.CatalogEntry, bool) {
	key := domain.CacheKey(brand, name)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	elem, exists := c.items[key]
	if !exists {
		c.miss()
		return nil, false
	}

	item := elem.Value.(*cacheItem)
	if c.expired(item) {
		c.removeElement(elem)
		c.miss()
		return nil, false
	}

	item.storedAt = c.now()
	c.order.MoveToFront(elem)
	c.hit()
	return item.entry.Clone(), true
}

// Set stores a snapshot, evicting the least recently used entry when at capacity
func (c *MemoryCache) Set(ctx context.Context, brand, name string, entry *domain.CatalogEntry) {
	if entry == nil {
		return
	}
	key := domain.CacheKey(brand, name)
	entry = entry.Clone()

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if elem, exists := c.items[key]; exists {
		item := elem.Value.(*cacheItem)
		item.entry = entry
		item.storedAt = c.now()
		c.order.MoveToFront(elem)
		return
	}

	if c.order.Len() >= c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}

	c.items[key] = c.order.PushFront(&cacheItem{
		key:      key,
		entry:    entry,
		storedAt: c.now(),
	})
}

// Clear removes the (brand, name) entry, or everything when both are empty
func (c *MemoryCache) Clear(ctx context.Context, brand, name string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if brand == "" && name == "" {
		c.items = make(map[string]*list.Element)
		c.order.Init()
		return
	}

	if elem, exists := c.items[domain.CacheKey(brand, name)]; exists {
		c.removeElement(elem)
	}
}

// Size returns the current number of items in the cache (for debugging/monitoring)
func (c *MemoryCache) Size() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.order.Len()
}

// Close stops the sweep goroutine
func (c *MemoryCache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Purge removes every expired entry and returns how many were removed
func (c *MemoryCache) Purge() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	removed := 0
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		if c.expired(elem.Value.(*cacheItem)) {
			c.removeElement(elem)
			removed++
		}
		elem = prev
	}
	return removed
}

// sweepExpired removes expired entries periodically
func (c *MemoryCache) sweepExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.Purge()
		}
	}
}

func (c *MemoryCache) expired(item *cacheItem) bool {
	return c.now().Sub(item.storedAt) > c.ttl
}

func (c *MemoryCache) removeElement(elem *list.Element) {
	item := c.order.Remove(elem).(*cacheItem)
	delete(c.items, item.key)
}

func (c *MemoryCache) hit() {
	if c.metrics != nil {
		c.metrics.CacheHit()
	}
}

func (c *MemoryCache) miss() {
	if c.metrics != nil {
		c.metrics.CacheMiss()
	}
}
