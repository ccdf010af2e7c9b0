// Package cache provides an in-memory cache for query analyses.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/TFMV/sqlgate/pkg/models"
)

// Cache defines the interface for caching analyses by query text.
type Cache interface {
	// Get retrieves an analysis from the cache
	Get(ctx context.Context, key string) (*models.Analysis, bool)
	// Put stores an analysis in the cache
	Put(ctx context.Context, key string, analysis *models.Analysis)
	// Delete removes an analysis from the cache
	Delete(ctx context.Context, key string)
	// Clear removes all entries from the cache
	Clear(ctx context.Context)
	// Close releases any resources held by the cache
	Close() error
}

// CacheEntry represents a single cache entry with metadata
type CacheEntry struct {
	Key       string
	Analysis  *models.Analysis
	CreatedAt time.Time
	LastUsed  time.Time
}

// MemoryCache implements Cache with a bounded LRU list and optional TTL.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List
	config  Config
	stats   *StatsCollector
	now     func() time.Time
}

// NewMemoryCache creates a new memory cache from cfg. A nil cfg uses DefaultConfig.
func NewMemoryCache(cfg *Config) *MemoryCache {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	if c.MaxEntries <= 0 {
		c.MaxEntries = DefaultConfig().MaxEntries
	}
	return &MemoryCache{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		config:  c,
		stats:   NewStatsCollector(),
		now:     time.Now,
	}
}

// Get retrieves an analysis from the cache. Expired entries count as misses.
func (c *MemoryCache) Get(_ context.Context, key string) (*models.Analysis, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.recordMiss()
		return nil, false
	}

	entry := el.Value.(*CacheEntry)
	now := c.now()
	if c.expired(entry, now) {
		c.removeElement(el)
		c.recordEviction()
		c.recordMiss()
		return nil, false
	}

	entry.LastUsed = now
	c.order.MoveToFront(el)
	c.recordHit()
	return entry.Analysis, true
}

// Put stores an analysis in the cache, evicting the least recently used
// entry when full.
func (c *MemoryCache) Put(_ context.Context, key string, analysis *models.Analysis) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*CacheEntry)
		entry.Analysis = analysis
		entry.CreatedAt = now
		entry.LastUsed = now
		c.order.MoveToFront(el)
		return
	}

	for c.order.Len() >= c.config.MaxEntries {
		c.evictOldest()
	}

	c.entries[key] = c.order.PushFront(&CacheEntry{
		Key:       key,
		Analysis:  analysis,
		CreatedAt: now,
		LastUsed:  now,
	})
	c.updateSize()
}

// Delete removes an analysis from the cache
func (c *MemoryCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.removeElement(el)
	}
}

// Clear removes all entries from the cache
func (c *MemoryCache) Clear(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.order.Init()
	c.updateSize()
}

// Close releases any resources held by the cache
func (c *MemoryCache) Close() error {
	c.Clear(context.Background())
	return nil
}

// Len returns the number of cached entries, including expired ones not yet evicted.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns a snapshot of the cache statistics.
func (c *MemoryCache) Stats() Stats {
	return c.stats.GetStats()
}

func (c *MemoryCache) expired(entry *CacheEntry, now time.Time) bool {
	return c.config.TTL > 0 && now.Sub(entry.CreatedAt) > c.config.TTL
}

// evictOldest removes the least recently used entry from the cache
func (c *MemoryCache) evictOldest() {
	if el := c.order.Back(); el != nil {
		c.removeElement(el)
		c.recordEviction()
	}
}

func (c *MemoryCache) removeElement(el *list.Element) {
	entry := c.order.Remove(el).(*CacheEntry)
	delete(c.entries, entry.Key)
	c.updateSize()
}

func (c *MemoryCache) recordHit() {
	if c.config.EnableStats {
		c.stats.RecordHit()
	}
}

func (c *MemoryCache) recordMiss() {
	if c.config.EnableStats {
		c.stats.RecordMiss()
	}
}

func (c *MemoryCache) recordEviction() {
	if c.config.EnableStats {
		c.stats.RecordEviction()
	}
}

func (c *MemoryCache) updateSize() {
	if c.config.EnableStats {
		c.stats.UpdateSize(int64(c.order.Len()))
	}
}
