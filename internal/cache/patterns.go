package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/freewebtopdf/find-related/internal/domain"
)

const defaultMaxPatterns = 1024

// entry is a node in the recency list
type entry struct {
	pattern string
	re      *regexp2.Regexp
	prev    *entry
	next    *entry
}

// PatternCache is an LRU cache of compiled rule patterns. Compiled regexes are
// immutable and safe for concurrent matching, so entries survive recompiles and
// a pattern shared by several rulesets is compiled once.
type PatternCache struct {
	maxSize int
	size    int

	head *entry
	tail *entry

	entries map[string]*entry

	mutex sync.Mutex

	hits   int64
	misses int64
}

// NewPatternCache creates a new pattern cache holding at most maxSize regexes
func NewPatternCache(maxSize int) *PatternCache {
	if maxSize <= 0 {
		maxSize = defaultMaxPatterns
	}

	head := &entry{}
	tail := &entry{}
	head.next = tail
	tail.prev = head

	return &PatternCache{
		maxSize: maxSize,
		head:    head,
		tail:    tail,
		entries: make(map[string]*entry),
	}
}

// Get returns the compiled regex for pattern and marks it as recently used
func (c *PatternCache) Get(pattern string) (*regexp2.Regexp, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	e, ok := c.entries[pattern]
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	c.moveToFront(e)
	atomic.AddInt64(&c.hits, 1)
	return e.re, true
}

// Set stores the compiled regex for pattern, evicting the least recently used entry when full
func (c *PatternCache) Set(pattern string, re *regexp2.Regexp) {
	if re == nil {
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if e, ok := c.entries[pattern]; ok {
		e.re = re
		c.moveToFront(e)
		return
	}

	e := &entry{pattern: pattern, re: re}
	c.addToFront(e)
	c.entries[pattern] = e
	c.size++

	if c.size > c.maxSize {
		c.evictLRU()
	}
}

// Invalidate removes a single pattern
func (c *PatternCache) Invalidate(pattern string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if e, ok := c.entries[pattern]; ok {
		c.removeEntry(e)
		delete(c.entries, pattern)
		c.size--
	}
}

// Clear removes all entries and resets the counters
func (c *PatternCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.head.next = c.tail
	c.tail.prev = c.head
	c.entries = make(map[string]*entry)
	c.size = 0

	atomic.StoreInt64(&c.hits, 0)
	atomic.StoreInt64(&c.misses, 0)
}

// Stats returns current cache statistics
func (c *PatternCache) Stats() domain.CacheStats {
	c.mutex.Lock()
	size := c.size
	c.mutex.Unlock()

	hits := atomic.LoadInt64(&c.hits)
	misses := atomic.LoadInt64(&c.misses)

	var hitRatio float64
	if total := hits + misses; total > 0 {
		hitRatio = float64(hits) / float64(total)
	}

	return domain.CacheStats{
		Hits:     hits,
		Misses:   misses,
		Size:     size,
		MaxSize:  c.maxSize,
		HitRatio: hitRatio,
	}
}

// HealthCheck reports the cache as degraded when it is full, since every
// recompile then evicts patterns that are still in use
func (c *PatternCache) HealthCheck(ctx context.Context) domain.HealthStatus {
	stats := c.Stats()

	status := domain.HealthStatusHealthy
	message := "Pattern cache is operating normally"
	details := map[string]any{
		"size":      stats.Size,
		"max_size":  stats.MaxSize,
		"hit_ratio": stats.HitRatio,
		"hits":      stats.Hits,
		"misses":    stats.Misses,
	}

	if stats.Size >= stats.MaxSize {
		status = domain.HealthStatusDegraded
		message = "Pattern cache is at capacity"
		details["warning"] = "Increase PATTERN_CACHE_SIZE"
	}

	return domain.HealthStatus{
		Status:    status,
		Message:   message,
		Details:   details,
		Timestamp: time.Now(),
	}
}

func (c *PatternCache) moveToFront(e *entry) {
	c.removeEntry(e)
	c.addToFront(e)
}

func (c *PatternCache) addToFront(e *entry) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *PatternCache) removeEntry(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
}

func (c *PatternCache) evictLRU() {
	if c.tail.prev == c.head {
		return
	}

	lru := c.tail.prev
	c.removeEntry(lru)
	delete(c.entries, lru.pattern)
	c.size--
}
