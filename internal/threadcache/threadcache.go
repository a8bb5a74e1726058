// Package threadcache wraps thread's threading decisions with an in-memory
// LRU cache keyed by thread id, so repeated reads of a hot conversation
// avoid round-tripping to maildb (spec.md §4.10). The eviction structure is
// a doubly linked list plus hashmap for O(1) get/put/evict, following the
// pack's own idiom rather than a third-party LRU package — none appears
// anywhere in the retrieval pack.
package threadcache

import (
	"sync"

	"github.com/dwrekofc/swiftea/internal/maildb"
	"github.com/dwrekofc/swiftea/internal/thread"
)

const defaultCapacity = 100

type node struct {
	key   string
	value *maildb.Thread
	prev  *node
	next  *node
}

// Cache is an LRU cache over canonical thread rows, protected by an
// internal lock so invalidation and insertion are atomic relative to
// lookup (spec.md §5).
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*node
	head     *node // most-recently-used sentinel
	tail     *node // least-recently-used sentinel

	hits   int64
	misses int64
}

// New constructs a Cache with the given capacity. A non-positive capacity
// falls back to defaultCapacity.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	head := &node{}
	tail := &node{}
	head.next = tail
	tail.prev = head
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]*node),
		head:     head,
		tail:     tail,
	}
}

// Statistics reports cache hit/miss counters (spec.md §4.10).
type Statistics struct {
	HitCount  int64
	MissCount int64
	Size      int
	HitRate   float64
}

func (c *Cache) moveToFront(n *node) {
	n.prev.next = n.next
	n.next.prev = n.prev

	n.next = c.head.next
	n.prev = c.head
	c.head.next.prev = n
	c.head.next = n
}

func (c *Cache) removeNode(n *node) {
	n.prev.next = n.next
	n.next.prev = n.prev
}

func (c *Cache) evictLRU() {
	lru := c.tail.prev
	if lru == c.head {
		return
	}
	c.removeNode(lru)
	delete(c.entries, lru.key)
}

// putLocked inserts or refreshes an entry and moves it to the front,
// evicting the single least-recently-used entry if the cache is full.
func (c *Cache) putLocked(id string, th *maildb.Thread) {
	if n, ok := c.entries[id]; ok {
		n.value = th
		c.moveToFront(n)
		return
	}

	if len(c.entries) >= c.capacity {
		c.evictLRU()
	}

	n := &node{key: id, value: th}
	n.next = c.head.next
	n.prev = c.head
	c.head.next.prev = n
	c.head.next = n
	c.entries[id] = n
}

// GetThread performs a cache-through read: a hit returns the cached row
// without touching db; a miss loads from db, caches the result (if found),
// and returns it.
func (c *Cache) GetThread(id string, db *maildb.DB) (*maildb.Thread, bool, error) {
	c.mu.Lock()
	if n, ok := c.entries[id]; ok {
		c.moveToFront(n)
		c.hits++
		th := n.value
		c.mu.Unlock()
		return th, true, nil
	}
	c.misses++
	c.mu.Unlock()

	th, ok, err := db.GetThread(id)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	c.mu.Lock()
	c.putLocked(id, th)
	c.mu.Unlock()
	return th, true, nil
}

// ProcessMessageForThreading delegates to thread.ProcessMessageForThreading
// and refreshes the cache entry with the post-update thread row.
func (c *Cache) ProcessMessageForThreading(db *maildb.DB, message *maildb.Message) (thread.Result, error) {
	result, err := thread.ProcessMessageForThreading(db, message)
	if err != nil {
		return thread.Result{}, err
	}

	th, ok, err := db.GetThread(result.ThreadID)
	if err != nil {
		return result, err
	}
	if ok {
		c.mu.Lock()
		c.putLocked(result.ThreadID, th)
		c.mu.Unlock()
	}
	return result, nil
}

// UpdateThreadMetadata recomputes id's persistent thread row and refreshes
// the cache entry with the result.
func (c *Cache) UpdateThreadMetadata(id string, db *maildb.DB) (*maildb.Thread, error) {
	th, err := db.RecomputeThreadMetadata(id)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.putLocked(id, th)
	c.mu.Unlock()
	return th, nil
}

// InvalidateThread removes id from the cache, if present.
func (c *Cache) InvalidateThread(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.entries[id]; ok {
		c.removeNode(n)
		delete(c.entries, id)
	}
}

// InvalidateAllThreads clears the entire cache without resetting
// statistics.
func (c *Cache) InvalidateAllThreads() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*node)
	c.head.next = c.tail
	c.tail.prev = c.head
}

// GetCacheStatistics returns the current hit/miss counters, size, and
// derived hit rate as a percentage.
func (c *Cache) GetCacheStatistics() Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(c.hits) / float64(total) * 100
	}

	return Statistics{
		HitCount:  c.hits,
		MissCount: c.misses,
		Size:      len(c.entries),
		HitRate:   hitRate,
	}
}

// ResetCacheStatistics zeroes the hit/miss counters without evicting any
// entries.
func (c *Cache) ResetCacheStatistics() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hits = 0
	c.misses = 0
}
