package pagestore

import (
	"container/list"
	"sync"
)

// Partition identifies a store within the shared PageCache. In practice
// it is the store's absolute file path.
type Partition string

// EvictionHandler is the before-evict subscriber a store registers with
// the cache. It is invoked synchronously, on the goroutine whose
// InsertOrUpdate triggered the eviction, while the cache does NOT hold
// its internal lock — implementations must
// not call back into the cache (Lookup/InsertOrUpdate/Subscribe) from
// within BeforeEvict, but are otherwise free to do I/O.
//
// BeforeEvict returns true to cancel the eviction (the cache keeps the
// entry) or false to let it proceed (the cache drops the entry; the
// handler is responsible for that page's durability from this point on).
type EvictionHandler interface {
	BeforeEvict(partition Partition, pageID uint64) (cancel bool)
}

type cacheKey struct {
	partition Partition
	pageID    uint64
}

type cacheEntry struct {
	key  cacheKey
	page *Page
	elem *list.Element
}

// PageCache is a bounded, process-wide cache of pages keyed by
// (partition, page id), shared across every store in the process. Before
// it physically drops an entry to stay within capacity, it consults any
// EvictionHandler registered for that entry's partition; see
// EvictionHandler for the cancel/proceed protocol. Eviction order is
// approximate LRU by recency of Lookup/InsertOrUpdate.
type PageCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[cacheKey]*cacheEntry
	lru      *list.List
	handlers map[Partition]EvictionHandler

	hits      uint64
	misses    uint64
	evicted   uint64
	cancelled uint64
}

// NewPageCache returns a PageCache with the given soft capacity, in
// pages. A cache that cannot free any space on InsertOrUpdate (every
// candidate cancels) may transiently exceed this capacity.
func NewPageCache(capacity int) *PageCache {
	if capacity < 1 {
		capacity = 1
	}
	return &PageCache{
		capacity: capacity,
		entries:  make(map[cacheKey]*cacheEntry),
		lru:      list.New(),
		handlers: make(map[Partition]EvictionHandler),
	}
}

// Subscribe registers h as the before-evict handler for partition. Only
// one handler may be registered per partition at a time; a later call
// replaces the earlier one. Stores call this once at Open and Unsubscribe
// at Close.
func (c *PageCache) Subscribe(partition Partition, h EvictionHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[partition] = h
}

// Unsubscribe removes the before-evict handler for partition, if any.
func (c *PageCache) Unsubscribe(partition Partition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, partition)
}

// Lookup returns the cached page for (partition, pageID), refreshing its
// recency on a hit, and records a hit or miss for diagnostics.
func (c *PageCache) Lookup(partition Partition, pageID uint64) (*Page, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey{partition, pageID}
	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.lru.MoveToFront(entry.elem)
	return entry.page, true
}

// InsertOrUpdate inserts page into the cache under (partition, page.ID()),
// or, if an entry is already present, replaces its page with page and
// refreshes its recency. It may trigger eviction of
// other entries to stay within capacity.
func (c *PageCache) InsertOrUpdate(partition Partition, page *Page) {
	c.mu.Lock()

	key := cacheKey{partition, page.ID()}
	if entry, ok := c.entries[key]; ok {
		entry.page = page
		c.lru.MoveToFront(entry.elem)
		c.mu.Unlock()
		return
	}

	entry := &cacheEntry{key: key}
	entry.page = page
	entry.elem = c.lru.PushFront(entry)
	c.entries[key] = entry

	overCapacity := len(c.entries) > c.capacity
	c.mu.Unlock()

	if overCapacity {
		c.evictOne()
	}
}

// evictOne walks the LRU list from the back, offering each candidate to
// its partition's handler in turn, until one is actually dropped or every
// resident entry has refused once. Handlers are invoked without the
// cache lock held. A cache none of whose entries can be evicted honors
// InsertOrUpdate anyway and exceeds its soft capacity transiently.
func (c *PageCache) evictOne() {
	c.mu.Lock()
	attempts := len(c.entries)
	c.mu.Unlock()

	tried := make(map[cacheKey]bool, attempts)

	for i := 0; i < attempts; i++ {
		c.mu.Lock()
		if len(c.entries) <= c.capacity {
			c.mu.Unlock()
			return
		}

		var entry *cacheEntry
		for elem := c.lru.Back(); elem != nil; elem = elem.Prev() {
			candidate := elem.Value.(*cacheEntry)
			if !tried[candidate.key] {
				entry = candidate
				break
			}
		}
		if entry == nil {
			c.mu.Unlock()
			return
		}
		key := entry.key
		handler := c.handlers[key.partition]
		c.mu.Unlock()

		cancel := false
		if handler != nil {
			cancel = handler.BeforeEvict(key.partition, key.pageID)
		}

		c.mu.Lock()
		// The entry may have been removed or replaced while the handler
		// ran without the lock; re-check before acting on it.
		current, stillPresent := c.entries[key]
		if !stillPresent || current != entry {
			c.mu.Unlock()
			continue
		}
		if cancel {
			c.cancelled++
			tried[key] = true
			c.mu.Unlock()
			continue
		}

		delete(c.entries, key)
		c.lru.Remove(entry.elem)
		c.evicted++
		c.mu.Unlock()
		return
	}
}

// Remove drops (partition, pageID) from the cache unconditionally,
// without consulting any handler. Store itself never calls it, not even
// on Close or Dispose.
func (c *PageCache) Remove(partition Partition, pageID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey{partition, pageID}
	if entry, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.lru.Remove(entry.elem)
	}
}

// Len returns the number of entries currently resident in the cache.
func (c *PageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// CacheStats is a point-in-time snapshot of cache counters, suitable for
// msgpack encoding via Stats.
type CacheStats struct {
	Capacity  int    `msgpack:"capacity"`
	Resident  int    `msgpack:"resident"`
	Hits      uint64 `msgpack:"hits"`
	Misses    uint64 `msgpack:"misses"`
	Evicted   uint64 `msgpack:"evicted"`
	Cancelled uint64 `msgpack:"cancelled"`
}

// Stats returns a snapshot of the cache's counters.
func (c *PageCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Capacity:  c.capacity,
		Resident:  len(c.entries),
		Hits:      c.hits,
		Misses:    c.misses,
		Evicted:   c.evicted,
		Cancelled: c.cancelled,
	}
}

// DefaultPageCache is the process-wide cache instance used by stores
// opened without an explicit cache (see Config.Cache). Individual tests
// should construct their own NewPageCache instead of relying on this
// shared instance.
var DefaultPageCache = NewPageCache(16384)
