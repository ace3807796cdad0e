package cache

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/recogo/resource"
)

// Compile time check to ensure LRU satisfies the BlockCache interface.
var _ BlockCache = (*LRU)(nil)

// LRU is a least-recently-used BlockCache bounded by total byte size. If a
// resource.Controller is provided, cached bytes are charged against its
// memory budget and a denied acquisition declines the Set.
type LRU struct {
	mu        sync.Mutex
	capacity  int64
	size      int64
	items     map[Key]*list.Element
	evictList *list.List
	rc        *resource.Controller

	hits   atomic.Int64
	misses atomic.Int64
}

type entry struct {
	key   Key
	value []byte
}

// NewLRU creates an LRU cache holding at most capacity bytes.
func NewLRU(capacity int64, rc *resource.Controller) *LRU {
	return &LRU{
		capacity:  capacity,
		items:     make(map[Key]*list.Element),
		evictList: list.New(),
		rc:        rc,
	}
}

// Get returns a cached block and refreshes its recency.
func (c *LRU) Get(key Key) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.hits.Add(1)
		c.evictList.MoveToFront(el)

		return el.Value.(*entry).value, true
	}

	c.misses.Add(1)

	return nil, false
}

// Set caches a block, evicting least-recently-used blocks to stay within
// capacity. Blocks larger than the capacity are not cached.
func (c *LRU) Set(key Key, b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.evictList.MoveToFront(el)

		ent := el.Value.(*entry)

		delta := int64(len(b)) - int64(len(ent.value))
		if c.rc != nil {
			if delta > 0 && !c.rc.TryAcquireMemory(delta) {
				// Budget denied the growth; keep the old value.
				return
			}

			if delta < 0 {
				c.rc.ReleaseMemory(-delta)
			}
		}

		ent.value = b
		c.size += delta
		c.evict()

		return
	}

	itemSize := int64(len(b))
	if itemSize > c.capacity {
		return
	}

	// Evict before acquiring so released bytes are available to the
	// controller again.
	for c.size+itemSize > c.capacity {
		el := c.evictList.Back()
		if el == nil {
			break
		}

		c.removeElement(el)
	}

	if c.rc != nil && !c.rc.TryAcquireMemory(itemSize) {
		return
	}

	c.items[key] = c.evictList.PushFront(&entry{key: key, value: b})
	c.size += itemSize
}

// Invalidate removes entries matching the predicate.
func (c *LRU) Invalidate(predicate func(key Key) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toRemove []*list.Element

	for key, el := range c.items {
		if predicate(key) {
			toRemove = append(toRemove, el)
		}
	}

	for _, el := range toRemove {
		c.removeElement(el)
	}
}

// Stats returns hit and miss counters.
func (c *LRU) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Size returns the current cached byte size.
func (c *LRU) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.size
}

// Close releases all cached blocks.
func (c *LRU) Close() error {
	c.Invalidate(func(Key) bool { return true })

	return nil
}

// evict removes least-recently-used entries until size fits capacity.
func (c *LRU) evict() {
	for c.size > c.capacity && c.evictList.Len() > 0 {
		c.removeElement(c.evictList.Back())
	}
}

// removeElement must be called with c.mu held.
func (c *LRU) removeElement(el *list.Element) {
	c.evictList.Remove(el)

	ent := el.Value.(*entry)
	delete(c.items, ent.key)

	itemSize := int64(len(ent.value))
	c.size -= itemSize

	if c.rc != nil {
		c.rc.ReleaseMemory(itemSize)
	}
}
