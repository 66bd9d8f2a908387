package cache

import (
	"container/list"
	"sync"
)

const defaultLRUCapacity = 256

// LRU is a bounded in-memory entry cache used as a front for slower
// stores. Freshness is the owning store's concern; the LRU only bounds
// residency.
type LRU struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
}

type lruItem struct {
	key   string
	entry *Entry
}

// NewLRU creates an LRU holding at most capacity entries.
// A capacity <= 0 selects the default.
func NewLRU(capacity int) *LRU {
	if capacity <= 0 {
		capacity = defaultLRUCapacity
	}
	return &LRU{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the cached entry for key.
func (c *LRU) Get(key string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*lruItem).entry, true //nolint:errcheck // type is guaranteed by Set
}

// Set stores entry under key, evicting the least recently used entry
// when at capacity.
func (c *LRU) Set(key string, entry *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		elem.Value.(*lruItem).entry = entry //nolint:errcheck // type is guaranteed
		c.order.MoveToFront(elem)
		return
	}

	for c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
	}

	elem := c.order.PushFront(&lruItem{key: key, entry: entry})
	c.entries[key] = elem
}

// Remove drops the entry for key if present.
func (c *LRU) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.removeLocked(elem)
	}
}

// Clear drops all entries.
func (c *LRU) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// Len returns the number of resident entries.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// removeLocked removes an element from both the list and map.
// Caller must hold c.mu.
func (c *LRU) removeLocked(elem *list.Element) {
	c.order.Remove(elem)
	delete(c.entries, elem.Value.(*lruItem).key) //nolint:errcheck // type is guaranteed
}
