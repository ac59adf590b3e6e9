// Package lru implements a small count-bounded LRU map used for per-instance
// response memoization.
package lru

import (
	"container/list"
	"sync"
)

type entry struct {
	key   string
	value any
}

// Cache is a goroutine-safe LRU map holding at most max entries. Get promotes
// the entry to most-recently-used; Add evicts the least-recently-used entry
// when the bound is exceeded.
type Cache struct {
	mu    sync.Mutex
	max   int
	order *list.List
	items map[string]*list.Element
}

// New creates a Cache bounded to max entries. max must be positive.
func New(max int) *Cache {
	if max <= 0 {
		max = 1
	}
	return &Cache{
		max:   max,
		order: list.New(),
		items: make(map[string]*list.Element, max),
	}
}

// Get returns the value stored under key, promoting it to MRU.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry).value, true
}

// Add stores value under key, overwriting any existing entry and evicting the
// LRU entry if the cache is over capacity.
func (c *Cache) Add(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		el.Value.(*entry).value = value
		c.order.MoveToFront(el)
		return
	}
	c.items[key] = c.order.PushFront(&entry{key: key, value: value})
	if c.order.Len() > c.max {
		back := c.order.Back()
		if back != nil {
			c.order.Remove(back)
			delete(c.items, back.Value.(*entry).key)
		}
	}
}

// Remove deletes the entry under key if present.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.order.Remove(el)
		delete(c.items, key)
	}
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
