// Package ringcache provides a bounded FIFO that overwrites its oldest item
// when full.
package ringcache

import "sync"

type RingCache[T any] struct {
	items    []T
	capacity int
	head     int
	tail     int
	size     int
	dropped  uint64
	mu       sync.Mutex
}

// NewRingCache creates a cache holding at most capacity items. A capacity
// below one is treated as one.
func NewRingCache[T any](capacity int) *RingCache[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &RingCache[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Put appends val. When the cache is full the oldest item is overwritten and
// returned with drop set.
func (c *RingCache[T]) Put(val T) (overWritten T, drop bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.size >= c.capacity {
		drop = true
		c.dropped++
		overWritten = c.items[c.head]
		c.items[c.head] = val
		c.head = (c.head + 1) % c.capacity
		c.tail = (c.tail + 1) % c.capacity
		return
	}
	c.items[c.tail] = val
	c.tail = (c.tail + 1) % c.capacity
	c.size++
	return
}

// Get removes and returns the oldest item.
func (c *RingCache[T]) Get() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.size == 0 {
		var zero T
		return zero, false
	}

	res := c.items[c.head]
	var zero T
	c.items[c.head] = zero
	c.head = (c.head + 1) % c.capacity
	c.size--
	return res, true
}

// Drain removes and returns every item, oldest first.
func (c *RingCache[T]) Drain() []T {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]T, 0, c.size)
	var zero T
	for c.size > 0 {
		out = append(out, c.items[c.head])
		c.items[c.head] = zero
		c.head = (c.head + 1) % c.capacity
		c.size--
	}
	return out
}

func (c *RingCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Dropped returns how many items were overwritten since creation.
func (c *RingCache[T]) Dropped() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}
