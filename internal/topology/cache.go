package topology

import "sync"

// Cache is a get-or-create store keyed by name. Get never constructs two values
// for the same key; enumeration follows first insertion.
type Cache[V any] struct {
	mu      sync.Mutex
	factory func(name string) V
	items   map[string]V
	order   []string
}

// NewCache returns a cache that builds missing entries with factory.
func NewCache[V any](factory func(name string) V) *Cache[V] {
	return &Cache[V]{
		factory: factory,
		items:   make(map[string]V),
	}
}

// Get returns the entry for name, creating and storing it when missing.
func (c *Cache[V]) Get(name string) V {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.items[name]; ok {
		return v
	}
	v := c.factory(name)
	c.items[name] = v
	c.order = append(c.order, name)
	return v
}

// Lookup returns the entry for name without creating it.
func (c *Cache[V]) Lookup(name string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.items[name]
	return v, ok
}

// Set stores v under name, replacing any existing entry in place.
func (c *Cache[V]) Set(name string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[name]; !ok {
		c.order = append(c.order, name)
	}
	c.items[name] = v
}

// All returns every entry in insertion order.
func (c *Cache[V]) All() []V {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]V, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.items[name])
	}
	return out
}

// Len returns the number of entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
