package formula

import "sync"

// Cache holds compiled formulas keyed by rule id, so each rule's expression
// is parsed once per process regardless of how many runs evaluate it.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*Compiled
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]*Compiled)}
}

// Get returns the compiled formula for key, compiling src on first use.
// If src changed for the same key (a republished rule set under a new
// version never does, keys embed the rule id) the entry is recompiled.
func (c *Cache) Get(key, src string) (*Compiled, error) {
	c.mu.RLock()
	cached, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && cached.src == src {
		return cached, nil
	}

	compiled, err := Compile(src)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.entries[key] = compiled
	c.mu.Unlock()
	return compiled, nil
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
