package orm

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache holds compiled statements keyed by the text of their query.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the statement stored under key.
	Get(key string) (string, bool)
	// Set stores the statement under key.
	Set(key, stmt string)
	// Clear removes every statement.
	Clear()
}

// DefaultCacheSize is the capacity of the cache of a client created
// without WithCache.
const DefaultCacheSize = 512

// LRU is a Cache evicting the least recently used statement once full.
type LRU struct {
	c *lru.Cache[string, string]
}

// NewLRU returns a cache of at most size statements. A size of zero or
// less disables caching.
func NewLRU(size int) *LRU {
	if size <= 0 {
		return &LRU{}
	}
	c, err := lru.New[string, string](size)
	if err != nil {
		return &LRU{}
	}
	return &LRU{c: c}
}

// Get returns the statement stored under key and marks it as used.
func (c *LRU) Get(key string) (string, bool) {
	if c.c == nil {
		return "", false
	}
	return c.c.Get(key)
}

// Set stores the statement under key.
func (c *LRU) Set(key, stmt string) {
	if c.c != nil {
		c.c.Add(key, stmt)
	}
}

// Clear removes every statement.
func (c *LRU) Clear() {
	if c.c != nil {
		c.c.Purge()
	}
}

// Len returns the number of cached statements.
func (c *LRU) Len() int {
	if c.c == nil {
		return 0
	}
	return c.c.Len()
}
