package cache

import (
	"sync"

	"github.com/FrenchMajesty/hue-discovery/pkg/types"
)

// LookupCache memoizes classification results by QueryKey. Entries are
// write-once: the first Put for a key wins and is never overwritten or evicted.
// Safe for concurrent use.
type LookupCache struct {
	entries map[types.QueryKey]types.ClassificationResult
	lock    sync.RWMutex
}

// New creates an empty LookupCache
func New() *LookupCache {
	return &LookupCache{
		entries: make(map[types.QueryKey]types.ClassificationResult),
	}
}

// Get returns the cached result for key, if any
func (c *LookupCache) Get(key types.QueryKey) (types.ClassificationResult, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	result, ok := c.entries[key]
	return result, ok
}

// Has reports whether key is cached
func (c *LookupCache) Has(key types.QueryKey) bool {
	c.lock.RLock()
	defer c.lock.RUnlock()

	_, ok := c.entries[key]
	return ok
}

// Put stores result under key unless the key is already present. It returns
// the value held by the cache after the call.
func (c *LookupCache) Put(key types.QueryKey, result types.ClassificationResult) types.ClassificationResult {
	c.lock.Lock()
	defer c.lock.Unlock()

	if existing, ok := c.entries[key]; ok {
		return existing
	}
	c.entries[key] = result
	return result
}

// Len returns the number of cached entries
func (c *LookupCache) Len() int {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return len(c.entries)
}

// Reset drops every entry
func (c *LookupCache) Reset() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.entries = make(map[types.QueryKey]types.ClassificationResult)
}
