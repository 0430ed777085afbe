package extractor

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// CachedExtractor memoizes reference sets by CacheKey. Entries are only ever
// added, so readers never block each other; concurrent misses for the same
// key share one extraction.
type CachedExtractor struct {
	ext     *Extractor
	entries sync.Map // CacheKey -> *ReferenceSet
	flight  singleflight.Group
	size    atomic.Int64
}

func NewCachedExtractor(ext *Extractor) *CachedExtractor {
	return &CachedExtractor{ext: ext}
}

func (c *CachedExtractor) Extract(def *VariableDefinition) *ReferenceSet {
	key := CacheKey(def)
	if v, ok := c.entries.Load(key); ok {
		return v.(*ReferenceSet)
	}
	v, _, _ := c.flight.Do(key, func() (any, error) {
		if v, ok := c.entries.Load(key); ok {
			return v, nil
		}
		refs := c.ext.Extract(def)
		c.entries.Store(key, refs)
		c.size.Add(1)
		return refs, nil
	})
	return v.(*ReferenceSet)
}

func (c *CachedExtractor) IsParameterPath(name string) bool {
	return c.ext.IsParameterPath(name)
}

// Len returns the number of cached reference sets.
func (c *CachedExtractor) Len() int {
	return int(c.size.Load())
}
