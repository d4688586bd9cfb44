package dirinfo

import (
	"path/filepath"

	"github.com/dgraph-io/ristretto/v2"
)

// Cache memoizes directory snapshots. It is read-mostly: callers that
// write through the store package invalidate the directory afterwards.
// Safe for concurrent use.
type Cache struct {
	cache *ristretto.Cache[string, *Info]
}

// NewCache returns a cache holding at most maxDirs snapshots.
func NewCache(maxDirs int64) (*Cache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, *Info]{
		NumCounters: maxDirs * 10,
		MaxCost:     maxDirs,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{cache: c}, nil
}

// Get returns dir's snapshot, loading and memoizing it on a miss.
func (c *Cache) Get(dir string) (*Info, error) {
	dir = filepath.Clean(dir)
	if info, ok := c.cache.Get(dir); ok {
		return info, nil
	}
	info, err := Load(dir)
	if err != nil {
		return nil, err
	}
	c.cache.Set(dir, info, 1)
	// Admission is asynchronous; wait so a follow-up Get sees the entry.
	c.cache.Wait()
	return info, nil
}

// Invalidate drops dir's memoized snapshot.
func (c *Cache) Invalidate(dir string) {
	c.cache.Del(filepath.Clean(dir))
}

// Close releases the cache's internal machinery.
func (c *Cache) Close() {
	c.cache.Close()
}
