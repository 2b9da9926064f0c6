package pathexpr

import "sync"

// DefaultCacheSize bounds the package-level compiled-path cache.
const DefaultCacheSize = 1024

var defaultCache = NewCache(DefaultCacheSize)

// Cache memoizes compiled paths. When full, the oldest entry is evicted.
//
// Paths are typically reused many times per action, so compiling once per
// distinct string keeps hot updaters allocation-free on the parse side.
//
// Thread-safety: all methods are safe for concurrent use.
type Cache struct {
	mu    sync.Mutex
	size  int
	paths map[string]*Path
	order []string // insertion order, oldest first
}

// NewCache creates a cache holding at most size entries.
// A size below 1 is treated as 1.
func NewCache(size int) *Cache {
	if size < 1 {
		size = 1
	}
	return &Cache{
		size:  size,
		paths: make(map[string]*Path, size),
		order: make([]string, 0, size),
	}
}

// Compile returns the cached path for expr, compiling and storing it on a
// miss. Failed compilations are not cached.
func (c *Cache) Compile(expr string) (*Path, error) {
	c.mu.Lock()
	if p, ok := c.paths[expr]; ok {
		c.mu.Unlock()
		return p, nil
	}
	c.mu.Unlock()

	p, err := compile(expr)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.paths[expr]; ok {
		return existing, nil
	}
	if len(c.order) >= c.size {
		oldest := c.order[0]
		c.order[0] = ""
		c.order = c.order[1:]
		delete(c.paths, oldest)
	}
	c.paths[expr] = p
	c.order = append(c.order, expr)
	return p, nil
}

// Len returns the number of cached paths.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.paths)
}

// Contains reports whether expr is cached.
func (c *Cache) Contains(expr string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.paths[expr]
	return ok
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths = make(map[string]*Path, c.size)
	c.order = make([]string, 0, c.size)
}

// Resize changes the capacity, evicting the oldest entries that no longer fit.
func (c *Cache) Resize(size int) {
	if size < 1 {
		size = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.size = size
	for len(c.order) > size {
		delete(c.paths, c.order[0])
		c.order = c.order[1:]
	}
}

// SetDefaultCacheSize resizes the cache used by Compile.
func SetDefaultCacheSize(size int) {
	defaultCache.Resize(size)
}
