package paths

import (
	"os"
	"path/filepath"
	"sync"
)

// Handle is a resolved reference to a filesystem location. Handles are
// handed out by a Cache and never change once created, so two handles for the
// same string from the same Cache are the same pointer.
type Handle struct {
	path string
}

// String returns the path the handle was resolved from.
func (h *Handle) String() string {
	if h == nil {
		return ""
	}
	return h.path
}

// Join appends elements to the handle's path.
func (h *Handle) Join(elem ...string) string {
	return filepath.Join(append([]string{h.String()}, elem...)...)
}

// Abs returns the absolute form of the handle's path.
func (h *Handle) Abs() (string, error) {
	return filepath.Abs(h.String())
}

// Exists reports whether anything exists at the handle's path.
func (h *Handle) Exists() bool {
	if h == nil || h.path == "" {
		return false
	}
	_, err := os.Stat(h.path)
	return err == nil
}

// Cache memoizes Handles by their exact path string. Entries live as long as
// the Cache; there is no eviction.
type Cache struct {
	mu      sync.Mutex
	handles map[string]*Handle
}

// Default is the process-wide cache used by the command line front end.
var Default = NewCache()

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{handles: make(map[string]*Handle)}
}

// Resolve returns the handle cached for path, creating it on first use.
// The lookup and insert happen under one lock so concurrent first calls for
// the same string observe a single handle.
func (c *Cache) Resolve(path string) *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.handles[path]; ok {
		return h
	}
	if c.handles == nil {
		c.handles = make(map[string]*Handle)
	}
	h := &Handle{path: path}
	c.handles[path] = h
	return h
}

// Len returns the number of cached handles.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handles)
}
