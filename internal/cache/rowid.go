package cache

import "sync"

// RowIDCache maps protocol group ids to their database primary keys for the
// current session.
type RowIDCache struct {
	mu   sync.RWMutex
	rows map[string]uint
}

func NewRowIDCache() *RowIDCache {
	return &RowIDCache{rows: make(map[string]uint)}
}

// Get retrieves a row ID by group id
func (c *RowIDCache) Get(groupID string) (uint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.rows[groupID]
	return id, ok
}

// Set stores a row ID by group id
func (c *RowIDCache) Set(groupID string, id uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows[groupID] = id
}

// Reset clears all rows, e.g. after the page was reset
func (c *RowIDCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = make(map[string]uint)
}
