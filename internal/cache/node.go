// Package cache holds small lookup tables that spare round trips to the
// browser or the database.
package cache

import "sync"

// NodeCache maps backend DOM node ids to the frontend node ids of the
// current document. Frontend ids are only valid until the document changes,
// so the cache is reset on navigation.
type NodeCache struct {
	mu    sync.RWMutex
	nodes map[int64]int64
}

func NewNodeCache() *NodeCache {
	return &NodeCache{nodes: make(map[int64]int64)}
}

func (c *NodeCache) Get(backendNodeID int64) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.nodes[backendNodeID]
	return id, ok
}

func (c *NodeCache) Set(backendNodeID, nodeID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes[backendNodeID] = nodeID
}

// Len returns the number of cached nodes.
func (c *NodeCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.nodes)
}

// Reset forgets every node.
func (c *NodeCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes = make(map[int64]int64)
}
