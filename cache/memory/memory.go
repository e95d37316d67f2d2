package memory

import (
	"sync"

	"github.com/shruggr/workshop/models"
)

// Cache is an unbounded in-memory item cache that lives for the session
type Cache struct {
	mu    sync.RWMutex
	items map[models.ItemID]*models.Item
}

// New creates an empty cache
func New() *Cache {
	return &Cache{
		items: make(map[models.ItemID]*models.Item),
	}
}

// Get retrieves a cached record
func (c *Cache) Get(id models.ItemID) (*models.Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[id]
	return item.Clone(), ok
}

// Put stores a record, or nil for a known-absent id
func (c *Cache) Put(id models.ItemID, item *models.Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[id] = item.Clone()
	return nil
}

// Contains reports whether the id has been queried
func (c *Cache) Contains(id models.ItemID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.items[id]
	return ok
}

// Len returns the number of cached ids
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}
