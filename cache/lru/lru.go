package lru

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shruggr/workshop/models"
)

// Cache is a bounded item cache that evicts the least recently used ids
// golang-lru is internally synchronized, so no extra lock is needed
type Cache struct {
	lru *lru.Cache[models.ItemID, *models.Item]
}

// New creates an LRU cache holding at most size ids
func New(size int) (*Cache, error) {
	l, err := lru.New[models.ItemID, *models.Item](size)
	if err != nil {
		return nil, err
	}

	return &Cache{
		lru: l,
	}, nil
}

// Get retrieves a cached record
func (c *Cache) Get(id models.ItemID) (*models.Item, bool) {
	item, ok := c.lru.Get(id)
	return item.Clone(), ok
}

// Put stores a record, or nil for a known-absent id
func (c *Cache) Put(id models.ItemID, item *models.Item) error {
	c.lru.Add(id, item.Clone())
	return nil
}

// Contains reports whether the id is cached without touching its recency
func (c *Cache) Contains(id models.ItemID) bool {
	return c.lru.Contains(id)
}

// Len returns the number of cached ids
func (c *Cache) Len() int {
	return c.lru.Len()
}
