// Package kv is an item cache written through to a kvstore.KVStore, so known
// items survive restarts when the store is persistent.
package kv

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shruggr/workshop/kvstore"
	"github.com/shruggr/workshop/models"
)

// Cache keeps every entry in memory and mirrors writes to the store
type Cache struct {
	mu     sync.RWMutex
	front  map[models.ItemID]*models.Item
	store  kvstore.KVStore
	logger *slog.Logger
}

// New creates a cache over store
func New(store kvstore.KVStore, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		front:  make(map[models.ItemID]*models.Item),
		store:  store,
		logger: logger,
	}
}

// Load reads every item entry from the store into memory. Stores that cannot
// iterate are read lazily on Get instead.
func (c *Cache) Load(ctx context.Context) (int, error) {
	it, ok := c.store.(kvstore.Iterator)
	if !ok {
		return 0, nil
	}

	loaded := make(map[models.ItemID]*models.Item)
	err := it.ForEach(ctx, kvstore.ItemPrefix(), func(key, value []byte) error {
		id, err := kvstore.ParseItemKey(key)
		if err != nil {
			return err
		}
		item, err := models.UnmarshalEntry(value)
		if err != nil {
			return fmt.Errorf("item %s: %w", id, err)
		}
		loaded[id] = item
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to load cache: %w", err)
	}

	c.mu.Lock()
	for id, item := range loaded {
		if _, exists := c.front[id]; !exists {
			c.front[id] = item
		}
	}
	c.mu.Unlock()

	return len(loaded), nil
}

// Get retrieves a cached record, falling back to the store on a memory miss
func (c *Cache) Get(id models.ItemID) (*models.Item, bool) {
	c.mu.RLock()
	item, ok := c.front[id]
	c.mu.RUnlock()
	if ok {
		return item.Clone(), true
	}

	value, err := c.store.Get(context.Background(), kvstore.ItemKey(id))
	if err != nil {
		c.logger.Warn("Cache store read failed", "id", id, "error", err)
		return nil, false
	}
	if value == nil {
		return nil, false
	}

	item, err = models.UnmarshalEntry(value)
	if err != nil {
		c.logger.Warn("Discarding corrupt cache entry", "id", id, "error", err)
		return nil, false
	}

	c.mu.Lock()
	if _, exists := c.front[id]; !exists {
		c.front[id] = item
	}
	c.mu.Unlock()

	return item.Clone(), true
}

// Put stores a record, or nil for a known-absent id
// The memory entry is updated even if the store write fails. Writes hold
// c.mu throughout so memory and store agree on the last writer.
func (c *Cache) Put(id models.ItemID, item *models.Item) error {
	value, err := models.MarshalEntry(item)
	if err != nil {
		return fmt.Errorf("failed to encode item %s: %w", id, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.front[id] = item.Clone()
	if err := c.store.Put(context.Background(), kvstore.ItemKey(id), value); err != nil {
		return fmt.Errorf("failed to persist item %s: %w", id, err)
	}
	return nil
}

// Contains reports whether the id has been queried
func (c *Cache) Contains(id models.ItemID) bool {
	_, ok := c.Get(id)
	return ok
}
