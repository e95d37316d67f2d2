package cache

import (
	"github.com/shruggr/workshop/models"
)

// ItemCache maps item ids to their last known record
// A nil record is a cached value meaning "queried, confirmed absent",
// distinct from an id that was never queried
type ItemCache interface {
	// Get returns the cached record and whether the id has been queried
	// A known-absent id returns (nil, true)
	Get(id models.ItemID) (*models.Item, bool)

	// Put stores the outcome of a completed query for an id
	Put(id models.ItemID, item *models.Item) error

	// Contains reports whether the id has been queried
	Contains(id models.ItemID) bool
}
