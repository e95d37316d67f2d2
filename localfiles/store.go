package localfiles

import (
	"context"

	"github.com/shruggr/workshop/models"
)

// Association links a catalog item to an addon file on local disk
type Association struct {
	ItemID    models.ItemID
	Path      string // absolute path to the .gma file
	Size      int64  // file size in bytes
	UpdatedAt int64  // unix seconds when the association was recorded
}

// Store defines the interface for storing item to local file associations
// Implementations use SQLite or other relational databases
type Store interface {
	// Put records or replaces the association for an item
	Put(ctx context.Context, assoc *Association) error

	// Get retrieves the association for an item
	// Returns nil if the item has no local file
	Get(ctx context.Context, id models.ItemID) (*Association, error)

	// GetByPath retrieves the association for a file path
	GetByPath(ctx context.Context, path string) (*Association, error)

	// Delete removes the association for an item
	Delete(ctx context.Context, id models.ItemID) error

	// List returns all associations ordered by item id
	List(ctx context.Context) ([]*Association, error)

	// Close releases any resources
	Close() error
}
