package kvstore

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/shruggr/workshop/models"
)

// KVStore defines a generic key-value store interface
type KVStore interface {
	// Put stores a key-value pair
	Put(ctx context.Context, key []byte, value []byte) error

	// Get retrieves a value by key
	// Returns nil if key doesn't exist
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Delete removes a key-value pair
	Delete(ctx context.Context, key []byte) error

	// Close releases any resources
	Close() error
}

// itemPrefix namespaces item entries so the store can hold other data later
const itemPrefix = 'i'

// ItemKey returns the store key for an item id: 'i' followed by the big-endian id
func ItemKey(id models.ItemID) []byte {
	key := make([]byte, 9)
	key[0] = itemPrefix
	binary.BigEndian.PutUint64(key[1:], uint64(id))
	return key
}

// ParseItemKey reverses ItemKey
func ParseItemKey(key []byte) (models.ItemID, error) {
	if len(key) != 9 || key[0] != itemPrefix {
		return 0, fmt.Errorf("not an item key: %x", key)
	}
	return models.ItemID(binary.BigEndian.Uint64(key[1:])), nil
}

// Iterator is implemented by stores that can enumerate keys by prefix
type Iterator interface {
	ForEach(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error
}

// ItemPrefix returns the key prefix shared by all item entries
func ItemPrefix() []byte {
	return []byte{itemPrefix}
}
