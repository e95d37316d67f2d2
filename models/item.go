package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shruggr/workshop/sdk"
)

// ItemID identifies a catalog item
// Aliased to sdk.PublishedFileID so SDK results can be keyed without conversion
type ItemID = sdk.PublishedFileID

// ParseItemID parses a decimal item id
func ParseItemID(s string) (ItemID, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid item id %q: %w", s, err)
	}
	return ItemID(v), nil
}

// Item is the last known catalog record for an item
type Item struct {
	ID            ItemID   `json:"id,string"`
	Title         string   `json:"title"`
	TimeCreated   uint32   `json:"timeCreated"`
	TimeUpdated   uint32   `json:"timeUpdated"`
	Score         float32  `json:"score"`
	Tags          []string `json:"tags"`
	PreviewURL    *string  `json:"previewUrl"`
	Subscriptions uint64   `json:"subscriptions"`
	LocalFile     *string  `json:"localFile"`
	SearchTitle   string   `json:"searchTitle"`
}

// NewItem builds an item from a full query result
// PreviewURL, Subscriptions and LocalFile are filled in by the caller
func NewItem(result *sdk.QueryResult) *Item {
	tags := result.Tags
	if tags == nil {
		tags = []string{}
	}
	return &Item{
		ID:          result.PublishedFileID,
		Title:       result.Title,
		TimeCreated: result.TimeCreated,
		TimeUpdated: result.TimeUpdated,
		Score:       result.Score,
		Tags:        tags,
		SearchTitle: strings.ToLower(result.Title),
	}
}

// StubItem builds a displayable placeholder for an id the catalog has no record for
func StubItem(id ItemID) *Item {
	title := id.String()
	return &Item{
		ID:          id,
		Title:       title,
		Tags:        []string{},
		SearchTitle: title,
	}
}

// Clone returns a deep copy so cached records cannot be mutated through a returned pointer
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	c := *i
	c.Tags = append([]string{}, i.Tags...)
	if i.PreviewURL != nil {
		u := *i.PreviewURL
		c.PreviewURL = &u
	}
	if i.LocalFile != nil {
		p := *i.LocalFile
		c.LocalFile = &p
	}
	return &c
}

// HasTag reports whether the item carries tag (case-insensitive)
func (i *Item) HasTag(tag string) bool {
	for _, t := range i.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// MarshalEntry encodes a cache entry; a nil item encodes as JSON null
func MarshalEntry(item *Item) ([]byte, error) {
	return json.Marshal(item)
}

// UnmarshalEntry decodes a cache entry written by MarshalEntry
func UnmarshalEntry(data []byte) (*Item, error) {
	var item *Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	return item, nil
}
