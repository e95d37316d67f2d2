package lru

import (
	"testing"

	"github.com/shruggr/workshop/models"
)

func TestLRUEviction(t *testing.T) {
	c, err := New(2)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	c.Put(1, &models.Item{ID: 1})
	c.Put(2, nil)
	c.Get(1) // 2 is now least recently used
	c.Put(3, &models.Item{ID: 3})

	if !c.Contains(1) || !c.Contains(3) {
		t.Error("Expected 1 and 3 to remain")
	}
	if c.Contains(2) {
		t.Error("Expected 2 to be evicted")
	}
	if c.Len() != 2 {
		t.Errorf("Expected 2 entries, got %d", c.Len())
	}
}

func TestLRUKnownAbsent(t *testing.T) {
	c, err := New(10)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	c.Put(9, nil)
	item, ok := c.Get(9)
	if !ok || item != nil {
		t.Errorf("Expected known-absent hit, got %+v ok=%v", item, ok)
	}
}

func TestLRUInvalidSize(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Error("Expected error for zero size")
	}
}
