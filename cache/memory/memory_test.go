package memory

import (
	"sync"
	"testing"

	"github.com/shruggr/workshop/models"
)

func TestKnownAbsentIsDistinctFromNeverQueried(t *testing.T) {
	c := New()

	if c.Contains(1) {
		t.Fatal("Empty cache should not contain id")
	}
	if _, ok := c.Get(1); ok {
		t.Fatal("Get on empty cache should miss")
	}

	if err := c.Put(1, nil); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	item, ok := c.Get(1)
	if !ok {
		t.Fatal("Known-absent id should be a hit")
	}
	if item != nil {
		t.Errorf("Known-absent id should return nil item, got %+v", item)
	}
	if !c.Contains(1) {
		t.Error("Contains should report known-absent id")
	}
}

func TestPutOverwrites(t *testing.T) {
	c := New()
	c.Put(5, nil)
	c.Put(5, &models.Item{ID: 5, Title: "Found"})

	item, ok := c.Get(5)
	if !ok || item == nil || item.Title != "Found" {
		t.Fatalf("Expected overwritten record, got %+v", item)
	}
	if c.Len() != 1 {
		t.Errorf("Expected 1 entry, got %d", c.Len())
	}
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	c := New()
	c.Put(2, &models.Item{ID: 2, Title: "Original", Tags: []string{"a"}})

	item, _ := c.Get(2)
	item.Title = "Changed"
	item.Tags[0] = "b"

	again, _ := c.Get(2)
	if again.Title != "Original" || again.Tags[0] != "a" {
		t.Errorf("Cached record was mutated through a returned pointer: %+v", again)
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id models.ItemID) {
			defer wg.Done()
			c.Put(id, &models.Item{ID: id})
			c.Get(id)
			c.Contains(id)
		}(models.ItemID(i))
	}
	wg.Wait()

	if c.Len() != 50 {
		t.Errorf("Expected 50 entries, got %d", c.Len())
	}
}
