package kv

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/shruggr/workshop/kvstore"
	"github.com/shruggr/workshop/kvstore/badger"
	"github.com/shruggr/workshop/kvstore/memory"
	"github.com/shruggr/workshop/models"
)

func TestWriteThroughAndLazyRead(t *testing.T) {
	store := memory.New()
	c := New(store, nil)

	if err := c.Put(1, &models.Item{ID: 1, Title: "One", Tags: []string{}}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := c.Put(2, nil); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	raw, err := store.Get(context.Background(), kvstore.ItemKey(2))
	if err != nil || string(raw) != "null" {
		t.Fatalf("Expected null entry in store, got %q (%v)", raw, err)
	}

	// a second cache over the same store reads through on miss
	fresh := New(store, nil)
	item, ok := fresh.Get(1)
	if !ok || item == nil || item.Title != "One" {
		t.Fatalf("Expected record from store, got %+v ok=%v", item, ok)
	}
	item, ok = fresh.Get(2)
	if !ok || item != nil {
		t.Errorf("Expected known-absent from store, got %+v ok=%v", item, ok)
	}
	if fresh.Contains(3) {
		t.Error("Never-queried id should miss")
	}
}

func TestLoadFromBadger(t *testing.T) {
	dir := t.TempDir()

	store, err := badger.New(&badger.Config{DataDir: dir})
	if err != nil {
		t.Fatalf("Failed to open badger: %v", err)
	}
	c := New(store, nil)
	c.Put(10, &models.Item{ID: 10, Title: "Ten", Tags: []string{"map"}})
	c.Put(11, nil)
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	store, err = badger.New(&badger.Config{DataDir: dir})
	if err != nil {
		t.Fatalf("Failed to reopen badger: %v", err)
	}
	defer store.Close()

	reopened := New(store, nil)
	n, err := reopened.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 loaded entries, got %d", n)
	}

	item, ok := reopened.Get(10)
	if !ok || item == nil || item.Title != "Ten" || len(item.Tags) != 1 {
		t.Errorf("Unexpected record after reload: %+v", item)
	}
	if item, ok := reopened.Get(11); !ok || item != nil {
		t.Errorf("Expected known-absent after reload, got %+v ok=%v", item, ok)
	}
}

func TestConcurrentPutsAgreeWithStore(t *testing.T) {
	store := memory.New()
	c := New(store, nil)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Put(1, &models.Item{ID: 1, Title: fmt.Sprintf("writer %d", i), Tags: []string{}})
		}()
	}
	wg.Wait()

	inMemory, _ := c.Get(1)
	persisted, ok := New(store, nil).Get(1)
	if !ok || persisted == nil || inMemory == nil {
		t.Fatalf("Expected record in both layers, got %+v and %+v", inMemory, persisted)
	}
	if inMemory.Title != persisted.Title {
		t.Errorf("Memory holds %q but store holds %q", inMemory.Title, persisted.Title)
	}
}
