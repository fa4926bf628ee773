package cache

import (
	"sync"
	"testing"
	"time"
)

func TestSetGetDelete(t *testing.T) {
	c := New[int](4, 0, nil)
	c.Set("G1", 1)
	c.Set("G2", 2)

	if v, ok := c.Get("G1"); !ok || v != 1 {
		t.Errorf("expected G1=1, got %d %v", v, ok)
	}
	if !c.Delete("G1") {
		t.Error("expected G1 to be deleted")
	}
	if _, ok := c.Get("G1"); ok {
		t.Error("G1 should be gone")
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", c.Len())
	}
}

func TestSizeEvictsOldest(t *testing.T) {
	var evicted []string
	c := New[string](2, 0, func(id string, v string) {
		evicted = append(evicted, id+"="+v)
	})
	c.Set("G1", "a")
	c.Set("G2", "b")
	c.Get("G1")
	if !c.Set("G3", "c") {
		t.Error("expected an eviction")
	}

	if len(evicted) != 1 || evicted[0] != "G2=b" {
		t.Errorf("expected G2 to be evicted, got %v", evicted)
	}
	ids := c.GameIDs()
	if len(ids) != 2 || ids[0] != "G1" || ids[1] != "G3" {
		t.Errorf("unexpected ids %v", ids)
	}
}

func TestExpiry(t *testing.T) {
	var mu sync.Mutex
	var evicted []string
	c := New[int](10, 200*time.Millisecond, func(id string, _ int) {
		mu.Lock()
		evicted = append(evicted, id)
		mu.Unlock()
	})
	c.Set("G1", 1)
	c.Set("G2", 2)

	time.Sleep(120 * time.Millisecond)
	if !c.Touch("G2") {
		t.Fatal("G2 should still be cached")
	}
	time.Sleep(130 * time.Millisecond)

	if _, ok := c.Get("G1"); ok {
		t.Error("G1 should have expired")
	}
	if _, ok := c.Get("G2"); !ok {
		t.Error("touched G2 should still be alive")
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(evicted)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(evicted) == 0 || evicted[0] != "G1" {
		t.Errorf("expected G1 to be swept, got %v", evicted)
	}
}

func TestPurgeEvictsEverything(t *testing.T) {
	n := 0
	c := New[int](10, 0, func(string, int) { n++ })
	c.Set("G1", 1)
	c.Set("G2", 2)
	c.Purge()
	if n != 2 || c.Len() != 0 {
		t.Errorf("expected 2 evictions and an empty cache, got %d and %d", n, c.Len())
	}
}
