package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(filepath.Join(t.TempDir(), "cache.json"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestCache_PutGet(t *testing.T) {
	c := newTestCache(t)

	type row struct {
		Title string  `json:"title"`
		Price float64 `json:"price"`
	}
	put := []row{{"Air Jordan 1 Bred", 219.99}, {"Air Jordan 1 Royal", 199.00}}

	if err := c.Put("listings|ebay|completed|2000", put, time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}

	var got []row
	found, err := c.Get("listings|ebay|completed|2000", &got)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found {
		t.Fatal("expected a hit")
	}
	if len(got) != 2 || got[0].Title != put[0].Title || got[1].Price != put[1].Price {
		t.Errorf("got %+v, want %+v", got, put)
	}
}

func TestCache_TTLExpiration(t *testing.T) {
	c := newTestCache(t)

	if err := c.Put("short", "will expire", 50*time.Millisecond); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := c.Put("forever", "permanent", 0); err != nil {
		t.Fatalf("Put: %v", err)
	}

	var s string
	if found, _ := c.Get("short", &s); !found {
		t.Error("entry should be live before its TTL")
	}

	time.Sleep(100 * time.Millisecond)

	if found, _ := c.Get("short", &s); found {
		t.Error("entry should have expired")
	}
	if found, _ := c.Get("forever", &s); !found || s != "permanent" {
		t.Errorf("zero-TTL entry should never expire, found=%v s=%q", found, s)
	}
}

func TestCache_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	c1, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c1.Put("key", "survives restarts", time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}

	c2, err := New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	var s string
	if found, _ := c2.Get("key", &s); !found || s != "survives restarts" {
		t.Errorf("reloaded entry: found=%v s=%q", found, s)
	}
}

func TestCache_CorruptFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	if err := os.WriteFile(path, []byte("{invalid json"), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := New(path)
	if err != nil {
		t.Fatalf("New should tolerate a corrupt file: %v", err)
	}
	if err := c.Put("key", "value", time.Hour); err != nil {
		t.Fatalf("Put after corruption: %v", err)
	}
	var s string
	if found, _ := c.Get("key", &s); !found {
		t.Error("cache should work after discarding a corrupt file")
	}
}

func TestCache_RemoveAndClear(t *testing.T) {
	c := newTestCache(t)

	for i := 0; i < 3; i++ {
		if err := c.Put(fmt.Sprintf("key%d", i), i, time.Hour); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	if err := c.Remove("key1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	var n int
	if found, _ := c.Get("key1", &n); found {
		t.Error("removed entry should be gone")
	}
	if found, _ := c.Get("key0", &n); !found {
		t.Error("other entries should survive Remove")
	}

	if err := c.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if found, _ := c.Get("key0", &n); found {
		t.Error("Clear should drop everything")
	}
}

func TestCache_ConcurrentPuts(t *testing.T) {
	c := newTestCache(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				key := fmt.Sprintf("k_%d_%d", id, j)
				if err := c.Put(key, id*100+j, time.Hour); err != nil {
					t.Errorf("Put %s: %v", key, err)
				}
			}
		}(i)
	}
	wg.Wait()

	var n int
	if found, _ := c.Get("k_9_19", &n); !found || n != 919 {
		t.Errorf("k_9_19: found=%v n=%d", found, n)
	}
}

func TestBuildKey(t *testing.T) {
	tests := []struct {
		parts []string
		want  string
	}{
		{[]string{"a"}, "a"},
		{[]string{"a", "b", "c"}, "a|b|c"},
		{[]string{}, ""},
	}
	for _, tt := range tests {
		if got := BuildKey(tt.parts...); got != tt.want {
			t.Errorf("BuildKey(%v) = %q, want %q", tt.parts, got, tt.want)
		}
	}

	if got := ListingsKey("ebay", "completed", 2000); got != "listings|ebay|completed|2000" {
		t.Errorf("ListingsKey = %q", got)
	}
}
