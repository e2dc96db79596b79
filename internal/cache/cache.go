package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Cache is a file-backed JSON cache with per-entry TTLs. The analytics
// read path puts store query results here so repeated trend/predict
// invocations inside the TTL don't re-stream the whole collection.
type Cache struct {
	path    string
	mu      sync.RWMutex
	entries map[string]Entry
}

type Entry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	TTL       time.Duration   `json:"ttl"`
}

func (e Entry) expired() bool {
	return e.TTL > 0 && time.Since(e.Timestamp) > e.TTL
}

// New opens the cache at path, loading any existing entries. A corrupt
// cache file is discarded rather than surfaced.
func New(path string) (*Cache, error) {
	c := &Cache{
		path:    path,
		entries: make(map[string]Entry),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &c.entries); err != nil {
			c.entries = make(map[string]Entry)
		}
	}
	return c, nil
}

// Get unmarshals the entry for key into target. Returns false on a miss
// or an expired entry; expired entries are dropped.
func (c *Cache) Get(key string, target any) (bool, error) {
	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok && entry.expired() {
		delete(c.entries, key)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(entry.Data, target); err != nil {
		return false, fmt.Errorf("unmarshal cache entry: %w", err)
	}
	return true, nil
}

// Put stores value under key with the given TTL and persists the cache.
// A ttl of zero never expires.
func (c *Cache) Put(key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value: %w", err)
	}

	c.mu.Lock()
	c.entries[key] = Entry{Data: data, Timestamp: time.Now(), TTL: ttl}
	c.mu.Unlock()

	return c.persist()
}

// Remove deletes one entry.
func (c *Cache) Remove(key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return c.persist()
}

// Clear drops every entry.
func (c *Cache) Clear() error {
	c.mu.Lock()
	c.entries = make(map[string]Entry)
	c.mu.Unlock()
	return c.persist()
}

func (c *Cache) persist() error {
	if dir := filepath.Dir(c.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create cache dir: %w", err)
		}
	}

	c.mu.RLock()
	data, err := json.MarshalIndent(c.entries, "", "  ")
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	return os.WriteFile(c.path, data, 0644)
}

// BuildKey joins parts into a semantic cache key.
func BuildKey(parts ...string) string {
	return strings.Join(parts, "|")
}

// ListingsKey keys a store read by marketplace, status and row limit.
func ListingsKey(marketplace, status string, limit int) string {
	return BuildKey("listings", marketplace, status, strconv.Itoa(limit))
}
