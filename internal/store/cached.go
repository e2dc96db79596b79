package store

import (
	"context"
	"sync"
	"time"

	"github.com/guarzo/flipwatch/internal/cache"
	"github.com/guarzo/flipwatch/internal/listing"
)

// Cached wraps a Store with a read-through TTL cache so repeated trend
// and report runs don't hammer the backend. Writes invalidate every
// listings key this wrapper has populated.
type Cached struct {
	Store
	cache *cache.Cache
	ttl   time.Duration

	mu   sync.Mutex
	keys map[string]struct{}
}

var _ Store = (*Cached)(nil)

// WithCache wraps s. A ttl <= 0 disables caching entirely.
func WithCache(s Store, c *cache.Cache, ttl time.Duration) Store {
	if c == nil || ttl <= 0 {
		return s
	}
	return &Cached{
		Store: s,
		cache: c,
		ttl:   ttl,
		keys:  make(map[string]struct{}),
	}
}

func (s *Cached) SaveBatch(ctx context.Context, items []listing.Listing) (int, error) {
	saved, err := s.Store.SaveBatch(ctx, items)
	if saved > 0 {
		s.mu.Lock()
		for key := range s.keys {
			_ = s.cache.Remove(key)
		}
		s.keys = make(map[string]struct{})
		s.mu.Unlock()
	}
	return saved, err
}

func (s *Cached) Listings(ctx context.Context, marketplace string, status listing.Status, limit int) ([]listing.Listing, error) {
	key := cache.ListingsKey(marketplace, string(status), limit)

	var cached []listing.Listing
	if found, err := s.cache.Get(key, &cached); err == nil && found {
		return cached, nil
	}

	out, err := s.Store.Listings(ctx, marketplace, status, limit)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Put(key, out, s.ttl); err == nil {
		s.mu.Lock()
		s.keys[key] = struct{}{}
		s.mu.Unlock()
	}
	return out, nil
}
