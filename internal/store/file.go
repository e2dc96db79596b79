package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/guarzo/flipwatch/internal/listing"
)

// File is the zero-infrastructure backend: one JSON file holding every
// document keyed by DocID. Fine for local runs and the offline sample.
type File struct {
	path string
	mu   sync.RWMutex
	docs map[string]listing.Listing
}

var _ Store = (*File)(nil)

// NewFile opens or creates a file-backed store at path.
func NewFile(path string) (*File, error) {
	s := &File{
		path: path,
		docs: make(map[string]listing.Listing),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading store file: %w", err)
	}
	if err := json.Unmarshal(data, &s.docs); err != nil {
		// A data file is not a cache: refuse to silently wipe it.
		return nil, fmt.Errorf("parsing store file %s: %w", path, err)
	}
	return s, nil
}

func (s *File) SaveBatch(ctx context.Context, items []listing.Listing) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	saved := 0
	for _, item := range items {
		if item.ListingID == "" {
			continue
		}
		id := item.DocID()
		if old, ok := s.docs[id]; ok {
			item = merge(old, item)
		}
		s.docs[id] = item
		saved++
	}
	if saved == 0 {
		return 0, nil
	}
	return saved, s.persist()
}

func (s *File) Listings(ctx context.Context, marketplace string, status listing.Status, limit int) ([]listing.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	var out []listing.Listing
	for _, l := range s.docs {
		if l.Marketplace == marketplace && l.Status == status {
			out = append(out, l)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].EndTime != out[j].EndTime {
			return out[i].EndTime > out[j].EndTime
		}
		return out[i].ListingID < out[j].ListingID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *File) Close() error {
	return nil
}

// persist writes the whole document map. Caller holds the lock.
func (s *File) persist() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating store directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(s.docs, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding store: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("writing store file: %w", err)
	}
	return nil
}

// merge folds an incoming document into an existing one. Filled fields
// win; absent fields keep whatever was already stored.
func merge(old, next listing.Listing) listing.Listing {
	out := next
	if out.Title == "" {
		out.Title = old.Title
	}
	if out.Category == "" {
		out.Category = old.Category
	}
	if out.Price == nil {
		out.Price = old.Price
	}
	if out.Currency == "" {
		out.Currency = old.Currency
	}
	if out.Seller == "" {
		out.Seller = old.Seller
	}
	if out.SellerFeedback == 0 {
		out.SellerFeedback = old.SellerFeedback
	}
	if out.Condition == "" {
		out.Condition = old.Condition
	}
	if out.Image == "" {
		out.Image = old.Image
	}
	if out.URL == "" {
		out.URL = old.URL
	}
	if out.StartTime == "" {
		out.StartTime = old.StartTime
	}
	if out.EndTime == "" {
		out.EndTime = old.EndTime
	}
	if out.Raw == nil {
		out.Raw = old.Raw
	}
	return out
}
