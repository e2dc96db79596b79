package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/guarzo/flipwatch/internal/listing"
)

func price(v float64) *float64 { return &v }

func soldListing(id, title string, p *float64, endTime string) listing.Listing {
	return listing.Listing{
		Marketplace: "ebay",
		Status:      listing.StatusCompleted,
		ListingID:   id,
		Title:       title,
		Price:       p,
		Currency:    "USD",
		EndTime:     endTime,
	}
}

func TestFile_SaveBatchIdempotent(t *testing.T) {
	s, err := NewFile(filepath.Join(t.TempDir(), "listings.json"))
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	ctx := context.Background()

	batch := []listing.Listing{
		soldListing("100", "Air Jordan 1 Bred", price(219.99), "2025-09-20T17:01:12.000Z"),
		soldListing("101", "Air Jordan 1 Royal", price(199.00), "2025-09-21T02:15:44.000Z"),
	}

	if saved, err := s.SaveBatch(ctx, batch); err != nil || saved != 2 {
		t.Fatalf("first SaveBatch: saved=%d err=%v", saved, err)
	}
	if saved, err := s.SaveBatch(ctx, batch); err != nil || saved != 2 {
		t.Fatalf("second SaveBatch: saved=%d err=%v", saved, err)
	}

	got, err := s.Listings(ctx, "ebay", listing.StatusCompleted, 0)
	if err != nil {
		t.Fatalf("Listings: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("re-saving must not duplicate rows: got %d", len(got))
	}
}

func TestFile_SaveBatchMergesFields(t *testing.T) {
	s, err := NewFile(filepath.Join(t.TempDir(), "listings.json"))
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	ctx := context.Background()

	full := soldListing("100", "Air Jordan 1 Bred", price(219.99), "2025-09-20T17:01:12.000Z")
	full.Seller = "sneaker_vault"
	if _, err := s.SaveBatch(ctx, []listing.Listing{full}); err != nil {
		t.Fatal(err)
	}

	// Same document seen again, this time with fewer fields filled.
	sparse := soldListing("100", "", nil, "")
	sparse.Condition = "Pre-owned"
	if _, err := s.SaveBatch(ctx, []listing.Listing{sparse}); err != nil {
		t.Fatal(err)
	}

	got, err := s.Listings(ctx, "ebay", listing.StatusCompleted, 0)
	if err != nil || len(got) != 1 {
		t.Fatalf("Listings: n=%d err=%v", len(got), err)
	}
	l := got[0]
	if l.Title != "Air Jordan 1 Bred" {
		t.Errorf("sparse re-save blanked the title: %q", l.Title)
	}
	if l.Price == nil || *l.Price != 219.99 {
		t.Errorf("sparse re-save lost the price: %v", l.Price)
	}
	if l.Seller != "sneaker_vault" {
		t.Errorf("sparse re-save lost the seller: %q", l.Seller)
	}
	if l.Condition != "Pre-owned" {
		t.Errorf("new field from the re-save missing: %q", l.Condition)
	}
}

func TestFile_SkipsListingsWithoutID(t *testing.T) {
	s, err := NewFile(filepath.Join(t.TempDir(), "listings.json"))
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}

	saved, err := s.SaveBatch(context.Background(), []listing.Listing{
		soldListing("", "mystery item", price(5), ""),
		soldListing("100", "Air Jordan 1", price(219.99), ""),
	})
	if err != nil {
		t.Fatalf("SaveBatch: %v", err)
	}
	if saved != 1 {
		t.Errorf("saved = %d, want 1", saved)
	}
}

func TestFile_ListingsOrderAndLimit(t *testing.T) {
	s, err := NewFile(filepath.Join(t.TempDir(), "listings.json"))
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	ctx := context.Background()

	_, err = s.SaveBatch(ctx, []listing.Listing{
		soldListing("100", "oldest", price(100), "2025-09-19T10:00:00.000Z"),
		soldListing("101", "newest", price(110), "2025-09-22T10:00:00.000Z"),
		soldListing("102", "middle", price(120), "2025-09-20T10:00:00.000Z"),
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.Listings(ctx, "ebay", listing.StatusCompleted, 2)
	if err != nil {
		t.Fatalf("Listings: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("limit ignored: got %d rows", len(got))
	}
	if got[0].Title != "newest" || got[1].Title != "middle" {
		t.Errorf("order wrong: %q, %q", got[0].Title, got[1].Title)
	}
}

func TestFile_FiltersByStatus(t *testing.T) {
	s, err := NewFile(filepath.Join(t.TempDir(), "listings.json"))
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	ctx := context.Background()

	live := soldListing("200", "live auction", price(50), "")
	live.Status = listing.StatusLive
	_, err = s.SaveBatch(ctx, []listing.Listing{
		soldListing("100", "sold one", price(100), ""),
		live,
	})
	if err != nil {
		t.Fatal(err)
	}

	completed, err := s.Listings(ctx, "ebay", listing.StatusCompleted, 0)
	if err != nil || len(completed) != 1 || completed[0].ListingID != "100" {
		t.Errorf("completed filter: n=%d err=%v", len(completed), err)
	}
	liveRows, err := s.Listings(ctx, "ebay", listing.StatusLive, 0)
	if err != nil || len(liveRows) != 1 || liveRows[0].ListingID != "200" {
		t.Errorf("live filter: n=%d err=%v", len(liveRows), err)
	}
}

func TestFile_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listings.json")
	ctx := context.Background()

	s1, err := NewFile(path)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	if _, err := s1.SaveBatch(ctx, []listing.Listing{
		soldListing("100", "Air Jordan 1 Bred", price(219.99), "2025-09-20T17:01:12.000Z"),
	}); err != nil {
		t.Fatal(err)
	}

	s2, err := NewFile(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := s2.Listings(ctx, "ebay", listing.StatusCompleted, 0)
	if err != nil || len(got) != 1 {
		t.Fatalf("reloaded rows: n=%d err=%v", len(got), err)
	}
	if got[0].DocID() != "ebay_completed_100" {
		t.Errorf("DocID = %q", got[0].DocID())
	}
}
