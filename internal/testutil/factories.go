package testutil

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/guarzo/flipwatch/internal/listing"
)

// Factory generates market-data fixtures for tests. A fixed seed makes
// the output deterministic.
type Factory struct {
	rand *rand.Rand
	seq  int
}

// NewFactory creates a factory with a seeded random generator. A zero
// seed falls back to the clock.
func NewFactory(seed int64) *Factory {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{
		rand: rand.New(rand.NewSource(seed)),
	}
}

// ListingID returns a fresh synthetic item id.
func (f *Factory) ListingID() string {
	f.seq++
	return fmt.Sprintf("33590%07d", f.seq)
}

// Title returns a plausible sneaker listing title.
func (f *Factory) Title() string {
	models := []string{
		"Air Jordan 1 Retro High OG 'Bred'",
		"Air Jordan 4 'Bred Reimagined'",
		"Nike Dunk Low 'Panda'",
		"Yeezy Boost 350 V2 'Zebra'",
		"New Balance 550 'White Green'",
	}
	return fmt.Sprintf("%s Size %d", models[f.rand.Intn(len(models))], f.rand.Intn(7)+7)
}

// Price returns a price between $40 and $440.
func (f *Factory) Price() float64 {
	cents := f.rand.Intn(40000) + 4000
	return float64(cents) / 100
}

// Sold returns a completed listing that ended at end.
func (f *Factory) Sold(title string, price float64, end time.Time) listing.Listing {
	return listing.Listing{
		Marketplace: "ebay",
		Status:      listing.StatusCompleted,
		ListingID:   f.ListingID(),
		Title:       title,
		Price:       &price,
		Currency:    "USD",
		Condition:   "Pre-owned",
		EndTime:     end.UTC().Format(time.RFC3339),
	}
}

// Live returns an active listing ending a week out.
func (f *Factory) Live(title string, price float64) listing.Listing {
	l := f.Sold(title, price, time.Now().AddDate(0, 0, 7))
	l.Status = listing.StatusLive
	return l
}

// SoldSeries returns perDay completed sales for each of days consecutive
// days ending at end. Prices drift by slope per day around base, with a
// little noise so days are not flat.
func (f *Factory) SoldSeries(title string, days, perDay int, base, slope float64, end time.Time) []listing.Listing {
	var rows []listing.Listing
	for d := 0; d < days; d++ {
		day := end.AddDate(0, 0, -(days - 1 - d))
		for i := 0; i < perDay; i++ {
			price := base + slope*float64(d) + f.rand.Float64()*2 - 1
			rows = append(rows, f.Sold(title, price, day.Add(time.Duration(i)*time.Hour)))
		}
	}
	return rows
}

// RawItem returns a Finding-API-shaped item document, singleton arrays
// and all, for feeding the normalizer.
func (f *Factory) RawItem(title string, price float64, end time.Time) json.RawMessage {
	doc := fmt.Sprintf(`{
		"itemId": [%q],
		"title": [%q],
		"sellingStatus": [{"currentPrice": [{"__value__": "%.2f", "@currencyId": "USD"}]}],
		"listingInfo": [{"endTime": [%q]}]
	}`, f.ListingID(), title, price, end.UTC().Format("2006-01-02T15:04:05.000Z"))
	return json.RawMessage(doc)
}
