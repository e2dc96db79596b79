// Package quote answers a one-shot market look for a query without
// touching the store. Sources are tried in order: completed sales, then
// live asks, then the embedded sample data, and the snapshot says which
// one answered and why.
package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/guarzo/flipwatch/internal/ebay"
	"github.com/guarzo/flipwatch/internal/listing"
)

const defaultRows = 25

const (
	SourceSold   = "sold"
	SourceLive   = "live"
	SourceSample = "sample"
)

// Row is one priced listing in a snapshot. EndTime is set on completed
// rows only; Total folds shipping into the price when it is known.
type Row struct {
	Title     string
	Price     float64
	Shipping  *float64
	Total     float64
	Condition string
	Seller    string
	EndTime   string
	URL       string
}

// Snapshot is the answer to one lookup.
type Snapshot struct {
	Query  string
	Source string
	Reason string
	Rows   []Row
}

// Service runs quote lookups against a searcher.
type Service struct {
	searcher ebay.Searcher
	rows     int
}

// New builds a Service returning up to rows rows per lookup.
func New(searcher ebay.Searcher, rows int) *Service {
	if rows <= 0 {
		rows = defaultRows
	}
	return &Service{searcher: searcher, rows: rows}
}

// Lookup tries completed sales first, live asks second, and the embedded
// sample data last. It fails only when even the sample cannot answer.
func (s *Service) Lookup(ctx context.Context, query string) (*Snapshot, error) {
	snap := &Snapshot{Query: query}

	if !s.searcher.Available() {
		res := s.searcher.Search(ctx, ebay.OpCompleted, query, 1, s.rows)
		if res.Outcome != ebay.Success {
			return nil, fmt.Errorf("sample lookup for %q: %s", query, describe(res))
		}
		snap.Source = SourceSample
		snap.Reason = "no app ID configured, serving sample data"
		snap.Rows = soldRows(res.Page.Items)
		return snap, nil
	}

	sold := s.searcher.Search(ctx, ebay.OpCompleted, query, 1, s.rows)
	if sold.Outcome == ebay.Success {
		if rows := soldRows(sold.Page.Items); len(rows) > 0 {
			snap.Source = SourceSold
			snap.Reason = "completed sales found"
			snap.Rows = rows
			return snap, nil
		}
	}
	soldWhy := describe(sold)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	live := s.searcher.Search(ctx, ebay.OpActive, query, 1, s.rows)
	if live.Outcome == ebay.Success {
		if rows := liveRows(live.Page.Items); len(rows) > 0 {
			snap.Source = SourceLive
			snap.Reason = fmt.Sprintf("sold lookup failed (%s), showing live asks", soldWhy)
			snap.Rows = rows
			return snap, nil
		}
	}

	sample := ebay.NewOffline().Search(ctx, ebay.OpCompleted, query, 1, s.rows)
	if sample.Outcome != ebay.Success {
		return nil, fmt.Errorf("quote for %q: sold failed (%s), live failed (%s), sample unavailable",
			query, soldWhy, describe(live))
	}
	snap.Source = SourceSample
	snap.Reason = fmt.Sprintf("sold lookup failed (%s), live lookup failed (%s), serving sample data",
		soldWhy, describe(live))
	snap.Rows = soldRows(sample.Page.Items)
	return snap, nil
}

// soldRows keeps completed rows with a positive price and a parseable
// date; everything else is noise for a comp table.
func soldRows(items []json.RawMessage) []Row {
	var rows []Row
	for _, raw := range items {
		l := listing.Normalize(raw, listing.StatusCompleted)
		if l.Price == nil || *l.Price <= 0 {
			continue
		}
		if _, ok := l.Timestamp(); !ok {
			continue
		}
		rows = append(rows, rowOf(l, listing.ShippingCost(raw), l.EndTime))
	}
	return rows
}

// liveRows keeps anything with a positive asking price. Dates are left
// blank: an auction that has not ended yet is not a comp.
func liveRows(items []json.RawMessage) []Row {
	var rows []Row
	for _, raw := range items {
		l := listing.Normalize(raw, listing.StatusLive)
		if l.Price == nil || *l.Price <= 0 {
			continue
		}
		rows = append(rows, rowOf(l, listing.ShippingCost(raw), ""))
	}
	return rows
}

func rowOf(l listing.Listing, shipping *float64, endTime string) Row {
	r := Row{
		Title:     l.Title,
		Price:     *l.Price,
		Shipping:  shipping,
		Total:     *l.Price,
		Condition: l.Condition,
		Seller:    l.Seller,
		EndTime:   endTime,
		URL:       l.URL,
	}
	if shipping != nil {
		r.Total += *shipping
	}
	return r
}

// Table renders a snapshot as report headers and rows.
func Table(snap *Snapshot) ([]string, [][]string) {
	headers := []string{"title", "price", "shipping", "total", "condition", "seller", "end_time", "url"}

	rows := make([][]string, 0, len(snap.Rows))
	for _, r := range snap.Rows {
		shipping := ""
		if r.Shipping != nil {
			shipping = money(*r.Shipping)
		}
		rows = append(rows, []string{
			r.Title,
			money(r.Price),
			shipping,
			money(r.Total),
			r.Condition,
			r.Seller,
			r.EndTime,
			r.URL,
		})
	}
	return headers, rows
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func describe(r ebay.Result) string {
	if r.Outcome == ebay.Success {
		return "no results"
	}
	if r.Err != nil {
		return fmt.Sprintf("%s: %v", r.Reason, r.Err)
	}
	return r.Reason
}
