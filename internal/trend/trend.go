// Package trend turns stored sold listings into the daily price series
// the dashboard and reports chart: median price per calendar day plus a
// short exponentially weighted smoothing line.
package trend

import (
	"sort"
	"strings"
	"time"

	"github.com/guarzo/flipwatch/internal/listing"
)

// emaSpan is the smoothing window; alpha follows 2/(span+1).
const emaSpan = 3

// Sale is one sold listing reduced to what charting needs.
type Sale struct {
	Title string
	Price float64
	When  time.Time
}

// Filter narrows stored listings down to qualifying sales.
type Filter struct {
	// Keyword must appear in the title, case-insensitively. Empty
	// matches everything.
	Keyword string

	// LookbackDays drops sales older than this many days; <= 0 keeps
	// the full history.
	LookbackDays int

	// Now anchors the lookback window. Zero means time.Now.
	Now time.Time
}

// SalesOf extracts qualifying sales: completed status, a price above
// zero, a usable timestamp, and a title matching the filter.
func SalesOf(rows []listing.Listing, f Filter) []Sale {
	now := f.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	keyword := strings.ToLower(f.Keyword)

	var out []Sale
	for _, row := range rows {
		if row.Status != listing.StatusCompleted {
			continue
		}
		if row.Price == nil || *row.Price <= 0 {
			continue
		}
		when, ok := row.Timestamp()
		if !ok {
			continue
		}
		if keyword != "" && !strings.Contains(strings.ToLower(row.Title), keyword) {
			continue
		}
		if f.LookbackDays > 0 {
			cutoff := now.AddDate(0, 0, -f.LookbackDays)
			if when.Before(cutoff) {
				continue
			}
		}
		out = append(out, Sale{Title: row.Title, Price: *row.Price, When: when})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].When.Before(out[j].When) })
	return out
}

// Point is one charted day.
type Point struct {
	Date   time.Time
	Median float64

	// EMA is set on every point once the series has at least emaSpan
	// days, nil otherwise.
	EMA *float64
}

// Aggregate buckets sales by UTC calendar day and computes the median
// price per day, in chronological order. Days are not gap-filled. With
// at least three days the smoothing line is added, seeded at the first
// median.
func Aggregate(sales []Sale) []Point {
	buckets := make(map[time.Time][]float64)
	for _, s := range sales {
		day := s.When.UTC().Truncate(24 * time.Hour)
		buckets[day] = append(buckets[day], s.Price)
	}
	if len(buckets) == 0 {
		return nil
	}

	days := make([]time.Time, 0, len(buckets))
	for day := range buckets {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	points := make([]Point, 0, len(days))
	for _, day := range days {
		points = append(points, Point{Date: day, Median: median(buckets[day])})
	}

	if len(points) >= emaSpan {
		const alpha = 2.0 / (emaSpan + 1)
		ema := points[0].Median
		for i := range points {
			if i > 0 {
				ema = alpha*points[i].Median + (1-alpha)*ema
			}
			v := ema
			points[i].EMA = &v
		}
	}
	return points
}

// Summary holds the headline scalars for one query's sales.
type Summary struct {
	Count  int
	Median float64
	Mean   float64
	Latest float64

	// Volatility is the coefficient of variation of the prices, 0 when
	// there are fewer than two sales.
	Volatility float64
}

// Summarize computes headline stats over all qualifying sales.
func Summarize(sales []Sale) Summary {
	if len(sales) == 0 {
		return Summary{}
	}

	prices := make([]float64, 0, len(sales))
	sum := 0.0
	latest := sales[0]
	for _, s := range sales {
		prices = append(prices, s.Price)
		sum += s.Price
		if s.When.After(latest.When) {
			latest = s
		}
	}

	return Summary{
		Count:      len(sales),
		Median:     median(prices),
		Mean:       sum / float64(len(sales)),
		Latest:     latest.Price,
		Volatility: Volatility(sales),
	}
}

// median averages the two middle values for even-length input. The
// slice is copied before sorting.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
