// Package portfolio values a user's holdings against observed market data.
// Holdings come in as a CSV, one row per item owned; each is priced at the
// latest daily median of matching completed sales.
package portfolio

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/guarzo/flipwatch/internal/concurrent"
	"github.com/guarzo/flipwatch/internal/listing"
	"github.com/guarzo/flipwatch/internal/trend"
)

// pricingWorkers bounds the parallel pricing pass. Each holding scans
// the full sales history, so larger portfolios benefit from fanning out.
const pricingWorkers = 4

// Holding is one line of a holdings CSV: an item the user owns and what
// they paid for it.
type Holding struct {
	Title            string
	AcquisitionPrice float64
	Qty              int
	AcquisitionDate  string
}

// ReadCSV parses holdings from r. Header names are matched
// case-insensitively; title and acquisition_price are required, qty
// defaults to 1 and acquisition_date is optional. Rows with a missing
// title or an unusable price are skipped with a warning.
func ReadCSV(r io.Reader) ([]Holding, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading holdings header: %w", err)
	}

	columnMap := make(map[string]int)
	for i, col := range header {
		columnMap[strings.ToLower(strings.TrimSpace(col))] = i
	}

	get := func(record []string, names ...string) string {
		for _, name := range names {
			if idx, ok := columnMap[name]; ok && idx < len(record) {
				return strings.TrimSpace(record[idx])
			}
		}
		return ""
	}

	if !hasColumn(columnMap, "title", "item") || !hasColumn(columnMap, "acquisition_price", "price", "cost") {
		return nil, fmt.Errorf("holdings file needs title and acquisition_price columns, got %v", header)
	}

	var holdings []Holding
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("Portfolio: skipping unreadable row: %v", err)
			continue
		}

		title := get(record, "title", "item")
		if title == "" {
			log.Printf("Portfolio: skipping row with no title")
			continue
		}

		rawPrice := get(record, "acquisition_price", "price", "cost")
		price, err := strconv.ParseFloat(rawPrice, 64)
		if err != nil || price < 0 {
			log.Printf("Portfolio: skipping %q: bad acquisition_price %q", title, rawPrice)
			continue
		}

		qty, err := strconv.Atoi(get(record, "qty", "quantity"))
		if err != nil || qty < 1 {
			qty = 1
		}

		holdings = append(holdings, Holding{
			Title:            title,
			AcquisitionPrice: price,
			Qty:              qty,
			AcquisitionDate:  get(record, "acquisition_date", "date"),
		})
	}
	return holdings, nil
}

func hasColumn(columnMap map[string]int, names ...string) bool {
	for _, name := range names {
		if _, ok := columnMap[name]; ok {
			return true
		}
	}
	return false
}

// Valuation pairs a holding with the market price observed for it.
// MarketPrice is nil when no completed sales matched the holding's title
// within the lookback window.
type Valuation struct {
	Holding     Holding
	MarketPrice *float64
	Cost        float64
	Value       float64
	GainPct     *float64
}

// Totals aggregates a set of valuations. Cost covers every holding;
// Value and GainPct cover only the holdings that could be priced, so an
// unpriced item never drags the gain figure down.
type Totals struct {
	Holdings int
	Priced   int
	Cost     float64
	Value    float64
	GainPct  *float64
}

// Value prices each holding at the latest daily median of completed sales
// whose title matches it, looking back lookbackDays from now. A zero now
// means the current time. Holdings are priced in parallel; results keep
// the input order.
func Value(rows []listing.Listing, holdings []Holding, lookbackDays int, now time.Time) ([]Valuation, Totals) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	vals := concurrent.Map(holdings, pricingWorkers, func(h Holding) Valuation {
		v := Valuation{
			Holding: h,
			Cost:    h.AcquisitionPrice * float64(h.Qty),
		}

		sales := trend.SalesOf(rows, trend.Filter{
			Keyword:      h.Title,
			LookbackDays: lookbackDays,
			Now:          now,
		})
		if points := trend.Aggregate(sales); len(points) > 0 {
			market := points[len(points)-1].Median
			v.MarketPrice = &market
			v.Value = market * float64(h.Qty)
			if v.Cost > 0 {
				gain := (v.Value - v.Cost) / v.Cost * 100
				v.GainPct = &gain
			}
		}
		return v
	})

	totals := Totals{Holdings: len(holdings)}
	var pricedCost float64
	for _, v := range vals {
		totals.Cost += v.Cost
		if v.MarketPrice != nil {
			totals.Priced++
			totals.Value += v.Value
			pricedCost += v.Cost
		}
	}
	if pricedCost > 0 {
		gain := (totals.Value - pricedCost) / pricedCost * 100
		totals.GainPct = &gain
	}
	return vals, totals
}

// Rows renders valuations as report headers and rows, with a trailing
// TOTAL line covering the priced holdings.
func Rows(vals []Valuation, totals Totals) ([]string, [][]string) {
	headers := []string{"title", "qty", "acquisition_price", "market_price", "cost", "value", "gain_pct"}

	rows := make([][]string, 0, len(vals)+1)
	for _, v := range vals {
		rows = append(rows, []string{
			v.Holding.Title,
			strconv.Itoa(v.Holding.Qty),
			money(v.Holding.AcquisitionPrice),
			optMoney(v.MarketPrice),
			money(v.Cost),
			optMoneyVal(v.MarketPrice, v.Value),
			optPct(v.GainPct),
		})
	}
	rows = append(rows, []string{
		"TOTAL",
		"",
		"",
		"",
		money(totals.Cost),
		money(totals.Value),
		optPct(totals.GainPct),
	})
	return headers, rows
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func optMoney(v *float64) string {
	if v == nil {
		return ""
	}
	return money(*v)
}

func optMoneyVal(market *float64, v float64) string {
	if market == nil {
		return ""
	}
	return money(v)
}

func optPct(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 1, 64) + "%"
}
