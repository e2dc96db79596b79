// Package ingest walks configured queries page by page, normalizes each
// result page, and upserts it into the store. One run is bounded by a
// global request budget and stays polite between page fetches; rate
// limits from the marketplace trigger a cooldown instead of a retry.
package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/guarzo/flipwatch/internal/budget"
	"github.com/guarzo/flipwatch/internal/ebay"
	"github.com/guarzo/flipwatch/internal/listing"
	"github.com/guarzo/flipwatch/internal/store"
)

const (
	// abandonAfter is the consecutive-failure count that gives up on a
	// query; halveAt shrinks the page size one step earlier to see if
	// smaller responses go through.
	abandonAfter = 3
	halveAt      = 2

	defaultMaxPages = 5
	defaultEntries  = 100
)

// Params tunes one ingestion run.
type Params struct {
	Operation      ebay.Operation
	MaxPages       int
	EntriesPerPage int

	// Budget caps Search calls across the whole run; <= 0 is unlimited.
	Budget int

	// Cooldown is slept after a rate limit before moving on.
	Cooldown time.Duration

	// Politeness is the minimum spacing between page fetches.
	Politeness time.Duration
}

// QueryStats reports how one query went.
type QueryStats struct {
	Query       string
	Pages       int
	Saved       int
	RateLimited bool
	Abandoned   bool
}

// Report sums up one run. Totals are valid even when the run halted
// early on budget or cancellation.
type Report struct {
	RunID      string
	Started    time.Time
	Duration   time.Duration
	TotalSaved int
	Requests   int
	Halted     bool
	Queries    []QueryStats
}

// Driver executes ingestion runs.
type Driver struct {
	searcher ebay.Searcher
	store    store.Store
	params   Params
	pace     *rate.Limiter
	sleep    func(context.Context, time.Duration)

	// OnPage, when set, observes every saved page with the cumulative
	// row count for the run.
	OnPage func(query string, page, totalSaved int)
}

// New builds a Driver. Zero-valued page settings fall back to defaults;
// zero Cooldown and Politeness mean no waiting.
func New(searcher ebay.Searcher, st store.Store, params Params) *Driver {
	if params.Operation == "" {
		params.Operation = ebay.OpCompleted
	}
	if params.MaxPages <= 0 {
		params.MaxPages = defaultMaxPages
	}
	if params.EntriesPerPage <= 0 {
		params.EntriesPerPage = defaultEntries
	}

	d := &Driver{
		searcher: searcher,
		store:    st,
		params:   params,
		sleep:    sleepCtx,
	}
	if params.Politeness > 0 {
		d.pace = rate.NewLimiter(rate.Every(params.Politeness), 1)
	}
	return d
}

// Run works through the queries in order and returns the run report.
// The report is also returned when ctx is canceled mid-run, alongside
// the cancellation error.
func (d *Driver) Run(ctx context.Context, queries []string) (*Report, error) {
	report := &Report{
		RunID:   uuid.NewString(),
		Started: time.Now(),
	}
	meter := budget.NewMeter(d.params.Budget)

	log.Printf("Ingest: run %s: %d queries, up to %d pages x %d entries (%s)",
		report.RunID, len(queries), d.params.MaxPages, d.params.EntriesPerPage, describeBudget(d.params.Budget))

	var runErr error
	for i, query := range queries {
		log.Printf("Ingest: [%d/%d] %q", i+1, len(queries), query)
		stats, err := d.runQuery(ctx, meter, query, report)
		report.Queries = append(report.Queries, stats)
		if err != nil {
			runErr = err
			break
		}
		if report.Halted {
			break
		}
	}

	report.Requests = meter.Spent()
	report.Duration = time.Since(report.Started)
	log.Printf("Ingest: run %s: saved %d rows with %d requests in %s",
		report.RunID, report.TotalSaved, report.Requests, report.Duration.Round(time.Millisecond))
	return report, runErr
}

// runQuery pages through one query until it finishes, gets abandoned,
// hits a rate limit, or exhausts the run budget.
func (d *Driver) runQuery(ctx context.Context, meter *budget.Meter, query string, report *Report) (QueryStats, error) {
	stats := QueryStats{Query: query}
	status := d.params.Operation.ListingStatus()
	pageSize := d.params.EntriesPerPage
	failures := 0

	page := 1
	for page <= d.params.MaxPages {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if !meter.Allow() {
			log.Printf("  request budget exhausted, halting run")
			report.Halted = true
			return stats, nil
		}
		if d.pace != nil {
			if err := d.pace.Wait(ctx); err != nil {
				return stats, err
			}
		}

		result := d.searcher.Search(ctx, d.params.Operation, query, page, pageSize)
		switch result.Outcome {
		case ebay.Success:
			items := result.Page.Items
			if len(items) == 0 {
				log.Printf("  page %d: empty, query done", page)
				return stats, nil
			}

			batch := make([]listing.Listing, 0, len(items))
			for _, raw := range items {
				batch = append(batch, listing.Normalize(raw, status))
			}
			saved, err := d.store.SaveBatch(ctx, batch)
			if err != nil {
				failures++
				log.Printf("  page %d: save failed: %v", page, err)
				if failures >= abandonAfter {
					stats.Abandoned = true
					log.Printf("  abandoning %q after %d consecutive failures", query, failures)
					return stats, nil
				}
				if failures == halveAt {
					pageSize = halved(pageSize)
					log.Printf("  retrying page %d with page size %d", page, pageSize)
				}
				continue
			}

			failures = 0
			stats.Pages++
			stats.Saved += saved
			report.TotalSaved += saved
			log.Printf("  page %d: %d items, %d saved", page, len(items), saved)
			if d.OnPage != nil {
				d.OnPage(query, page, report.TotalSaved)
			}
			page++

		case ebay.RateLimited:
			stats.RateLimited = true
			log.Printf("  page %d: rate limited, cooling down %s before next query", page, d.params.Cooldown)
			d.sleep(ctx, d.params.Cooldown)
			return stats, nil

		default:
			failures++
			log.Printf("  page %d: %s", page, failureReason(result))
			if failures >= abandonAfter {
				stats.Abandoned = true
				log.Printf("  abandoning %q after %d consecutive failures", query, failures)
				return stats, nil
			}
			if failures == halveAt {
				pageSize = halved(pageSize)
				log.Printf("  retrying page %d with page size %d", page, pageSize)
			}
		}
	}
	return stats, nil
}

func halved(pageSize int) int {
	pageSize /= 2
	if pageSize < 1 {
		return 1
	}
	return pageSize
}

func failureReason(r ebay.Result) string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %v", r.Reason, r.Err)
	}
	return r.Reason
}

func describeBudget(n int) string {
	if n <= 0 {
		return "unlimited budget"
	}
	return fmt.Sprintf("budget %d", n)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
