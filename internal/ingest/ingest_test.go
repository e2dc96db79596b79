package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/guarzo/flipwatch/internal/ebay"
	"github.com/guarzo/flipwatch/internal/listing"
	"github.com/guarzo/flipwatch/internal/store"
)

type searchCall struct {
	query    string
	page     int
	pageSize int
}

// scriptedSearcher replays a fixed result sequence per query, then
// serves empty pages.
type scriptedSearcher struct {
	script map[string][]ebay.Result
	calls  []searchCall
}

func (s *scriptedSearcher) Available() bool { return true }

func (s *scriptedSearcher) Search(_ context.Context, _ ebay.Operation, keywords string, page, pageSize int) ebay.Result {
	s.calls = append(s.calls, searchCall{keywords, page, pageSize})
	queue := s.script[keywords]
	if len(queue) == 0 {
		return ebay.Result{Outcome: ebay.Success}
	}
	next := queue[0]
	s.script[keywords] = queue[1:]
	return next
}

// endlessSearcher always returns a full page of fresh items.
type endlessSearcher struct {
	calls  []searchCall
	serial int
}

func (s *endlessSearcher) Available() bool { return true }

func (s *endlessSearcher) Search(_ context.Context, _ ebay.Operation, keywords string, page, pageSize int) ebay.Result {
	s.calls = append(s.calls, searchCall{keywords, page, pageSize})
	items := make([]json.RawMessage, pageSize)
	for i := range items {
		s.serial++
		items[i] = rawItem(fmt.Sprintf("9%08d", s.serial))
	}
	return ebay.Result{Outcome: ebay.Success, Page: ebay.Page{Items: items}}
}

type failingStore struct {
	attempts int
}

func (s *failingStore) SaveBatch(context.Context, []listing.Listing) (int, error) {
	s.attempts++
	return 0, errors.New("write rejected")
}

func (s *failingStore) Listings(context.Context, string, listing.Status, int) ([]listing.Listing, error) {
	return nil, nil
}

func (s *failingStore) Close() error { return nil }

func rawItem(id string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"itemId":[%q],"title":["Air Jordan 1 test %s"],"sellingStatus":[{"currentPrice":[{"__value__":"150.0","@currencyId":"USD"}]}]}`,
		id, id))
}

func pageOf(ids ...string) ebay.Result {
	items := make([]json.RawMessage, 0, len(ids))
	for _, id := range ids {
		items = append(items, rawItem(id))
	}
	return ebay.Result{Outcome: ebay.Success, Page: ebay.Page{Items: items}}
}

func newFileStore(t *testing.T) *store.File {
	t.Helper()
	s, err := store.NewFile(filepath.Join(t.TempDir(), "listings.json"))
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	return s
}

// silenceSleeps records cooldowns instead of waiting them out.
func silenceSleeps(d *Driver) *[]time.Duration {
	var sleeps []time.Duration
	d.sleep = func(_ context.Context, dur time.Duration) {
		sleeps = append(sleeps, dur)
	}
	return &sleeps
}

func TestDriver_SavesPagesUntilEmpty(t *testing.T) {
	searcher := &scriptedSearcher{script: map[string][]ebay.Result{
		"air jordan 1": {
			pageOf("100", "101", "102"),
			pageOf("103", "104"),
		},
	}}
	st := newFileStore(t)
	d := New(searcher, st, Params{MaxPages: 5, EntriesPerPage: 100})

	report, err := d.Run(context.Background(), []string{"air jordan 1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.TotalSaved != 5 {
		t.Errorf("TotalSaved = %d, want 5", report.TotalSaved)
	}
	if report.Requests != 3 {
		t.Errorf("Requests = %d, want 3 (two pages plus the empty one)", report.Requests)
	}
	if n := len(report.Queries); n != 1 {
		t.Fatalf("Queries = %d, want 1", n)
	}
	stats := report.Queries[0]
	if stats.Pages != 2 || stats.Saved != 5 || stats.Abandoned || stats.RateLimited {
		t.Errorf("stats = %+v", stats)
	}

	rows, err := st.Listings(context.Background(), "ebay", listing.StatusCompleted, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 5 {
		t.Errorf("stored rows = %d, want 5", len(rows))
	}
}

func TestDriver_StopsAtPageCap(t *testing.T) {
	searcher := &endlessSearcher{}
	d := New(searcher, newFileStore(t), Params{MaxPages: 2, EntriesPerPage: 4})

	report, err := d.Run(context.Background(), []string{"air jordan 1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(searcher.calls) != 2 {
		t.Errorf("calls = %d, want 2", len(searcher.calls))
	}
	if report.TotalSaved != 8 {
		t.Errorf("TotalSaved = %d, want 8", report.TotalSaved)
	}
}

func TestDriver_BudgetCapsRequestsAcrossQueries(t *testing.T) {
	searcher := &endlessSearcher{}
	d := New(searcher, newFileStore(t), Params{MaxPages: 10, EntriesPerPage: 4, Budget: 3})

	report, err := d.Run(context.Background(), []string{"air jordan 1", "air jordan 4", "dunk low"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(searcher.calls) != 3 {
		t.Errorf("upstream calls = %d, want exactly the budget of 3", len(searcher.calls))
	}
	if !report.Halted {
		t.Error("report should be marked halted")
	}
	if report.Requests != 3 {
		t.Errorf("Requests = %d, want 3", report.Requests)
	}
	// Budget spent on the first query; the third never started.
	if len(report.Queries) != 1 {
		t.Errorf("queries attempted = %d, want 1", len(report.Queries))
	}
	if report.TotalSaved != 12 {
		t.Errorf("TotalSaved = %d, want 12 (partial totals still reported)", report.TotalSaved)
	}
}

func TestDriver_RateLimitCoolsDownThenNextQuery(t *testing.T) {
	searcher := &scriptedSearcher{script: map[string][]ebay.Result{
		"air jordan 1": {
			{Outcome: ebay.RateLimited, Reason: "rate-limited"},
		},
		"dunk low": {
			pageOf("200", "201"),
		},
	}}
	d := New(searcher, newFileStore(t), Params{MaxPages: 5, EntriesPerPage: 100, Cooldown: time.Minute})
	sleeps := silenceSleeps(d)

	report, err := d.Run(context.Background(), []string{"air jordan 1", "dunk low"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := *sleeps; len(got) != 1 || got[0] != time.Minute {
		t.Errorf("cooldown sleeps = %v, want [1m0s]", got)
	}
	first := report.Queries[0]
	if !first.RateLimited || first.Saved != 0 {
		t.Errorf("first query stats = %+v", first)
	}
	// No tight retry of the limited query.
	if calls := countCalls(searcher.calls, "air jordan 1"); calls != 1 {
		t.Errorf("limited query fetched %d times, want 1", calls)
	}
	second := report.Queries[1]
	if second.Saved != 2 {
		t.Errorf("second query saved = %d, want 2", second.Saved)
	}
}

func TestDriver_HalvesPageSizeThenAbandons(t *testing.T) {
	fail := ebay.Result{Outcome: ebay.RetryableError, Reason: "status 500"}
	searcher := &scriptedSearcher{script: map[string][]ebay.Result{
		"air jordan 1": {fail, fail, fail},
	}}
	d := New(searcher, newFileStore(t), Params{MaxPages: 5, EntriesPerPage: 100})

	report, err := d.Run(context.Background(), []string{"air jordan 1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []searchCall{
		{"air jordan 1", 1, 100},
		{"air jordan 1", 1, 100},
		{"air jordan 1", 1, 50},
	}
	if len(searcher.calls) != len(want) {
		t.Fatalf("calls = %v", searcher.calls)
	}
	for i, call := range searcher.calls {
		if call != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, call, want[i])
		}
	}
	if !report.Queries[0].Abandoned {
		t.Error("query should be abandoned after 3 consecutive failures")
	}
}

func TestDriver_SuccessResetsFailureCount(t *testing.T) {
	fail := ebay.Result{Outcome: ebay.FatalError, Reason: "status 400"}
	searcher := &scriptedSearcher{script: map[string][]ebay.Result{
		"air jordan 1": {
			fail,
			pageOf("100"),
			fail,
			fail,
			pageOf("101"),
		},
	}}
	d := New(searcher, newFileStore(t), Params{MaxPages: 5, EntriesPerPage: 100})

	report, err := d.Run(context.Background(), []string{"air jordan 1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	stats := report.Queries[0]
	if stats.Abandoned {
		t.Error("interleaved successes must keep the query alive")
	}
	if stats.Saved != 2 {
		t.Errorf("Saved = %d, want 2", stats.Saved)
	}
	// Second failure streak still halves the page size.
	last := searcher.calls[len(searcher.calls)-1]
	if last.pageSize != 50 {
		t.Errorf("final page size = %d, want 50", last.pageSize)
	}
}

func TestDriver_SaveFailuresAbandonQuery(t *testing.T) {
	searcher := &endlessSearcher{}
	st := &failingStore{}
	d := New(searcher, st, Params{MaxPages: 5, EntriesPerPage: 4})

	report, err := d.Run(context.Background(), []string{"air jordan 1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if st.attempts != 3 {
		t.Errorf("save attempts = %d, want 3", st.attempts)
	}
	if !report.Queries[0].Abandoned {
		t.Error("query should be abandoned after repeated save failures")
	}
	if report.TotalSaved != 0 {
		t.Errorf("TotalSaved = %d, want 0", report.TotalSaved)
	}
}

func TestDriver_RerunIsIdempotent(t *testing.T) {
	st := newFileStore(t)
	ctx := context.Background()

	script := func() map[string][]ebay.Result {
		return map[string][]ebay.Result{
			"air jordan 1": {pageOf("100", "101", "102")},
		}
	}

	for run := 0; run < 2; run++ {
		d := New(&scriptedSearcher{script: script()}, st, Params{MaxPages: 5, EntriesPerPage: 100})
		report, err := d.Run(ctx, []string{"air jordan 1"})
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		// Merges count as writes.
		if report.TotalSaved != 3 {
			t.Errorf("run %d: TotalSaved = %d, want 3", run, report.TotalSaved)
		}
	}

	rows, err := st.Listings(ctx, "ebay", listing.StatusCompleted, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Errorf("stored rows after rerun = %d, want 3 (no duplicates)", len(rows))
	}
}

func TestDriver_CancelledContextStopsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	searcher := &endlessSearcher{}
	d := New(searcher, newFileStore(t), Params{MaxPages: 5, EntriesPerPage: 4})

	report, err := d.Run(ctx, []string{"air jordan 1"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if report == nil || len(searcher.calls) != 0 {
		t.Errorf("no fetches should happen after cancellation, got %d", len(searcher.calls))
	}
}

func countCalls(calls []searchCall, query string) int {
	n := 0
	for _, c := range calls {
		if c.query == query {
			n++
		}
	}
	return n
}
