package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/guarzo/flipwatch/internal/cache"
	"github.com/guarzo/flipwatch/internal/config"
	"github.com/guarzo/flipwatch/internal/ebay"
	"github.com/guarzo/flipwatch/internal/ingest"
	"github.com/guarzo/flipwatch/internal/listing"
	"github.com/guarzo/flipwatch/internal/portfolio"
	"github.com/guarzo/flipwatch/internal/predict"
	"github.com/guarzo/flipwatch/internal/progress"
	"github.com/guarzo/flipwatch/internal/quote"
	"github.com/guarzo/flipwatch/internal/report"
	"github.com/guarzo/flipwatch/internal/schedule"
	"github.com/guarzo/flipwatch/internal/store"
	"github.com/guarzo/flipwatch/internal/trend"
)

const version = "1.0.0"

func main() {
	log.SetFlags(log.LstdFlags)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := config.Load()

	var err error
	switch cmd {
	case "backfill":
		err = runBackfill(ctx, cfg, args)
	case "daemon":
		err = runDaemon(ctx, cfg, args)
	case "trend":
		err = runTrend(ctx, cfg, args)
	case "predict":
		err = runPredict(ctx, cfg, args)
	case "quote":
		err = runQuote(ctx, cfg, args)
	case "portfolio":
		err = runPortfolio(ctx, cfg, args)
	case "version":
		fmt.Println("flipwatch " + version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `flipwatch %s - resale market trend tracker

Usage:
  flipwatch <command> [flags]

Commands:
  backfill    ingest completed listings for the configured queries
  daemon      run backfill on a cron schedule
  trend       daily median and EMA table for a query
  predict     fit a linear price model for a query
  quote       quick market look for a query (no store)
  portfolio   value a holdings CSV against market medians
  version     print the version

Run 'flipwatch <command> -h' for command flags.
`, version)
}

// openStore picks the configured backend and wraps reads with the TTL
// cache when one is enabled.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	st, err := store.Open(ctx, store.Options{
		FirebaseProject: cfg.FirebaseProject,
		CredentialsFile: cfg.CredentialsFile,
		CredentialsJSON: cfg.CredentialsJSON,
		DatabaseURL:     cfg.DatabaseURL,
		Path:            filepath.Join(cfg.DataDir, "listings.json"),
	})
	if err != nil {
		return nil, err
	}

	if cfg.CacheTTL > 0 {
		c, err := cache.New(filepath.Join(cfg.DataDir, "cache.json"))
		if err != nil {
			log.Printf("Cache: disabled: %v", err)
			return st, nil
		}
		return store.WithCache(st, c, cfg.CacheTTL), nil
	}
	return st, nil
}

func newSearcher(cfg *config.Config) ebay.Searcher {
	searcher := ebay.NewSearcher(cfg.EbayAppID, cfg.EbayGlobalID)
	if !searcher.Available() {
		log.Printf("eBay: no app ID configured, using sample data")
	}
	return searcher
}

func runBackfill(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("backfill", flag.ExitOnError)
	quiet := fs.Bool("quiet", false, "suppress the progress display")
	if err := fs.Parse(args); err != nil {
		return err
	}

	queries, err := cfg.Queries()
	if err != nil {
		return err
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	return backfill(ctx, cfg, newSearcher(cfg), st, queries, *quiet)
}

func backfill(ctx context.Context, cfg *config.Config, searcher ebay.Searcher, st store.Store, queries []string, quiet bool) error {
	driver := ingest.New(searcher, st, ingest.Params{
		Operation:      ebay.OpCompleted,
		MaxPages:       cfg.MaxPages,
		EntriesPerPage: cfg.EntriesPerPage,
		Budget:         cfg.Budget,
		Cooldown:       cfg.Cooldown,
		Politeness:     cfg.Politeness,
	})

	ind := progress.Simple("Ingesting", quiet)
	ind.Start()
	driver.OnPage = func(query string, page, totalSaved int) {
		ind.Update(totalSaved)
	}

	rep, err := driver.Run(ctx, queries)
	if err != nil {
		ind.FinishWithError(err)
		return err
	}
	ind.Finish()

	fmt.Printf("Run %s: saved %d rows with %d requests in %s\n",
		rep.RunID, rep.TotalSaved, rep.Requests, rep.Duration.Round(time.Millisecond))
	for _, q := range rep.Queries {
		note := ""
		switch {
		case q.Abandoned:
			note = " (abandoned)"
		case q.RateLimited:
			note = " (rate limited)"
		}
		fmt.Printf("  %-40s %d pages, %d rows%s\n", q.Query, q.Pages, q.Saved, note)
	}
	if rep.Halted {
		fmt.Println("Run halted: request budget exhausted")
	}
	return nil
}

func runDaemon(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("daemon", flag.ExitOnError)
	spec := fs.String("schedule", cfg.Schedule, "cron expression for ingestion runs")
	runNow := fs.Bool("now", true, "run a backfill immediately on start")
	if err := fs.Parse(args); err != nil {
		return err
	}

	queries, err := cfg.Queries()
	if err != nil {
		return err
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	searcher := newSearcher(cfg)
	daemon := schedule.New(*spec, func(ctx context.Context) error {
		return backfill(ctx, cfg, searcher, st, queries, true)
	})

	log.Printf("Daemon: %d queries on schedule %q, Ctrl+C to stop", len(queries), *spec)
	return daemon.Start(ctx, *runNow)
}

func runTrend(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("trend", flag.ExitOnError)
	query := fs.String("query", "", "title keyword to analyze (required)")
	days := fs.Int("days", cfg.LookbackDays, "lookback window in days, 0 for everything")
	csvPath := fs.String("csv", "", "write the table to this CSV file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *query == "" {
		fs.Usage()
		return errors.New("-query is required")
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	rows, err := st.Listings(ctx, "ebay", listing.StatusCompleted, cfg.ReadLimit)
	if err != nil {
		return err
	}

	sales := trend.SalesOf(rows, trend.Filter{Keyword: *query, LookbackDays: *days})
	if len(sales) == 0 {
		return fmt.Errorf("no completed sales matching %q, run backfill first", *query)
	}

	sum := trend.Summarize(sales)
	points := trend.Aggregate(sales)

	fmt.Printf("%q: %d sales, median %.2f, mean %.2f, latest %.2f, volatility %.2f\n\n",
		*query, sum.Count, sum.Median, sum.Mean, sum.Latest, sum.Volatility)
	fmt.Printf("%-12s %10s %10s\n", "date", "median", "ema")

	var outRows [][]string
	for _, p := range points {
		ema := ""
		if p.EMA != nil {
			ema = strconv.FormatFloat(*p.EMA, 'f', 2, 64)
		}
		fmt.Printf("%-12s %10.2f %10s\n", p.Date.Format("2006-01-02"), p.Median, ema)
		outRows = append(outRows, []string{
			p.Date.Format("2006-01-02"),
			strconv.FormatFloat(p.Median, 'f', 2, 64),
			ema,
		})
	}

	if *csvPath != "" {
		if err := report.WriteFile(*csvPath, []string{"date", "median", "ema"}, outRows); err != nil {
			return err
		}
		fmt.Printf("\nWrote %s\n", *csvPath)
	}
	return nil
}

func runPredict(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("predict", flag.ExitOnError)
	query := fs.String("query", "", "title keyword to model (required)")
	days := fs.Int("days", cfg.LookbackDays, "lookback window in days, 0 for everything")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *query == "" {
		fs.Usage()
		return errors.New("-query is required")
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	rows, err := st.Listings(ctx, "ebay", listing.StatusCompleted, cfg.ReadLimit)
	if err != nil {
		return err
	}

	obs := predict.Prepare(rows, trend.Filter{Keyword: *query, LookbackDays: *days})
	model, err := predict.Fit(obs)
	if err != nil {
		if errors.Is(err, predict.ErrInsufficientData) {
			return fmt.Errorf("%v for %q, run backfill first", err, *query)
		}
		return err
	}

	est := model.PredictAt(time.Now().UTC())
	fmt.Printf("%q: %d observations (%d train, %d holdout)\n",
		*query, len(obs), model.TrainSize, model.HoldoutSize)
	fmt.Printf("estimated price today: %.2f\n", est)
	if low, high, ok := model.Band(est); ok {
		fmt.Printf("expected band:         %.2f .. %.2f (holdout MAE %.2f)\n", low, high, *model.MAE)
	} else {
		fmt.Println("expected band:         unavailable (no holdout)")
	}
	fmt.Printf("trend:                 %+.2f/day\n", model.Slope*86400)
	return nil
}

func runQuote(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("quote", flag.ExitOnError)
	query := fs.String("query", "", "keywords to look up (required)")
	n := fs.Int("n", 25, "rows to fetch")
	csvPath := fs.String("csv", "", "write the table to this CSV file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *query == "" {
		fs.Usage()
		return errors.New("-query is required")
	}

	svc := quote.New(newSearcher(cfg), *n)
	snap, err := svc.Lookup(ctx, *query)
	if err != nil {
		return err
	}

	fmt.Printf("%q: %d rows from %s (%s)\n\n", snap.Query, len(snap.Rows), snap.Source, snap.Reason)
	for _, r := range snap.Rows {
		date := ""
		if r.EndTime != "" {
			if ts, err := time.Parse(time.RFC3339, r.EndTime); err == nil {
				date = ts.Format("2006-01-02")
			}
		}
		fmt.Printf("%9.2f  %-10s  %-55.55s %s\n", r.Total, date, r.Title, r.URL)
	}

	if *csvPath != "" {
		headers, rows := quote.Table(snap)
		if err := report.WriteFile(*csvPath, headers, rows); err != nil {
			return err
		}
		fmt.Printf("\nWrote %s\n", *csvPath)
	}
	return nil
}

func runPortfolio(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("portfolio", flag.ExitOnError)
	file := fs.String("file", "", "holdings CSV file (required)")
	days := fs.Int("days", cfg.LookbackDays, "lookback window in days, 0 for everything")
	csvPath := fs.String("csv", "", "write the valuation to this CSV file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		fs.Usage()
		return errors.New("-file is required")
	}

	f, err := os.Open(*file)
	if err != nil {
		return err
	}
	holdings, err := portfolio.ReadCSV(f)
	f.Close()
	if err != nil {
		return err
	}
	if len(holdings) == 0 {
		return fmt.Errorf("no usable holdings in %s", *file)
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	rows, err := st.Listings(ctx, "ebay", listing.StatusCompleted, cfg.ReadLimit)
	if err != nil {
		return err
	}

	vals, totals := portfolio.Value(rows, holdings, *days, time.Time{})

	fmt.Printf("%-40s %4s %12s %12s %12s %8s\n", "title", "qty", "cost", "market", "value", "gain")
	for _, v := range vals {
		market, value, gain := "-", "-", "-"
		if v.MarketPrice != nil {
			market = fmt.Sprintf("%.2f", *v.MarketPrice)
			value = fmt.Sprintf("%.2f", v.Value)
		}
		if v.GainPct != nil {
			gain = fmt.Sprintf("%+.1f%%", *v.GainPct)
		}
		fmt.Printf("%-40.40s %4d %12.2f %12s %12s %8s\n",
			v.Holding.Title, v.Holding.Qty, v.Cost, market, value, gain)
	}

	fmt.Printf("\n%d holdings, %d priced; cost %.2f, value %.2f",
		totals.Holdings, totals.Priced, totals.Cost, totals.Value)
	if totals.GainPct != nil {
		fmt.Printf(", gain %+.1f%%", *totals.GainPct)
	}
	fmt.Println()

	if *csvPath != "" {
		headers, rows := portfolio.Rows(vals, totals)
		if err := report.WriteFile(*csvPath, headers, rows); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", *csvPath)
	}
	return nil
}
