package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/guarzo/flipwatch/internal/listing"
)

// Postgres keeps listings in a single table keyed by doc_id.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

const createListingsTable = `
	CREATE TABLE IF NOT EXISTS listings (
		doc_id          TEXT PRIMARY KEY,
		marketplace     TEXT NOT NULL,
		status          TEXT NOT NULL,
		listing_id      TEXT NOT NULL,
		title           TEXT NOT NULL DEFAULT '',
		category        TEXT NOT NULL DEFAULT '',
		price           DOUBLE PRECISION,
		currency        TEXT NOT NULL DEFAULT '',
		seller          TEXT NOT NULL DEFAULT '',
		seller_feedback INTEGER NOT NULL DEFAULT 0,
		condition       TEXT NOT NULL DEFAULT '',
		image           TEXT NOT NULL DEFAULT '',
		url             TEXT NOT NULL DEFAULT '',
		start_time      TEXT NOT NULL DEFAULT '',
		end_time        TEXT NOT NULL DEFAULT '',
		raw             JSONB,
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_listings_market_status ON listings(marketplace, status);
	CREATE INDEX IF NOT EXISTS idx_listings_end_time ON listings(end_time);
`

const upsertListing = `
	INSERT INTO listings (
		doc_id, marketplace, status, listing_id, title, category, price,
		currency, seller, seller_feedback, condition, image, url,
		start_time, end_time, raw, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW()
	)
	ON CONFLICT (doc_id) DO UPDATE SET
		title           = COALESCE(NULLIF(EXCLUDED.title, ''), listings.title),
		category        = COALESCE(NULLIF(EXCLUDED.category, ''), listings.category),
		price           = COALESCE(EXCLUDED.price, listings.price),
		currency        = COALESCE(NULLIF(EXCLUDED.currency, ''), listings.currency),
		seller          = COALESCE(NULLIF(EXCLUDED.seller, ''), listings.seller),
		seller_feedback = COALESCE(NULLIF(EXCLUDED.seller_feedback, 0), listings.seller_feedback),
		condition       = COALESCE(NULLIF(EXCLUDED.condition, ''), listings.condition),
		image           = COALESCE(NULLIF(EXCLUDED.image, ''), listings.image),
		url             = COALESCE(NULLIF(EXCLUDED.url, ''), listings.url),
		start_time      = COALESCE(NULLIF(EXCLUDED.start_time, ''), listings.start_time),
		end_time        = COALESCE(NULLIF(EXCLUDED.end_time, ''), listings.end_time),
		raw             = COALESCE(EXCLUDED.raw, listings.raw),
		updated_at      = NOW()
`

// NewPostgres connects, pings, and creates the schema if needed.
func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	config.MaxConns = 5
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := pool.Exec(ctx, createListingsTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (s *Postgres) SaveBatch(ctx context.Context, items []listing.Listing) (int, error) {
	batch := &pgx.Batch{}
	queued := 0
	for _, item := range items {
		if item.ListingID == "" {
			continue
		}
		var raw []byte
		if item.Raw != nil {
			var err error
			if raw, err = json.Marshal(item.Raw); err != nil {
				return 0, fmt.Errorf("encoding raw for %s: %w", item.DocID(), err)
			}
		}
		batch.Queue(upsertListing,
			item.DocID(), item.Marketplace, string(item.Status), item.ListingID,
			item.Title, item.Category, item.Price, item.Currency,
			item.Seller, item.SellerFeedback, item.Condition, item.Image,
			item.URL, item.StartTime, item.EndTime, raw,
		)
		queued++
	}
	if queued == 0 {
		return 0, nil
	}

	results := s.pool.SendBatch(ctx, batch)
	saved := 0
	for i := 0; i < queued; i++ {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return saved, fmt.Errorf("upserting listing: %w", err)
		}
		saved++
	}
	return saved, results.Close()
}

func (s *Postgres) Listings(ctx context.Context, marketplace string, status listing.Status, limit int) ([]listing.Listing, error) {
	query := `
		SELECT marketplace, status, listing_id, title, category, price,
			currency, seller, seller_feedback, condition, image, url,
			start_time, end_time, raw
		FROM listings
		WHERE marketplace = $1 AND status = $2
		ORDER BY end_time DESC, listing_id`
	args := []any{marketplace, string(status)}
	if limit > 0 {
		query += " LIMIT $3"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying listings: %w", err)
	}
	defer rows.Close()

	var out []listing.Listing
	for rows.Next() {
		var (
			l   listing.Listing
			st  string
			raw []byte
		)
		if err := rows.Scan(
			&l.Marketplace, &st, &l.ListingID, &l.Title, &l.Category, &l.Price,
			&l.Currency, &l.Seller, &l.SellerFeedback, &l.Condition, &l.Image, &l.URL,
			&l.StartTime, &l.EndTime, &raw,
		); err != nil {
			return nil, fmt.Errorf("scanning listing: %w", err)
		}
		l.Status = listing.Status(st)
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &l.Raw)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}
