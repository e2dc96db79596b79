// Package store persists normalized listings and serves them back to
// the analytics commands. Three backends share one interface: Firestore
// for hosted deployments, Postgres for self-hosted ones, and a local
// JSON file that needs no infrastructure at all.
package store

import (
	"context"
	"fmt"
	"log"

	"github.com/guarzo/flipwatch/internal/listing"
)

// Store saves batches of listings and reads them back by status.
type Store interface {
	// SaveBatch upserts the given listings keyed by DocID and returns
	// how many were written. Re-saving the same batch is a no-op for
	// row counts: existing documents are merged, never duplicated, and
	// fields already present are not blanked by absent ones.
	SaveBatch(ctx context.Context, items []listing.Listing) (int, error)

	// Listings returns stored listings for a marketplace and status,
	// most recently ended first. A limit <= 0 means no limit.
	Listings(ctx context.Context, marketplace string, status listing.Status, limit int) ([]listing.Listing, error)

	Close() error
}

// Options selects and configures a backend. The first configured
// backend wins: Firestore, then Postgres, then the local file.
type Options struct {
	FirebaseProject string
	CredentialsFile string
	CredentialsJSON []byte

	DatabaseURL string

	// Path of the JSON file backend, used when nothing else is set.
	Path string
}

// Open connects the first configured backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch {
	case opts.FirebaseProject != "":
		log.Printf("Store: using Firestore project %s", opts.FirebaseProject)
		return NewFirestore(ctx, opts.FirebaseProject, opts.CredentialsFile, opts.CredentialsJSON)
	case opts.DatabaseURL != "":
		log.Printf("Store: using Postgres")
		return NewPostgres(ctx, opts.DatabaseURL)
	default:
		if opts.Path == "" {
			return nil, fmt.Errorf("no store configured: set FIREBASE_PROJECT_ID, DATABASE_URL, or a data directory")
		}
		log.Printf("Store: using local file %s", opts.Path)
		return NewFile(opts.Path)
	}
}
