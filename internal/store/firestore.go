package store

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/guarzo/flipwatch/internal/listing"
)

const listingsCollection = "listings"

// Firestore stores documents in a single "listings" collection keyed
// by DocID.
type Firestore struct {
	client *firestore.Client
}

var _ Store = (*Firestore)(nil)

// NewFirestore connects to the given project. Credentials come from a
// service-account file, inline JSON, or application default credentials
// when both are empty.
func NewFirestore(ctx context.Context, projectID, credentialsFile string, credentialsJSON []byte) (*Firestore, error) {
	var opts []option.ClientOption
	switch {
	case credentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	case len(credentialsJSON) > 0:
		opts = append(opts, option.WithCredentialsJSON(credentialsJSON))
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to Firestore: %w", err)
	}
	return &Firestore{client: client}, nil
}

func (s *Firestore) SaveBatch(ctx context.Context, items []listing.Listing) (int, error) {
	writer := s.client.BulkWriter(ctx)

	var jobs []*firestore.BulkWriterJob
	for _, item := range items {
		if item.ListingID == "" {
			continue
		}
		ref := s.client.Collection(listingsCollection).Doc(item.DocID())
		job, err := writer.Set(ref, docData(item), firestore.MergeAll)
		if err != nil {
			writer.End()
			return 0, fmt.Errorf("queueing %s: %w", item.DocID(), err)
		}
		jobs = append(jobs, job)
	}
	writer.End()

	saved := 0
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return saved, fmt.Errorf("writing batch: %w", err)
		}
		saved++
	}
	return saved, nil
}

func (s *Firestore) Listings(ctx context.Context, marketplace string, status listing.Status, limit int) ([]listing.Listing, error) {
	q := s.client.Collection(listingsCollection).
		Where("marketplace", "==", marketplace).
		Where("status", "==", string(status)).
		OrderBy("end_time", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []listing.Listing
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading listings: %w", err)
		}
		var l listing.Listing
		if err := doc.DataTo(&l); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", doc.Ref.ID, err)
		}
		out = append(out, l)
	}
	return out, nil
}

func (s *Firestore) Close() error {
	return s.client.Close()
}

// docData builds the merge payload. Only filled fields are included so
// MergeAll cannot blank out values written by an earlier fetch.
func docData(l listing.Listing) map[string]any {
	m := map[string]any{
		"marketplace": l.Marketplace,
		"status":      string(l.Status),
		"listing_id":  l.ListingID,
		"ingested_at": firestore.ServerTimestamp,
	}
	if l.Title != "" {
		m["title"] = l.Title
	}
	if l.Category != "" {
		m["category"] = l.Category
	}
	if l.Price != nil {
		m["price"] = *l.Price
	}
	if l.Currency != "" {
		m["currency"] = l.Currency
	}
	if l.Seller != "" {
		m["seller"] = l.Seller
	}
	if l.SellerFeedback != 0 {
		m["seller_feedback"] = l.SellerFeedback
	}
	if l.Condition != "" {
		m["condition"] = l.Condition
	}
	if l.Image != "" {
		m["image"] = l.Image
	}
	if l.URL != "" {
		m["url"] = l.URL
	}
	if l.StartTime != "" {
		m["start_time"] = l.StartTime
	}
	if l.EndTime != "" {
		m["end_time"] = l.EndTime
	}
	if l.Raw != nil {
		m["raw"] = l.Raw
	}
	return m
}
