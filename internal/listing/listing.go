package listing

import (
	"fmt"
	"time"
)

// Status distinguishes historical sales from active offers.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusLive      Status = "live"
)

// Listing is the canonical flat record persisted to the document store.
// Field names follow the stored document schema.
type Listing struct {
	Marketplace    string         `json:"marketplace" firestore:"marketplace"`
	Status         Status         `json:"status" firestore:"status"`
	ListingID      string         `json:"listing_id" firestore:"listing_id"`
	Title          string         `json:"title" firestore:"title"`
	Category       string         `json:"category" firestore:"category"`
	Price          *float64       `json:"price" firestore:"price"`
	Currency       string         `json:"currency" firestore:"currency"`
	Seller         string         `json:"seller" firestore:"seller"`
	SellerFeedback int            `json:"seller_feedback" firestore:"seller_feedback"`
	Condition      string         `json:"condition" firestore:"condition"`
	Image          string         `json:"image" firestore:"image"`
	URL            string         `json:"url" firestore:"url"`
	StartTime      string         `json:"start_time" firestore:"start_time"`
	EndTime        string         `json:"end_time" firestore:"end_time"`
	Raw            map[string]any `json:"raw" firestore:"raw"`
}

// DocID is the deterministic document key. Writing the same listing twice
// lands on the same document, which is what makes ingestion re-runnable.
func (l Listing) DocID() string {
	return fmt.Sprintf("%s_%s_%s", l.Marketplace, l.Status, l.ListingID)
}

// Timestamp returns the listing's reference time: end time when present,
// start time otherwise. The second return is false when neither parses.
func (l Listing) Timestamp() (time.Time, bool) {
	for _, s := range []string{l.EndTime, l.StartTime} {
		if s == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
