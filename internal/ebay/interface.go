package ebay

import "context"

// Searcher is the search surface consumers depend on: the live Finding
// client or the offline sample client.
type Searcher interface {
	Available() bool
	Search(ctx context.Context, op Operation, keywords string, page, pageSize int) Result
}

var (
	_ Searcher = (*Client)(nil)
	_ Searcher = (*Offline)(nil)
)

// NewSearcher picks the live client when an app ID is configured and
// falls back to the offline sample client otherwise.
func NewSearcher(appID, globalID string) Searcher {
	if appID == "" {
		return NewOffline()
	}
	return NewClient(appID, globalID)
}
