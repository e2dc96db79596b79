package ebay

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/guarzo/flipwatch/internal/listing"
)

const (
	defaultEndpoint = "https://svcs.ebay.com/services/search/FindingService/v1"
	serviceVersion  = "1.13.0"

	// eBay flags rate-limited calls with this error id under the
	// RateLimiter subdomain.
	rateLimitErrorID   = "10001"
	rateLimitSubdomain = "RateLimiter"
)

// Operation selects which Finding API search to run.
type Operation string

const (
	// OpCompleted returns historical listings, filtered to sold items only.
	OpCompleted Operation = "findCompletedItems"
	// OpActive returns live listings with current asking prices.
	OpActive Operation = "findItemsByKeywords"
)

// ListingStatus maps the operation to the status its results carry.
func (o Operation) ListingStatus() listing.Status {
	if o == OpCompleted {
		return listing.StatusCompleted
	}
	return listing.StatusLive
}

// Outcome classifies one search call.
type Outcome int

const (
	Success Outcome = iota
	RetryableError
	RateLimited
	FatalError
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case RetryableError:
		return "retryable_error"
	case RateLimited:
		return "rate_limited"
	case FatalError:
		return "fatal_error"
	}
	return "unknown"
}

// Page is one decoded result page. Items stay raw so the normalizer owns
// all field extraction.
type Page struct {
	Items        []json.RawMessage
	TotalPages   int
	TotalEntries int
}

// Result is the outcome of one Search call, retries included.
type Result struct {
	Outcome  Outcome
	Page     Page
	Status   int
	Attempts int
	Reason   string
	Err      error
}

// Client talks to the Finding API with bounded retries and backoff. One
// Search call makes at most maxAttempts HTTP requests and never sleeps
// past maxTotalWait in total.
type Client struct {
	appID    string
	globalID string
	endpoint string
	client   *http.Client
	pace     *pacer

	maxAttempts  int
	baseDelay    time.Duration
	maxStepDelay time.Duration
	maxTotalWait time.Duration
	sleep        func(time.Duration)
}

// pacer enforces a minimum spacing between outbound requests.
type pacer struct {
	mu       sync.Mutex
	lastCall time.Time
	minDelay time.Duration
}

func (p *pacer) wait() {
	p.mu.Lock()
	defer p.mu.Unlock()

	since := time.Since(p.lastCall)
	if since < p.minDelay {
		time.Sleep(p.minDelay - since)
	}
	p.lastCall = time.Now()
}

func NewClient(appID, globalID string) *Client {
	if globalID == "" {
		globalID = "EBAY-US"
	}
	return &Client{
		appID:        appID,
		globalID:     globalID,
		endpoint:     defaultEndpoint,
		client:       &http.Client{Timeout: 15 * time.Second},
		pace:         &pacer{minDelay: 100 * time.Millisecond},
		maxAttempts:  3,
		baseDelay:    800 * time.Millisecond,
		maxStepDelay: 2 * time.Second,
		maxTotalWait: 5 * time.Second,
		sleep:        time.Sleep,
	}
}

func (c *Client) Available() bool {
	return c.appID != ""
}

// Per-attempt classification. Throttle and blocked short-circuit; the
// others are retried until the attempt or wait budget runs out.
type attemptKind int

const (
	kindOK attemptKind = iota
	kindThrottle
	kindServer
	kindTransport
	kindMalformed
	kindBlocked
)

// Search runs one logical page fetch. 5xx, transport failures and
// malformed bodies are retried with exponential backoff; a provider
// throttle signal (inline rate-limit marker or HTTP 429) returns
// immediately as RateLimited so callers can cool down instead of
// hammering the same request.
func (c *Client) Search(ctx context.Context, op Operation, keywords string, page, pageSize int) Result {
	if !c.Available() {
		return Result{Outcome: FatalError, Reason: "app ID not configured"}
	}

	var slept time.Duration
	delay := c.baseDelay

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{Outcome: FatalError, Attempts: attempt - 1, Reason: "canceled", Err: err}
		}

		kind, res := c.attempt(ctx, op, keywords, page, pageSize)
		res.Attempts = attempt

		switch kind {
		case kindOK:
			res.Outcome = Success
			res.Reason = "ok"
			return res
		case kindThrottle:
			res.Outcome = RateLimited
			res.Reason = "rate-limited"
			return res
		case kindBlocked:
			res.Outcome = FatalError
			res.Reason = fmt.Sprintf("blocked:%d", res.Status)
			return res
		}

		if attempt >= c.maxAttempts || slept+delay > c.maxTotalWait {
			if kind == kindServer {
				// Persistent 5xx under load is the upstream shedding
				// traffic; treat it like a throttle so the driver cools
				// down rather than burning its failure allowance.
				res.Outcome = RateLimited
				res.Reason = fmt.Sprintf("blocked:%d", res.Status)
			} else {
				res.Outcome = FatalError
				if res.Reason == "" {
					res.Reason = "unexpected-shape"
				}
			}
			return res
		}

		c.sleep(delay)
		slept += delay
		delay *= 2
		if delay > c.maxStepDelay {
			delay = c.maxStepDelay
		}
	}
}

func (c *Client) attempt(ctx context.Context, op Operation, keywords string, page, pageSize int) (attemptKind, Result) {
	c.pace.wait()

	req, err := c.buildRequest(ctx, op, keywords, page, pageSize)
	if err != nil {
		return kindBlocked, Result{Reason: "bad request", Err: err}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return kindTransport, Result{Reason: "transport", Err: err}
	}
	defer resp.Body.Close()

	reader, err := decodedReader(resp)
	if err != nil {
		return kindTransport, Result{Status: resp.StatusCode, Reason: "transport", Err: err}
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return kindTransport, Result{Status: resp.StatusCode, Reason: "transport", Err: err}
	}

	res := Result{Status: resp.StatusCode}

	var fr findingResponse
	parseErr := json.Unmarshal(body, &fr)

	// The throttle marker can ride on any status code, including 200.
	if parseErr == nil && fr.rateLimited(op) {
		return kindThrottle, res
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return kindThrottle, res
	case resp.StatusCode >= 500:
		return kindServer, res
	case resp.StatusCode/100 != 2:
		return kindBlocked, res
	}

	if parseErr != nil {
		res.Err = parseErr
		res.Reason = "unparseable"
		return kindMalformed, res
	}
	root := fr.root(op)
	if root == nil {
		res.Reason = "unexpected-shape"
		return kindMalformed, res
	}

	sr := listing.First(root.SearchResult, searchResult{})
	pg := listing.First(root.PaginationOutput, paginationOutput{})
	res.Page = Page{
		Items:        sr.Item,
		TotalPages:   atoi(listing.First(pg.TotalPages, "")),
		TotalEntries: atoi(listing.First(pg.TotalEntries, "")),
	}
	return kindOK, res
}

func (c *Client) buildRequest(ctx context.Context, op Operation, keywords string, page, pageSize int) (*http.Request, error) {
	params := url.Values{}
	params.Set("OPERATION-NAME", string(op))
	params.Set("SERVICE-VERSION", serviceVersion)
	params.Set("SECURITY-APPNAME", c.appID)
	params.Set("RESPONSE-DATA-FORMAT", "JSON")
	params.Set("REST-PAYLOAD", "")
	params.Set("GLOBAL-ID", c.globalID)
	params.Set("keywords", keywords)
	params.Set("paginationInput.entriesPerPage", strconv.Itoa(pageSize))
	params.Set("paginationInput.pageNumber", strconv.Itoa(page))
	params.Set("outputSelector(0)", "SellerInfo")
	params.Set("outputSelector(1)", "PictureURLSuperSize")
	if op == OpCompleted {
		params.Set("itemFilter(0).name", "SoldItemsOnly")
		params.Set("itemFilter(0).value", "true")
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("X-EBAY-SOA-OPERATION-NAME", string(op))
	req.Header.Set("X-EBAY-SOA-SERVICE-VERSION", serviceVersion)
	req.Header.Set("X-EBAY-SOA-SECURITY-APPNAME", c.appID)
	req.Header.Set("X-EBAY-SOA-RESPONSE-DATA-FORMAT", "JSON")
	req.Header.Set("X-EBAY-SOA-GLOBAL-ID", c.globalID)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("User-Agent", "flipwatch/1.0")
	return req, nil
}

func decodedReader(resp *http.Response) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "br":
		return brotli.NewReader(resp.Body), nil
	default:
		return resp.Body, nil
	}
}

// Finding API response shape: every field is a singleton array. The item
// records are kept raw for the normalizer.
type findingResponse struct {
	FindCompletedItemsResponse  []opResponse   `json:"findCompletedItemsResponse"`
	FindItemsByKeywordsResponse []opResponse   `json:"findItemsByKeywordsResponse"`
	ErrorMessage                []errorMessage `json:"errorMessage"`
}

type opResponse struct {
	Ack              []string           `json:"ack"`
	SearchResult     []searchResult     `json:"searchResult"`
	PaginationOutput []paginationOutput `json:"paginationOutput"`
	ErrorMessage     []errorMessage     `json:"errorMessage"`
}

type searchResult struct {
	Count string            `json:"@count"`
	Item  []json.RawMessage `json:"item"`
}

type paginationOutput struct {
	PageNumber   []string `json:"pageNumber"`
	TotalPages   []string `json:"totalPages"`
	TotalEntries []string `json:"totalEntries"`
}

type errorMessage struct {
	Error []apiError `json:"error"`
}

type apiError struct {
	ErrorID   []string `json:"errorId"`
	Domain    []string `json:"domain"`
	Subdomain []string `json:"subdomain"`
	Severity  []string `json:"severity"`
	Message   []string `json:"message"`
}

func (r *findingResponse) root(op Operation) *opResponse {
	var roots []opResponse
	switch op {
	case OpCompleted:
		roots = r.FindCompletedItemsResponse
	case OpActive:
		roots = r.FindItemsByKeywordsResponse
	}
	if len(roots) == 0 {
		return nil
	}
	return &roots[0]
}

// rateLimited reports whether the body carries eBay's throttle marker,
// which shows up either as a top-level errorMessage or nested inside the
// operation response.
func (r *findingResponse) rateLimited(op Operation) bool {
	msgs := r.ErrorMessage
	if root := r.root(op); root != nil {
		msgs = append(msgs, root.ErrorMessage...)
	}
	for _, em := range msgs {
		for _, e := range em.Error {
			if listing.First(e.ErrorID, "") == rateLimitErrorID &&
				listing.First(e.Subdomain, "") == rateLimitSubdomain {
				return true
			}
		}
	}
	return false
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
