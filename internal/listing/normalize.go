package listing

import (
	"encoding/json"
	"strconv"
)

// First unwraps the Finding API's singleton-array encoding: every field
// arrives as a list wrapping the real value. Returns the first element, or
// def when the list is empty.
func First[T any](vals []T, def T) T {
	if len(vals) > 0 {
		return vals[0]
	}
	return def
}

// Finding API item shape. Every level is array-wrapped except the money
// object, whose amount and currency are plain strings.
type rawItem struct {
	ItemID          []string         `json:"itemId"`
	Title           []string         `json:"title"`
	GalleryURL      []string         `json:"galleryURL"`
	ViewItemURL     []string         `json:"viewItemURL"`
	PrimaryCategory []rawCategory    `json:"primaryCategory"`
	Condition       []rawCondition   `json:"condition"`
	SellerInfo      []rawSeller      `json:"sellerInfo"`
	SellingStatus   []rawSelling     `json:"sellingStatus"`
	ShippingInfo    []rawShipping    `json:"shippingInfo"`
	ListingInfo     []rawListingInfo `json:"listingInfo"`
}

type rawCategory struct {
	CategoryName []string `json:"categoryName"`
}

type rawCondition struct {
	ConditionDisplayName []string `json:"conditionDisplayName"`
}

type rawSeller struct {
	SellerUserName []string `json:"sellerUserName"`
	FeedbackScore  []string `json:"feedbackScore"`
}

type rawSelling struct {
	CurrentPrice []moneyValue `json:"currentPrice"`
}

type rawShipping struct {
	ShippingServiceCost []moneyValue `json:"shippingServiceCost"`
}

type rawListingInfo struct {
	StartTime []string `json:"startTime"`
	EndTime   []string `json:"endTime"`
}

type moneyValue struct {
	Value      string `json:"__value__"`
	CurrencyID string `json:"@currencyId"`
}

// Normalize converts one raw Finding API item into a Listing. It never
// fails: any missing or malformed field degrades to its default so a bad
// item cannot take down the page it arrived on. A missing or unparseable
// price stays absent rather than becoming zero.
func Normalize(raw json.RawMessage, status Status) Listing {
	var it rawItem
	_ = json.Unmarshal(raw, &it)

	price := First(First(it.SellingStatus, rawSelling{}).CurrentPrice, moneyValue{})
	info := First(it.ListingInfo, rawListingInfo{})
	seller := First(it.SellerInfo, rawSeller{})

	currency := price.CurrencyID
	if currency == "" {
		currency = "USD"
	}

	l := Listing{
		Marketplace:    "ebay",
		Status:         status,
		ListingID:      First(it.ItemID, ""),
		Title:          First(it.Title, ""),
		Category:       First(First(it.PrimaryCategory, rawCategory{}).CategoryName, ""),
		Price:          parsePrice(price.Value),
		Currency:       currency,
		Seller:         First(seller.SellerUserName, ""),
		SellerFeedback: parseInt(First(seller.FeedbackScore, "")),
		Condition:      First(First(it.Condition, rawCondition{}).ConditionDisplayName, ""),
		Image:          First(it.GalleryURL, ""),
		URL:            First(it.ViewItemURL, ""),
		StartTime:      First(info.StartTime, ""),
		EndTime:        First(info.EndTime, ""),
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err == nil {
		l.Raw = m
	}
	return l
}

// ShippingCost reads the shipping service cost off a raw item, nil when
// missing or unparseable.
func ShippingCost(raw json.RawMessage) *float64 {
	var it rawItem
	_ = json.Unmarshal(raw, &it)
	return parsePrice(First(First(it.ShippingInfo, rawShipping{}).ShippingServiceCost, moneyValue{}).Value)
}

func parsePrice(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
