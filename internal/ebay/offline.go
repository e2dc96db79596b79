package ebay

import (
	"context"
	"encoding/json"

	"github.com/guarzo/flipwatch/internal/listing"
)

// Offline serves a canned completed-items payload so every command works
// without credentials. Available reports false: it is a stand-in, not a
// configured provider.
type Offline struct{}

func NewOffline() *Offline {
	return &Offline{}
}

func (o *Offline) Available() bool {
	return false
}

func (o *Offline) Search(ctx context.Context, op Operation, keywords string, page, pageSize int) Result {
	if op != OpCompleted || page > 1 {
		return Result{Outcome: Success, Status: 200, Attempts: 1, Reason: "ok"}
	}

	var fr findingResponse
	if err := json.Unmarshal([]byte(samplePayload), &fr); err != nil {
		return Result{Outcome: FatalError, Attempts: 1, Reason: "sample corrupt", Err: err}
	}
	root := fr.root(OpCompleted)
	if root == nil {
		return Result{Outcome: FatalError, Attempts: 1, Reason: "sample corrupt"}
	}

	items := listing.First(root.SearchResult, searchResult{}).Item
	if pageSize > 0 && len(items) > pageSize {
		items = items[:pageSize]
	}
	return Result{
		Outcome:  Success,
		Status:   200,
		Attempts: 1,
		Reason:   "ok",
		Page:     Page{Items: items, TotalPages: 1, TotalEntries: len(items)},
	}
}

const samplePayload = `{
  "findCompletedItemsResponse": [{
    "ack": ["Success"],
    "searchResult": [{
      "@count": "6",
      "item": [
        {
          "itemId": ["335900100001"],
          "title": ["Air Jordan 1 Retro High OG 'Bred' 2016 Size 10"],
          "galleryURL": ["https://i.ebayimg.com/thumbs/images/g/a1/s-l140.jpg"],
          "viewItemURL": ["https://www.ebay.com/itm/335900100001"],
          "primaryCategory": [{"categoryId": ["15709"], "categoryName": ["Athletic Shoes"]}],
          "condition": [{"conditionId": ["3000"], "conditionDisplayName": ["Pre-owned"]}],
          "sellerInfo": [{"sellerUserName": ["kicksdealer99"], "feedbackScore": ["4821"]}],
          "sellingStatus": [{"currentPrice": [{"__value__": "219.99", "@currencyId": "USD"}]}],
          "shippingInfo": [{"shippingServiceCost": [{"__value__": "14.99", "@currencyId": "USD"}]}],
          "listingInfo": [{"startTime": ["2025-09-12T10:00:00.000Z"], "endTime": ["2025-09-22T19:42:39.000Z"]}]
        },
        {
          "itemId": ["335900100002"],
          "title": ["Air Jordan 1 Retro High 'Royal' Size 9.5"],
          "galleryURL": ["https://i.ebayimg.com/thumbs/images/g/a2/s-l140.jpg"],
          "viewItemURL": ["https://www.ebay.com/itm/335900100002"],
          "primaryCategory": [{"categoryId": ["15709"], "categoryName": ["Athletic Shoes"]}],
          "condition": [{"conditionId": ["1000"], "conditionDisplayName": ["New with box"]}],
          "sellerInfo": [{"sellerUserName": ["solevault"], "feedbackScore": ["1203"]}],
          "sellingStatus": [{"currentPrice": [{"__value__": "199.00", "@currencyId": "USD"}]}],
          "shippingInfo": [{"shippingServiceCost": [{"__value__": "0.00", "@currencyId": "USD"}]}],
          "listingInfo": [{"startTime": ["2025-09-14T08:30:00.000Z"], "endTime": ["2025-09-22T18:01:02.000Z"]}]
        },
        {
          "itemId": ["335900100003"],
          "title": ["Air Jordan 1 Mid 'Chicago' Size 11"],
          "galleryURL": ["https://i.ebayimg.com/thumbs/images/g/a3/s-l140.jpg"],
          "viewItemURL": ["https://www.ebay.com/itm/335900100003"],
          "primaryCategory": [{"categoryId": ["15709"], "categoryName": ["Athletic Shoes"]}],
          "condition": [{"conditionId": ["3000"], "conditionDisplayName": ["Pre-owned"]}],
          "sellerInfo": [{"sellerUserName": ["heatcheckkicks"], "feedbackScore": ["877"]}],
          "sellingStatus": [{"currentPrice": [{"__value__": "142.50", "@currencyId": "USD"}]}],
          "shippingInfo": [{"shippingServiceCost": [{"__value__": "12.00", "@currencyId": "USD"}]}],
          "listingInfo": [{"startTime": ["2025-09-13T15:00:00.000Z"], "endTime": ["2025-09-21T20:15:44.000Z"]}]
        },
        {
          "itemId": ["335900100004"],
          "title": ["Air Jordan 1 Retro High OG 'Shadow' Size 10.5"],
          "galleryURL": ["https://i.ebayimg.com/thumbs/images/g/a4/s-l140.jpg"],
          "viewItemURL": ["https://www.ebay.com/itm/335900100004"],
          "primaryCategory": [{"categoryId": ["15709"], "categoryName": ["Athletic Shoes"]}],
          "condition": [{"conditionId": ["1000"], "conditionDisplayName": ["New with box"]}],
          "sellerInfo": [{"sellerUserName": ["gradeasoles"], "feedbackScore": ["6590"]}],
          "sellingStatus": [{"currentPrice": [{"__value__": "230.00", "@currencyId": "USD"}]}],
          "shippingInfo": [{"shippingServiceCost": [{"__value__": "9.99", "@currencyId": "USD"}]}],
          "listingInfo": [{"startTime": ["2025-09-11T12:00:00.000Z"], "endTime": ["2025-09-21T17:42:00.000Z"]}]
        },
        {
          "itemId": ["335900100005"],
          "title": ["Air Jordan 1 Low 'Bred Toe' Size 9"],
          "galleryURL": ["https://i.ebayimg.com/thumbs/images/g/a5/s-l140.jpg"],
          "viewItemURL": ["https://www.ebay.com/itm/335900100005"],
          "primaryCategory": [{"categoryId": ["15709"], "categoryName": ["Athletic Shoes"]}],
          "condition": [{"conditionId": ["3000"], "conditionDisplayName": ["Pre-owned"]}],
          "sellerInfo": [{"sellerUserName": ["kicksdealer99"], "feedbackScore": ["4821"]}],
          "sellingStatus": [{"currentPrice": [{"__value__": "95.00", "@currencyId": "USD"}]}],
          "shippingInfo": [{"shippingServiceCost": [{"__value__": "11.50", "@currencyId": "USD"}]}],
          "listingInfo": [{"startTime": ["2025-09-10T09:00:00.000Z"], "endTime": ["2025-09-20T22:05:13.000Z"]}]
        },
        {
          "itemId": ["335900100006"],
          "title": ["Air Jordan 1 Retro High 'Bred' 2019 Size 8.5"],
          "galleryURL": ["https://i.ebayimg.com/thumbs/images/g/a6/s-l140.jpg"],
          "viewItemURL": ["https://www.ebay.com/itm/335900100006"],
          "primaryCategory": [{"categoryId": ["15709"], "categoryName": ["Athletic Shoes"]}],
          "condition": [{"conditionId": ["3000"], "conditionDisplayName": ["Pre-owned"]}],
          "sellerInfo": [{"sellerUserName": ["solevault"], "feedbackScore": ["1203"]}],
          "sellingStatus": [{"currentPrice": [{"__value__": "187.25", "@currencyId": "USD"}]}],
          "shippingInfo": [{"shippingServiceCost": [{"__value__": "14.99", "@currencyId": "USD"}]}],
          "listingInfo": [{"startTime": ["2025-09-09T14:20:00.000Z"], "endTime": ["2025-09-20T19:58:31.000Z"]}]
        }
      ]
    }],
    "paginationOutput": [{"pageNumber": ["1"], "entriesPerPage": ["6"], "totalPages": ["1"], "totalEntries": ["6"]}]
  }]
}`
