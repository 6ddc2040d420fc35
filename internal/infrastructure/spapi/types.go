package spapi

import "github.com/shopspring/decimal"

// Wire types of the SP-API operations used by the pipeline. Only the fields
// the pipeline reads are declared.

// listingItem is a Listings Items API getListingsItem response
type listingItem struct {
	SKU        string                      `json:"sku"`
	Summaries  []listingSummary            `json:"summaries"`
	Attributes map[string][]attributeValue `json:"attributes"`
	Offers     []listingOffer              `json:"offers"`
	Issues     []listingIssue              `json:"issues,omitempty"`
}

type listingSummary struct {
	MarketplaceID string        `json:"marketplaceId"`
	ASIN          string        `json:"asin"`
	ProductType   string        `json:"productType"`
	ItemName      string        `json:"itemName"`
	MainImage     *listingImage `json:"mainImage,omitempty"`
}

type listingImage struct {
	Link string `json:"link"`
}

// attributeValue is one entry of a listing attribute. Values are strings,
// numbers or booleans depending on the attribute schema.
type attributeValue struct {
	Value         any    `json:"value"`
	MarketplaceID string `json:"marketplace_id,omitempty"`
}

type listingOffer struct {
	MarketplaceID string `json:"marketplaceId"`
	OfferType     string `json:"offerType"`
	Price         money  `json:"price"`
}

type listingIssue struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

type money struct {
	CurrencyCode string              `json:"currencyCode"`
	Amount       decimal.NullDecimal `json:"amount"`
}

// catalogSearchResult is a Catalog Items API searchCatalogItems response
type catalogSearchResult struct {
	NumberOfResults int           `json:"numberOfResults"`
	Items           []catalogItem `json:"items"`
}

type catalogItem struct {
	ASIN          string                 `json:"asin"`
	Relationships []catalogRelationships `json:"relationships"`
}

type catalogRelationships struct {
	MarketplaceID string                `json:"marketplaceId"`
	Relationships []catalogRelationship `json:"relationships"`
}

type catalogRelationship struct {
	Type        string          `json:"type"`
	ParentASINs []string        `json:"parentAsins,omitempty"`
	ChildASINs  []string        `json:"childAsins,omitempty"`
	Theme       *variationTheme `json:"variationTheme,omitempty"`
}

type variationTheme struct {
	Attributes []string `json:"attributes"`
	Theme      string   `json:"theme"`
}

// Feeds API

type createFeedDocumentRequest struct {
	ContentType string `json:"contentType"`
}

type createFeedDocumentResponse struct {
	FeedDocumentID string `json:"feedDocumentId"`
	URL            string `json:"url"`
}

type createFeedRequest struct {
	FeedType            string   `json:"feedType"`
	MarketplaceIDs      []string `json:"marketplaceIds"`
	InputFeedDocumentID string   `json:"inputFeedDocumentId"`
}

type createFeedResponse struct {
	FeedID string `json:"feedId"`
}

type feed struct {
	FeedID               string `json:"feedId"`
	FeedType             string `json:"feedType"`
	ProcessingStatus     string `json:"processingStatus"`
	ResultFeedDocumentID string `json:"resultFeedDocumentId,omitempty"`
}

type feedDocument struct {
	FeedDocumentID       string `json:"feedDocumentId"`
	URL                  string `json:"url"`
	CompressionAlgorithm string `json:"compressionAlgorithm,omitempty"`
}

// Listings patch

type listingsPatchRequest struct {
	ProductType string       `json:"productType"`
	Patches     []patchEntry `json:"patches"`
}

type patchEntry struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value []any  `json:"value"`
}

type listingsPatchResponse struct {
	SKU          string         `json:"sku"`
	Status       string         `json:"status"`
	SubmissionID string         `json:"submissionId"`
	Issues       []listingIssue `json:"issues,omitempty"`
}
