package variation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Catalog provider
// ---------------------------------------------------------------------------

// CatalogClient reads listings from the external catalog.
type CatalogClient interface {
	// GetProductDetails returns the raw catalog payload of sku. Callers treat
	// any error as "skip this product".
	GetProductDetails(ctx context.Context, sku, marketplaceID string) (*CatalogItem, error)

	// GetExistingRelationships returns the provider's current variation
	// relationships for sku. Best-effort and read-only.
	GetExistingRelationships(ctx context.Context, sku, marketplaceID string) ([]RelationshipHint, error)
}

// ---------------------------------------------------------------------------
// Feed provider
// ---------------------------------------------------------------------------

// FeedDocument is an upload slot for a feed payload
type FeedDocument struct {
	DocumentID string
	UploadURL  string
}

// FeedClient talks to the provider's asynchronous feed API.
type FeedClient interface {
	// CreateDocument reserves an upload slot for a payload of contentType
	CreateDocument(ctx context.Context, contentType string) (FeedDocument, error)

	// UploadContent transfers payload to an upload slot
	UploadContent(ctx context.Context, uploadURL, contentType string, payload []byte) error

	// SubmitFeed starts processing of an uploaded document and returns the feed id
	SubmitFeed(ctx context.Context, feedType string, marketplaceIDs []string, documentID string) (string, error)

	// GetFeedStatus returns the provider's processing status of a feed
	GetFeedStatus(ctx context.Context, feedID, marketplaceID string) (FeedStatus, error)

	// GetFeedResultReport returns where the processing report can be read.
	// found is false when the provider produced no report.
	GetFeedResultReport(ctx context.Context, feedID, marketplaceID string) (reportURL string, found bool, err error)

	// DownloadReport reads the content of a processing report
	DownloadReport(ctx context.Context, reportURL string) ([]byte, error)
}

// FeedSerializer renders a family into the provider's feed payload.
type FeedSerializer interface {
	Serialize(family *VariationFamily) ([]byte, error)
	ContentType() string
}

// ---------------------------------------------------------------------------
// Sync channels
// ---------------------------------------------------------------------------

// SKUError is a per-SKU sync failure
type SKUError struct {
	SKU     string
	Message string
}

// SyncReport is the result of pushing one channel's data for a family
type SyncReport struct {
	SyncedCount int
	Errors      []SKUError
}

// InventoryChannel pushes current stock for child SKUs
type InventoryChannel interface {
	SyncInventory(ctx context.Context, marketplaceID string, childSKUs []string) (SyncReport, error)
}

// PricingChannel pushes current prices for child SKUs
type PricingChannel interface {
	SyncPricing(ctx context.Context, marketplaceID string, childSKUs []string) (SyncReport, error)
}

// ListingSnapshot is the latest stock and price known for a seller SKU
type ListingSnapshot struct {
	SKU           string
	MarketplaceID string
	ProductType   string
	Quantity      int
	Price         decimal.NullDecimal
	Currency      string
	UpdatedAt     time.Time
}

// ListingSnapshotSource supplies the data the sync channels push. SKUs
// without a snapshot are absent from the result.
type ListingSnapshotSource interface {
	FindSnapshots(ctx context.Context, marketplaceID string, skus []string) (map[string]ListingSnapshot, error)
}

// ---------------------------------------------------------------------------
// Persistence and storage
// ---------------------------------------------------------------------------

// FamilyRepository persists variation families
type FamilyRepository interface {
	Save(ctx context.Context, family *VariationFamily) error
	FindByID(ctx context.Context, id uuid.UUID) (*VariationFamily, error)
	// FindSyncable returns ACTIVE families with inventory or pricing sync enabled
	FindSyncable(ctx context.Context) ([]*VariationFamily, error)
}

// FeedSubmissionRepository persists feed submissions
type FeedSubmissionRepository interface {
	Save(ctx context.Context, submission *FeedSubmission) error
	FindByFeedID(ctx context.Context, feedID string) (*FeedSubmission, error)
	// FindUnresolved returns submissions without a final outcome
	FindUnresolved(ctx context.Context) ([]*FeedSubmission, error)
}

// FeedOutcomeWriter stores a family and its submission atomically. Without
// one, the two are saved one after the other.
type FeedOutcomeWriter interface {
	SaveFeedOutcome(ctx context.Context, family *VariationFamily, submission *FeedSubmission) error
}

// FeedArchive keeps copies of payloads and reports for manual inspection.
type FeedArchive interface {
	ArchivePayload(ctx context.Context, familyID uuid.UUID, documentID, contentType string, payload []byte) (string, error)
	ArchiveReport(ctx context.Context, feedID string, report []byte) (string, error)
	// ReportURL returns a time-limited download link for an archived report
	ReportURL(ctx context.Context, feedID string) (string, error)
}

// FamilyLocker serializes work per family id.
type FamilyLocker interface {
	// Lock blocks until the family's lock is held or ctx is done. The
	// returned function releases the lock.
	Lock(ctx context.Context, familyID uuid.UUID) (unlock func(), err error)
}
