package variation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/domain/variation"
	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/infrastructure/logger"
	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/infrastructure/telemetry"
)

// DefaultFeedType is the provider feed type for relationship data
const DefaultFeedType = "POST_PRODUCT_RELATIONSHIP_DATA"

// FeedPublisher uploads a family's feed and starts provider processing.
// It does not persist; callers save the family and submission.
type FeedPublisher struct {
	client     variation.FeedClient
	serializer variation.FeedSerializer
	archive    variation.FeedArchive
	feedType   string
	clock      Clock
	metrics    *telemetry.PipelineMetrics
	logger     *zap.Logger
}

// PublisherOption configures a FeedPublisher
type PublisherOption func(*FeedPublisher)

// WithPayloadArchive keeps a copy of every uploaded payload
func WithPayloadArchive(a variation.FeedArchive) PublisherOption {
	return func(p *FeedPublisher) { p.archive = a }
}

// WithPublisherClock overrides the clock
func WithPublisherClock(c Clock) PublisherOption {
	return func(p *FeedPublisher) { p.clock = c }
}

// WithPublisherMetrics records submitted feeds
func WithPublisherMetrics(m *telemetry.PipelineMetrics) PublisherOption {
	return func(p *FeedPublisher) { p.metrics = m }
}

// NewFeedPublisher creates a publisher. feedType defaults to DefaultFeedType.
func NewFeedPublisher(client variation.FeedClient, serializer variation.FeedSerializer, feedType string, log *zap.Logger, opts ...PublisherOption) *FeedPublisher {
	if feedType == "" {
		feedType = DefaultFeedType
	}
	if log == nil {
		log = zap.NewNop()
	}
	p := &FeedPublisher{
		client:     client,
		serializer: serializer,
		feedType:   feedType,
		clock:      RealClock(),
		logger:     log.Named("feed_publisher"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish runs create-document, upload and submit. Any failure aborts the
// publish, records a message on the family and leaves its status unchanged.
func (p *FeedPublisher) Publish(ctx context.Context, family *variation.VariationFamily) (*variation.FeedSubmission, error) {
	ctx = logger.WithFamilyID(ctx, family.ID.String())
	ctx, span := telemetry.StartSpan(ctx, "FeedPublisher", "Publish",
		telemetry.FamilyID(family.ID.String()),
		telemetry.SKUCount(len(family.ChildSKUs)),
	)
	defer span.End()

	fail := func(step string, err error) (*variation.FeedSubmission, error) {
		family.RecordError(p.clock.Now(), "%s: %v", step, err)
		telemetry.RecordError(span, err)
		logger.Ctx(ctx, p.logger).Warn("feed publish failed", zap.String("step", step), zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %w", variation.ErrPublishFailed, step, err)
	}

	payload, err := p.serializer.Serialize(family)
	if err != nil {
		return fail("serialize feed", err)
	}
	contentType := p.serializer.ContentType()

	doc, err := p.client.CreateDocument(ctx, contentType)
	if err != nil {
		return fail("create feed document", err)
	}
	p.archivePayload(ctx, family, doc.DocumentID, contentType, payload)

	if err := p.client.UploadContent(ctx, doc.UploadURL, contentType, payload); err != nil {
		return fail("upload feed content", err)
	}

	feedID, err := p.client.SubmitFeed(ctx, p.feedType, []string{family.MarketplaceID}, doc.DocumentID)
	if err != nil {
		return fail("submit feed", err)
	}

	now := p.clock.Now()
	submission := variation.NewFeedSubmission(feedID, family.ID, doc.DocumentID, p.feedType, family.MarketplaceID, now)
	family.AttachFeed(feedID, now)

	p.metrics.RecordFeedSubmitted(ctx, p.feedType)
	span.SetAttributes(telemetry.FeedID(feedID))
	logger.Ctx(logger.WithFeedID(ctx, feedID), p.logger).Info("feed submitted",
		zap.String("document_id", doc.DocumentID),
		zap.Int("payload_bytes", len(payload)),
	)
	return submission, nil
}

func (p *FeedPublisher) archivePayload(ctx context.Context, family *variation.VariationFamily, documentID, contentType string, payload []byte) {
	if p.archive == nil {
		return
	}
	key, err := p.archive.ArchivePayload(ctx, family.ID, documentID, contentType, payload)
	if err != nil {
		logger.Ctx(ctx, p.logger).Warn("payload archive failed", zap.Error(err))
		return
	}
	logger.Ctx(ctx, p.logger).Debug("payload archived", zap.String("key", key))
}
