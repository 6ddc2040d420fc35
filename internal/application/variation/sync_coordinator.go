package variation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/domain/variation"
	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/infrastructure/logger"
	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/infrastructure/telemetry"
)

// Sync channel names used in logs and metrics
const (
	ChannelInventory = "inventory"
	ChannelPricing   = "pricing"
)

// SyncSummary is the result of one family sync
type SyncSummary struct {
	FamilyID        uuid.UUID
	InventorySynced int
	PricingSynced   int
	Errors          int
}

// SyncCoordinator pushes stock and prices of an active family's children.
// At most one sync per family runs at a time.
type SyncCoordinator struct {
	families  variation.FamilyRepository
	inventory variation.InventoryChannel
	pricing   variation.PricingChannel
	locker    variation.FamilyLocker
	clock     Clock
	metrics   *telemetry.PipelineMetrics
	logger    *zap.Logger
}

// SyncOption configures a SyncCoordinator
type SyncOption func(*SyncCoordinator)

// WithSyncClock overrides the clock
func WithSyncClock(c Clock) SyncOption {
	return func(s *SyncCoordinator) { s.clock = c }
}

// WithSyncMetrics records sync runs
func WithSyncMetrics(m *telemetry.PipelineMetrics) SyncOption {
	return func(s *SyncCoordinator) { s.metrics = m }
}

// NewSyncCoordinator creates a coordinator
func NewSyncCoordinator(
	families variation.FamilyRepository,
	inventory variation.InventoryChannel,
	pricing variation.PricingChannel,
	locker variation.FamilyLocker,
	log *zap.Logger,
	opts ...SyncOption,
) *SyncCoordinator {
	if log == nil {
		log = zap.NewNop()
	}
	s := &SyncCoordinator{
		families:  families,
		inventory: inventory,
		pricing:   pricing,
		locker:    locker,
		clock:     RealClock(),
		logger:    log.Named("sync_coordinator"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncFamily locks the family, reloads it and pushes its enabled channels.
// Channel failures are recorded on the family and do not fail the call.
func (s *SyncCoordinator) SyncFamily(ctx context.Context, familyID uuid.UUID) error {
	_, err := s.Sync(ctx, familyID)
	return err
}

// Sync is SyncFamily returning the per-channel counts
func (s *SyncCoordinator) Sync(ctx context.Context, familyID uuid.UUID) (*SyncSummary, error) {
	ctx = logger.WithFamilyID(ctx, familyID.String())
	ctx, span := telemetry.StartSpan(ctx, "SyncCoordinator", "Sync",
		telemetry.FamilyID(familyID.String()),
	)
	defer span.End()

	unlock, err := s.locker.Lock(ctx, familyID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("lock family %s: %w", familyID, err)
	}
	defer unlock()

	family, err := s.families.FindByID(ctx, familyID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !family.IsSyncable() {
		return nil, fmt.Errorf("%w: %s is %s", variation.ErrFamilyNotSyncable, familyID, family.Status)
	}

	summary := &SyncSummary{FamilyID: familyID}
	log := logger.Ctx(ctx, s.logger)

	telemetry.WithStageLabel(ctx, "sync", func(ctx context.Context) {
		if family.SyncInventory && s.inventory != nil {
			report, err := s.inventory.SyncInventory(ctx, family.MarketplaceID, family.ChildSKUs)
			summary.InventorySynced = report.SyncedCount
			summary.Errors += s.record(ctx, family, ChannelInventory, report, err, log)
		}
		if family.SyncPricing && s.pricing != nil {
			report, err := s.pricing.SyncPricing(ctx, family.MarketplaceID, family.ChildSKUs)
			summary.PricingSynced = report.SyncedCount
			summary.Errors += s.record(ctx, family, ChannelPricing, report, err, log)
		}
	})
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	family.MarkSynced(s.clock.Now())
	if err := s.families.Save(ctx, family); err != nil {
		telemetry.RecordError(span, err)
		return summary, fmt.Errorf("save family %s: %w", familyID, err)
	}

	log.Info("family synced",
		zap.Int("inventory_synced", summary.InventorySynced),
		zap.Int("pricing_synced", summary.PricingSynced),
		zap.Int("errors", summary.Errors),
	)
	return summary, nil
}

// record pushes channel failures into the family's error ring and returns
// how many were recorded
func (s *SyncCoordinator) record(ctx context.Context, family *variation.VariationFamily, channel string, report variation.SyncReport, err error, log *zap.Logger) int {
	now := s.clock.Now()
	count := 0
	if err != nil {
		log.Warn("sync channel failed", zap.String("channel", channel), zap.Error(err))
		family.RecordError(now, "%s sync failed: %v", channel, err)
		count++
	}
	for _, e := range report.Errors {
		family.RecordError(now, "%s sync %s: %s", channel, e.SKU, e.Message)
		count++
	}
	s.metrics.RecordSync(ctx, channel, count)
	return count
}

// SyncAll syncs every syncable family one by one. Failures are isolated per
// family and returned keyed by family id.
func (s *SyncCoordinator) SyncAll(ctx context.Context) (map[uuid.UUID]error, error) {
	families, err := s.families.FindSyncable(ctx)
	if err != nil {
		return nil, err
	}
	failures := make(map[uuid.UUID]error)
	for _, f := range families {
		if err := ctx.Err(); err != nil {
			return failures, err
		}
		if err := s.SyncFamily(ctx, f.ID); err != nil {
			failures[f.ID] = err
		}
	}
	return failures, nil
}
