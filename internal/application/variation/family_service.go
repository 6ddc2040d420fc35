package variation

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/domain/variation"
	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/infrastructure/logger"
)

// ErrArchiveDisabled is returned by ReportURL when no archive is configured
var ErrArchiveDisabled = errors.New("variation: feed archive is disabled")

// defaultBatchConcurrency bounds PublishBatch
const defaultBatchConcurrency = 4

// CreateFamilyCommand is an operator-approved analysis plus the operator's choices
type CreateFamilyCommand struct {
	MarketplaceID string                                    `json:"marketplace_id" validate:"required,max=32"`
	Analysis      variation.FamilyAnalysis                  `json:"analysis" validate:"-"`
	ParentSKU     string                                    `json:"parent_sku" validate:"omitempty,max=128"`
	Themes        []variation.ThemeName                     `json:"themes" validate:"omitempty,unique,dive,required"`
	Overrides     map[string]map[variation.ThemeName]string `json:"overrides" validate:"-"`
	AutoManage    bool                                      `json:"auto_manage"`
	SyncInventory bool                                      `json:"sync_inventory"`
	SyncPricing   bool                                      `json:"sync_pricing"`
}

// SyncSettings are the management flags of a family
type SyncSettings struct {
	AutoManage    bool `json:"auto_manage"`
	SyncInventory bool `json:"sync_inventory"`
	SyncPricing   bool `json:"sync_pricing"`
}

// PublishOutcome is the per-family result of a batch publish
type PublishOutcome struct {
	FamilyID uuid.UUID
	FeedID   string
	// State is empty when the feed was not monitored
	State MonitorState
	Err   error
}

// FamilyService is the entry point for family lifecycle operations.
type FamilyService struct {
	families    variation.FamilyRepository
	submissions variation.FeedSubmissionRepository
	builder     *variation.RelationshipBuilder
	publisher   *FeedPublisher
	monitor     *FeedMonitor
	archive     variation.FeedArchive
	outcomes    variation.FeedOutcomeWriter
	locker      variation.FamilyLocker
	validate    *validator.Validate
	clock       Clock
	concurrency int
	logger      *zap.Logger
}

// FamilyServiceOption configures a FamilyService
type FamilyServiceOption func(*FamilyService)

// WithFamilyClock overrides the clock
func WithFamilyClock(c Clock) FamilyServiceOption {
	return func(s *FamilyService) { s.clock = c }
}

// WithFamilyLocker serializes writes with the sync coordinator
func WithFamilyLocker(l variation.FamilyLocker) FamilyServiceOption {
	return func(s *FamilyService) { s.locker = l }
}

// WithArchive enables ReportURL
func WithArchive(a variation.FeedArchive) FamilyServiceOption {
	return func(s *FamilyService) { s.archive = a }
}

// WithOutcomeWriter saves a family and its submission atomically
func WithOutcomeWriter(w variation.FeedOutcomeWriter) FamilyServiceOption {
	return func(s *FamilyService) { s.outcomes = w }
}

// WithBatchConcurrency bounds concurrent publishes in PublishBatch and
// concurrent monitors in ResumeMonitoring
func WithBatchConcurrency(n int) FamilyServiceOption {
	return func(s *FamilyService) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewFamilyService creates a family service
func NewFamilyService(
	families variation.FamilyRepository,
	submissions variation.FeedSubmissionRepository,
	builder *variation.RelationshipBuilder,
	publisher *FeedPublisher,
	monitor *FeedMonitor,
	log *zap.Logger,
	opts ...FamilyServiceOption,
) *FamilyService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &FamilyService{
		families:    families,
		submissions: submissions,
		builder:     builder,
		publisher:   publisher,
		monitor:     monitor,
		validate:    newValidator(),
		clock:       RealClock(),
		concurrency: defaultBatchConcurrency,
		logger:      log.Named("family_service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateFamily validates cmd, builds the relationships and stores a PENDING family
func (s *FamilyService) CreateFamily(ctx context.Context, cmd CreateFamilyCommand) (*variation.VariationFamily, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, validationError(err)
	}
	if len(cmd.Analysis.MemberSKUs) < variation.MinFamilySize {
		return nil, variation.NewConfigurationError("analysis", fmt.Sprintf("a family needs at least %d members", variation.MinFamilySize))
	}

	relationships, err := s.builder.Build(variation.RelationshipRequest{
		Analysis:  cmd.Analysis,
		ParentSKU: cmd.ParentSKU,
		Themes:    cmd.Themes,
		Overrides: cmd.Overrides,
	})
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	family, err := variation.NewVariationFamily(cmd.MarketplaceID, cmd.Analysis, relationships, now)
	if err != nil {
		return nil, err
	}
	family.UpdateSyncSettings(cmd.AutoManage, cmd.SyncInventory, cmd.SyncPricing, now)

	if err := s.families.Save(ctx, family); err != nil {
		return nil, fmt.Errorf("save family: %w", err)
	}
	logger.Ctx(logger.WithFamilyID(ctx, family.ID.String()), s.logger).Info("family created",
		zap.String("parent_sku", family.ParentSKU),
		zap.Int("children", len(family.ChildSKUs)),
		zap.String("theme", family.ThemeLabel()),
	)
	return family, nil
}

// GetFamily loads a family
func (s *FamilyService) GetFamily(ctx context.Context, id uuid.UUID) (*variation.VariationFamily, error) {
	return s.families.FindByID(ctx, id)
}

// Deactivate marks a family INACTIVE
func (s *FamilyService) Deactivate(ctx context.Context, id uuid.UUID) (*variation.VariationFamily, error) {
	return s.mutate(ctx, id, func(f *variation.VariationFamily) {
		f.Deactivate(s.clock.Now())
	})
}

// UpdateSyncSettings replaces a family's management flags
func (s *FamilyService) UpdateSyncSettings(ctx context.Context, id uuid.UUID, settings SyncSettings) (*variation.VariationFamily, error) {
	return s.mutate(ctx, id, func(f *variation.VariationFamily) {
		f.UpdateSyncSettings(settings.AutoManage, settings.SyncInventory, settings.SyncPricing, s.clock.Now())
	})
}

func (s *FamilyService) mutate(ctx context.Context, id uuid.UUID, fn func(*variation.VariationFamily)) (*variation.VariationFamily, error) {
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	family, err := s.families.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	fn(family)
	if err := s.families.Save(ctx, family); err != nil {
		return nil, fmt.Errorf("save family: %w", err)
	}
	return family, nil
}

// Publish serializes and submits the family's feed, then persists the
// family and the new submission. A failed publish still persists the
// family so the recorded error is kept.
func (s *FamilyService) Publish(ctx context.Context, id uuid.UUID) (*variation.VariationFamily, *variation.FeedSubmission, error) {
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	family, err := s.families.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	submission, pubErr := s.publisher.Publish(ctx, family)
	if pubErr != nil {
		if err := s.families.Save(ctx, family); err != nil {
			return family, nil, errors.Join(pubErr, fmt.Errorf("save family: %w", err))
		}
		return family, nil, pubErr
	}
	if err := s.saveOutcome(ctx, family, submission); err != nil {
		return family, nil, err
	}
	return family, submission, nil
}

func (s *FamilyService) saveOutcome(ctx context.Context, family *variation.VariationFamily, submission *variation.FeedSubmission) error {
	if s.outcomes != nil {
		return s.outcomes.SaveFeedOutcome(ctx, family, submission)
	}
	if err := s.families.Save(ctx, family); err != nil {
		return fmt.Errorf("save family: %w", err)
	}
	if err := s.submissions.Save(ctx, submission); err != nil {
		return fmt.Errorf("save feed submission: %w", err)
	}
	return nil
}

// PublishAndMonitor publishes the family and waits for the provider's verdict
func (s *FamilyService) PublishAndMonitor(ctx context.Context, id uuid.UUID) (*MonitorResult, error) {
	family, submission, err := s.Publish(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.monitorAndSave(ctx, family.Status, submission)
}

// monitorAndSave waits for the verdict without holding the family lock, then
// applies it to a fresh copy of the family so writes made meanwhile survive.
func (s *FamilyService) monitorAndSave(ctx context.Context, statusAtPublish variation.FamilyStatus, submission *variation.FeedSubmission) (*MonitorResult, error) {
	res, monErr := s.monitor.Monitor(ctx, submission)
	if res.State == MonitorCancelled {
		return res, monErr
	}

	unlock, err := s.lock(ctx, submission.FamilyID)
	if err != nil {
		return res, errors.Join(monErr, err)
	}
	defer unlock()

	family, err := s.families.FindByID(ctx, submission.FamilyID)
	if err != nil {
		return res, errors.Join(monErr, err)
	}
	res.ApplyTo(family, statusAtPublish)
	if err := s.saveOutcome(ctx, family, submission); err != nil {
		monErr = errors.Join(monErr, err)
	}
	return res, monErr
}

// PublishBatch publishes families concurrently. A failure stays with its
// family; outcomes are returned in input order.
func (s *FamilyService) PublishBatch(ctx context.Context, ids []uuid.UUID, monitor bool) []PublishOutcome {
	outcomes := make([]PublishOutcome, len(ids))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			out := PublishOutcome{FamilyID: id}
			if monitor {
				res, err := s.PublishAndMonitor(ctx, id)
				if res != nil {
					out.FeedID, out.State = res.FeedID, res.State
				}
				out.Err = err
			} else {
				_, sub, err := s.Publish(ctx, id)
				if sub != nil {
					out.FeedID = sub.FeedID
				}
				out.Err = err
			}
			outcomes[i] = out
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// ResumeMonitoring re-monitors every submission without a verdict. Each one
// keeps only the budget left since it was submitted.
func (s *FamilyService) ResumeMonitoring(ctx context.Context) ([]PublishOutcome, error) {
	pending, err := s.submissions.FindUnresolved(ctx)
	if err != nil {
		return nil, fmt.Errorf("load unresolved submissions: %w", err)
	}
	if len(pending) == 0 {
		return nil, nil
	}
	s.logger.Info("resuming feed monitoring", zap.Int("submissions", len(pending)))

	outcomes := make([]PublishOutcome, len(pending))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, sub := range pending {
		g.Go(func() error {
			out := PublishOutcome{FamilyID: sub.FamilyID, FeedID: sub.FeedID}
			family, err := s.families.FindByID(ctx, sub.FamilyID)
			if err != nil {
				out.Err = err
				outcomes[i] = out
				return nil
			}
			res, err := s.monitorAndSave(ctx, family.Status, sub)
			if res != nil {
				out.State = res.State
			}
			out.Err = err
			outcomes[i] = out
			return nil
		})
	}
	_ = g.Wait()
	return outcomes, nil
}

// ReportURL returns a time-limited link to the archived processing report of a feed
func (s *FamilyService) ReportURL(ctx context.Context, feedID string) (string, error) {
	if s.archive == nil {
		return "", ErrArchiveDisabled
	}
	if _, err := s.submissions.FindByFeedID(ctx, feedID); err != nil {
		return "", err
	}
	return s.archive.ReportURL(ctx, feedID)
}

func (s *FamilyService) lock(ctx context.Context, id uuid.UUID) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	unlock, err := s.locker.Lock(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lock family %s: %w", id, err)
	}
	return unlock, nil
}
