package variation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/domain/variation"
	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/infrastructure/logger"
	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/infrastructure/telemetry"
)

// DetectionConfig holds the fetch tunables of a detection run
type DetectionConfig struct {
	// Workers bounds concurrent catalog fetches
	Workers int
	// RequestInterval is the minimum pause between catalog requests
	RequestInterval time.Duration
	// FetchRetries is the number of retries after a failed fetch
	FetchRetries int
	// RetryBackoff is the base wait before a retry; it grows linearly
	RetryBackoff time.Duration
	// LookupExistingRelationships enables provider relationship hints
	LookupExistingRelationships bool
}

// DefaultDetectionConfig returns the default fetch tunables
func DefaultDetectionConfig() DetectionConfig {
	return DetectionConfig{
		Workers:         4,
		RequestInterval: 200 * time.Millisecond,
		FetchRetries:    2,
		RetryBackoff:    500 * time.Millisecond,
	}
}

// SkippedProduct is a SKU left out of a detection run
type SkippedProduct struct {
	SKU    string `json:"sku"`
	Reason string `json:"reason"`
}

// DetectionResult is the outcome of one detection run
type DetectionResult struct {
	RunID      string                     `json:"run_id"`
	Requested  int                        `json:"requested"`
	Analyzed   int                        `json:"analyzed"`
	Candidates int                        `json:"candidates"`
	Families   []variation.FamilyAnalysis `json:"families"`
	Skipped    []SkippedProduct           `json:"skipped"`
}

// DetectionService fetches catalog products and runs the detection engine.
type DetectionService struct {
	engine  *variation.Engine
	catalog variation.CatalogClient
	cfg     DetectionConfig
	clock   Clock
	metrics *telemetry.PipelineMetrics
	logger  *zap.Logger
}

// DetectionOption configures a DetectionService
type DetectionOption func(*DetectionService)

// WithDetectionClock overrides the clock used for retry waits
func WithDetectionClock(c Clock) DetectionOption {
	return func(s *DetectionService) { s.clock = c }
}

// WithDetectionMetrics records fetch and detection metrics
func WithDetectionMetrics(m *telemetry.PipelineMetrics) DetectionOption {
	return func(s *DetectionService) { s.metrics = m }
}

// NewDetectionService creates a detection service
func NewDetectionService(
	engine *variation.Engine,
	catalog variation.CatalogClient,
	cfg DetectionConfig,
	log *zap.Logger,
	opts ...DetectionOption,
) *DetectionService {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.FetchRetries < 0 {
		cfg.FetchRetries = 0
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &DetectionService{
		engine:  engine,
		catalog: catalog,
		cfg:     cfg,
		clock:   RealClock(),
		logger:  log.Named("detection"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Detect fetches skus from the marketplace and returns the families that
// have variations. A failed fetch skips that product only; the run fails
// only when ctx is done.
func (s *DetectionService) Detect(ctx context.Context, marketplaceID string, skus []string) (*DetectionResult, error) {
	if strings.TrimSpace(marketplaceID) == "" {
		return nil, variation.NewConfigurationError("marketplace_id", "is required")
	}

	start := s.clock.Now()
	runID := uuid.NewString()
	ctx = logger.WithRunID(ctx, runID)
	ctx, span := telemetry.StartSpan(ctx, "DetectionService", "Detect",
		telemetry.MarketplaceID(marketplaceID),
		telemetry.SKUCount(len(skus)),
	)
	defer span.End()

	skus = dedupe(skus)
	result := &DetectionResult{RunID: runID, Requested: len(skus)}

	var records []variation.ProductRecord
	var skipped []SkippedProduct
	telemetry.WithStageLabel(ctx, "fetch", func(ctx context.Context) {
		records, skipped = s.fetchAll(ctx, marketplaceID, skus)
	})
	if err := ctx.Err(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	result.Skipped = skipped
	result.Analyzed = len(records)

	candidates := s.engine.Cluster(records)
	result.Candidates = len(candidates)

	var hints map[string][]variation.RelationshipHint
	if s.cfg.LookupExistingRelationships && len(candidates) > 0 {
		telemetry.WithStageLabel(ctx, "hints", func(ctx context.Context) {
			hints = s.lookupHints(ctx, marketplaceID, candidates)
		})
	}

	var analyses []variation.FamilyAnalysis
	telemetry.WithStageLabel(ctx, "analyze", func(ctx context.Context) {
		analyses = s.analyzeAll(ctx, candidates, hints)
	})
	for _, a := range analyses {
		if a.HasVariations {
			result.Families = append(result.Families, a)
		}
	}

	elapsed := s.clock.Now().Sub(start)
	s.metrics.RecordDetection(ctx, len(result.Families), elapsed)
	span.SetAttributes(
		telemetry.AttrKeyFamilies.Int(len(result.Families)),
		telemetry.AttrKeySkipped.Int(len(result.Skipped)),
	)
	logger.Ctx(ctx, s.logger).Info("detection finished",
		zap.Int("requested", result.Requested),
		zap.Int("analyzed", result.Analyzed),
		zap.Int("candidates", result.Candidates),
		zap.Int("families", len(result.Families)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Duration("elapsed", elapsed),
	)
	return result, nil
}

// fetchAll fetches every SKU with bounded concurrency. Output keeps input order.
func (s *DetectionService) fetchAll(ctx context.Context, marketplaceID string, skus []string) ([]variation.ProductRecord, []SkippedProduct) {
	limiter := s.newLimiter()
	fetched := make([]*variation.ProductRecord, len(skus))
	reasons := make([]string, len(skus))

	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for i, sku := range skus {
		g.Go(func() error {
			record, err := s.fetchOne(ctx, limiter, sku, marketplaceID)
			switch {
			case err != nil:
				reasons[i] = err.Error()
			case record == nil:
				reasons[i] = "empty catalog payload"
				s.metrics.RecordFetch(ctx, telemetry.FetchResultMissing)
			default:
				fetched[i] = record
				s.metrics.RecordFetch(ctx, telemetry.FetchResultOK)
			}
			return nil
		})
	}
	_ = g.Wait()

	var records []variation.ProductRecord
	var skipped []SkippedProduct
	for i, sku := range skus {
		if fetched[i] != nil {
			records = append(records, *fetched[i])
			continue
		}
		skipped = append(skipped, SkippedProduct{SKU: sku, Reason: reasons[i]})
	}
	return records, skipped
}

func (s *DetectionService) fetchOne(ctx context.Context, limiter *rate.Limiter, sku, marketplaceID string) (*variation.ProductRecord, error) {
	var lastErr error
	for attempt := 0; attempt <= s.cfg.FetchRetries; attempt++ {
		if attempt > 0 {
			if err := s.sleep(ctx, s.cfg.RetryBackoff*time.Duration(attempt)); err != nil {
				return nil, err
			}
		}
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}

		item, err := s.catalog.GetProductDetails(ctx, sku, marketplaceID)
		if err == nil {
			return s.engine.Extractor().Extract(item), nil
		}
		lastErr = err
		if ctx.Err() != nil || !retryable(err) {
			break
		}
	}

	result := telemetry.FetchResultFailed
	if errors.Is(lastErr, variation.ErrProductNotFound) {
		result = telemetry.FetchResultMissing
	}
	s.metrics.RecordFetch(ctx, result)
	logger.Ctx(ctx, s.logger).Warn("catalog fetch failed, skipping product",
		zap.String("sku", sku),
		zap.Error(lastErr),
	)
	return nil, lastErr
}

// lookupHints collects existing provider relationships for candidate members.
// Failures are ignored.
func (s *DetectionService) lookupHints(ctx context.Context, marketplaceID string, candidates []variation.CandidateFamily) map[string][]variation.RelationshipHint {
	var skus []string
	for _, c := range candidates {
		skus = append(skus, c.SKUs()...)
	}
	found := make([][]variation.RelationshipHint, len(skus))
	limiter := s.newLimiter()

	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for i, sku := range skus {
		g.Go(func() error {
			if err := limiter.Wait(ctx); err != nil {
				return nil
			}
			hints, err := s.catalog.GetExistingRelationships(ctx, sku, marketplaceID)
			if err != nil {
				logger.Ctx(ctx, s.logger).Debug("relationship lookup failed",
					zap.String("sku", sku), zap.Error(err))
				return nil
			}
			found[i] = hints
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string][]variation.RelationshipHint)
	for i, sku := range skus {
		if len(found[i]) > 0 {
			out[sku] = found[i]
		}
	}
	return out
}

// analyzeAll analyzes candidates in parallel, one goroutine per candidate
func (s *DetectionService) analyzeAll(ctx context.Context, candidates []variation.CandidateFamily, hints map[string][]variation.RelationshipHint) []variation.FamilyAnalysis {
	analyses := make([]variation.FamilyAnalysis, len(candidates))
	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for i, c := range candidates {
		g.Go(func() error {
			analyses[i] = s.engine.Analyze(c, hints)
			return nil
		})
	}
	_ = g.Wait()
	return analyses
}

func (s *DetectionService) newLimiter() *rate.Limiter {
	if s.cfg.RequestInterval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(s.cfg.RequestInterval), 1)
}

func (s *DetectionService) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.clock.After(d):
		return nil
	}
}

// retryable reports whether a fetch error may succeed on a later attempt
func retryable(err error) bool {
	switch {
	case errors.Is(err, variation.ErrProductNotFound),
		errors.Is(err, variation.ErrProviderAuthFailed),
		errors.Is(err, variation.ErrProviderRequestFailed),
		errors.Is(err, variation.ErrConfiguration):
		return false
	default:
		return true
	}
}

func dedupe(skus []string) []string {
	seen := make(map[string]struct{}, len(skus))
	out := make([]string, 0, len(skus))
	for _, sku := range skus {
		sku = strings.TrimSpace(sku)
		if sku == "" {
			continue
		}
		if _, ok := seen[sku]; ok {
			continue
		}
		seen[sku] = struct{}{}
		out = append(out, sku)
	}
	return out
}
