package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/domain/variation"
	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/infrastructure/logger"
)

var (
	ErrSchedulerNotRunning = errors.New("scheduler: not running")
	ErrInvalidConfig       = errors.New("scheduler: invalid configuration")
	// ErrFamilyNotScheduled means RunNow was asked for a family with no cron entry
	ErrFamilyNotScheduled = errors.New("scheduler: family has no sync entry")
)

// FamilySource lists the families that should currently be synced
type FamilySource interface {
	FindSyncable(ctx context.Context) ([]*variation.VariationFamily, error)
}

// FamilySyncer runs one sync pass for a family
type FamilySyncer interface {
	SyncFamily(ctx context.Context, familyID uuid.UUID) error
}

// SyncSchedulerConfig holds sync scheduler configuration
type SyncSchedulerConfig struct {
	// Interval is the period of each family's sync entry
	Interval time.Duration
	// RefreshInterval is how often entries are reconciled with the store
	RefreshInterval time.Duration
	// JobTimeout bounds a single family sync
	JobTimeout time.Duration
}

// DefaultSyncSchedulerConfig returns default sync scheduler configuration
func DefaultSyncSchedulerConfig() SyncSchedulerConfig {
	return SyncSchedulerConfig{
		Interval:        time.Hour,
		RefreshInterval: 10 * time.Minute,
		JobTimeout:      5 * time.Minute,
	}
}

// Validate checks the configuration
func (c SyncSchedulerConfig) Validate() error {
	if c.Interval < time.Second {
		return fmt.Errorf("%w: interval must be at least 1s", ErrInvalidConfig)
	}
	if c.RefreshInterval < time.Second {
		return fmt.Errorf("%w: refresh interval must be at least 1s", ErrInvalidConfig)
	}
	if c.JobTimeout <= 0 {
		return fmt.Errorf("%w: job timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// SyncScheduler gives every syncable family its own periodic cron entry.
// Overlapping runs of the same entry are skipped and panics are recovered.
type SyncScheduler struct {
	config SyncSchedulerConfig
	source FamilySource
	syncer FamilySyncer
	logger *zap.Logger

	cron *cron.Cron

	mu        sync.Mutex
	entries   map[uuid.UUID]cron.EntryID
	baseCtx   context.Context
	cancel    context.CancelFunc
	isRunning bool
}

// NewSyncScheduler creates a new sync scheduler
func NewSyncScheduler(cfg SyncSchedulerConfig, source FamilySource, syncer FamilySyncer, log *zap.Logger) (*SyncScheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("sync_scheduler")
	cronLog := newCronLogger(log)

	return &SyncScheduler{
		config:  cfg,
		source:  source,
		syncer:  syncer,
		logger:  log,
		entries: make(map[uuid.UUID]cron.EntryID),
		cron: cron.New(
			cron.WithLogger(cronLog),
			cron.WithChain(
				cron.Recover(cronLog),
				cron.SkipIfStillRunning(cronLog),
			),
		),
	}, nil
}

// Start registers entries for the current syncable families and starts the cron runner
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.baseCtx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.isRunning = true
	s.mu.Unlock()

	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("Initial sync schedule refresh failed", zap.Error(err))
	}

	spec := fmt.Sprintf("@every %s", s.config.RefreshInterval)
	if _, err := s.cron.AddFunc(spec, func() {
		if err := s.Refresh(s.context()); err != nil {
			s.logger.Warn("Sync schedule refresh failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule refresh: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Sync scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("refresh_interval", s.config.RefreshInterval),
		zap.Int("families", s.Len()),
	)
	return nil
}

// Stop stops the cron runner and waits for running syncs to finish or ctx to expire
func (s *SyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		cancel()
		s.logger.Info("Sync scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		cancel()
		s.logger.Warn("Sync scheduler stop timed out")
		return ctx.Err()
	}
}

// Refresh reconciles cron entries with the families currently eligible for sync
func (s *SyncScheduler) Refresh(ctx context.Context) error {
	families, err := s.source.FindSyncable(ctx)
	if err != nil {
		return fmt.Errorf("failed to load syncable families: %w", err)
	}

	wanted := make(map[uuid.UUID]struct{}, len(families))
	for _, f := range families {
		wanted[f.ID] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var added, removed int
	for id, entryID := range s.entries {
		if _, ok := wanted[id]; !ok {
			s.cron.Remove(entryID)
			delete(s.entries, id)
			removed++
		}
	}
	for id := range wanted {
		if _, ok := s.entries[id]; ok {
			continue
		}
		entryID, err := s.cron.AddJob(fmt.Sprintf("@every %s", s.config.Interval), s.job(id))
		if err != nil {
			return fmt.Errorf("failed to schedule family %s: %w", id, err)
		}
		s.entries[id] = entryID
		added++
	}

	if added > 0 || removed > 0 {
		s.logger.Info("Sync schedule updated",
			zap.Int("added", added),
			zap.Int("removed", removed),
			zap.Int("families", len(s.entries)),
		)
	}
	return nil
}

// RunNow syncs a scheduled family immediately, outside its periodic entry
func (s *SyncScheduler) RunNow(familyID uuid.UUID) error {
	s.mu.Lock()
	running := s.isRunning
	_, scheduled := s.entries[familyID]
	s.mu.Unlock()

	if !running {
		return ErrSchedulerNotRunning
	}
	if !scheduled {
		return fmt.Errorf("%w: %s", ErrFamilyNotScheduled, familyID)
	}
	go s.job(familyID).Run()
	return nil
}

// Len returns the number of scheduled families
func (s *SyncScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Scheduled reports whether familyID has a sync entry
func (s *SyncScheduler) Scheduled(familyID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[familyID]
	return ok
}

func (s *SyncScheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.baseCtx == nil {
		return context.Background()
	}
	return s.baseCtx
}

func (s *SyncScheduler) job(familyID uuid.UUID) cron.Job {
	return cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(s.context(), s.config.JobTimeout)
		defer cancel()
		ctx = logger.WithFamilyID(ctx, familyID.String())

		start := time.Now()
		if err := s.syncer.SyncFamily(ctx, familyID); err != nil {
			logger.Ctx(ctx, s.logger).Warn("Family sync failed", zap.Error(err))
			return
		}
		logger.Ctx(ctx, s.logger).Debug("Family sync completed", zap.Duration("elapsed", time.Since(start)))
	})
}
