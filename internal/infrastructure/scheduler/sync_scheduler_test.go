package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/domain/variation"
)

type fakeSource struct {
	mu       sync.Mutex
	families []*variation.VariationFamily
	err      error
}

func (f *fakeSource) FindSyncable(context.Context) ([]*variation.VariationFamily, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.families, f.err
}

func (f *fakeSource) set(ids ...uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.families = nil
	for _, id := range ids {
		f.families = append(f.families, &variation.VariationFamily{ID: id})
	}
}

type fakeSyncer struct {
	mu    sync.Mutex
	calls map[uuid.UUID]int
	panic bool
}

func (f *fakeSyncer) SyncFamily(ctx context.Context, familyID uuid.UUID) error {
	f.mu.Lock()
	f.calls[familyID]++
	shouldPanic := f.panic
	f.mu.Unlock()
	if shouldPanic {
		panic("channel exploded")
	}
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("missing job timeout")
	}
	return nil
}

func (f *fakeSyncer) count(id uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func testConfig() SyncSchedulerConfig {
	return SyncSchedulerConfig{
		Interval:        time.Second,
		RefreshInterval: time.Hour,
		JobTimeout:      time.Second,
	}
}

func TestSyncSchedulerConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SyncSchedulerConfig)
		valid  bool
	}{
		{"defaults", func(*SyncSchedulerConfig) {}, true},
		{"sub-second interval", func(c *SyncSchedulerConfig) { c.Interval = 500 * time.Millisecond }, false},
		{"zero refresh", func(c *SyncSchedulerConfig) { c.RefreshInterval = 0 }, false},
		{"zero timeout", func(c *SyncSchedulerConfig) { c.JobTimeout = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultSyncSchedulerConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestSyncScheduler_Refresh(t *testing.T) {
	source := &fakeSource{}
	s, err := NewSyncScheduler(testConfig(), source, &fakeSyncer{calls: map[uuid.UUID]int{}}, zaptest.NewLogger(t))
	require.NoError(t, err)
	ctx := context.Background()

	a, b, c := uuid.New(), uuid.New(), uuid.New()
	source.set(a, b)
	require.NoError(t, s.Refresh(ctx))
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Scheduled(a))

	source.set(b, c)
	require.NoError(t, s.Refresh(ctx))
	assert.Equal(t, 2, s.Len())
	assert.False(t, s.Scheduled(a), "families no longer syncable lose their entry")
	assert.True(t, s.Scheduled(c))

	source.err = errors.New("db down")
	assert.Error(t, s.Refresh(ctx))
	assert.Equal(t, 2, s.Len(), "a failed refresh keeps the current schedule")
}

func TestSyncScheduler_RunsFamiliesPeriodically(t *testing.T) {
	source := &fakeSource{}
	syncer := &fakeSyncer{calls: map[uuid.UUID]int{}}
	s, err := NewSyncScheduler(testConfig(), source, syncer, zaptest.NewLogger(t))
	require.NoError(t, err)

	id := uuid.New()
	source.set(id)

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	defer func() { _ = s.Stop(ctx) }()

	assert.Eventually(t, func() bool { return syncer.count(id) >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestSyncScheduler_RunNow(t *testing.T) {
	source := &fakeSource{}
	syncer := &fakeSyncer{calls: map[uuid.UUID]int{}}
	cfg := testConfig()
	cfg.Interval = time.Hour
	// RunNow outlives the cron runner, so it must not log through t
	s, err := NewSyncScheduler(cfg, source, syncer, zap.NewNop())
	require.NoError(t, err)

	id := uuid.New()
	assert.ErrorIs(t, s.RunNow(id), ErrSchedulerNotRunning)

	source.set(id)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	defer func() { _ = s.Stop(ctx) }()

	assert.ErrorIs(t, s.RunNow(uuid.New()), ErrFamilyNotScheduled)
	require.NoError(t, s.RunNow(id))
	assert.Eventually(t, func() bool { return syncer.count(id) == 1 }, time.Second, 10*time.Millisecond)
}

func TestSyncScheduler_RecoversPanics(t *testing.T) {
	source := &fakeSource{}
	syncer := &fakeSyncer{calls: map[uuid.UUID]int{}, panic: true}
	s, err := NewSyncScheduler(testConfig(), source, syncer, zaptest.NewLogger(t))
	require.NoError(t, err)

	id := uuid.New()
	source.set(id)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	assert.Eventually(t, func() bool { return syncer.count(id) >= 2 }, 4*time.Second, 50*time.Millisecond,
		"a panicking sync must not kill its entry")

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(stopCtx))
	assert.NoError(t, s.Stop(stopCtx), "stop is idempotent")
}
