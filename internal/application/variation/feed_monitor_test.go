package variation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/domain/variation"
	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/infrastructure/storage"
)

func testMonitorConfig() FeedMonitorConfig {
	cfg := DefaultFeedMonitorConfig()
	cfg.PollInterval = 30 * time.Second
	cfg.Timeout = 300 * time.Second
	return cfg
}

func newTestMonitor(t *testing.T, client variation.FeedClient, clock Clock, opts ...MonitorOption) *FeedMonitor {
	t.Helper()
	opts = append([]MonitorOption{WithMonitorClock(clock)}, opts...)
	m, err := NewFeedMonitor(client, testMonitorConfig(), zap.NewNop(), opts...)
	require.NoError(t, err)
	return m
}

func submittedFamily(t *testing.T, clock Clock) (*variation.VariationFamily, *variation.FeedSubmission) {
	t.Helper()
	family := newPendingFamily(t)
	family.AttachFeed("feed-1", clock.Now())
	sub := variation.NewFeedSubmission("feed-1", family.ID, "doc-1", DefaultFeedType, testMarketplace, clock.Now())
	return family, sub
}

// monitorFamily runs m and applies the verdict the way FamilyService does
func monitorFamily(ctx context.Context, m *FeedMonitor, family *variation.VariationFamily, sub *variation.FeedSubmission) (*MonitorResult, error) {
	res, err := m.Monitor(ctx, sub)
	res.ApplyTo(family, family.Status)
	return res, err
}

func TestFeedMonitor_DoneWithSuccessReport(t *testing.T) {
	clock := newFakeClock()
	client := &scriptedFeedClient{
		statuses:    []variation.FeedStatus{variation.FeedStatusInQueue, variation.FeedStatusInProgress, variation.FeedStatusDone},
		reportFound: true,
		report:      []byte("Feed Processing Summary:\n3 messages processed successfully\n"),
	}
	archive := storage.NewMemoryFeedArchive(10)
	subs := newMemSubmissionRepo()
	family, sub := submittedFamily(t, clock)

	m := newTestMonitor(t, client, clock, WithReportArchive(archive), WithSubmissionStore(subs))
	res, err := monitorFamily(context.Background(), m, family, sub)
	require.NoError(t, err)

	assert.Equal(t, MonitorSucceeded, res.State)
	assert.Equal(t, variation.FeedStatusDone, res.Status)
	assert.Equal(t, variation.FeedOutcomeSucceeded, res.Outcome)
	assert.Equal(t, 3, res.Polls)
	assert.Equal(t, "https://reports.test/feed-1", res.ReportURL)
	assert.NotEmpty(t, res.ArchiveKey)

	assert.Equal(t, variation.FamilyStatusActive, family.Status)
	assert.Equal(t, "feed-1", family.FeedID)
	assert.Equal(t, variation.FeedOutcomeSucceeded, sub.Outcome)
	assert.Equal(t, []time.Duration{30 * time.Second, 30 * time.Second}, clock.Waits())

	stored, err := subs.FindByFeedID(context.Background(), "feed-1")
	require.NoError(t, err)
	assert.Equal(t, variation.FeedOutcomeSucceeded, stored.Outcome)
	assert.Equal(t, 1, archive.Len())
}

func TestFeedMonitor_FatalSkipsReport(t *testing.T) {
	clock := newFakeClock()
	client := &scriptedFeedClient{
		statuses: []variation.FeedStatus{variation.FeedStatusInQueue, variation.FeedStatusFatal},
	}
	family, sub := submittedFamily(t, clock)

	res, err := monitorFamily(context.Background(), newTestMonitor(t, client, clock), family, sub)
	assert.ErrorIs(t, err, variation.ErrFeedFatal)

	assert.Equal(t, MonitorFailed, res.State)
	assert.Equal(t, variation.FeedStatusFatal, sub.Status)
	assert.Equal(t, variation.FeedOutcomeFailed, sub.Outcome)
	assert.Zero(t, client.reportRequests)

	assert.Equal(t, variation.FamilyStatusInactive, family.Status)
	last, ok := family.SyncErrors.Last()
	require.True(t, ok)
	assert.Contains(t, last.Message, "FATAL")
}

func TestFeedMonitor_TimesOut(t *testing.T) {
	clock := newFakeClock()
	client := &scriptedFeedClient{statuses: []variation.FeedStatus{variation.FeedStatusInProgress}}
	family, sub := submittedFamily(t, clock)

	res, err := monitorFamily(context.Background(), newTestMonitor(t, client, clock), family, sub)
	assert.ErrorIs(t, err, variation.ErrFeedTimeout)

	assert.Equal(t, MonitorTimedOut, res.State)
	assert.Equal(t, variation.FeedOutcomeTimedOut, sub.Outcome)
	assert.Equal(t, 10, res.Polls)
	assert.Equal(t, "feed-1", family.FeedID)
	assert.Equal(t, "feed-1", sub.FeedID)
	assert.Equal(t, variation.FamilyStatusPending, family.Status)
	assert.Equal(t, baseTime().Add(300*time.Second), clock.Now())
	assert.Equal(t, 1, family.SyncErrors.Len())
}

func TestFeedMonitor_BudgetRunsFromSubmission(t *testing.T) {
	clock := newFakeClock()
	client := &scriptedFeedClient{statuses: []variation.FeedStatus{variation.FeedStatusInProgress}}
	family, sub := submittedFamily(t, clock)

	// restart 250s after submission: only 50s remain
	clock.After(250 * time.Second)
	res, err := monitorFamily(context.Background(), newTestMonitor(t, client, clock), family, sub)
	assert.ErrorIs(t, err, variation.ErrFeedTimeout)
	assert.Equal(t, 2, res.Polls)
	assert.Equal(t, []time.Duration{250 * time.Second, 30 * time.Second, 20 * time.Second}, clock.Waits())
}

func TestFeedMonitor_UnknownAndTransientErrorsArePolledAgain(t *testing.T) {
	clock := newFakeClock()
	client := &scriptedFeedClient{
		statuses: []variation.FeedStatus{
			variation.FeedStatusUnknown,
			variation.FeedStatusInProgress,
			variation.FeedStatusInQueue, // backward, ignored
			variation.FeedStatusDone,
		},
	}
	family, sub := submittedFamily(t, clock)

	res, err := monitorFamily(context.Background(), newTestMonitor(t, client, clock), family, sub)
	require.NoError(t, err)
	assert.Equal(t, MonitorSucceeded, res.State)
	assert.Equal(t, 4, res.Polls)
	assert.Equal(t, "feed processed, no report", res.Message)
}

func TestFeedMonitor_StatusErrorsRetryWithinBudget(t *testing.T) {
	clock := newFakeClock()
	client := &scriptedFeedClient{statusErr: errors.New("connection reset")}
	family, sub := submittedFamily(t, clock)

	res, err := monitorFamily(context.Background(), newTestMonitor(t, client, clock), family, sub)
	assert.ErrorIs(t, err, variation.ErrFeedTimeout)
	assert.Equal(t, 10, res.Polls)
}

func TestFeedMonitor_ReportMarkers(t *testing.T) {
	tests := []struct {
		name   string
		report string
		want   MonitorState
	}{
		{"only error markers", "ERROR: 8560 SKU not found", MonitorFailed},
		{"only success markers", "All records processed SUCCESSFULLY", MonitorSucceeded},
		{"both markers", "2 success, 1 error", MonitorSucceeded},
		{"no markers", "Feed summary: 3 records", MonitorSucceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			client := &scriptedFeedClient{
				statuses:    []variation.FeedStatus{variation.FeedStatusDone},
				reportFound: true,
				report:      []byte(tt.report),
			}
			family, sub := submittedFamily(t, clock)

			res, err := monitorFamily(context.Background(), newTestMonitor(t, client, clock), family, sub)
			assert.Equal(t, tt.want, res.State)
			if tt.want == MonitorFailed {
				assert.ErrorIs(t, err, variation.ErrFeedRejected)
				assert.Equal(t, variation.FamilyStatusInactive, family.Status)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, variation.FamilyStatusActive, family.Status)
			}
		})
	}
}

func TestFeedMonitor_ReportErrorsDegradeToAbsent(t *testing.T) {
	t.Run("lookup fails", func(t *testing.T) {
		clock := newFakeClock()
		client := &scriptedFeedClient{statuses: []variation.FeedStatus{variation.FeedStatusDone}, reportErr: errors.New("500")}
		family, sub := submittedFamily(t, clock)

		res, err := monitorFamily(context.Background(), newTestMonitor(t, client, clock), family, sub)
		require.NoError(t, err)
		assert.Equal(t, MonitorSucceeded, res.State)
	})

	t.Run("download fails", func(t *testing.T) {
		clock := newFakeClock()
		client := &scriptedFeedClient{
			statuses:    []variation.FeedStatus{variation.FeedStatusDone},
			reportFound: true,
			downloadErr: errors.New("expired url"),
		}
		family, sub := submittedFamily(t, clock)

		res, err := monitorFamily(context.Background(), newTestMonitor(t, client, clock), family, sub)
		require.NoError(t, err)
		assert.Equal(t, MonitorSucceeded, res.State)
		assert.Equal(t, "feed processed, report unavailable", res.Message)
	})
}

func TestFeedMonitor_Cancellation(t *testing.T) {
	clock := newFakeClock()
	client := &scriptedFeedClient{statuses: []variation.FeedStatus{variation.FeedStatusInProgress}}
	subs := newMemSubmissionRepo()
	family, sub := submittedFamily(t, clock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := monitorFamily(ctx, newTestMonitor(t, client, clock, WithSubmissionStore(subs)), family, sub)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, MonitorCancelled, res.State)
	assert.Equal(t, variation.FeedOutcomePending, sub.Outcome)
	assert.Equal(t, "feed-1", family.FeedID)
	assert.Equal(t, variation.FamilyStatusPending, family.Status)
	assert.Zero(t, subs.saves)
}

func TestFeedMonitor_ResumeAfterDone(t *testing.T) {
	clock := newFakeClock()
	client := &scriptedFeedClient{reportFound: false}
	family, sub := submittedFamily(t, clock)
	_, err := sub.Observe(variation.FeedStatusDone, clock.Now())
	require.NoError(t, err)

	res, err := monitorFamily(context.Background(), newTestMonitor(t, client, clock), family, sub)
	require.NoError(t, err)
	assert.Equal(t, MonitorSucceeded, res.State)
	assert.Zero(t, client.polls)
	assert.Equal(t, 1, client.reportRequests)
}

func TestFeedMonitor_AlreadyConcluded(t *testing.T) {
	clock := newFakeClock()
	client := &scriptedFeedClient{}
	family, sub := submittedFamily(t, clock)
	sub.Conclude(variation.FeedOutcomeTimedOut, "late", clock.Now())

	res, err := monitorFamily(context.Background(), newTestMonitor(t, client, clock), family, sub)
	require.NoError(t, err)
	assert.Equal(t, MonitorTimedOut, res.State)
	assert.Zero(t, client.polls)
}

func TestNewFeedMonitor_Validation(t *testing.T) {
	_, err := NewFeedMonitor(&scriptedFeedClient{}, FeedMonitorConfig{Timeout: time.Minute}, nil)
	assert.ErrorIs(t, err, variation.ErrConfiguration)
	_, err = NewFeedMonitor(&scriptedFeedClient{}, FeedMonitorConfig{PollInterval: time.Second}, nil)
	assert.ErrorIs(t, err, variation.ErrConfiguration)
}

func TestScanMarkers(t *testing.T) {
	hasErr, hasOK := scanMarkers("Rejected: 1", []string{" REJECTED "}, []string{"", "success"})
	assert.True(t, hasErr)
	assert.False(t, hasOK)
}

func TestMonitorResult_ApplyTo(t *testing.T) {
	at := baseTime().Add(time.Minute)

	tests := []struct {
		name        string
		res         MonitorResult
		current     variation.FamilyStatus
		wantStatus  variation.FamilyStatus
		wantErrors  int
		publishedAs variation.FamilyStatus
	}{
		{"success activates", MonitorResult{FeedID: "f", State: MonitorSucceeded, ConcludedAt: at},
			variation.FamilyStatusPending, variation.FamilyStatusActive, 0, variation.FamilyStatusPending},
		{"failure deactivates and records", MonitorResult{FeedID: "f", State: MonitorFailed, Message: "rejected", ConcludedAt: at},
			variation.FamilyStatusPending, variation.FamilyStatusInactive, 1, variation.FamilyStatusPending},
		{"timeout records only", MonitorResult{FeedID: "f", State: MonitorTimedOut, Message: "late", ConcludedAt: at},
			variation.FamilyStatusPending, variation.FamilyStatusPending, 1, variation.FamilyStatusPending},
		{"operator status wins over success", MonitorResult{FeedID: "f", State: MonitorSucceeded, ConcludedAt: at},
			variation.FamilyStatusInactive, variation.FamilyStatusInactive, 0, variation.FamilyStatusPending},
		{"operator status wins over failure but error is kept", MonitorResult{FeedID: "f", State: MonitorFailed, Message: "x", ConcludedAt: at},
			variation.FamilyStatusActive, variation.FamilyStatusActive, 1, variation.FamilyStatusPending},
		{"no verdict in this run", MonitorResult{FeedID: "f", State: MonitorTimedOut},
			variation.FamilyStatusPending, variation.FamilyStatusPending, 0, variation.FamilyStatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			family := newPendingFamily(t)
			family.Status = tt.current

			tt.res.ApplyTo(family, tt.publishedAs)
			assert.Equal(t, tt.wantStatus, family.Status)
			assert.Equal(t, tt.wantErrors, family.SyncErrors.Len())
		})
	}
}
