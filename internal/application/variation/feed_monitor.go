package variation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/domain/variation"
	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/infrastructure/logger"
	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/infrastructure/telemetry"
)

const fatalMessage = "feed processing ended with status FATAL"

// MonitorState is a state of the feed monitor
type MonitorState string

// Monitor states. POLLING and FETCHING_REPORT are transient.
const (
	MonitorPolling        MonitorState = "POLLING"
	MonitorFetchingReport MonitorState = "FETCHING_REPORT"
	MonitorSucceeded      MonitorState = "SUCCEEDED"
	MonitorFailed         MonitorState = "FAILED"
	MonitorTimedOut       MonitorState = "TIMED_OUT"
	MonitorCancelled      MonitorState = "CANCELLED"
)

// IsTerminal returns true once the monitor has stopped
func (s MonitorState) IsTerminal() bool {
	switch s {
	case MonitorSucceeded, MonitorFailed, MonitorTimedOut, MonitorCancelled:
		return true
	default:
		return false
	}
}

// FeedMonitorConfig holds polling settings
type FeedMonitorConfig struct {
	PollInterval   time.Duration
	Timeout        time.Duration
	SuccessMarkers []string
	ErrorMarkers   []string
}

// DefaultFeedMonitorConfig returns the default polling settings
func DefaultFeedMonitorConfig() FeedMonitorConfig {
	return FeedMonitorConfig{
		PollInterval:   30 * time.Second,
		Timeout:        300 * time.Second,
		SuccessMarkers: []string{"success", "processed successfully"},
		ErrorMarkers:   []string{"error", "failed", "rejected"},
	}
}

// MonitorResult describes how a monitored feed ended
type MonitorResult struct {
	FeedID     string
	State      MonitorState
	Status     variation.FeedStatus
	Outcome    variation.FeedOutcome
	Message    string
	Polls      int
	ReportURL  string
	ArchiveKey string
	// ConcludedAt is zero unless this run reached the verdict
	ConcludedAt time.Time
}

// ApplyTo records the verdict on family. Status changes only apply while the
// family still has statusAtPublish, so a status set by an operator while the
// feed was processing is kept.
func (r *MonitorResult) ApplyTo(family *variation.VariationFamily, statusAtPublish variation.FamilyStatus) {
	if r.ConcludedAt.IsZero() {
		return
	}
	at := r.ConcludedAt
	owned := family.Status == statusAtPublish
	switch r.State {
	case MonitorSucceeded:
		if owned {
			family.Activate(at)
		}
	case MonitorFailed:
		family.RecordError(at, "feed %s: %s", r.FeedID, r.Message)
		if owned {
			family.Deactivate(at)
		}
	case MonitorTimedOut:
		family.RecordError(at, "feed %s: %s", r.FeedID, r.Message)
	}
}

// FeedMonitor polls a submitted feed until it finishes, fails, runs out of
// budget or is cancelled. It never touches the family; callers apply the
// returned verdict with MonitorResult.ApplyTo.
type FeedMonitor struct {
	client      variation.FeedClient
	submissions variation.FeedSubmissionRepository
	archive     variation.FeedArchive
	cfg         FeedMonitorConfig
	clock       Clock
	metrics     *telemetry.PipelineMetrics
	logger      *zap.Logger
}

// MonitorOption configures a FeedMonitor
type MonitorOption func(*FeedMonitor)

// WithReportArchive keeps a copy of every downloaded report
func WithReportArchive(a variation.FeedArchive) MonitorOption {
	return func(m *FeedMonitor) { m.archive = a }
}

// WithSubmissionStore persists status changes as they are observed
func WithSubmissionStore(r variation.FeedSubmissionRepository) MonitorOption {
	return func(m *FeedMonitor) { m.submissions = r }
}

// WithMonitorClock overrides the clock
func WithMonitorClock(c Clock) MonitorOption {
	return func(m *FeedMonitor) { m.clock = c }
}

// WithMonitorMetrics records monitor outcomes
func WithMonitorMetrics(pm *telemetry.PipelineMetrics) MonitorOption {
	return func(m *FeedMonitor) { m.metrics = pm }
}

// NewFeedMonitor creates a monitor
func NewFeedMonitor(client variation.FeedClient, cfg FeedMonitorConfig, log *zap.Logger, opts ...MonitorOption) (*FeedMonitor, error) {
	if cfg.PollInterval <= 0 {
		return nil, variation.NewConfigurationError("poll_interval", "must be positive")
	}
	if cfg.Timeout <= 0 {
		return nil, variation.NewConfigurationError("timeout", "must be positive")
	}
	if log == nil {
		log = zap.NewNop()
	}
	m := &FeedMonitor{
		client: client,
		cfg:    cfg,
		clock:  RealClock(),
		logger: log.Named("feed_monitor"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Monitor drives submission to a verdict. The budget runs from
// submission.SubmittedAt, so a resumed monitor only gets what is left.
// The returned error wraps ErrFeedFatal, ErrFeedRejected, ErrFeedTimeout or
// the context error; the result is always non-nil.
func (m *FeedMonitor) Monitor(ctx context.Context, submission *variation.FeedSubmission) (*MonitorResult, error) {
	ctx = logger.WithFeedID(logger.WithFamilyID(ctx, submission.FamilyID.String()), submission.FeedID)
	ctx, span := telemetry.StartSpan(ctx, "FeedMonitor", "Monitor",
		telemetry.FeedID(submission.FeedID),
	)
	defer span.End()
	log := logger.Ctx(ctx, m.logger)

	res := &MonitorResult{FeedID: submission.FeedID, Status: submission.Status, Outcome: submission.Outcome}
	if submission.Outcome.IsFinal() {
		res.State = stateForOutcome(submission.Outcome)
		res.Message = submission.OutcomeMessage
		return res, nil
	}

	m.metrics.MonitorStarted(ctx)
	deadline := submission.Deadline(m.cfg.Timeout)
	state := m.initialState(submission)
	var err error

	telemetry.WithStageLabel(ctx, "monitor", func(ctx context.Context) {
		for !state.IsTerminal() {
			switch state {
			case MonitorPolling:
				state = m.poll(ctx, submission, deadline, res, log)
			case MonitorFetchingReport:
				state = m.checkReport(ctx, submission, res, log)
			}
		}
	})

	res.State = state
	res.Status = submission.Status
	now := m.clock.Now()

	switch state {
	case MonitorSucceeded:
		submission.Conclude(variation.FeedOutcomeSucceeded, res.Message, now)
		res.ConcludedAt = now
	case MonitorFailed:
		if res.Message == "" {
			res.Message = fatalMessage
		}
		submission.Conclude(variation.FeedOutcomeFailed, res.Message, now)
		res.ConcludedAt = now
		err = variation.ErrFeedRejected
		if submission.Status == variation.FeedStatusFatal {
			err = variation.ErrFeedFatal
		}
		err = fmt.Errorf("%w: feed %s", err, submission.FeedID)
	case MonitorTimedOut:
		res.Message = fmt.Sprintf("feed did not complete within %s", m.cfg.Timeout)
		submission.Conclude(variation.FeedOutcomeTimedOut, res.Message, now)
		res.ConcludedAt = now
		err = fmt.Errorf("%w: feed %s after %s", variation.ErrFeedTimeout, submission.FeedID, m.cfg.Timeout)
	case MonitorCancelled:
		err = fmt.Errorf("monitor feed %s: %w", submission.FeedID, context.Cause(ctx))
	}
	res.Outcome = submission.Outcome

	if state != MonitorCancelled {
		m.saveSubmission(ctx, submission, log)
	}
	m.metrics.MonitorFinished(ctx, strings.ToLower(string(state)), now.Sub(submission.SubmittedAt))
	if err != nil {
		telemetry.RecordError(span, err)
	}
	log.Info("feed monitoring finished",
		zap.String("state", string(state)),
		zap.String("status", submission.Status.String()),
		zap.Int("polls", res.Polls),
		zap.String("message", res.Message),
	)
	return res, err
}

func (m *FeedMonitor) initialState(s *variation.FeedSubmission) MonitorState {
	switch s.Status {
	case variation.FeedStatusDone:
		return MonitorFetchingReport
	case variation.FeedStatusFatal:
		return MonitorFailed
	default:
		return MonitorPolling
	}
}

// poll fetches the status once and waits for the next poll when needed
func (m *FeedMonitor) poll(ctx context.Context, s *variation.FeedSubmission, deadline time.Time, res *MonitorResult, log *zap.Logger) MonitorState {
	if ctx.Err() != nil {
		return MonitorCancelled
	}
	now := m.clock.Now()
	if !now.Before(deadline) {
		return MonitorTimedOut
	}

	status, err := m.client.GetFeedStatus(ctx, s.FeedID, s.MarketplaceID)
	res.Polls++
	if err != nil {
		if ctx.Err() != nil {
			return MonitorCancelled
		}
		log.Warn("feed status poll failed", zap.Error(err))
	} else {
		changed, obsErr := s.Observe(status, now)
		if obsErr != nil {
			log.Warn("ignoring feed status", zap.Error(obsErr))
		}
		if changed {
			log.Debug("feed status changed", zap.String("status", s.Status.String()))
			m.saveSubmission(ctx, s, log)
		}
		switch s.Status {
		case variation.FeedStatusDone:
			return MonitorFetchingReport
		case variation.FeedStatusFatal:
			res.Message = fatalMessage
			return MonitorFailed
		}
	}

	wait := m.cfg.PollInterval
	if remaining := deadline.Sub(m.clock.Now()); remaining < wait {
		wait = remaining
	}
	if wait <= 0 {
		return MonitorTimedOut
	}
	select {
	case <-ctx.Done():
		return MonitorCancelled
	case <-m.clock.After(wait):
		return MonitorPolling
	}
}

// checkReport reads the processing report of a DONE feed and scans it for markers
func (m *FeedMonitor) checkReport(ctx context.Context, s *variation.FeedSubmission, res *MonitorResult, log *zap.Logger) MonitorState {
	reportURL, found, err := m.client.GetFeedResultReport(ctx, s.FeedID, s.MarketplaceID)
	if err != nil {
		if ctx.Err() != nil {
			return MonitorCancelled
		}
		log.Warn("feed report lookup failed, treating as absent", zap.Error(err))
		found = false
	}
	if !found {
		res.Message = "feed processed, no report"
		return MonitorSucceeded
	}
	res.ReportURL = reportURL
	s.ResultReportRef = reportURL

	report, err := m.client.DownloadReport(ctx, reportURL)
	if err != nil {
		if ctx.Err() != nil {
			return MonitorCancelled
		}
		log.Warn("feed report download failed, treating as absent", zap.Error(err))
		res.Message = "feed processed, report unavailable"
		return MonitorSucceeded
	}
	res.ArchiveKey = m.archiveReport(ctx, s.FeedID, report, log)

	hasError, hasSuccess := scanMarkers(string(report), m.cfg.ErrorMarkers, m.cfg.SuccessMarkers)
	if hasError && !hasSuccess {
		res.Message = "processing report contains errors"
		return MonitorFailed
	}
	res.Message = "feed processed successfully"
	return MonitorSucceeded
}

func (m *FeedMonitor) archiveReport(ctx context.Context, feedID string, report []byte, log *zap.Logger) string {
	if m.archive == nil {
		return ""
	}
	key, err := m.archive.ArchiveReport(ctx, feedID, report)
	if err != nil {
		log.Warn("report archive failed", zap.Error(err))
		return ""
	}
	return key
}

func (m *FeedMonitor) saveSubmission(ctx context.Context, s *variation.FeedSubmission, log *zap.Logger) {
	if m.submissions == nil {
		return
	}
	if err := m.submissions.Save(ctx, s); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("failed to persist feed submission", zap.Error(err))
	}
}

// scanMarkers matches markers case-insensitively against report
func scanMarkers(report string, errorMarkers, successMarkers []string) (hasError, hasSuccess bool) {
	text := strings.ToLower(report)
	contains := func(markers []string) bool {
		for _, mk := range markers {
			if mk = strings.ToLower(strings.TrimSpace(mk)); mk != "" && strings.Contains(text, mk) {
				return true
			}
		}
		return false
	}
	return contains(errorMarkers), contains(successMarkers)
}

func stateForOutcome(o variation.FeedOutcome) MonitorState {
	switch o {
	case variation.FeedOutcomeSucceeded:
		return MonitorSucceeded
	case variation.FeedOutcomeTimedOut:
		return MonitorTimedOut
	default:
		return MonitorFailed
	}
}
