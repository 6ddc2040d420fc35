package variation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// FeedStatus is the provider's processing status of a feed
// ---------------------------------------------------------------------------

// FeedStatus is the provider's processing status of a feed
type FeedStatus string

const (
	// FeedStatusInQueue means the feed is waiting to be processed
	FeedStatusInQueue FeedStatus = "IN_QUEUE"
	// FeedStatusInProgress means the provider is processing the feed
	FeedStatusInProgress FeedStatus = "IN_PROGRESS"
	// FeedStatusDone means processing finished
	FeedStatusDone FeedStatus = "DONE"
	// FeedStatusFatal means processing aborted
	FeedStatusFatal FeedStatus = "FATAL"
	// FeedStatusUnknown covers any status the pipeline does not recognize
	FeedStatusUnknown FeedStatus = "UNKNOWN"
)

// ParseFeedStatus maps a provider status string, treating unrecognized values as UNKNOWN
func ParseFeedStatus(s string) FeedStatus {
	switch status := FeedStatus(strings.ToUpper(strings.TrimSpace(s))); status {
	case FeedStatusInQueue, FeedStatusInProgress, FeedStatusDone, FeedStatusFatal:
		return status
	default:
		return FeedStatusUnknown
	}
}

// String returns the string representation of FeedStatus
func (s FeedStatus) String() string {
	return string(s)
}

// IsTerminal returns true for DONE and FATAL
func (s FeedStatus) IsTerminal() bool {
	return s == FeedStatusDone || s == FeedStatusFatal
}

func (s FeedStatus) rank() int {
	switch s {
	case FeedStatusInQueue:
		return 1
	case FeedStatusInProgress:
		return 2
	case FeedStatusDone, FeedStatusFatal:
		return 3
	default:
		return 0
	}
}

// ---------------------------------------------------------------------------
// FeedOutcome is the pipeline's verdict on a submission
// ---------------------------------------------------------------------------

// FeedOutcome is the pipeline's verdict on a submission
type FeedOutcome string

const (
	// FeedOutcomePending means no verdict has been reached yet
	FeedOutcomePending FeedOutcome = "PENDING"
	// FeedOutcomeSucceeded means the family was accepted
	FeedOutcomeSucceeded FeedOutcome = "SUCCEEDED"
	// FeedOutcomeFailed means the feed failed or its report contained errors
	FeedOutcomeFailed FeedOutcome = "FAILED"
	// FeedOutcomeTimedOut means the feed did not finish within the budget
	FeedOutcomeTimedOut FeedOutcome = "TIMED_OUT"
)

// IsFinal returns true once a verdict is recorded
func (o FeedOutcome) IsFinal() bool {
	return o == FeedOutcomeSucceeded || o == FeedOutcomeFailed || o == FeedOutcomeTimedOut
}

// ---------------------------------------------------------------------------
// FeedSubmission
// ---------------------------------------------------------------------------

// FeedSubmission is one external processing job. Its status only moves
// forward and never leaves DONE or FATAL.
type FeedSubmission struct {
	FeedID          string
	FamilyID        uuid.UUID
	DocumentID      string
	FeedType        string
	MarketplaceID   string
	SubmittedAt     time.Time
	Status          FeedStatus
	ResultReportRef string
	Outcome         FeedOutcome
	OutcomeMessage  string
	CompletedAt     *time.Time
	UpdatedAt       time.Time
}

// NewFeedSubmission creates an IN_QUEUE submission
func NewFeedSubmission(feedID string, familyID uuid.UUID, documentID, feedType, marketplaceID string, submittedAt time.Time) *FeedSubmission {
	return &FeedSubmission{
		FeedID:        feedID,
		FamilyID:      familyID,
		DocumentID:    documentID,
		FeedType:      feedType,
		MarketplaceID: marketplaceID,
		SubmittedAt:   submittedAt,
		Status:        FeedStatusInQueue,
		Outcome:       FeedOutcomePending,
		UpdatedAt:     submittedAt,
	}
}

// Observe applies a polled status. It reports whether the recorded status
// changed; UNKNOWN and backward statuses leave it untouched. Leaving a
// terminal status is an error.
func (s *FeedSubmission) Observe(status FeedStatus, at time.Time) (bool, error) {
	if s.Status.IsTerminal() {
		if status == s.Status {
			return false, nil
		}
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidFeedTransition, s.Status, status)
	}
	if status.rank() <= s.Status.rank() {
		return false, nil
	}
	s.Status = status
	s.UpdatedAt = at
	return true, nil
}

// Deadline returns the wall-clock time the submission must finish by
func (s *FeedSubmission) Deadline(timeout time.Duration) time.Time {
	return s.SubmittedAt.Add(timeout)
}

// Conclude records the pipeline's verdict
func (s *FeedSubmission) Conclude(outcome FeedOutcome, message string, at time.Time) {
	s.Outcome = outcome
	s.OutcomeMessage = message
	s.CompletedAt = &at
	s.UpdatedAt = at
}
