package persistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/domain/variation"
)

// GormFeedOutcomeWriter saves a family and its feed submission in one
// transaction, so a crash cannot leave a family pointing at an unsaved feed.
type GormFeedOutcomeWriter struct {
	db          *Database
	families    *GormFamilyRepository
	submissions *GormFeedSubmissionRepository
}

// NewGormFeedOutcomeWriter creates a writer over db
func NewGormFeedOutcomeWriter(db *Database) *GormFeedOutcomeWriter {
	return &GormFeedOutcomeWriter{
		db:          db,
		families:    NewGormFamilyRepository(db.DB),
		submissions: NewGormFeedSubmissionRepository(db.DB),
	}
}

// SaveFeedOutcome implements variation.FeedOutcomeWriter. The family is
// written first since feed_submissions.family_id references it.
func (w *GormFeedOutcomeWriter) SaveFeedOutcome(ctx context.Context, family *variation.VariationFamily, submission *variation.FeedSubmission) error {
	return w.db.Transaction(ctx, func(tx *gorm.DB) error {
		if err := w.families.WithTx(tx).Save(ctx, family); err != nil {
			return fmt.Errorf("save family: %w", err)
		}
		if err := w.submissions.WithTx(tx).Save(ctx, submission); err != nil {
			return fmt.Errorf("save feed submission: %w", err)
		}
		return nil
	})
}

var _ variation.FeedOutcomeWriter = (*GormFeedOutcomeWriter)(nil)
