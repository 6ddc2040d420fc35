package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/domain/variation"
)

func TestGormFeedOutcomeWriter_SavesBoth(t *testing.T) {
	gormDB := setupVariationTestDB(t)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	writer := NewGormFeedOutcomeWriter(&Database{DB: gormDB})
	ctx := context.Background()

	family := newTestFamily(t, "P", "P1", "P2")
	submission := variation.NewFeedSubmission("F-10", family.ID, "DOC-10", "POST_PRODUCT_RELATIONSHIP_DATA", family.MarketplaceID, fixedNow())
	family.AttachFeed(submission.FeedID, fixedNow())
	family.Activate(fixedNow())
	submission.Conclude(variation.FeedOutcomeSucceeded, "", fixedNow())

	require.NoError(t, writer.SaveFeedOutcome(ctx, family, submission))

	storedFamily, err := NewGormFamilyRepository(gormDB).FindByID(ctx, family.ID)
	require.NoError(t, err)
	assert.Equal(t, variation.FamilyStatusActive, storedFamily.Status)
	assert.Equal(t, "F-10", storedFamily.FeedID)

	storedSub, err := NewGormFeedSubmissionRepository(gormDB).FindByFeedID(ctx, "F-10")
	require.NoError(t, err)
	assert.Equal(t, variation.FeedOutcomeSucceeded, storedSub.Outcome)
}

func TestGormFeedOutcomeWriter_RollsBack(t *testing.T) {
	db, mock := newMockDatabase(t)

	family := newTestFamily(t, "P", "P1")
	submission := variation.NewFeedSubmission("F-11", family.ID, "DOC-11", "POST_PRODUCT_RELATIONSHIP_DATA", family.MarketplaceID, fixedNow())

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "variation_families"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "feed_submissions"`).WillReturnError(errors.New("foreign key violation"))
	mock.ExpectRollback()

	err := NewGormFeedOutcomeWriter(db).SaveFeedOutcome(context.Background(), family, submission)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save feed submission")
	assert.Contains(t, err.Error(), "foreign key violation")
	require.NoError(t, mock.ExpectationsWereMet())
}
