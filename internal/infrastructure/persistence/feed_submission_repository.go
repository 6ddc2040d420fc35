package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/domain/variation"
	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/infrastructure/persistence/models"
)

// GormFeedSubmissionRepository implements variation.FeedSubmissionRepository using GORM
type GormFeedSubmissionRepository struct {
	db *gorm.DB
}

// NewGormFeedSubmissionRepository creates a new GormFeedSubmissionRepository
func NewGormFeedSubmissionRepository(db *gorm.DB) *GormFeedSubmissionRepository {
	return &GormFeedSubmissionRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *GormFeedSubmissionRepository) WithTx(tx *gorm.DB) *GormFeedSubmissionRepository {
	return &GormFeedSubmissionRepository{db: tx}
}

// Save inserts or fully replaces a submission
func (r *GormFeedSubmissionRepository) Save(ctx context.Context, submission *variation.FeedSubmission) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "feed_id"}},
			UpdateAll: true,
		}).
		Create(models.FeedSubmissionModelFromDomain(submission)).Error
}

// FindByFeedID loads a submission, returning variation.ErrSubmissionNotFound when absent
func (r *GormFeedSubmissionRepository) FindByFeedID(ctx context.Context, feedID string) (*variation.FeedSubmission, error) {
	var model models.FeedSubmissionModel
	if err := r.db.WithContext(ctx).Where("feed_id = ?", feedID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", variation.ErrSubmissionNotFound, feedID)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindUnresolved returns submissions still awaiting a verdict, oldest first
func (r *GormFeedSubmissionRepository) FindUnresolved(ctx context.Context) ([]*variation.FeedSubmission, error) {
	var rows []models.FeedSubmissionModel
	err := r.db.WithContext(ctx).
		Where("outcome = ?", string(variation.FeedOutcomePending)).
		Order("submitted_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]*variation.FeedSubmission, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// List returns one page of submissions matching filter and the total match count.
// Status filters on the submission outcome.
func (r *GormFeedSubmissionRepository) List(ctx context.Context, filter ListFilter) ([]*variation.FeedSubmission, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.FeedSubmissionModel{})
	if filter.Status != "" {
		q = q.Where("outcome = ?", filter.Status)
	}
	if filter.MarketplaceID != "" {
		q = q.Where("marketplace_id = ?", filter.MarketplaceID)
	}
	if filter.FamilyID != uuid.Nil {
		q = q.Where("family_id = ?", filter.FamilyID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.FeedSubmissionModel
	orderBy := ValidateSortField(filter.OrderBy, SubmissionSortFields, "submitted_at")
	if err := filter.paginate(q, orderBy).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]*variation.FeedSubmission, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, total, nil
}

var _ variation.FeedSubmissionRepository = (*GormFeedSubmissionRepository)(nil)
