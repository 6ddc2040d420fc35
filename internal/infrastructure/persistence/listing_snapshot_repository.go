package persistence

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/domain/variation"
	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/infrastructure/persistence/models"
)

// GormListingSnapshotRepository reads and writes listing snapshots
type GormListingSnapshotRepository struct {
	db *gorm.DB
}

// NewGormListingSnapshotRepository creates a new GormListingSnapshotRepository
func NewGormListingSnapshotRepository(db *gorm.DB) *GormListingSnapshotRepository {
	return &GormListingSnapshotRepository{db: db}
}

// Upsert stores snapshots, replacing existing rows of the same sku and marketplace
func (r *GormListingSnapshotRepository) Upsert(ctx context.Context, snapshots ...variation.ListingSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	rows := make([]*models.ListingSnapshotModel, 0, len(snapshots))
	for _, s := range snapshots {
		rows = append(rows, models.ListingSnapshotModelFromDomain(s))
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sku"}, {Name: "marketplace_id"}},
			UpdateAll: true,
		}).
		Create(&rows).Error
}

// FindSnapshots implements variation.ListingSnapshotSource
func (r *GormListingSnapshotRepository) FindSnapshots(ctx context.Context, marketplaceID string, skus []string) (map[string]variation.ListingSnapshot, error) {
	out := make(map[string]variation.ListingSnapshot, len(skus))
	if len(skus) == 0 {
		return out, nil
	}

	var rows []models.ListingSnapshotModel
	err := r.db.WithContext(ctx).
		Where("marketplace_id = ? AND sku IN ?", marketplaceID, skus).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for i := range rows {
		out[rows[i].SKU] = rows[i].ToDomain()
	}
	return out, nil
}

var _ variation.ListingSnapshotSource = (*GormListingSnapshotRepository)(nil)
