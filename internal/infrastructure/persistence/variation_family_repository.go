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

// GormFamilyRepository implements variation.FamilyRepository using GORM
type GormFamilyRepository struct {
	db *gorm.DB
}

// NewGormFamilyRepository creates a new GormFamilyRepository
func NewGormFamilyRepository(db *gorm.DB) *GormFamilyRepository {
	return &GormFamilyRepository{db: db}
}

// WithTx returns a new repository instance bound to tx
func (r *GormFamilyRepository) WithTx(tx *gorm.DB) *GormFamilyRepository {
	return &GormFamilyRepository{db: tx}
}

// Save inserts or fully replaces a family
func (r *GormFamilyRepository) Save(ctx context.Context, family *variation.VariationFamily) error {
	model, err := models.VariationFamilyModelFromDomain(family)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(model).Error
}

// FindByID loads a family, returning variation.ErrFamilyNotFound when absent
func (r *GormFamilyRepository) FindByID(ctx context.Context, id uuid.UUID) (*variation.VariationFamily, error) {
	var model models.VariationFamilyModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", variation.ErrFamilyNotFound, id)
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindSyncable returns ACTIVE families with inventory or pricing sync enabled, oldest first
func (r *GormFamilyRepository) FindSyncable(ctx context.Context) ([]*variation.VariationFamily, error) {
	var rows []models.VariationFamilyModel
	err := r.db.WithContext(ctx).
		Where("status = ?", variation.FamilyStatusActive.String()).
		Where("sync_inventory = ? OR sync_pricing = ?", true, true).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return familiesToDomain(rows)
}

// List returns one page of families matching filter and the total match count
func (r *GormFamilyRepository) List(ctx context.Context, filter ListFilter) ([]*variation.VariationFamily, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.VariationFamilyModel{})
	if filter.Status != "" {
		status, err := variation.ParseFamilyStatus(filter.Status)
		if err != nil {
			return nil, 0, err
		}
		q = q.Where("status = ?", status.String())
	}
	if filter.MarketplaceID != "" {
		q = q.Where("marketplace_id = ?", filter.MarketplaceID)
	}
	if filter.FamilyID != uuid.Nil {
		q = q.Where("id = ?", filter.FamilyID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.VariationFamilyModel
	orderBy := ValidateSortField(filter.OrderBy, FamilySortFields, "created_at")
	if err := filter.paginate(q, orderBy).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	families, err := familiesToDomain(rows)
	return families, total, err
}

func familiesToDomain(rows []models.VariationFamilyModel) ([]*variation.VariationFamily, error) {
	out := make([]*variation.VariationFamily, 0, len(rows))
	for i := range rows {
		f, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

var _ variation.FamilyRepository = (*GormFamilyRepository)(nil)
