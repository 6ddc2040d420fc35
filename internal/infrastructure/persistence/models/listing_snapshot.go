package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/domain/variation"
)

// ListingSnapshotModel is the persistence model for ListingSnapshot
type ListingSnapshotModel struct {
	SKU           string              `gorm:"column:sku;type:varchar(128);primaryKey"`
	MarketplaceID string              `gorm:"type:varchar(32);primaryKey"`
	ProductType   string              `gorm:"type:varchar(64)"`
	Quantity      int                 `gorm:"not null;default:0"`
	Price         decimal.NullDecimal `gorm:"type:numeric(18,4)"`
	Currency      string              `gorm:"type:varchar(3)"`
	UpdatedAt     time.Time           `gorm:"not null;autoUpdateTime:false"`
}

// TableName returns the table name for GORM
func (ListingSnapshotModel) TableName() string {
	return "listing_snapshots"
}

// ToDomain converts the model to a domain snapshot
func (m *ListingSnapshotModel) ToDomain() variation.ListingSnapshot {
	return variation.ListingSnapshot{
		SKU:           m.SKU,
		MarketplaceID: m.MarketplaceID,
		ProductType:   m.ProductType,
		Quantity:      m.Quantity,
		Price:         m.Price,
		Currency:      m.Currency,
		UpdatedAt:     m.UpdatedAt,
	}
}

// ListingSnapshotModelFromDomain converts a domain snapshot
func ListingSnapshotModelFromDomain(s variation.ListingSnapshot) *ListingSnapshotModel {
	return &ListingSnapshotModel{
		SKU:           s.SKU,
		MarketplaceID: s.MarketplaceID,
		ProductType:   s.ProductType,
		Quantity:      s.Quantity,
		Price:         s.Price,
		Currency:      s.Currency,
		UpdatedAt:     s.UpdatedAt,
	}
}
