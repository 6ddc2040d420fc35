package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/domain/variation"
)

// VariationFamilyModel is the persistence model for VariationFamily.
// Collections are stored as JSON documents.
type VariationFamilyModel struct {
	ID                uuid.UUID `gorm:"type:uuid;primary_key"`
	MarketplaceID     string    `gorm:"type:varchar(32);not null;index"`
	ParentSKU         string    `gorm:"column:parent_sku;type:varchar(128);not null;index"`
	ChildSKUsJSON     string    `gorm:"column:child_skus;type:jsonb;not null"`
	Themes            string    `gorm:"type:varchar(128);not null"`
	RelationshipsJSON string    `gorm:"column:relationships;type:jsonb;not null"`
	Status            string    `gorm:"type:varchar(16);not null;index"`
	ConfidenceScore   float64   `gorm:"not null"`
	AutoManage        bool      `gorm:"not null"`
	SyncInventory     bool      `gorm:"not null"`
	SyncPricing       bool      `gorm:"not null"`
	FeedID            string    `gorm:"type:varchar(64)"`
	LastSyncAt        *time.Time
	SyncErrorsJSON    string    `gorm:"column:sync_errors;type:jsonb"`
	CreatedAt         time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt         time.Time `gorm:"not null;autoUpdateTime:false"`
}

// TableName returns the table name for GORM
func (VariationFamilyModel) TableName() string {
	return "variation_families"
}

// VariationFamilyModelFromDomain converts a domain family
func VariationFamilyModelFromDomain(f *variation.VariationFamily) (*VariationFamilyModel, error) {
	children, err := json.Marshal(nonNil(f.ChildSKUs))
	if err != nil {
		return nil, fmt.Errorf("encode child skus: %w", err)
	}
	rels, err := json.Marshal(nonNil(f.Relationships))
	if err != nil {
		return nil, fmt.Errorf("encode relationships: %w", err)
	}
	var entries []variation.SyncError
	if f.SyncErrors != nil {
		entries = f.SyncErrors.Entries()
	}
	syncErrors, err := json.Marshal(nonNil(entries))
	if err != nil {
		return nil, fmt.Errorf("encode sync errors: %w", err)
	}

	themes := make([]string, len(f.Themes))
	for i, t := range f.Themes {
		themes[i] = t.String()
	}

	return &VariationFamilyModel{
		ID:                f.ID,
		MarketplaceID:     f.MarketplaceID,
		ParentSKU:         f.ParentSKU,
		ChildSKUsJSON:     string(children),
		Themes:            strings.Join(themes, ","),
		RelationshipsJSON: string(rels),
		Status:            f.Status.String(),
		ConfidenceScore:   f.ConfidenceScore,
		AutoManage:        f.AutoManage,
		SyncInventory:     f.SyncInventory,
		SyncPricing:       f.SyncPricing,
		FeedID:            f.FeedID,
		LastSyncAt:        f.LastSyncAt,
		SyncErrorsJSON:    string(syncErrors),
		CreatedAt:         f.CreatedAt,
		UpdatedAt:         f.UpdatedAt,
	}, nil
}

// ToDomain converts the persistence model to a domain family
func (m *VariationFamilyModel) ToDomain() (*variation.VariationFamily, error) {
	f := &variation.VariationFamily{
		ID:              m.ID,
		MarketplaceID:   m.MarketplaceID,
		ParentSKU:       m.ParentSKU,
		Status:          variation.FamilyStatus(m.Status),
		ConfidenceScore: m.ConfidenceScore,
		AutoManage:      m.AutoManage,
		SyncInventory:   m.SyncInventory,
		SyncPricing:     m.SyncPricing,
		FeedID:          m.FeedID,
		LastSyncAt:      m.LastSyncAt,
		SyncErrors:      variation.NewErrorRing(variation.DefaultSyncErrorCapacity),
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}

	if err := decodeJSON(m.ChildSKUsJSON, &f.ChildSKUs); err != nil {
		return nil, fmt.Errorf("family %s child_skus: %w", m.ID, err)
	}
	if err := decodeJSON(m.RelationshipsJSON, &f.Relationships); err != nil {
		return nil, fmt.Errorf("family %s relationships: %w", m.ID, err)
	}
	var entries []variation.SyncError
	if err := decodeJSON(m.SyncErrorsJSON, &entries); err != nil {
		return nil, fmt.Errorf("family %s sync_errors: %w", m.ID, err)
	}
	for _, e := range entries {
		f.SyncErrors.Push(e)
	}

	if m.Themes != "" {
		for _, raw := range strings.Split(m.Themes, ",") {
			name, err := variation.ParseThemeName(raw)
			if err != nil {
				return nil, fmt.Errorf("family %s themes: %w", m.ID, err)
			}
			f.Themes = append(f.Themes, name)
		}
	}

	return f, nil
}

// FeedSubmissionModel is the persistence model for FeedSubmission
type FeedSubmissionModel struct {
	FeedID          string    `gorm:"type:varchar(64);primary_key"`
	FamilyID        uuid.UUID `gorm:"type:uuid;not null;index"`
	DocumentID      string    `gorm:"type:varchar(128);not null"`
	FeedType        string    `gorm:"type:varchar(64);not null"`
	MarketplaceID   string    `gorm:"type:varchar(32);not null"`
	SubmittedAt     time.Time `gorm:"not null"`
	Status          string    `gorm:"type:varchar(16);not null"`
	ResultReportRef string    `gorm:"type:text"`
	Outcome         string    `gorm:"type:varchar(16);not null;index"`
	OutcomeMessage  string    `gorm:"type:text"`
	CompletedAt     *time.Time
	UpdatedAt       time.Time `gorm:"not null;autoUpdateTime:false"`
}

// TableName returns the table name for GORM
func (FeedSubmissionModel) TableName() string {
	return "feed_submissions"
}

// FeedSubmissionModelFromDomain converts a domain submission
func FeedSubmissionModelFromDomain(s *variation.FeedSubmission) *FeedSubmissionModel {
	return &FeedSubmissionModel{
		FeedID:          s.FeedID,
		FamilyID:        s.FamilyID,
		DocumentID:      s.DocumentID,
		FeedType:        s.FeedType,
		MarketplaceID:   s.MarketplaceID,
		SubmittedAt:     s.SubmittedAt,
		Status:          s.Status.String(),
		ResultReportRef: s.ResultReportRef,
		Outcome:         string(s.Outcome),
		OutcomeMessage:  s.OutcomeMessage,
		CompletedAt:     s.CompletedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

// ToDomain converts the persistence model to a domain submission
func (m *FeedSubmissionModel) ToDomain() *variation.FeedSubmission {
	return &variation.FeedSubmission{
		FeedID:          m.FeedID,
		FamilyID:        m.FamilyID,
		DocumentID:      m.DocumentID,
		FeedType:        m.FeedType,
		MarketplaceID:   m.MarketplaceID,
		SubmittedAt:     m.SubmittedAt,
		Status:          variation.ParseFeedStatus(m.Status),
		ResultReportRef: m.ResultReportRef,
		Outcome:         variation.FeedOutcome(m.Outcome),
		OutcomeMessage:  m.OutcomeMessage,
		CompletedAt:     m.CompletedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func decodeJSON(raw string, dst any) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dst)
}
