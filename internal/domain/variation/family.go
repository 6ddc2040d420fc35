package variation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// FamilyStatus
// ---------------------------------------------------------------------------

// FamilyStatus is the publication state of a variation family
type FamilyStatus string

const (
	// FamilyStatusPending means the family is created but not confirmed by the provider
	FamilyStatusPending FamilyStatus = "PENDING"
	// FamilyStatusActive means the provider accepted the family feed
	FamilyStatusActive FamilyStatus = "ACTIVE"
	// FamilyStatusInactive means the family was rejected or deactivated
	FamilyStatusInactive FamilyStatus = "INACTIVE"
)

// IsValid returns true if the status is known
func (s FamilyStatus) IsValid() bool {
	switch s {
	case FamilyStatusPending, FamilyStatusActive, FamilyStatusInactive:
		return true
	default:
		return false
	}
}

// String returns the string representation of FamilyStatus
func (s FamilyStatus) String() string {
	return string(s)
}

// ParseFamilyStatus parses a status name case-insensitively
func ParseFamilyStatus(s string) (FamilyStatus, error) {
	status := FamilyStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrFamilyInvalid, s)
	}
	return status, nil
}

// ---------------------------------------------------------------------------
// VariationFamily
// ---------------------------------------------------------------------------

// VariationFamily is a published or publishable parent/child family. It owns
// its relationships and is never deleted, only deactivated.
type VariationFamily struct {
	ID              uuid.UUID
	MarketplaceID   string
	ParentSKU       string
	ChildSKUs       []string
	Themes          []ThemeName
	Relationships   []ProductRelationship
	Status          FamilyStatus
	ConfidenceScore float64
	AutoManage      bool
	SyncInventory   bool
	SyncPricing     bool
	// FeedID is the most recent feed submitted for the family; it is kept even when the feed failed
	FeedID     string
	LastSyncAt *time.Time
	SyncErrors *ErrorRing
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewVariationFamily creates a PENDING family from built relationships.
func NewVariationFamily(marketplaceID string, analysis FamilyAnalysis, relationships []ProductRelationship, now time.Time) (*VariationFamily, error) {
	if strings.TrimSpace(marketplaceID) == "" {
		return nil, NewConfigurationError("marketplace_id", "is required")
	}
	if len(relationships) == 0 {
		return nil, fmt.Errorf("%w: at least one relationship is required", ErrFamilyInvalid)
	}

	parent := relationships[0].ParentSKU
	children := make([]string, 0, len(relationships))
	for _, r := range relationships {
		if r.ParentSKU != parent {
			return nil, fmt.Errorf("%w: relationships reference different parents", ErrFamilyInvalid)
		}
		children = append(children, r.ChildSKU)
	}

	return &VariationFamily{
		ID:              uuid.New(),
		MarketplaceID:   marketplaceID,
		ParentSKU:       parent,
		ChildSKUs:       children,
		Themes:          append([]ThemeName(nil), relationships[0].Themes...),
		Relationships:   relationships,
		Status:          FamilyStatusPending,
		ConfidenceScore: analysis.ConfidenceScore,
		SyncErrors:      NewErrorRing(DefaultSyncErrorCapacity),
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// ThemeLabel returns the combined theme of the family
func (f *VariationFamily) ThemeLabel() string {
	return ThemeLabel(f.Themes)
}

// RecordError appends a message to the bounded sync error ring
func (f *VariationFamily) RecordError(at time.Time, format string, args ...any) {
	if f.SyncErrors == nil {
		f.SyncErrors = NewErrorRing(DefaultSyncErrorCapacity)
	}
	f.SyncErrors.Push(SyncError{At: at, Message: fmt.Sprintf(format, args...)})
	f.UpdatedAt = at
}

// AttachFeed records the feed submitted for the family
func (f *VariationFamily) AttachFeed(feedID string, at time.Time) {
	f.FeedID = feedID
	f.UpdatedAt = at
}

// Activate marks the family as accepted by the provider
func (f *VariationFamily) Activate(at time.Time) {
	f.Status = FamilyStatusActive
	f.UpdatedAt = at
}

// Deactivate marks the family as inactive
func (f *VariationFamily) Deactivate(at time.Time) {
	f.Status = FamilyStatusInactive
	f.UpdatedAt = at
}

// MarkSynced records a completed sync run
func (f *VariationFamily) MarkSynced(at time.Time) {
	f.LastSyncAt = &at
	f.UpdatedAt = at
}

// UpdateSyncSettings replaces the management flags
func (f *VariationFamily) UpdateSyncSettings(autoManage, syncInventory, syncPricing bool, at time.Time) {
	f.AutoManage = autoManage
	f.SyncInventory = syncInventory
	f.SyncPricing = syncPricing
	f.UpdatedAt = at
}

// IsSyncable reports whether the SyncCoordinator should process the family
func (f *VariationFamily) IsSyncable() bool {
	return f.Status == FamilyStatusActive && (f.SyncInventory || f.SyncPricing)
}
