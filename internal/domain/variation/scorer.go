package variation

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// AnalysisConfig holds the tunables of family scoring.
type AnalysisConfig struct {
	// MinPopulatedAttributes is the number of populated attributes a member must exceed to count as complete
	MinPopulatedAttributes int
	// SizeSaturation is the family size at which the size factor reaches 1
	SizeSaturation int
	// LowCoverageThreshold flags themes whose coverage falls below it
	LowCoverageThreshold float64
	// SmallFamilySize flags families with fewer members than this
	SmallFamilySize int
}

// DefaultAnalysisConfig returns the default scoring configuration
func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		MinPopulatedAttributes: 1,
		SizeSaturation:         10,
		LowCoverageThreshold:   0.5,
		SmallFamilySize:        3,
	}
}

// Validate checks the configuration
func (c AnalysisConfig) Validate() error {
	if c.MinPopulatedAttributes < 0 {
		return NewConfigurationError("min_populated_attributes", "cannot be negative")
	}
	if c.SizeSaturation <= 0 {
		return NewConfigurationError("size_saturation", "must be positive")
	}
	if c.LowCoverageThreshold < 0 || c.LowCoverageThreshold > 1 {
		return NewConfigurationError("low_coverage_threshold", "must be between 0 and 1")
	}
	return nil
}

// FamilyAnalysis is the clustering verdict for one candidate family.
type FamilyAnalysis struct {
	Key             string                 `json:"key"`
	BaseIdentity    string                 `json:"base_identity"`
	Brand           string                 `json:"brand"`
	Category        string                 `json:"category"`
	MemberSKUs      []string               `json:"member_skus"`
	HasVariations   bool                   `json:"has_variations"`
	Themes          []ThemeDetectionResult `json:"themes"`
	ConfidenceScore float64                `json:"confidence_score"`
	SuggestedParent string                 `json:"suggested_parent"`
	Notes           []string               `json:"notes"`
}

// IsMember reports whether sku belongs to the analyzed family
func (a FamilyAnalysis) IsMember(sku string) bool {
	for _, m := range a.MemberSKUs {
		if m == sku {
			return true
		}
	}
	return false
}

// Theme returns the detection result for name
func (a FamilyAnalysis) Theme(name ThemeName) (ThemeDetectionResult, bool) {
	for _, t := range a.Themes {
		if t.Theme == name {
			return t, true
		}
	}
	return ThemeDetectionResult{}, false
}

// ThemeNames returns the detected theme names in order
func (a FamilyAnalysis) ThemeNames() []ThemeName {
	names := make([]ThemeName, len(a.Themes))
	for i, t := range a.Themes {
		names[i] = t.Theme
	}
	return names
}

// ConfidenceScorer computes the confidence score and suggested parent of a family.
type ConfidenceScorer struct {
	cfg AnalysisConfig
}

// NewConfidenceScorer creates a scorer
func NewConfidenceScorer(cfg AnalysisConfig) *ConfidenceScorer {
	return &ConfidenceScorer{cfg: cfg}
}

// Score builds the FamilyAnalysis for family given its detected themes.
func (s *ConfidenceScorer) Score(family CandidateFamily, themes []ThemeDetectionResult) FamilyAnalysis {
	analysis := FamilyAnalysis{
		Key:             family.Key,
		BaseIdentity:    family.BaseIdentity,
		Brand:           family.Brand,
		Category:        family.Category,
		MemberSKUs:      family.SKUs(),
		Themes:          themes,
		SuggestedParent: suggestParent(family),
		Notes:           []string{},
	}
	if analysis.Themes == nil {
		analysis.Themes = []ThemeDetectionResult{}
	}

	if len(themes) == 0 || family.Size() == 0 {
		analysis.Notes = append(analysis.Notes, "no attribute varies across members")
		return analysis
	}
	analysis.HasVariations = true

	coverage := 0.0
	for _, t := range themes {
		coverage += t.Coverage
	}
	coverage /= float64(len(themes))

	size := math.Min(float64(family.Size())/float64(s.cfg.SizeSaturation), 1.0)

	complete := 0
	for _, m := range family.Members {
		if m.PopulatedAttributes() > s.cfg.MinPopulatedAttributes {
			complete++
		}
	}
	completeness := float64(complete) / float64(family.Size())

	score := (coverage + size + completeness) / 3
	analysis.ConfidenceScore = math.Max(0, math.Min(1, score))
	analysis.Notes = append(analysis.Notes, s.notes(family, themes, complete)...)

	return analysis
}

func (s *ConfidenceScorer) notes(family CandidateFamily, themes []ThemeDetectionResult, complete int) []string {
	var notes []string
	for _, t := range themes {
		if t.Coverage < s.cfg.LowCoverageThreshold {
			notes = append(notes, fmt.Sprintf("low coverage for theme %s (%.0f%% of members)", t.Theme, t.Coverage*100))
		}
	}
	if family.Size() < s.cfg.SmallFamilySize {
		notes = append(notes, fmt.Sprintf("small family: only %d members", family.Size()))
	}
	if sparse := family.Size() - complete; sparse > 0 {
		notes = append(notes, fmt.Sprintf("%d member(s) have sparse attributes", sparse))
	}
	if note, ok := priceSpread(family); ok {
		notes = append(notes, note)
	}
	return notes
}

// suggestParent picks the member with the most populated attributes; ties go
// to the first-seen member.
func suggestParent(family CandidateFamily) string {
	best, bestCount := "", -1
	for _, m := range family.Members {
		if c := m.PopulatedAttributes(); c > bestCount {
			best, bestCount = m.SKU, c
		}
	}
	return best
}

func priceSpread(family CandidateFamily) (string, bool) {
	var lo, hi decimal.Decimal
	currency := ""
	found := false
	for _, m := range family.Members {
		if !m.Price.Valid {
			continue
		}
		if !found {
			lo, hi, currency, found = m.Price.Decimal, m.Price.Decimal, m.Currency, true
			continue
		}
		if m.Price.Decimal.LessThan(lo) {
			lo = m.Price.Decimal
		}
		if m.Price.Decimal.GreaterThan(hi) {
			hi = m.Price.Decimal
		}
	}
	if !found || lo.Equal(hi) {
		return "", false
	}
	return strings.TrimSpace(fmt.Sprintf("price varies across members from %s to %s %s", lo.StringFixed(2), hi.StringFixed(2), currency)), true
}
