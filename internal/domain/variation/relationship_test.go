package variation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tshirtAnalysis(t *testing.T) FamilyAnalysis {
	t.Helper()
	analyses := testEngine(t).AnalyzeAll(tshirts())
	require.Len(t, analyses, 1)
	return analyses[0]
}

func TestRelationshipBuilder_Build(t *testing.T) {
	builder := NewRelationshipBuilder(testVocabulary(t))
	analysis := tshirtAnalysis(t)

	t.Run("defaults to suggested parent and detected themes", func(t *testing.T) {
		rels, err := builder.Build(RelationshipRequest{Analysis: analysis})

		require.NoError(t, err)
		require.Len(t, rels, 2)
		assert.Equal(t, "T-RED-M", rels[0].ParentSKU)
		assert.Equal(t, "T-RED-L", rels[0].ChildSKU)
		assert.Equal(t, "SizeColor", rels[0].Theme())
		assert.Equal(t, []RelationAttribute{{Name: "Size", Value: "L"}, {Name: "Color", Value: "Rouge"}}, rels[0].Attributes)
		assert.Equal(t, "T-BLUE-M", rels[1].ChildSKU)
	})

	t.Run("carries only chosen theme attributes", func(t *testing.T) {
		rels, err := builder.Build(RelationshipRequest{
			Analysis:  analysis,
			ParentSKU: "T-BLUE-M",
			Themes:    []ThemeName{ThemeColor},
		})

		require.NoError(t, err)
		require.Len(t, rels, 2)
		for _, r := range rels {
			require.Len(t, r.Attributes, 1)
			assert.Equal(t, "Color", r.Attributes[0].Name)
		}
	})

	t.Run("overrides replace detected values", func(t *testing.T) {
		rels, err := builder.Build(RelationshipRequest{
			Analysis: analysis,
			Themes:   []ThemeName{ThemeColor},
			Overrides: map[string]map[ThemeName]string{
				"T-BLUE-M": {ThemeColor: "Bleu Marine"},
			},
		})

		require.NoError(t, err)
		assert.Equal(t, "Bleu Marine", rels[1].Attributes[0].Value)
	})

	t.Run("parent must be a member", func(t *testing.T) {
		_, err := builder.Build(RelationshipRequest{Analysis: analysis, ParentSKU: "NOPE"})

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConfiguration)
		var cfgErr *ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "parent_sku", cfgErr.Field)
	})

	t.Run("needs at least one child", func(t *testing.T) {
		single := FamilyAnalysis{MemberSKUs: []string{"A"}, SuggestedParent: "A", Themes: analysis.Themes}
		_, err := builder.Build(RelationshipRequest{Analysis: single})
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("rejects unknown themes", func(t *testing.T) {
		_, err := builder.Build(RelationshipRequest{Analysis: analysis, Themes: []ThemeName{ThemeStyle}})
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("rejects overrides for non-children", func(t *testing.T) {
		_, err := builder.Build(RelationshipRequest{
			Analysis:  analysis,
			Overrides: map[string]map[ThemeName]string{"T-RED-M": {ThemeColor: "Vert"}},
		})
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("no themes available", func(t *testing.T) {
		bare := FamilyAnalysis{MemberSKUs: []string{"A", "B"}, SuggestedParent: "A"}
		_, err := builder.Build(RelationshipRequest{Analysis: bare})
		assert.ErrorIs(t, err, ErrConfiguration)
	})
}

func TestNewVariationFamily(t *testing.T) {
	builder := NewRelationshipBuilder(testVocabulary(t))
	analysis := tshirtAnalysis(t)
	rels, err := builder.Build(RelationshipRequest{Analysis: analysis})
	require.NoError(t, err)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	family, err := NewVariationFamily("A13V1IB3VIYZZH", analysis, rels, now)

	require.NoError(t, err)
	assert.Equal(t, FamilyStatusPending, family.Status)
	assert.Equal(t, "T-RED-M", family.ParentSKU)
	assert.Equal(t, []string{"T-RED-L", "T-BLUE-M"}, family.ChildSKUs)
	assert.Equal(t, "SizeColor", family.ThemeLabel())
	assert.Equal(t, DefaultSyncErrorCapacity, family.SyncErrors.Cap())
	assert.False(t, family.IsSyncable())

	family.UpdateSyncSettings(true, true, false, now)
	family.Activate(now)
	assert.True(t, family.IsSyncable())

	_, err = NewVariationFamily("", analysis, rels, now)
	assert.ErrorIs(t, err, ErrConfiguration)
	_, err = NewVariationFamily("A13V1IB3VIYZZH", analysis, nil, now)
	assert.ErrorIs(t, err, ErrFamilyInvalid)
}

func TestParseFamilyStatus(t *testing.T) {
	for in, want := range map[string]FamilyStatus{
		"PENDING":    FamilyStatusPending,
		" active ":   FamilyStatusActive,
		"inactive":   FamilyStatusInactive,
		"Inactive\n": FamilyStatusInactive,
	} {
		got, err := ParseFamilyStatus(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseFamilyStatus("archived")
	assert.ErrorIs(t, err, ErrFamilyInvalid)
	_, err = ParseFamilyStatus("")
	assert.ErrorIs(t, err, ErrFamilyInvalid)
}
