package variation

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFamilyClusterer_Cluster(t *testing.T) {
	engine := testEngine(t)

	t.Run("groups by brand category and base identity", func(t *testing.T) {
		records := append(tshirts(),
			product("MUG-1", "Mug Rouge", "Acme", nil),
			product("T-OTHER", "T-Shirt Rouge S", "Globex", nil),
		)

		families := engine.Cluster(records)

		require.Len(t, families, 1)
		assert.Equal(t, "acme__t shirt", families[0].Key)
		assert.Equal(t, "T Shirt", families[0].BaseIdentity)
		assert.Equal(t, []string{"T-RED-M", "T-RED-L", "T-BLUE-M"}, families[0].SKUs())
	})

	t.Run("keeps first-seen key order", func(t *testing.T) {
		records := []ProductRecord{
			product("B1", "Bonnet Rouge", "Acme", nil),
			product("A1", "Ajustable Rouge", "Acme", nil),
			product("B2", "Bonnet Bleu", "Acme", nil),
			product("A2", "Ajustable Bleu", "Acme", nil),
		}

		families := engine.Cluster(records)

		require.Len(t, families, 2)
		assert.Equal(t, "Bonnet", families[0].BaseIdentity)
		assert.Equal(t, "Ajustable", families[1].BaseIdentity)
	})

	t.Run("never returns candidates below minimum size", func(t *testing.T) {
		records := []ProductRecord{
			product("1", "Lampe Rouge", "Acme", nil),
			product("2", "Chaise Rouge", "Acme", nil),
			product("3", "Table Noir", "Acme", nil),
			product("4", "Table Blanc", "Acme", nil),
		}
		for _, f := range engine.Cluster(records) {
			assert.GreaterOrEqual(t, f.Size(), MinFamilySize)
		}
	})

	t.Run("titles made of variation tokens group on brand and category", func(t *testing.T) {
		records := []ProductRecord{
			{SKU: "A", Brand: "Acme", Category: "Shirt", Title: "Rouge M"},
			{SKU: "B", Brand: "Acme", Category: "Shirt", Title: "Bleu M"},
			{SKU: "C", Brand: "Acme", Category: "Mug", Title: "Rouge"},
		}

		families := engine.Cluster(records)

		require.Len(t, families, 1)
		assert.Equal(t, "acme_shirt_", families[0].Key)
		assert.Empty(t, families[0].BaseIdentity)
		assert.Equal(t, []string{"A", "B"}, families[0].SKUs())
	})

	t.Run("blank titles share a key", func(t *testing.T) {
		records := []ProductRecord{
			product("1", "", "Acme", nil),
			product("2", "  ", "Acme", nil),
		}

		families := engine.Cluster(records)

		require.Len(t, families, 1)
		assert.Equal(t, "acme__", families[0].Key)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, engine.Cluster(nil))
	})
}

func TestThemeDetector_Detect(t *testing.T) {
	detector := NewThemeDetector(testVocabulary(t))

	t.Run("structured attributes win over title", func(t *testing.T) {
		family := CandidateFamily{Members: []ProductRecord{
			product("1", "Pull Rouge", "Acme", map[string]string{"color": "Bordeaux"}),
			product("2", "Pull Rouge", "Acme", map[string]string{"color": "Marine"}),
		}}

		results := detector.Detect(family)

		require.Len(t, results, 1)
		assert.Equal(t, ThemeColor, results[0].Theme)
		assert.Equal(t, []string{"Bordeaux", "Marine"}, results[0].Values)
	})

	t.Run("falls back to patterns then common values", func(t *testing.T) {
		family := CandidateFamily{Members: []ProductRecord{
			product("1", "Jean taille 38 Bleu", "Acme", nil),
			product("2", "Jean taille 40 Bleu", "Acme", nil),
			product("3", "Jean M Noir", "Acme", nil),
		}}

		results := detector.Detect(family)

		require.Len(t, results, 2)
		assert.Equal(t, ThemeSize, results[0].Theme)
		assert.Equal(t, []string{"38", "40", "M"}, results[0].Values)
		assert.Equal(t, ThemeColor, results[1].Theme)
		assert.Equal(t, []string{"Bleu", "Noir"}, results[1].Values)
	})

	t.Run("values compare case-insensitively", func(t *testing.T) {
		family := CandidateFamily{Members: []ProductRecord{
			product("1", "x", "Acme", map[string]string{"color": "Rouge"}),
			product("2", "x", "Acme", map[string]string{"color": "ROUGE"}),
		}}
		assert.Empty(t, detector.Detect(family))
	})

	t.Run("coverage counts members carrying a value", func(t *testing.T) {
		family := CandidateFamily{Members: []ProductRecord{
			product("1", "Bol", "Acme", map[string]string{"material": "Coton"}),
			product("2", "Bol", "Acme", map[string]string{"material": "Lin"}),
			product("3", "Bol", "Acme", nil),
			product("4", "Bol", "Acme", nil),
		}}

		results := detector.Detect(family)

		require.Len(t, results, 1)
		assert.InDelta(t, 0.5, results[0].Coverage, 1e-9)
		value, ok := results[0].ValueFor("2")
		assert.True(t, ok)
		assert.Equal(t, "Lin", value)
		_, ok = results[0].ValueFor("3")
		assert.False(t, ok)
	})

	t.Run("single value theme is not reported", func(t *testing.T) {
		family := CandidateFamily{Members: []ProductRecord{
			product("1", "Gourde", "Acme", map[string]string{"flavor": "Fraise", "size": "S"}),
			product("2", "Gourde", "Acme", map[string]string{"flavor": "Fraise", "size": "M"}),
		}}

		results := detector.Detect(family)

		require.Len(t, results, 1)
		assert.Equal(t, ThemeSize, results[0].Theme)
	})
}

func TestConfidenceScorer_Score(t *testing.T) {
	scorer := NewConfidenceScorer(DefaultAnalysisConfig())

	t.Run("no themes means no variations", func(t *testing.T) {
		family := CandidateFamily{Members: []ProductRecord{product("1", "a", "b", nil), product("2", "a", "b", nil)}}

		analysis := scorer.Score(family, nil)

		assert.False(t, analysis.HasVariations)
		assert.Zero(t, analysis.ConfidenceScore)
		assert.NotNil(t, analysis.Themes)
	})

	t.Run("mean of coverage size and completeness", func(t *testing.T) {
		family := CandidateFamily{Members: []ProductRecord{
			product("1", "a", "b", map[string]string{"size": "S"}),
			product("2", "a", "b", map[string]string{"size": "M", "color": "Rouge"}),
			product("3", "a", "b", map[string]string{}),
			product("4", "a", "b", map[string]string{"size": "L", "color": "Bleu"}),
		}}
		themes := []ThemeDetectionResult{{Theme: ThemeSize, Values: []string{"S", "M", "L"}, Coverage: 0.75}}

		analysis := scorer.Score(family, themes)

		// coverage 0.75, size 0.4, completeness 2/4
		assert.True(t, analysis.HasVariations)
		assert.InDelta(t, (0.75+0.4+0.5)/3, analysis.ConfidenceScore, 1e-9)
		assert.Equal(t, "2", analysis.SuggestedParent)
		assert.Contains(t, analysis.Notes, "2 member(s) have sparse attributes")
	})

	t.Run("size factor saturates", func(t *testing.T) {
		var members []ProductRecord
		for i := 0; i < 25; i++ {
			members = append(members, product(fmt.Sprint(i), "a", "b", map[string]string{"size": fmt.Sprint(i), "color": "x"}))
		}
		themes := []ThemeDetectionResult{{Theme: ThemeSize, Coverage: 1}}

		analysis := scorer.Score(CandidateFamily{Members: members}, themes)

		assert.InDelta(t, 1.0, analysis.ConfidenceScore, 1e-9)
	})

	t.Run("parent ties go to first seen", func(t *testing.T) {
		family := CandidateFamily{Members: []ProductRecord{
			product("first", "a", "b", map[string]string{"size": "S"}),
			product("second", "a", "b", map[string]string{"size": "M"}),
		}}
		analysis := scorer.Score(family, []ThemeDetectionResult{{Theme: ThemeSize, Coverage: 1}})
		assert.Equal(t, "first", analysis.SuggestedParent)
	})

	t.Run("price spread note", func(t *testing.T) {
		a := product("1", "a", "b", nil)
		a.Price, a.Currency = decimal.NewNullDecimal(decimal.RequireFromString("19.9")), "EUR"
		b := product("2", "a", "b", nil)
		b.Price, b.Currency = decimal.NewNullDecimal(decimal.RequireFromString("24.5")), "EUR"

		analysis := scorer.Score(CandidateFamily{Members: []ProductRecord{a, b}}, []ThemeDetectionResult{{Theme: ThemeSize, Coverage: 1}})

		assert.Contains(t, analysis.Notes, "price varies across members from 19.90 to 24.50 EUR")
	})
}

func TestEngine_TShirtScenario(t *testing.T) {
	engine := testEngine(t)

	analyses := engine.AnalyzeAll(tshirts())

	require.Len(t, analyses, 1)
	a := analyses[0]
	assert.True(t, a.HasVariations)
	assert.Equal(t, []string{"T-RED-M", "T-RED-L", "T-BLUE-M"}, a.MemberSKUs)
	require.Len(t, a.Themes, 2)

	color, ok := a.Theme(ThemeColor)
	require.True(t, ok)
	assert.Equal(t, 2, color.DistinctCount())
	size, ok := a.Theme(ThemeSize)
	require.True(t, ok)
	assert.Equal(t, 2, size.DistinctCount())

	assert.Greater(t, a.ConfidenceScore, 0.0)
	assert.InDelta(t, (1.0+0.3+1.0)/3, a.ConfidenceScore, 1e-9)
	assert.Equal(t, "T-RED-M", a.SuggestedParent)
}

func TestEngine_Deterministic(t *testing.T) {
	engine := testEngine(t)
	records := append(tshirts(),
		product("J-38", "Jean taille 38 Bleu", "Acme", nil),
		product("J-40", "Jean taille 40 Noir", "Acme", map[string]string{"material": "Coton"}),
		product("J-42", "Jean taille 42 Bleu", "Acme", nil),
	)

	first, err := json.Marshal(engine.AnalyzeAll(records))
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := json.Marshal(engine.AnalyzeAll(records))
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
}

func TestEngine_Bounds(t *testing.T) {
	engine := testEngine(t)
	records := append(tshirts(),
		product("A", "Sac Rouge", "Acme", nil),
		product("B", "Sac Rouge", "Acme", nil),
		product("C", "Sac Bleu", "Acme", nil),
		product("D", "Gant Noir", "Acme", map[string]string{"size": "S", "material": "Laine", "color": "Noir"}),
		product("E", "Gant Noir", "Acme", map[string]string{"size": "M"}),
	)

	for _, f := range engine.Cluster(records) {
		a := engine.Analyze(f, nil)
		assert.GreaterOrEqual(t, a.ConfidenceScore, 0.0)
		assert.LessOrEqual(t, a.ConfidenceScore, 1.0)
		for _, theme := range a.Themes {
			assert.GreaterOrEqual(t, theme.DistinctCount(), MinDistinctValues)
		}
	}
}

func TestEngine_AnalyzeWithHints(t *testing.T) {
	engine := testEngine(t)
	families := engine.Cluster(tshirts())
	require.Len(t, families, 1)

	hints := map[string][]RelationshipHint{
		"T-RED-L": {{SKU: "T-RED-L", ParentASINs: []string{"B000PARENT"}}},
	}
	a := engine.Analyze(families[0], hints)

	assert.Contains(t, a.Notes, "T-RED-L already belongs to parent B000PARENT")
}

func TestNewEngine_Validation(t *testing.T) {
	_, err := NewEngine(nil, DefaultAnalysisConfig())
	assert.ErrorIs(t, err, ErrConfiguration)

	cfg := DefaultAnalysisConfig()
	cfg.SizeSaturation = 0
	_, err = NewEngine(testVocabulary(t), cfg)
	assert.ErrorIs(t, err, ErrConfiguration)
}
