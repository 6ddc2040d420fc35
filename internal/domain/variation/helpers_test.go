package variation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testThemes() []VariationTheme {
	return []VariationTheme{
		{
			Name:          ThemeSize,
			AttributeKeys: []string{"size", "size_name", "apparel_size"},
			Patterns:      []string{`(?:taille|size)\s*:?\s*(\d{2,3})`},
			CommonValues:  []string{"XXS", "XS", "S", "M", "L", "XL", "XXL", "XXXL"},
		},
		{
			Name:          ThemeColor,
			AttributeKeys: []string{"color", "color_name", "colour"},
			Patterns:      []string{`(?:couleur|color)\s*:?\s*(\p{L}+)`},
			CommonValues:  []string{"Rouge", "Bleu", "Vert", "Noir", "Blanc", "Écru", "Red", "Blue", "Green", "Black", "White"},
		},
		{
			Name:          ThemeMaterial,
			AttributeKeys: []string{"material", "material_type"},
			CommonValues:  []string{"Coton", "Cotton", "Laine", "Wool", "Lin"},
		},
		{
			Name:          ThemeFlavor,
			AttributeKeys: []string{"flavor", "flavour"},
			CommonValues:  []string{"Vanille", "Chocolat", "Fraise"},
		},
	}
}

func testVocabulary(t *testing.T) *Vocabulary {
	t.Helper()
	vocab, err := NewVocabulary(testThemes())
	require.NoError(t, err)
	return vocab
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(testVocabulary(t), DefaultAnalysisConfig())
	require.NoError(t, err)
	return engine
}

func product(sku, title, brand string, attrs map[string]string) ProductRecord {
	if attrs == nil {
		attrs = map[string]string{}
	}
	return ProductRecord{SKU: sku, Title: title, Brand: brand, Attributes: attrs}
}

// tshirts is the canonical red/blue T-shirt scenario.
func tshirts() []ProductRecord {
	return []ProductRecord{
		product("T-RED-M", "T-Shirt Rouge M", "Acme", map[string]string{"color": "Rouge", "size": "M"}),
		product("T-RED-L", "T-Shirt Rouge L", "Acme", map[string]string{"color": "Rouge", "size": "L"}),
		product("T-BLUE-M", "T-Shirt Bleu M", "Acme", map[string]string{"color": "Bleu", "size": "M"}),
	}
}
