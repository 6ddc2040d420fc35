package variation

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// ThemeName identifies an axis of variation
// ---------------------------------------------------------------------------

// ThemeName identifies an axis of variation
type ThemeName string

const (
	// ThemeSize covers apparel and packaging sizes
	ThemeSize ThemeName = "Size"
	// ThemeColor covers colors and shades
	ThemeColor ThemeName = "Color"
	// ThemeStyle covers cuts, fits and models
	ThemeStyle ThemeName = "Style"
	// ThemeMaterial covers fabrics and materials
	ThemeMaterial ThemeName = "Material"
	// ThemePattern covers prints and patterns
	ThemePattern ThemeName = "Pattern"
	// ThemeFlavor covers food and scent flavors
	ThemeFlavor ThemeName = "Flavor"
)

// AllThemeNames returns the supported themes in their canonical order
func AllThemeNames() []ThemeName {
	return []ThemeName{ThemeSize, ThemeColor, ThemeStyle, ThemeMaterial, ThemePattern, ThemeFlavor}
}

// IsValid returns true if the theme name is supported
func (n ThemeName) IsValid() bool {
	switch n {
	case ThemeSize, ThemeColor, ThemeStyle, ThemeMaterial, ThemePattern, ThemeFlavor:
		return true
	default:
		return false
	}
}

// String returns the string representation of ThemeName
func (n ThemeName) String() string {
	return string(n)
}

// Key returns the attribute-map key a theme's value is stored under
func (n ThemeName) Key() string {
	return strings.ToLower(string(n))
}

// ParseThemeName parses a theme name case-insensitively
func ParseThemeName(s string) (ThemeName, error) {
	for _, name := range AllThemeNames() {
		if strings.EqualFold(strings.TrimSpace(s), string(name)) {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTheme, s)
}

// ThemeLabel joins theme names into the provider's combined theme label (e.g. "SizeColor")
func ThemeLabel(names []ThemeName) string {
	var b strings.Builder
	for _, n := range names {
		b.WriteString(string(n))
	}
	return b.String()
}

// ---------------------------------------------------------------------------
// VariationTheme
// ---------------------------------------------------------------------------

// VariationTheme is one known axis of variation together with the vocabulary
// used to recognize it when structured attributes are missing.
type VariationTheme struct {
	// Name is the theme identity
	Name ThemeName
	// AttributeKeys are the catalog attribute names carrying this theme's value, in lookup order
	AttributeKeys []string
	// Patterns are regular expressions matched case-insensitively against titles.
	// When a pattern has a capture group the first group is the value.
	Patterns []string
	// CommonValues are literal values matched on word boundaries
	CommonValues []string

	matcher PatternMatcher
}

// Matcher returns the compiled vocabulary matcher for the theme
func (t VariationTheme) Matcher() PatternMatcher {
	return t.matcher
}

// lookupKeys returns the attribute keys to try, always ending with the theme key
func (t VariationTheme) lookupKeys() []string {
	keys := make([]string, 0, len(t.AttributeKeys)+1)
	keys = append(keys, t.AttributeKeys...)
	return append(keys, t.Name.Key())
}

// ---------------------------------------------------------------------------
// Vocabulary
// ---------------------------------------------------------------------------

// MatcherFactory builds the PatternMatcher for a theme
type MatcherFactory func(theme VariationTheme) (PatternMatcher, error)

// VocabularyOption configures a Vocabulary
type VocabularyOption func(*vocabularyOptions)

type vocabularyOptions struct {
	factory MatcherFactory
}

// WithMatcherFactory replaces the default regular-expression matcher
func WithMatcherFactory(factory MatcherFactory) VocabularyOption {
	return func(o *vocabularyOptions) {
		o.factory = factory
	}
}

// Vocabulary is the ordered, immutable set of themes the pipeline knows about.
// It is built once at process start and shared read-only.
type Vocabulary struct {
	themes []VariationTheme
}

// NewVocabulary validates the themes and compiles their matchers.
func NewVocabulary(themes []VariationTheme, opts ...VocabularyOption) (*Vocabulary, error) {
	options := vocabularyOptions{
		factory: func(t VariationTheme) (PatternMatcher, error) {
			return NewRegexMatcher(t.Patterns, t.CommonValues)
		},
	}
	for _, opt := range opts {
		opt(&options)
	}

	if len(themes) == 0 {
		return nil, NewConfigurationError("themes", "at least one theme is required")
	}

	seen := make(map[ThemeName]bool, len(themes))
	compiled := make([]VariationTheme, 0, len(themes))
	for _, t := range themes {
		if !t.Name.IsValid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTheme, t.Name)
		}
		if seen[t.Name] {
			return nil, NewConfigurationError("themes", fmt.Sprintf("duplicate theme %s", t.Name))
		}
		seen[t.Name] = true

		matcher, err := options.factory(t)
		if err != nil {
			return nil, NewConfigurationError("themes."+t.Name.Key(), err.Error())
		}

		theme := VariationTheme{
			Name:          t.Name,
			AttributeKeys: append([]string(nil), t.AttributeKeys...),
			Patterns:      append([]string(nil), t.Patterns...),
			CommonValues:  append([]string(nil), t.CommonValues...),
			matcher:       matcher,
		}
		compiled = append(compiled, theme)
	}

	return &Vocabulary{themes: compiled}, nil
}

// Themes returns the configured themes in order
func (v *Vocabulary) Themes() []VariationTheme {
	out := make([]VariationTheme, len(v.themes))
	copy(out, v.themes)
	return out
}

// Theme looks up a configured theme by name
func (v *Vocabulary) Theme(name ThemeName) (VariationTheme, bool) {
	for _, t := range v.themes {
		if t.Name == name {
			return t, true
		}
	}
	return VariationTheme{}, false
}

// Len returns the number of configured themes
func (v *Vocabulary) Len() int {
	return len(v.themes)
}
