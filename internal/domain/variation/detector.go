package variation

import (
	"golang.org/x/text/cases"
)

// ThemeDetectionResult is the evidence that a theme varies within a family.
type ThemeDetectionResult struct {
	Theme ThemeName `json:"theme"`
	// Values are the distinct observed values in first-seen order
	Values []string `json:"values"`
	// ValueMembers maps each value to the SKUs carrying it, in member order
	ValueMembers map[string][]string `json:"value_members"`
	// Coverage is the fraction of family members carrying any value for the theme
	Coverage float64 `json:"coverage"`
}

// DistinctCount returns the number of distinct values observed
func (r ThemeDetectionResult) DistinctCount() int {
	return len(r.Values)
}

// ValueFor returns the value detected for sku
func (r ThemeDetectionResult) ValueFor(sku string) (string, bool) {
	for _, value := range r.Values {
		for _, member := range r.ValueMembers[value] {
			if member == sku {
				return value, true
			}
		}
	}
	return "", false
}

// MinDistinctValues is the number of distinct values a theme needs to count as detected
const MinDistinctValues = 2

// ThemeDetector determines which themes actually vary across a family.
type ThemeDetector struct {
	vocab *Vocabulary
}

// NewThemeDetector creates a detector over vocab
func NewThemeDetector(vocab *Vocabulary) *ThemeDetector {
	return &ThemeDetector{vocab: vocab}
}

// Detect returns one result per theme with at least MinDistinctValues
// distinct values, in vocabulary order.
func (d *ThemeDetector) Detect(family CandidateFamily) []ThemeDetectionResult {
	var results []ThemeDetectionResult
	if family.Size() == 0 {
		return results
	}

	fold := cases.Fold()
	for _, theme := range d.vocab.themes {
		result := ThemeDetectionResult{
			Theme:        theme.Name,
			ValueMembers: make(map[string][]string),
		}
		// values compare case-insensitively; the first spelling seen wins
		canonical := make(map[string]string)
		bearing := 0

		for _, member := range family.Members {
			value, ok := d.valueOf(theme, member)
			if !ok {
				continue
			}
			bearing++
			folded := fold.String(value)
			spelling, seen := canonical[folded]
			if !seen {
				spelling = value
				canonical[folded] = value
				result.Values = append(result.Values, value)
			}
			result.ValueMembers[spelling] = append(result.ValueMembers[spelling], member.SKU)
		}

		if result.DistinctCount() < MinDistinctValues {
			continue
		}
		result.Coverage = float64(bearing) / float64(family.Size())
		results = append(results, result)
	}
	return results
}

// valueOf prefers the structured attribute, then the title vocabulary.
func (d *ThemeDetector) valueOf(theme VariationTheme, p ProductRecord) (string, bool) {
	if v := p.Attribute(theme.Name.Key()); v != "" {
		return v, true
	}
	return theme.matcher.Find(p.Title)
}
