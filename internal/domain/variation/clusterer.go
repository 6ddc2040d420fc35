package variation

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MinFamilySize is the smallest number of members a family can have
const MinFamilySize = 2

// CandidateFamily is a provisional grouping of products sharing a base identity.
type CandidateFamily struct {
	Key          string          `json:"key"`
	BaseIdentity string          `json:"base_identity"`
	Brand        string          `json:"brand"`
	Category     string          `json:"category"`
	Members      []ProductRecord `json:"members"`
}

// Size returns the number of members
func (f CandidateFamily) Size() int {
	return len(f.Members)
}

// SKUs returns member SKUs in member order
func (f CandidateFamily) SKUs() []string {
	skus := make([]string, len(f.Members))
	for i, m := range f.Members {
		skus[i] = m.SKU
	}
	return skus
}

// FamilyClusterer groups products by (brand, category, base identity).
type FamilyClusterer struct {
	normalizer *TitleNormalizer
}

// NewFamilyClusterer creates a clusterer using normalizer for base identities
func NewFamilyClusterer(normalizer *TitleNormalizer) *FamilyClusterer {
	return &FamilyClusterer{normalizer: normalizer}
}

// Key returns the cluster key of a record and its base identity.
func (c *FamilyClusterer) Key(p ProductRecord) (key, base string) {
	base = c.normalizer.Normalize(p.Title)
	lower := cases.Lower(language.Und)
	key = lower.String(strings.TrimSpace(p.Brand) + "_" + strings.TrimSpace(p.Category) + "_" + base)
	return key, base
}

// Cluster groups records into candidate families. Candidates are returned in
// order of their first-seen key; candidates with fewer than MinFamilySize
// members are left out. A title made only of variation tokens has an empty
// base identity and still groups on brand and category.
func (c *FamilyClusterer) Cluster(records []ProductRecord) []CandidateFamily {
	index := make(map[string]int)
	var candidates []CandidateFamily

	for _, p := range records {
		key, base := c.Key(p)
		if i, ok := index[key]; ok {
			candidates[i].Members = append(candidates[i].Members, p)
			continue
		}
		index[key] = len(candidates)
		candidates = append(candidates, CandidateFamily{
			Key:          key,
			BaseIdentity: base,
			Brand:        strings.TrimSpace(p.Brand),
			Category:     strings.TrimSpace(p.Category),
			Members:      []ProductRecord{p},
		})
	}

	families := make([]CandidateFamily, 0, len(candidates))
	for _, f := range candidates {
		if f.Size() >= MinFamilySize {
			families = append(families, f)
		}
	}
	return families
}
