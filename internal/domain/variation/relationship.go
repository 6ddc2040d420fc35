package variation

import (
	"fmt"
	"strings"
)

// RelationAttribute is one theme attribute carried by a child relationship.
type RelationAttribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ProductRelationship is one parent→child edge of a family.
type ProductRelationship struct {
	ParentSKU  string              `json:"parent_sku"`
	ChildSKU   string              `json:"child_sku"`
	Themes     []ThemeName         `json:"themes"`
	Attributes []RelationAttribute `json:"attributes"`
}

// Theme returns the combined theme label of the relationship
func (r ProductRelationship) Theme() string {
	return ThemeLabel(r.Themes)
}

// RelationshipRequest is an operator-approved analysis plus the operator's choices.
type RelationshipRequest struct {
	Analysis FamilyAnalysis
	// ParentSKU defaults to the analysis' suggested parent
	ParentSKU string
	// Themes default to every detected theme
	Themes []ThemeName
	// Overrides maps child SKU to per-theme values that replace detected ones
	Overrides map[string]map[ThemeName]string
}

// RelationshipBuilder turns an approved analysis into parent/child relationships.
type RelationshipBuilder struct {
	vocab *Vocabulary
}

// NewRelationshipBuilder creates a builder validating themes against vocab
func NewRelationshipBuilder(vocab *Vocabulary) *RelationshipBuilder {
	return &RelationshipBuilder{vocab: vocab}
}

// Build returns one relationship per child SKU, in member order. Each
// relationship carries only the chosen themes' attributes.
func (b *RelationshipBuilder) Build(req RelationshipRequest) ([]ProductRelationship, error) {
	parent := strings.TrimSpace(req.ParentSKU)
	if parent == "" {
		parent = req.Analysis.SuggestedParent
	}
	if parent == "" {
		return nil, NewConfigurationError("parent_sku", "is required")
	}
	if !req.Analysis.IsMember(parent) {
		return nil, NewConfigurationError("parent_sku", fmt.Sprintf("%s is not a member of the family", parent))
	}

	themes := req.Themes
	if len(themes) == 0 {
		themes = req.Analysis.ThemeNames()
	}
	if len(themes) == 0 {
		return nil, NewConfigurationError("themes", "at least one variation theme is required")
	}
	for _, t := range themes {
		if _, ok := b.vocab.Theme(t); !ok {
			return nil, NewConfigurationError("themes", fmt.Sprintf("unknown theme %q", t))
		}
	}

	for sku := range req.Overrides {
		if sku == parent || !req.Analysis.IsMember(sku) {
			return nil, NewConfigurationError("overrides", fmt.Sprintf("%s is not a child of the family", sku))
		}
	}

	var relationships []ProductRelationship
	for _, child := range req.Analysis.MemberSKUs {
		if child == parent {
			continue
		}
		rel := ProductRelationship{
			ParentSKU:  parent,
			ChildSKU:   child,
			Themes:     append([]ThemeName(nil), themes...),
			Attributes: []RelationAttribute{},
		}
		for _, t := range themes {
			value, ok := req.Overrides[child][t]
			if !ok || strings.TrimSpace(value) == "" {
				if detected, found := req.Analysis.Theme(t); found {
					value, ok = detected.ValueFor(child)
				}
			}
			if ok && strings.TrimSpace(value) != "" {
				rel.Attributes = append(rel.Attributes, RelationAttribute{Name: t.String(), Value: strings.TrimSpace(value)})
			}
		}
		relationships = append(relationships, rel)
	}

	if len(relationships) < 1 {
		return nil, NewConfigurationError("children", "at least one child relationship is required")
	}
	return relationships, nil
}
