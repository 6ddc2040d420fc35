package variation

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ProductRecord is the uniform, immutable view of one catalog listing used by
// the detection pipeline.
type ProductRecord struct {
	SKU         string              `json:"sku"`
	ASIN        string              `json:"asin,omitempty"`
	Brand       string              `json:"brand"`
	Category    string              `json:"category"`
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	BulletText  string              `json:"bullet_text,omitempty"`
	ImageURLs   []string            `json:"image_urls,omitempty"`
	Attributes  map[string]string   `json:"attributes"`
	Price       decimal.NullDecimal `json:"price"`
	Currency    string              `json:"currency,omitempty"`
}

// Attribute returns the trimmed value stored under key
func (p ProductRecord) Attribute(key string) string {
	if p.Attributes == nil {
		return ""
	}
	return strings.TrimSpace(p.Attributes[key])
}

// PopulatedAttributes counts attributes with a non-blank value
func (p ProductRecord) PopulatedAttributes() int {
	n := 0
	for _, v := range p.Attributes {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	return n
}

// CatalogItem is the raw per-SKU payload returned by the catalog provider
// before attribute extraction.
type CatalogItem struct {
	SKU         string
	ASIN        string
	ProductType string
	ItemName    string
	Brand       string
	// Attributes maps provider attribute names to their listed values, in provider order
	Attributes map[string][]string
	Images     []string
	// Price is the raw listing price as reported by the provider
	Price    string
	Currency string
}

// first returns the first non-blank value of attribute name
func (c *CatalogItem) first(name string) string {
	for _, v := range c.Attributes[name] {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// RelationshipHint describes a variation relationship the provider already
// knows about for a SKU.
type RelationshipHint struct {
	SKU         string   `json:"sku"`
	ParentASINs []string `json:"parent_asins,omitempty"`
	ChildASINs  []string `json:"child_asins,omitempty"`
	Theme       string   `json:"theme,omitempty"`
}

// HasParent reports whether the SKU is already a child of some parent
func (h RelationshipHint) HasParent() bool {
	return len(h.ParentASINs) > 0
}
