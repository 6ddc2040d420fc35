package variation

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Provider attribute names for the descriptive fields of a listing.
const (
	attrItemName    = "item_name"
	attrBrand       = "brand"
	attrItemType    = "item_type_keyword"
	attrDescription = "product_description"
	attrBulletPoint = "bullet_point"
)

// AttributeExtractor normalizes raw catalog payloads into ProductRecords.
type AttributeExtractor struct {
	vocab *Vocabulary
}

// NewAttributeExtractor creates an extractor that maps theme attributes
// through the vocabulary's attribute keys.
func NewAttributeExtractor(vocab *Vocabulary) *AttributeExtractor {
	return &AttributeExtractor{vocab: vocab}
}

// Extract converts item into a ProductRecord. It returns nil when the item is
// missing or carries neither a SKU nor a title.
func (e *AttributeExtractor) Extract(item *CatalogItem) *ProductRecord {
	if item == nil {
		return nil
	}

	title := strings.TrimSpace(item.ItemName)
	if title == "" {
		title = item.first(attrItemName)
	}
	sku := strings.TrimSpace(item.SKU)
	if sku == "" || title == "" {
		return nil
	}

	brand := strings.TrimSpace(item.Brand)
	if brand == "" {
		brand = item.first(attrBrand)
	}
	category := strings.TrimSpace(item.ProductType)
	if category == "" {
		category = item.first(attrItemType)
	}

	record := &ProductRecord{
		SKU:         sku,
		ASIN:        strings.TrimSpace(item.ASIN),
		Brand:       brand,
		Category:    category,
		Title:       title,
		Description: item.first(attrDescription),
		BulletText:  joinNonBlank(item.Attributes[attrBulletPoint], "\n"),
		ImageURLs:   nonBlank(item.Images),
		Attributes:  make(map[string]string),
		Currency:    strings.TrimSpace(item.Currency),
	}

	for _, theme := range e.vocab.Themes() {
		for _, key := range theme.lookupKeys() {
			if v := item.first(key); v != "" {
				record.Attributes[theme.Name.Key()] = v
				break
			}
		}
	}

	if raw := strings.TrimSpace(item.Price); raw != "" {
		if price, err := decimal.NewFromString(raw); err == nil {
			record.Price = decimal.NewNullDecimal(price)
		}
	}

	return record
}

func nonBlank(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func joinNonBlank(values []string, sep string) string {
	return strings.Join(nonBlank(values), sep)
}
