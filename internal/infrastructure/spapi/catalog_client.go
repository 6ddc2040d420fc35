package spapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/domain/variation"
)

const (
	listingsItemsPath = "/listings/2021-08-01/items"
	catalogItemsPath  = "/catalog/2022-04-01/items"

	relationshipTypeVariation = "VARIATION"
	offerTypeB2C              = "B2C"
)

// CatalogClient reads listings and catalog relationships
type CatalogClient struct {
	client *Client
}

// NewCatalogClient creates a catalog adapter over client
func NewCatalogClient(client *Client) *CatalogClient {
	return &CatalogClient{client: client}
}

// GetProductDetails fetches the seller's listing of sku
func (c *CatalogClient) GetProductDetails(ctx context.Context, sku, marketplaceID string) (*variation.CatalogItem, error) {
	if strings.TrimSpace(sku) == "" {
		return nil, fmt.Errorf("%w: sku is required", variation.ErrProviderRequestFailed)
	}

	path := fmt.Sprintf("%s/%s/%s", listingsItemsPath, url.PathEscape(c.client.SellerID()), url.PathEscape(sku))
	query := url.Values{}
	query.Set("marketplaceIds", marketplaceID)
	query.Set("includedData", "summaries,attributes,offers")

	var resp listingItem
	if err := c.client.callJSON(ctx, http.MethodGet, path, query, nil, &resp); err != nil {
		return nil, err
	}
	return toCatalogItem(sku, marketplaceID, &resp), nil
}

// GetExistingRelationships looks up the catalog entry of sku and returns its
// variation relationships in the marketplace
func (c *CatalogClient) GetExistingRelationships(ctx context.Context, sku, marketplaceID string) ([]variation.RelationshipHint, error) {
	query := url.Values{}
	query.Set("identifiers", sku)
	query.Set("identifiersType", "SKU")
	query.Set("sellerId", c.client.SellerID())
	query.Set("marketplaceIds", marketplaceID)
	query.Set("includedData", "relationships")

	var resp catalogSearchResult
	if err := c.client.callJSON(ctx, http.MethodGet, catalogItemsPath, query, nil, &resp); err != nil {
		return nil, err
	}

	var hints []variation.RelationshipHint
	for _, item := range resp.Items {
		for _, group := range item.Relationships {
			if group.MarketplaceID != "" && group.MarketplaceID != marketplaceID {
				continue
			}
			for _, rel := range group.Relationships {
				if !strings.EqualFold(rel.Type, relationshipTypeVariation) {
					continue
				}
				hint := variation.RelationshipHint{
					SKU:         sku,
					ParentASINs: rel.ParentASINs,
					ChildASINs:  rel.ChildASINs,
				}
				if rel.Theme != nil {
					hint.Theme = rel.Theme.Theme
				}
				hints = append(hints, hint)
			}
		}
	}
	return hints, nil
}

func toCatalogItem(sku, marketplaceID string, resp *listingItem) *variation.CatalogItem {
	item := &variation.CatalogItem{
		SKU:        sku,
		Attributes: make(map[string][]string, len(resp.Attributes)),
	}
	if resp.SKU != "" {
		item.SKU = resp.SKU
	}

	for _, s := range resp.Summaries {
		if s.MarketplaceID != "" && s.MarketplaceID != marketplaceID {
			continue
		}
		item.ASIN = s.ASIN
		item.ProductType = s.ProductType
		item.ItemName = s.ItemName
		if s.MainImage != nil && s.MainImage.Link != "" {
			item.Images = append(item.Images, s.MainImage.Link)
		}
		break
	}

	for name, values := range resp.Attributes {
		for _, v := range values {
			if v.MarketplaceID != "" && v.MarketplaceID != marketplaceID {
				continue
			}
			if s, ok := attributeString(v.Value); ok {
				item.Attributes[name] = append(item.Attributes[name], s)
			}
		}
	}
	if brand := item.Attributes["brand"]; len(brand) > 0 {
		item.Brand = brand[0]
	}
	if item.ItemName == "" {
		if names := item.Attributes["item_name"]; len(names) > 0 {
			item.ItemName = names[0]
		}
	}

	if offer, ok := pickOffer(resp.Offers, marketplaceID); ok && offer.Price.Amount.Valid {
		item.Price = offer.Price.Amount.Decimal.String()
		item.Currency = offer.Price.CurrencyCode
	}
	return item
}

// pickOffer prefers the B2C offer of the marketplace
func pickOffer(offers []listingOffer, marketplaceID string) (listingOffer, bool) {
	var fallback *listingOffer
	for i := range offers {
		o := offers[i]
		if o.MarketplaceID != "" && o.MarketplaceID != marketplaceID {
			continue
		}
		if o.OfferType == "" || strings.EqualFold(o.OfferType, offerTypeB2C) {
			return o, true
		}
		if fallback == nil {
			fallback = &offers[i]
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return listingOffer{}, false
}

func attributeString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return "", false
		}
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}
