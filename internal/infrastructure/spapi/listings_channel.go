package spapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/domain/variation"
)

const (
	defaultProductType     = "PRODUCT"
	defaultFulfillmentCode = "DEFAULT"
	patchStatusInvalid     = "INVALID"
)

// ListingsSyncChannel pushes stock and prices of child SKUs with the
// Listings Items patch operation. It implements both variation.InventoryChannel
// and variation.PricingChannel.
type ListingsSyncChannel struct {
	client  *Client
	source  variation.ListingSnapshotSource
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewListingsSyncChannel creates a channel reading current values from
// source. limiter paces patch calls; nil means unpaced.
func NewListingsSyncChannel(client *Client, source variation.ListingSnapshotSource, limiter *rate.Limiter) *ListingsSyncChannel {
	return &ListingsSyncChannel{
		client:  client,
		source:  source,
		limiter: limiter,
		logger:  client.logger.Named("listings"),
	}
}

// SyncInventory patches fulfillment availability of each child
func (c *ListingsSyncChannel) SyncInventory(ctx context.Context, marketplaceID string, childSKUs []string) (variation.SyncReport, error) {
	return c.sync(ctx, marketplaceID, childSKUs, func(s variation.ListingSnapshot) (patchEntry, error) {
		if s.Quantity < 0 {
			return patchEntry{}, fmt.Errorf("negative quantity %d", s.Quantity)
		}
		return patchEntry{
			Op:   "replace",
			Path: "/attributes/fulfillment_availability",
			Value: []any{map[string]any{
				"fulfillment_channel_code": defaultFulfillmentCode,
				"quantity":                 s.Quantity,
			}},
		}, nil
	})
}

// SyncPricing patches the purchasable offer of each child
func (c *ListingsSyncChannel) SyncPricing(ctx context.Context, marketplaceID string, childSKUs []string) (variation.SyncReport, error) {
	return c.sync(ctx, marketplaceID, childSKUs, func(s variation.ListingSnapshot) (patchEntry, error) {
		if !s.Price.Valid || !s.Price.Decimal.IsPositive() {
			return patchEntry{}, errors.New("no valid price")
		}
		if s.Currency == "" {
			return patchEntry{}, errors.New("no currency")
		}
		return patchEntry{
			Op:   "replace",
			Path: "/attributes/purchasable_offer",
			Value: []any{map[string]any{
				"marketplace_id": marketplaceID,
				"currency":       s.Currency,
				"our_price": []any{map[string]any{
					"schedule": []any{map[string]any{"value_with_tax": json.Number(s.Price.Decimal.String())}},
				}},
			}},
		}, nil
	})
}

func (c *ListingsSyncChannel) sync(
	ctx context.Context,
	marketplaceID string,
	skus []string,
	build func(variation.ListingSnapshot) (patchEntry, error),
) (variation.SyncReport, error) {
	var report variation.SyncReport
	if len(skus) == 0 {
		return report, nil
	}

	snapshots, err := c.source.FindSnapshots(ctx, marketplaceID, skus)
	if err != nil {
		return report, fmt.Errorf("load listing snapshots: %w", err)
	}

	for _, sku := range skus {
		snap, ok := snapshots[sku]
		if !ok {
			report.Errors = append(report.Errors, variation.SKUError{SKU: sku, Message: "no listing snapshot"})
			continue
		}
		patch, err := build(snap)
		if err != nil {
			report.Errors = append(report.Errors, variation.SKUError{SKU: sku, Message: err.Error()})
			continue
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return report, err
			}
		}
		if err := c.patch(ctx, marketplaceID, sku, snap.ProductType, patch); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, ctxErr
			}
			c.logger.Debug("listing patch failed", zap.String("sku", sku), zap.Error(err))
			report.Errors = append(report.Errors, variation.SKUError{SKU: sku, Message: err.Error()})
			continue
		}
		report.SyncedCount++
	}
	return report, nil
}

func (c *ListingsSyncChannel) patch(ctx context.Context, marketplaceID, sku, productType string, entry patchEntry) error {
	if productType == "" {
		productType = defaultProductType
	}
	path := fmt.Sprintf("%s/%s/%s", listingsItemsPath, url.PathEscape(c.client.SellerID()), url.PathEscape(sku))
	query := url.Values{}
	query.Set("marketplaceIds", marketplaceID)

	var resp listingsPatchResponse
	err := c.client.callJSON(ctx, http.MethodPatch, path, query, listingsPatchRequest{
		ProductType: productType,
		Patches:     []patchEntry{entry},
	}, &resp)
	if err != nil {
		return err
	}
	if strings.EqualFold(resp.Status, patchStatusInvalid) {
		msgs := make([]string, 0, len(resp.Issues))
		for _, issue := range resp.Issues {
			msgs = append(msgs, issue.Code+": "+issue.Message)
		}
		return fmt.Errorf("%w: listing rejected: %s", variation.ErrProviderRequestFailed, strings.Join(msgs, "; "))
	}
	return nil
}
