package persistence

import (
	"strings"
)

// ValidateSortOrder normalizes the sort order to ASC or DESC, defaulting to DESC.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField checks sortField against a whitelist of columns.
// Returns defaultField if the input is empty or not allowed.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// FamilySortFields are the variation_families columns a listing may order by
var FamilySortFields = map[string]bool{
	"created_at":       true,
	"updated_at":       true,
	"parent_sku":       true,
	"status":           true,
	"confidence_score": true,
	"marketplace_id":   true,
}

// SubmissionSortFields are the feed_submissions columns a listing may order by
var SubmissionSortFields = map[string]bool{
	"submitted_at": true,
	"updated_at":   true,
	"status":       true,
	"outcome":      true,
}
