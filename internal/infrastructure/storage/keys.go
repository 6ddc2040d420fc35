// Package storage archives feed payloads and processing reports in
// S3-compatible object storage.
package storage

import (
	"errors"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ErrObjectNotFound is returned when an archived object does not exist
var ErrObjectNotFound = errors.New("storage: object not found")

const (
	payloadPrefix = "payloads"
	reportPrefix  = "reports"
)

// PayloadKey returns the object key of a family's feed payload
func PayloadKey(familyID uuid.UUID, documentID, contentType string) string {
	return path.Join(payloadPrefix, familyID.String(), safeSegment(documentID)+extensionFor(contentType))
}

// ReportKey returns the object key of a feed's processing report
func ReportKey(feedID string) string {
	return path.Join(reportPrefix, safeSegment(feedID)+".txt")
}

func extensionFor(contentType string) string {
	mediaType, _, _ := strings.Cut(contentType, ";")
	switch strings.TrimSpace(strings.ToLower(mediaType)) {
	case "text/xml", "application/xml":
		return ".xml"
	case "application/json":
		return ".json"
	case "text/plain", "text/tab-separated-values":
		return ".txt"
	default:
		return ".bin"
	}
}

// safeSegment keeps provider ids from escaping their key prefix
func safeSegment(s string) string {
	s = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(strings.TrimSpace(s))
	if s == "" {
		return "unnamed"
	}
	return s
}
