// Package spapi adapts the Amazon Selling Partner API to the variation
// pipeline's catalog, feed and sync ports.
package spapi

import (
	"errors"
	"strings"
	"time"
)

const (
	// DefaultEndpoint is the European selling-partner API endpoint
	DefaultEndpoint = "https://sellingpartnerapi-eu.amazon.com"
	// DefaultMaxResponseSize caps response bodies read from the provider (10MB)
	DefaultMaxResponseSize = 10 * 1024 * 1024
	defaultTimeout         = 30 * time.Second
)

// Errors for SP-API configuration
var (
	ErrConfigMissingSellerID    = errors.New("spapi: seller id is required")
	ErrConfigMissingAccessToken = errors.New("spapi: access token is required")
)

// Config holds SP-API connection settings
type Config struct {
	// Endpoint is the regional API base URL
	Endpoint string
	// SellerID is the merchant token used in listings paths
	SellerID string
	// AccessToken is the LWA access token sent as x-amz-access-token
	AccessToken string
	// Timeout is the HTTP request timeout
	Timeout time.Duration
	// MaxResponseSize caps how many bytes are read from a response
	MaxResponseSize int64
}

// Validate checks required fields and fills defaults
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SellerID) == "" {
		return ErrConfigMissingSellerID
	}
	if strings.TrimSpace(c.AccessToken) == "" {
		return ErrConfigMissingAccessToken
	}
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	c.Endpoint = strings.TrimRight(c.Endpoint, "/")
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxResponseSize <= 0 {
		c.MaxResponseSize = DefaultMaxResponseSize
	}
	return nil
}
