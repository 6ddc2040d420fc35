package spapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/domain/variation"
)

// Client is the shared HTTP transport for every SP-API adapter
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client after validating cfg
func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("spapi")
	return c, nil
}

// SellerID returns the configured seller id
func (c *Client) SellerID() string {
	return c.config.SellerID
}

// apiError is the error envelope returned by SP-API operations
type apiError struct {
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

func (e apiError) String() string {
	parts := make([]string, 0, len(e.Errors))
	for _, item := range e.Errors {
		parts = append(parts, strings.TrimSpace(item.Code+" "+item.Message))
	}
	return strings.Join(parts, "; ")
}

// statusError maps an HTTP failure status onto a domain sentinel
func statusError(status int, body []byte) error {
	var sentinel error
	switch {
	case status == http.StatusNotFound:
		sentinel = variation.ErrProductNotFound
	case status == http.StatusTooManyRequests:
		sentinel = variation.ErrRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		sentinel = variation.ErrProviderAuthFailed
	case status >= 500:
		sentinel = variation.ErrProviderUnavailable
	default:
		sentinel = variation.ErrProviderRequestFailed
	}

	var envelope apiError
	if json.Unmarshal(body, &envelope) == nil && len(envelope.Errors) > 0 {
		return fmt.Errorf("%w: HTTP %d: %s", sentinel, status, envelope)
	}
	return fmt.Errorf("%w: HTTP %d", sentinel, status)
}

// do sends a request and returns the body of a 2xx response
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", variation.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", variation.ErrProviderUnavailable, err)
	}
	if int64(len(body)) > c.config.MaxResponseSize {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", variation.ErrProviderInvalidResponse, c.config.MaxResponseSize)
	}

	if resp.StatusCode >= 300 {
		c.logger.Debug("SP-API request failed",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode),
		)
		return nil, statusError(resp.StatusCode, body)
	}
	return body, nil
}

// callJSON performs an authenticated API call. in is encoded as the request
// body when non-nil; out receives the decoded response when non-nil.
func (c *Client) callJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	target := c.config.Endpoint + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("spapi: encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("spapi: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-amz-access-token", c.config.AccessToken)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	respBody, err := c.do(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: %v", variation.ErrProviderInvalidResponse, err)
	}
	return nil
}

// transfer moves raw bytes to or from a pre-signed document URL. Those URLs
// carry their own authorization, so no access token is attached.
func (c *Client) transfer(ctx context.Context, method, rawURL, contentType string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("spapi: failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.do(req)
}
