package spapi

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/domain/variation"
)

const (
	feedsBasePath     = "/feeds/2021-06-30"
	feedDocumentsPath = feedsBasePath + "/documents"
	feedsPath         = feedsBasePath + "/feeds"
)

var gzipMagic = []byte{0x1f, 0x8b}

// FeedClient drives the asynchronous Feeds API
type FeedClient struct {
	client *Client
}

// NewFeedClient creates a feeds adapter over client
func NewFeedClient(client *Client) *FeedClient {
	return &FeedClient{client: client}
}

// CreateDocument reserves an upload slot
func (f *FeedClient) CreateDocument(ctx context.Context, contentType string) (variation.FeedDocument, error) {
	var resp createFeedDocumentResponse
	err := f.client.callJSON(ctx, http.MethodPost, feedDocumentsPath, nil,
		createFeedDocumentRequest{ContentType: contentType}, &resp)
	if err != nil {
		return variation.FeedDocument{}, err
	}
	if resp.FeedDocumentID == "" || resp.URL == "" {
		return variation.FeedDocument{}, fmt.Errorf("%w: feed document without id or url", variation.ErrProviderInvalidResponse)
	}
	return variation.FeedDocument{DocumentID: resp.FeedDocumentID, UploadURL: resp.URL}, nil
}

// UploadContent PUTs payload to the pre-signed upload URL
func (f *FeedClient) UploadContent(ctx context.Context, uploadURL, contentType string, payload []byte) error {
	_, err := f.client.transfer(ctx, http.MethodPut, uploadURL, contentType, payload)
	return err
}

// SubmitFeed creates a feed over an uploaded document
func (f *FeedClient) SubmitFeed(ctx context.Context, feedType string, marketplaceIDs []string, documentID string) (string, error) {
	var resp createFeedResponse
	err := f.client.callJSON(ctx, http.MethodPost, feedsPath, nil, createFeedRequest{
		FeedType:            feedType,
		MarketplaceIDs:      marketplaceIDs,
		InputFeedDocumentID: documentID,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.FeedID == "" {
		return "", fmt.Errorf("%w: feed without id", variation.ErrProviderInvalidResponse)
	}
	return resp.FeedID, nil
}

func (f *FeedClient) getFeed(ctx context.Context, feedID string) (*feed, error) {
	var resp feed
	if err := f.client.callJSON(ctx, http.MethodGet, feedsPath+"/"+url.PathEscape(feedID), nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetFeedStatus returns the processing status of a feed. Statuses the
// pipeline does not know, such as CANCELLED, come back as UNKNOWN.
func (f *FeedClient) GetFeedStatus(ctx context.Context, feedID, _ string) (variation.FeedStatus, error) {
	resp, err := f.getFeed(ctx, feedID)
	if err != nil {
		return variation.FeedStatusUnknown, err
	}
	return variation.ParseFeedStatus(resp.ProcessingStatus), nil
}

// GetFeedResultReport resolves the download URL of the processing report
func (f *FeedClient) GetFeedResultReport(ctx context.Context, feedID, _ string) (string, bool, error) {
	resp, err := f.getFeed(ctx, feedID)
	if err != nil {
		return "", false, err
	}
	if resp.ResultFeedDocumentID == "" {
		return "", false, nil
	}

	var doc feedDocument
	path := feedDocumentsPath + "/" + url.PathEscape(resp.ResultFeedDocumentID)
	if err := f.client.callJSON(ctx, http.MethodGet, path, nil, nil, &doc); err != nil {
		return "", false, err
	}
	if doc.URL == "" {
		return "", false, nil
	}
	return doc.URL, true, nil
}

// DownloadReport reads a report document, inflating it when it is gzipped
func (f *FeedClient) DownloadReport(ctx context.Context, reportURL string) ([]byte, error) {
	body, err := f.client.transfer(ctx, http.MethodGet, reportURL, "", nil)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(body, gzipMagic) {
		return body, nil
	}

	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: gzip report: %v", variation.ErrProviderInvalidResponse, err)
	}
	defer zr.Close()
	limit := f.client.config.MaxResponseSize
	out, err := io.ReadAll(io.LimitReader(zr, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: gzip report: %v", variation.ErrProviderInvalidResponse, err)
	}
	if int64(len(out)) > limit {
		return nil, fmt.Errorf("%w: gzip report exceeds %d bytes", variation.ErrProviderInvalidResponse, limit)
	}
	return out, nil
}
