package spapi

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/domain/variation"
)

// fakeFeedsAPI serves the Feeds endpoints and a pre-signed bucket on one mux
type fakeFeedsAPI struct {
	uploaded       []byte
	uploadType     string
	uploadToken    string
	submitted      createFeedRequest
	status         string
	resultDocument string
	report         []byte
	baseURL        string
}

func (f *fakeFeedsAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /feeds/2021-06-30/documents", func(w http.ResponseWriter, r *http.Request) {
		var req createFeedDocumentRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(createFeedDocumentResponse{FeedDocumentID: "doc-1", URL: f.baseURL + "/bucket/doc-1"})
	})
	mux.HandleFunc("PUT /bucket/doc-1", func(w http.ResponseWriter, r *http.Request) {
		f.uploaded, _ = io.ReadAll(r.Body)
		f.uploadType = r.Header.Get("Content-Type")
		f.uploadToken = r.Header.Get("x-amz-access-token")
	})
	mux.HandleFunc("POST /feeds/2021-06-30/feeds", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&f.submitted)
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(createFeedResponse{FeedID: "feed-42"})
	})
	mux.HandleFunc("GET /feeds/2021-06-30/feeds/feed-42", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(feed{FeedID: "feed-42", ProcessingStatus: f.status, ResultFeedDocumentID: f.resultDocument})
	})
	mux.HandleFunc("GET /feeds/2021-06-30/documents/report-1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(feedDocument{FeedDocumentID: "report-1", URL: f.baseURL + "/bucket/report-1"})
	})
	mux.HandleFunc("GET /bucket/report-1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(f.report)
	})
	return mux
}

func newFeedTestClient(t *testing.T) (*FeedClient, *fakeFeedsAPI) {
	t.Helper()
	api := &fakeFeedsAPI{status: "IN_QUEUE"}
	client, server := newTestClient(t, api.handler())
	api.baseURL = server.URL
	return NewFeedClient(client), api
}

func TestFeedClient_PublishSequence(t *testing.T) {
	fc, api := newFeedTestClient(t)
	ctx := context.Background()

	doc, err := fc.CreateDocument(ctx, XMLContentType)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", doc.DocumentID)

	require.NoError(t, fc.UploadContent(ctx, doc.UploadURL, XMLContentType, []byte("<AmazonEnvelope/>")))
	assert.Equal(t, "<AmazonEnvelope/>", string(api.uploaded))
	assert.Equal(t, XMLContentType, api.uploadType)
	assert.Empty(t, api.uploadToken, "pre-signed uploads must not carry the access token")

	feedID, err := fc.SubmitFeed(ctx, "POST_PRODUCT_RELATIONSHIP_DATA", []string{testMarketplace}, doc.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "feed-42", feedID)
	assert.Equal(t, "doc-1", api.submitted.InputFeedDocumentID)
	assert.Equal(t, []string{testMarketplace}, api.submitted.MarketplaceIDs)
}

func TestFeedClient_GetFeedStatus(t *testing.T) {
	tests := []struct {
		provider string
		want     variation.FeedStatus
	}{
		{"IN_QUEUE", variation.FeedStatusInQueue},
		{"IN_PROGRESS", variation.FeedStatusInProgress},
		{"DONE", variation.FeedStatusDone},
		{"FATAL", variation.FeedStatusFatal},
		{"CANCELLED", variation.FeedStatusUnknown},
		{"", variation.FeedStatusUnknown},
	}

	fc, api := newFeedTestClient(t)
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			api.status = tt.provider
			status, err := fc.GetFeedStatus(context.Background(), "feed-42", testMarketplace)
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestFeedClient_GetFeedStatus_NotFound(t *testing.T) {
	fc, _ := newFeedTestClient(t)

	status, err := fc.GetFeedStatus(context.Background(), "missing", testMarketplace)
	assert.Error(t, err)
	assert.Equal(t, variation.FeedStatusUnknown, status)
}

func TestFeedClient_GetFeedResultReport(t *testing.T) {
	t.Run("no result document", func(t *testing.T) {
		fc, api := newFeedTestClient(t)
		api.status = "DONE"

		_, found, err := fc.GetFeedResultReport(context.Background(), "feed-42", testMarketplace)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("result document", func(t *testing.T) {
		fc, api := newFeedTestClient(t)
		api.status = "DONE"
		api.resultDocument = "report-1"

		reportURL, found, err := fc.GetFeedResultReport(context.Background(), "feed-42", testMarketplace)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, api.baseURL+"/bucket/report-1", reportURL)
	})
}

func TestFeedClient_DownloadReport(t *testing.T) {
	const body = "Feed Processing Summary: 3 records processed successfully"

	t.Run("plain", func(t *testing.T) {
		fc, api := newFeedTestClient(t)
		api.report = []byte(body)

		got, err := fc.DownloadReport(context.Background(), api.baseURL+"/bucket/report-1")
		require.NoError(t, err)
		assert.Equal(t, body, string(got))
	})

	t.Run("gzip", func(t *testing.T) {
		fc, api := newFeedTestClient(t)
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, _ = zw.Write([]byte(body))
		require.NoError(t, zw.Close())
		api.report = buf.Bytes()

		got, err := fc.DownloadReport(context.Background(), api.baseURL+"/bucket/report-1")
		require.NoError(t, err)
		assert.Equal(t, body, string(got))
	})

	t.Run("gzip inflating past the response limit", func(t *testing.T) {
		fc, api := newFeedTestClient(t)
		fc.client.config.MaxResponseSize = 256
		api.report = gzipped(t, strings.Repeat("a", 4096))
		require.Less(t, len(api.report), 256)

		_, err := fc.DownloadReport(context.Background(), api.baseURL+"/bucket/report-1")
		assert.ErrorIs(t, err, variation.ErrProviderInvalidResponse)
	})

	t.Run("gzip inflating exactly to the response limit", func(t *testing.T) {
		fc, api := newFeedTestClient(t)
		fc.client.config.MaxResponseSize = 256
		api.report = gzipped(t, strings.Repeat("a", 256))

		got, err := fc.DownloadReport(context.Background(), api.baseURL+"/bucket/report-1")
		require.NoError(t, err)
		assert.Len(t, got, 256)
	})

	t.Run("corrupt gzip", func(t *testing.T) {
		fc, api := newFeedTestClient(t)
		api.report = []byte{0x1f, 0x8b, 0x00, 0x01}

		_, err := fc.DownloadReport(context.Background(), api.baseURL+"/bucket/report-1")
		assert.ErrorIs(t, err, variation.ErrProviderInvalidResponse)
	})
}

func gzipped(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
