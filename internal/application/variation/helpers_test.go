package variation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/domain/variation"
	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/infrastructure/config"
)

const testMarketplace = "A13V1IB3VIYZZH"

func baseTime() time.Time {
	return time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
}

// ---------------------------------------------------------------------------
// fakeClock advances on every After call so waits complete instantly
// ---------------------------------------------------------------------------

type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	waits []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: baseTime()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.waits = append(c.waits, d)
	now := c.now
	c.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

func (c *fakeClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.waits...)
}

// ---------------------------------------------------------------------------
// MockCatalogClient
// ---------------------------------------------------------------------------

type MockCatalogClient struct {
	mock.Mock
}

func (m *MockCatalogClient) GetProductDetails(ctx context.Context, sku, marketplaceID string) (*variation.CatalogItem, error) {
	args := m.Called(ctx, sku, marketplaceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*variation.CatalogItem), args.Error(1)
}

func (m *MockCatalogClient) GetExistingRelationships(ctx context.Context, sku, marketplaceID string) ([]variation.RelationshipHint, error) {
	args := m.Called(ctx, sku, marketplaceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]variation.RelationshipHint), args.Error(1)
}

func catalogItem(sku, title string, attrs map[string]string) *variation.CatalogItem {
	item := &variation.CatalogItem{
		SKU:         sku,
		ItemName:    title,
		Brand:       "Acme",
		ProductType: "SHIRT",
		Attributes:  map[string][]string{},
	}
	for k, v := range attrs {
		item.Attributes[k] = []string{v}
	}
	return item
}

func testEngine(t *testing.T) *variation.Engine {
	t.Helper()
	vocab, err := config.LoadVocabulary("")
	require.NoError(t, err)
	engine, err := variation.NewEngine(vocab, variation.DefaultAnalysisConfig())
	require.NoError(t, err)
	return engine
}

// ---------------------------------------------------------------------------
// In-memory repositories
// ---------------------------------------------------------------------------

func cloneFamily(f *variation.VariationFamily) *variation.VariationFamily {
	c := *f
	c.ChildSKUs = append([]string(nil), f.ChildSKUs...)
	c.Relationships = append([]variation.ProductRelationship(nil), f.Relationships...)
	c.SyncErrors = variation.NewErrorRing(variation.DefaultSyncErrorCapacity)
	if f.SyncErrors != nil {
		for _, e := range f.SyncErrors.Entries() {
			c.SyncErrors.Push(e)
		}
	}
	return &c
}

type memFamilyRepo struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]*variation.VariationFamily
	saves   int
	saveErr error
}

func newMemFamilyRepo(families ...*variation.VariationFamily) *memFamilyRepo {
	r := &memFamilyRepo{rows: make(map[uuid.UUID]*variation.VariationFamily)}
	for _, f := range families {
		r.rows[f.ID] = cloneFamily(f)
	}
	return r
}

func (r *memFamilyRepo) Save(_ context.Context, f *variation.VariationFamily) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saves++
	r.rows[f.ID] = cloneFamily(f)
	return nil
}

func (r *memFamilyRepo) FindByID(_ context.Context, id uuid.UUID) (*variation.VariationFamily, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.rows[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", variation.ErrFamilyNotFound, id)
	}
	return cloneFamily(f), nil
}

func (r *memFamilyRepo) FindSyncable(_ context.Context) ([]*variation.VariationFamily, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*variation.VariationFamily
	for _, f := range r.rows {
		if f.IsSyncable() {
			out = append(out, cloneFamily(f))
		}
	}
	return out, nil
}

func (r *memFamilyRepo) get(t *testing.T, id uuid.UUID) *variation.VariationFamily {
	t.Helper()
	f, err := r.FindByID(context.Background(), id)
	require.NoError(t, err)
	return f
}

type memSubmissionRepo struct {
	mu    sync.Mutex
	rows  map[string]variation.FeedSubmission
	saves int
}

func newMemSubmissionRepo(subs ...*variation.FeedSubmission) *memSubmissionRepo {
	r := &memSubmissionRepo{rows: make(map[string]variation.FeedSubmission)}
	for _, s := range subs {
		r.rows[s.FeedID] = *s
	}
	return r
}

func (r *memSubmissionRepo) Save(_ context.Context, s *variation.FeedSubmission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	r.rows[s.FeedID] = *s
	return nil
}

func (r *memSubmissionRepo) FindByFeedID(_ context.Context, feedID string) (*variation.FeedSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[feedID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", variation.ErrSubmissionNotFound, feedID)
	}
	return &s, nil
}

func (r *memSubmissionRepo) FindUnresolved(_ context.Context) ([]*variation.FeedSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*variation.FeedSubmission
	for _, s := range r.rows {
		if !s.Outcome.IsFinal() {
			s := s
			out = append(out, &s)
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// scriptedFeedClient replays a status script; the last status repeats
// ---------------------------------------------------------------------------

type scriptedFeedClient struct {
	mu sync.Mutex

	createErr error
	uploadErr error
	submitErr error
	statusErr error

	statuses []variation.FeedStatus
	polls    int
	// onPoll runs after each status poll, outside the client's mutex
	onPoll func(poll int)
	// inFlight and maxInFlight count concurrent GetFeedStatus calls
	inFlight    int
	maxInFlight int
	pollDelay   time.Duration

	reportFound bool
	reportErr   error
	report      []byte
	downloadErr error

	reportRequests int
	uploads        [][]byte
	nextFeed       int
}

func (c *scriptedFeedClient) CreateDocument(_ context.Context, _ string) (variation.FeedDocument, error) {
	if c.createErr != nil {
		return variation.FeedDocument{}, c.createErr
	}
	return variation.FeedDocument{DocumentID: "doc-1", UploadURL: "https://upload.test/doc-1"}, nil
}

func (c *scriptedFeedClient) UploadContent(_ context.Context, _, _ string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.uploadErr != nil {
		return c.uploadErr
	}
	c.uploads = append(c.uploads, payload)
	return nil
}

func (c *scriptedFeedClient) SubmitFeed(_ context.Context, _ string, _ []string, _ string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitErr != nil {
		return "", c.submitErr
	}
	c.nextFeed++
	return fmt.Sprintf("feed-%d", c.nextFeed), nil
}

func (c *scriptedFeedClient) GetFeedStatus(_ context.Context, _, _ string) (variation.FeedStatus, error) {
	c.mu.Lock()
	c.polls++
	poll, hook, delay := c.polls, c.onPoll, c.pollDelay
	c.inFlight++
	if c.inFlight > c.maxInFlight {
		c.maxInFlight = c.inFlight
	}
	status, err := c.nextStatus(poll)
	c.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	c.mu.Lock()
	c.inFlight--
	c.mu.Unlock()

	if hook != nil {
		hook(poll)
	}
	return status, err
}

func (c *scriptedFeedClient) nextStatus(poll int) (variation.FeedStatus, error) {
	if c.statusErr != nil {
		return variation.FeedStatusUnknown, c.statusErr
	}
	if len(c.statuses) == 0 {
		return variation.FeedStatusInQueue, nil
	}
	i := poll - 1
	if i >= len(c.statuses) {
		i = len(c.statuses) - 1
	}
	return c.statuses[i], nil
}

func (c *scriptedFeedClient) GetFeedResultReport(_ context.Context, feedID, _ string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reportRequests++
	if c.reportErr != nil {
		return "", false, c.reportErr
	}
	return "https://reports.test/" + feedID, c.reportFound, nil
}

func (c *scriptedFeedClient) DownloadReport(_ context.Context, _ string) ([]byte, error) {
	if c.downloadErr != nil {
		return nil, c.downloadErr
	}
	return c.report, nil
}

// ---------------------------------------------------------------------------
// Families
// ---------------------------------------------------------------------------

func tshirtAnalysis() variation.FamilyAnalysis {
	return variation.FamilyAnalysis{
		Key:             "acme_shirt_t shirt",
		MemberSKUs:      []string{"T-RED-M", "T-RED-L", "T-BLUE-M"},
		HasVariations:   true,
		ConfidenceScore: 0.7,
		SuggestedParent: "T-RED-M",
		Themes: []variation.ThemeDetectionResult{
			{
				Theme:        variation.ThemeSize,
				Values:       []string{"M", "L"},
				ValueMembers: map[string][]string{"M": {"T-RED-M", "T-BLUE-M"}, "L": {"T-RED-L"}},
				Coverage:     1,
			},
			{
				Theme:        variation.ThemeColor,
				Values:       []string{"Rouge", "Bleu"},
				ValueMembers: map[string][]string{"Rouge": {"T-RED-M", "T-RED-L"}, "Bleu": {"T-BLUE-M"}},
				Coverage:     1,
			},
		},
	}
}

func newPendingFamily(t *testing.T) *variation.VariationFamily {
	t.Helper()
	rels := []variation.ProductRelationship{
		{ParentSKU: "T-RED-M", ChildSKU: "T-RED-L", Themes: []variation.ThemeName{variation.ThemeColor},
			Attributes: []variation.RelationAttribute{{Name: "Color", Value: "Rouge"}}},
		{ParentSKU: "T-RED-M", ChildSKU: "T-BLUE-M", Themes: []variation.ThemeName{variation.ThemeColor},
			Attributes: []variation.RelationAttribute{{Name: "Color", Value: "Bleu"}}},
	}
	family, err := variation.NewVariationFamily(testMarketplace, tshirtAnalysis(), rels, baseTime())
	require.NoError(t, err)
	return family
}
