package describe

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ldn-newbuild/inventory-cli/internal/model"
	"github.com/ldn-newbuild/inventory-cli/internal/store"
	"github.com/ldn-newbuild/inventory-cli/pkg/anthropic"
)

type fakeAnthropicClient struct {
	lastRequest *anthropic.MessageRequest
	response    string
	err         error

	batchRequests []anthropic.BatchRequestItem
	batchResults  []anthropic.BatchResultItem
	polls         int
}

func (f *fakeAnthropicClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.lastRequest = &req
	if f.err != nil {
		return nil, f.err
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: f.response}},
	}, nil
}

func (f *fakeAnthropicClient) CreateBatch(_ context.Context, req anthropic.BatchRequest) (*anthropic.BatchResponse, error) {
	f.batchRequests = req.Requests
	return &anthropic.BatchResponse{ID: "batch-1", ProcessingStatus: "in_progress"}, nil
}

func (f *fakeAnthropicClient) GetBatch(_ context.Context, _ string) (*anthropic.BatchResponse, error) {
	f.polls++
	status := "in_progress"
	if f.polls >= 2 {
		status = "ended"
	}
	return &anthropic.BatchResponse{ID: "batch-1", ProcessingStatus: status}, nil
}

func (f *fakeAnthropicClient) GetBatchResults(_ context.Context, _ string) (anthropic.BatchResultIterator, error) {
	return &sliceIterator{items: f.batchResults}, nil
}

type sliceIterator struct {
	items []anthropic.BatchResultItem
	pos   int
}

func (it *sliceIterator) Next() bool {
	if it.pos >= len(it.items) {
		return false
	}
	it.pos++
	return true
}
func (it *sliceIterator) Item() anthropic.BatchResultItem { return it.items[it.pos-1] }
func (it *sliceIterator) Err() error                      { return nil }
func (it *sliceIterator) Close() error                    { return nil }

func newTestDescriber(t *testing.T, client anthropic.Client) (*Describer, store.Store) {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "describe.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	d := NewDescriber(client, s, "claude-sonnet-4-5-20250929")
	d.now = func() time.Time { return time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC) }
	d.pollInterval = time.Millisecond
	return d, s
}

func seedRiverside(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.UpsertDevelopment(ctx, model.Development{
		ID:             "dev-1",
		Name:           "Riverside Quarter",
		Postcode:       "SW18 1AA",
		StartingPrices: map[int]float64{1: 450000, 2: 625000},
		Insights: &model.AreaInsights{
			CrimeBand:          "low",
			AirQualityBand:     "good",
			GreenSpaceBand:     "leafy",
			GreenSpaceHectares: 23.5,
			SchoolsOutstanding: 2,
			SchoolsGood:        3,
		},
	}))
	require.NoError(t, s.UpsertUnit(ctx, model.Unit{
		ID: "u-101", DevID: "dev-1", UnitNumber: "101",
		Beds: 1, SizeSqft: 540, Price: 450000, Status: model.UnitStatusAvailable,
	}))
	require.NoError(t, s.UpsertUnit(ctx, model.Unit{
		ID: "u-102", DevID: "dev-1", UnitNumber: "102",
		Beds: 2, SizeSqft: 820, Price: 625000, Status: model.UnitStatusSold,
	}))
}

func TestDescribe_StoresGeneratedCopy(t *testing.T) {
	client := &fakeAnthropicClient{response: "A fine riverside development in Wandsworth."}
	d, s := newTestDescriber(t, client)
	seedRiverside(t, s)

	text, err := d.Describe(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.Equal(t, "A fine riverside development in Wandsworth.", text)

	dev, err := s.GetDevelopment(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.Equal(t, text, dev.Description)

	entries, err := s.ListChangeLog(context.Background(), "dev-1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ChangeDescription, entries[0].ChangeType)
}

func TestDescribe_PromptCarriesInventoryFacts(t *testing.T) {
	client := &fakeAnthropicClient{response: "Copy."}
	d, s := newTestDescriber(t, client)
	seedRiverside(t, s)

	_, err := d.Describe(context.Background(), "dev-1")
	require.NoError(t, err)

	require.NotNil(t, client.lastRequest)
	prompt := client.lastRequest.Messages[0].Content
	assert.Contains(t, prompt, "Riverside Quarter")
	assert.Contains(t, prompt, "SW18 1AA")
	assert.Contains(t, prompt, "1 x 1 bed") // the sold 2-bed is excluded
	assert.NotContains(t, prompt, "2 x")
	assert.Contains(t, prompt, "£450,000")
	assert.Contains(t, prompt, "Green space nearby: leafy")
	assert.Contains(t, prompt, "2 Outstanding, 3 Good")
}

func TestDescribe_EstimatedInsightsStayOutOfPrompt(t *testing.T) {
	client := &fakeAnthropicClient{response: "Copy."}
	d, s := newTestDescriber(t, client)
	require.NoError(t, s.UpsertDevelopment(context.Background(), model.Development{
		ID: "dev-1", Name: "City Wharf", Postcode: "EC1Y 8QQ",
		Insights: &model.AreaInsights{CrimeBand: "high", Estimated: true},
	}))

	_, err := d.Describe(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.NotContains(t, client.lastRequest.Messages[0].Content, "crime")
}

func TestDescribe_NotConfigured(t *testing.T) {
	d, _ := newTestDescriber(t, nil)
	_, err := d.Describe(context.Background(), "dev-1")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestDescribe_UnknownDevelopment(t *testing.T) {
	d, _ := newTestDescriber(t, &fakeAnthropicClient{response: "Copy."})
	_, err := d.Describe(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDescribe_UpstreamError(t *testing.T) {
	d, s := newTestDescriber(t, &fakeAnthropicClient{err: eris.New("overloaded")})
	seedRiverside(t, s)
	_, err := d.Describe(context.Background(), "dev-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generate for dev-1")
}

func TestDescribeAll_StoresBatchResults(t *testing.T) {
	client := &fakeAnthropicClient{
		batchResults: []anthropic.BatchResultItem{
			{
				CustomID: "dev-1",
				Type:     "succeeded",
				Message: &anthropic.MessageResponse{
					Content: []anthropic.ContentBlock{{Type: "text", Text: "Batch copy one."}},
				},
			},
			{CustomID: "dev-2", Type: "errored"},
		},
	}
	d, s := newTestDescriber(t, client)
	seedRiverside(t, s)
	require.NoError(t, s.UpsertDevelopment(context.Background(), model.Development{
		ID: "dev-2", Name: "City Wharf", Postcode: "EC1Y 8QQ",
	}))

	stored, err := d.DescribeAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stored)
	assert.Len(t, client.batchRequests, 2)
	assert.GreaterOrEqual(t, client.polls, 2)

	dev, err := s.GetDevelopment(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.Equal(t, "Batch copy one.", dev.Description)

	dev2, err := s.GetDevelopment(context.Background(), "dev-2")
	require.NoError(t, err)
	assert.Empty(t, dev2.Description)
}
