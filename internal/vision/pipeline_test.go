package vision

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/proposal-intel/internal/pdf"
	"github.com/sells-group/proposal-intel/pkg/anthropic"
)

// mockAI returns canned responses in order, one per CreateMessage call.
type mockAI struct {
	responses []*anthropic.MessageResponse
	errs      []error
	requests  []anthropic.MessageRequest
}

func (m *mockAI) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	i := len(m.requests)
	m.requests = append(m.requests, req)
	var err error
	if i < len(m.errs) {
		err = m.errs[i]
	}
	var resp *anthropic.MessageResponse
	if i < len(m.responses) {
		resp = m.responses[i]
	}
	return resp, err
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}
}

func fakePages(n int) []pdf.PageImage {
	pages := make([]pdf.PageImage, n)
	for i := range pages {
		pages[i] = pdf.PageImage{PageNumber: i + 1, MediaType: "image/png", Data: "aW1n"}
	}
	return pages
}

func newTestPipeline(ai anthropic.Client) *Pipeline {
	return New(ai, DefaultConfig("claude-sonnet-4-5-20250929"))
}

func TestClassifyPages_PicksHighestConfidenceFlaggedPage(t *testing.T) {
	ai := &mockAI{responses: []*anthropic.MessageResponse{textResponse(`{
		"pages": [
			{"pageNumber": 1, "isEstimatePage": false, "confidence": 90, "reason": "cover"},
			{"pageNumber": 3, "isEstimatePage": true, "confidence": 70, "reason": "table"},
			{"pageNumber": 4, "isEstimatePage": true, "confidence": 85, "reason": "totals"}
		]
	}`)}}

	loc := newTestPipeline(ai).classifyPages(context.Background(), fakePages(5))
	assert.Equal(t, 3, loc.PageIndex) // page 4, 0-based
	assert.Equal(t, 85.0, loc.Confidence)
}

func TestClassifyPages_NoFlagsFallsBackToMiddlePage(t *testing.T) {
	ai := &mockAI{responses: []*anthropic.MessageResponse{textResponse(`{
		"pages": [
			{"pageNumber": 1, "isEstimatePage": false, "confidence": 90, "reason": "cover"},
			{"pageNumber": 2, "isEstimatePage": false, "confidence": 90, "reason": "terms"}
		]
	}`)}}

	loc := newTestPipeline(ai).classifyPages(context.Background(), fakePages(7))
	assert.Equal(t, 3, loc.PageIndex) // floor(7/2)
	assert.Equal(t, float64(heuristicPageConfidence), loc.Confidence)
}

func TestClassifyPages_ModelErrorScansAllPages(t *testing.T) {
	ai := &mockAI{errs: []error{errors.New("overloaded")}}

	loc := newTestPipeline(ai).classifyPages(context.Background(), fakePages(7))
	assert.Equal(t, AllPages, loc.PageIndex)
	assert.Equal(t, float64(allPagesConfidence), loc.Confidence)
}

func TestClassifyPages_SendsAtMostTenPages(t *testing.T) {
	ai := &mockAI{errs: []error{errors.New("stop early")}}
	newTestPipeline(ai).classifyPages(context.Background(), fakePages(14))

	require.Len(t, ai.requests, 1)
	// 10 image parts + 1 text instruction.
	assert.Len(t, ai.requests[0].Messages[0].Parts, 11)
	require.NotNil(t, ai.requests[0].Temperature)
	assert.Zero(t, *ai.requests[0].Temperature)
}

func TestExtract_ValidSchema(t *testing.T) {
	classify := textResponse(`{"pages": [{"pageNumber": 2, "isEstimatePage": true, "confidence": 92, "reason": "estimate table"}]}`)
	extract := textResponse("```json\n" + `{
		"client": {"name": "Jordan Blake", "company": "Blake Properties", "email": "jordan@example.com", "confidence": 90},
		"project": {"address": "12 Main St", "date": "3/14/2025", "confidence": 85},
		"lineItems": [
			{"title": "House Wash", "qty": 1, "rate": 450, "total": 450, "confidence": 95},
			{"title": "Driveway Cleaning", "qty": 1200, "unit": "sqft", "rate": 0.25, "total": 300, "confidence": 90}
		],
		"grandTotal": 750,
		"subtotal": 750,
		"estimatePageNumber": 2,
		"extractionNotes": []
	}` + "\n```")

	ai := &mockAI{responses: []*anthropic.MessageResponse{classify, extract}}
	data, err := newTestPipeline(ai).Extract(context.Background(), fakePages(4))
	require.NoError(t, err)

	assert.Equal(t, "Jordan Blake", data.ClientName)
	assert.Equal(t, "12 Main St", data.ProjectAddress)
	assert.Equal(t, 750.0, data.TotalPrice)
	require.Len(t, data.LineItems, 2)
	assert.Equal(t, "House Wash", data.LineItems[0].Title)
	assert.Empty(t, data.ExtractionNotes)
	// Mean of 90, 85, 95, 90.
	assert.InDelta(t, 90.0, data.Confidence, 0.01)

	// Window: one page before page 2 (index 0) through end = all 4 pages.
	require.Len(t, ai.requests, 2)
	assert.Len(t, ai.requests[1].Messages[0].Parts, 5)
}

func TestExtract_DiscrepancyOverTenPercentAddsNote(t *testing.T) {
	classify := textResponse(`{"pages": [{"pageNumber": 1, "isEstimatePage": true, "confidence": 90, "reason": "t"}]}`)
	extract := textResponse(`{
		"client": {"name": "A", "confidence": 80},
		"lineItems": [{"title": "Roof Wash", "total": 861, "confidence": 80}],
		"grandTotal": 1000
	}`)

	ai := &mockAI{responses: []*anthropic.MessageResponse{classify, extract}}
	data, err := newTestPipeline(ai).Extract(context.Background(), fakePages(2))
	require.NoError(t, err)

	// 13.9% is over the 10% note threshold but under the 15% penalty.
	require.Len(t, data.ExtractionNotes, 1)
	assert.Contains(t, data.ExtractionNotes[0], "861")
	// Mean 80, minus 5 for the warning note only.
	assert.InDelta(t, 75.0, data.Confidence, 0.01)
}

func TestExtract_DiscrepancyOverFifteenPercentPenalized(t *testing.T) {
	classify := textResponse(`{"pages": [{"pageNumber": 1, "isEstimatePage": true, "confidence": 90, "reason": "t"}]}`)
	extract := textResponse(`{
		"client": {"name": "A", "confidence": 80},
		"lineItems": [{"title": "Roof Wash", "total": 800, "confidence": 80}],
		"grandTotal": 1000
	}`)

	ai := &mockAI{responses: []*anthropic.MessageResponse{classify, extract}}
	data, err := newTestPipeline(ai).Extract(context.Background(), fakePages(2))
	require.NoError(t, err)

	// 20% diff: warning note plus the 15-point discrepancy penalty.
	require.Len(t, data.ExtractionNotes, 1)
	assert.InDelta(t, 80.0-15.0-5.0, data.Confidence, 0.01)
}

func TestExtract_SchemaInvalidReconstructs(t *testing.T) {
	classify := textResponse(`{"pages": [{"pageNumber": 1, "isEstimatePage": true, "confidence": 90, "reason": "t"}]}`)
	// String qty/rate break the typed schema.
	extract := textResponse(`{
		"lineItems": [{"name": "Gutter Cleaning", "quantity": "5000", "rate": "0.50"}],
		"total": null
	}`)

	ai := &mockAI{responses: []*anthropic.MessageResponse{classify, extract}}
	data, err := newTestPipeline(ai).Extract(context.Background(), fakePages(2))
	require.NoError(t, err)

	require.Len(t, data.LineItems, 1)
	require.NotNil(t, data.LineItems[0].Total)
	assert.Equal(t, 2500.0, *data.LineItems[0].Total)
	assert.Equal(t, 2500.0, data.TotalPrice)

	found := false
	for _, n := range data.ExtractionNotes {
		if n == "model output failed schema validation; fields reconstructed best-effort" {
			found = true
		}
	}
	assert.True(t, found, "expected reconstruction note, got %v", data.ExtractionNotes)
}

func TestExtract_UnparseableResponseErrors(t *testing.T) {
	classify := textResponse(`{"pages": []}`)
	extract := textResponse("I could not read these pages, sorry.")

	ai := &mockAI{responses: []*anthropic.MessageResponse{classify, extract}}
	_, err := newTestPipeline(ai).Extract(context.Background(), fakePages(2))
	assert.Error(t, err)
}

func TestExtract_NoImages(t *testing.T) {
	_, err := newTestPipeline(&mockAI{}).Extract(context.Background(), nil)
	assert.Error(t, err)
}

func TestExtract_AllPagesWindowWhenClassifyFails(t *testing.T) {
	extract := textResponse(`{"client": {"name": "B", "confidence": 60}, "grandTotal": 100}`)
	ai := &mockAI{
		errs:      []error{errors.New("model down"), nil},
		responses: []*anthropic.MessageResponse{nil, extract},
	}

	data, err := newTestPipeline(ai).Extract(context.Background(), fakePages(6))
	require.NoError(t, err)

	// All 6 pages + instruction in the extraction request.
	require.Len(t, ai.requests, 2)
	assert.Len(t, ai.requests[1].Messages[0].Parts, 7)

	found := false
	for _, n := range data.ExtractionNotes {
		if n == "estimate page could not be localized; extracted from all pages" {
			found = true
		}
	}
	assert.True(t, found, fmt.Sprintf("notes: %v", data.ExtractionNotes))
}
