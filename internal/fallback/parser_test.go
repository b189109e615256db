package fallback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProposal = `
Sells Exterior Services
ESTIMATE 4417
DATE 3/14/2025

Prepared for: Jordan Blake

House Wash
2,400 sqft
$450.00

Driveway Cleaning
1200 0.25 $300.00

Gutter Cleaning

SUBTOTAL $750.00
TOTAL $787.50
`

func TestParse_FullProposal(t *testing.T) {
	data := Parse(sampleProposal)

	assert.Equal(t, "4417", data.EstimateNumber)
	assert.Equal(t, "3/14/2025", data.EstimateDate)
	assert.Equal(t, 787.50, data.TotalPrice)
	assert.Equal(t, 750.0, data.Subtotal)

	require.Len(t, data.LineItems, 3)

	house := data.LineItems[0]
	assert.Equal(t, "House Wash", house.Title)
	require.NotNil(t, house.Quantity)
	assert.Equal(t, 2400.0, *house.Quantity)
	assert.Equal(t, "sqft", house.Unit)
	require.NotNil(t, house.Total)
	assert.Equal(t, 450.0, *house.Total)

	driveway := data.LineItems[1]
	assert.Equal(t, "Driveway Cleaning", driveway.Title)
	require.NotNil(t, driveway.Quantity)
	assert.Equal(t, 1200.0, *driveway.Quantity)
	require.NotNil(t, driveway.Rate)
	assert.Equal(t, 0.25, *driveway.Rate)
	require.NotNil(t, driveway.Total)
	assert.Equal(t, 300.0, *driveway.Total)

	// Name-only draft survives with nil numerics.
	gutter := data.LineItems[2]
	assert.Equal(t, "Gutter Cleaning", gutter.Title)
	assert.Nil(t, gutter.Quantity)
	assert.Nil(t, gutter.Total)

	assert.Equal(t, []string{"House Wash", "Driveway Cleaning", "Gutter Cleaning"}, data.Services)
	assert.Contains(t, data.ExtractionNotes, "extracted via deterministic text parser")
}

func TestParse_SummaryLines(t *testing.T) {
	data := Parse("SUBTOTAL $900.00\nTAX $63.00\nDISCOUNT $50.00\nTOTAL $913.00\n")
	assert.Equal(t, 913.0, data.TotalPrice)
	assert.Equal(t, 900.0, data.Subtotal)
	assert.Equal(t, 63.0, data.Tax)
	assert.Equal(t, 50.0, data.Discount)
}

func TestParse_InlinePriceOnServiceLine(t *testing.T) {
	data := Parse("Roof Wash ........ $625.00\n")
	require.Len(t, data.LineItems, 1)
	assert.Equal(t, "Roof Wash", data.LineItems[0].Title)
	require.NotNil(t, data.LineItems[0].Total)
	assert.Equal(t, 625.0, *data.LineItems[0].Total)
}

func TestParse_FirstAmountWinsForDraft(t *testing.T) {
	data := Parse("Pressure Washing\n$200.00\n$999.00\n")
	require.Len(t, data.LineItems, 1)
	require.NotNil(t, data.LineItems[0].Total)
	assert.Equal(t, 200.0, *data.LineItems[0].Total)
}

func TestParse_EmptyText(t *testing.T) {
	data := Parse("")
	assert.Empty(t, data.LineItems)
	assert.Zero(t, data.TotalPrice)
	assert.Empty(t, data.EstimateNumber)
}

func TestParse_UnknownServiceLinesIgnored(t *testing.T) {
	data := Parse("Thank you for your business\nPayment due on completion\n$500.00\n")
	assert.Empty(t, data.LineItems)
}
