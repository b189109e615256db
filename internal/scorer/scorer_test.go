package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/proposal-intel/internal/model"
)

func TestScore_AllSignals(t *testing.T) {
	all := Signals{
		TitleParsed:       true,
		AddressParsed:     true,
		RecipientResolved: true,
		VariablesScanned:  true,
		PricingTable:      true,
		GrandTotal:        true,
		TextCorroborated:  true,
		ModelAssisted:     true,
	}
	assert.Equal(t, 100.0, Score(all))
}

func TestScore_NoSignals(t *testing.T) {
	assert.Equal(t, 0.0, Score(Signals{}))
}

func TestScore_PartialIsProportionate(t *testing.T) {
	// Pricing table (20) + grand total (15) out of 100.
	got := Score(Signals{PricingTable: true, GrandTotal: true})
	assert.Equal(t, 35.0, got)

	// Adding title parse (15) moves it up, never all-or-nothing.
	got = Score(Signals{PricingTable: true, GrandTotal: true, TitleParsed: true})
	assert.Equal(t, 50.0, got)
}

func TestFromExtraction(t *testing.T) {
	data := &model.ExtractedQuoteData{
		ClientName:     "Jordan Blake",
		ProjectAddress: "12 Main St",
		TotalPrice:     750,
		LineItems:      []model.LineItem{{Title: "House Wash"}},
		Contacts:       []model.Contact{{Name: "Jordan Blake", Email: "jordan@example.com"}},
		Variables:      map[string]string{"Client.FirstName": "Jordan"},
	}

	s := FromExtraction(data)
	assert.True(t, s.TitleParsed)
	assert.True(t, s.AddressParsed)
	assert.True(t, s.RecipientResolved)
	assert.True(t, s.VariablesScanned)
	assert.True(t, s.PricingTable)
	assert.True(t, s.GrandTotal)
	assert.False(t, s.TextCorroborated)
	assert.False(t, s.ModelAssisted)
}

func TestFromExtraction_Nil(t *testing.T) {
	assert.Equal(t, Signals{}, FromExtraction(nil))
}

func TestFromExtraction_ContactWithoutEmail(t *testing.T) {
	s := FromExtraction(&model.ExtractedQuoteData{
		Contacts: []model.Contact{{Name: "No Email"}},
	})
	assert.False(t, s.RecipientResolved)
}

func TestValidateTotals_UnderThreshold(t *testing.T) {
	// $861 vs $1000 is 13.9% apart: inside tolerance, no warning.
	items := []model.LineItem{{Title: "A", Total: model.Float64Ptr(861)}}
	note, warned := ValidateTotals(items, 1000)
	assert.False(t, warned)
	assert.Empty(t, note)
}

func TestValidateTotals_OverThreshold(t *testing.T) {
	// $800 vs $1000 is 20% apart: warn.
	items := []model.LineItem{{Title: "A", Total: model.Float64Ptr(800)}}
	note, warned := ValidateTotals(items, 1000)
	assert.True(t, warned)
	assert.Contains(t, note, "800.00")
	assert.Contains(t, note, "1000.00")
}

func TestValidateTotals_DerivesQtyTimesRate(t *testing.T) {
	items := []model.LineItem{{
		Title:    "Driveway Cleaning",
		Quantity: model.Float64Ptr(1200),
		Rate:     model.Float64Ptr(0.25),
	}}
	note, warned := ValidateTotals(items, 300)
	assert.False(t, warned, note)
}

func TestValidateTotals_TrivialCases(t *testing.T) {
	_, warned := ValidateTotals(nil, 1000)
	assert.False(t, warned)

	_, warned = ValidateTotals([]model.LineItem{{Title: "A", Total: model.Float64Ptr(10)}}, 0)
	assert.False(t, warned)
}
