// Package scorer computes confidence for extractions sourced from structured
// provider fields, and validates line-item sums against grand totals. Shared
// by the API-field path and the vision path's reconciliation step.
package scorer

import (
	"fmt"
	"math"

	"github.com/sells-group/proposal-intel/internal/model"
)

// Point values per corroboration category. Each category is an independent
// signal; partial extractions score proportionately instead of all-or-nothing.
const (
	titleParsePoints   = 15
	addressParsePoints = 10
	recipientPoints    = 15
	variableScanPoints = 10
	pricingTablePoints = 20
	grandTotalPoints   = 15
	textMatchPoints    = 10
	modelAssistPoints  = 5

	maxPoints = titleParsePoints + addressParsePoints + recipientPoints +
		variableScanPoints + pricingTablePoints + grandTotalPoints +
		textMatchPoints + modelAssistPoints
)

// DiscrepancyThreshold is the relative sum-vs-total gap above which a warning
// is raised and confidence penalized.
const DiscrepancyThreshold = 0.15

// DiscrepancyPenalty is subtracted from confidence when ValidateTotals warns.
const DiscrepancyPenalty = 15

// Signals records which independent extraction categories were corroborated.
type Signals struct {
	TitleParsed       bool // client/project name recovered from document title
	AddressParsed     bool
	RecipientResolved bool // at least one recipient with a usable email
	VariablesScanned  bool // provider tokens/variables yielded fields
	PricingTable      bool // provider pricing table present with rows
	GrandTotal        bool // non-zero grand total
	TextCorroborated  bool // PDF text confirmed at least one extracted value
	ModelAssisted     bool // a model call enhanced the structured fields
}

// Score converts corroborated signals into a 0-100 confidence.
func Score(s Signals) float64 {
	var pts int
	if s.TitleParsed {
		pts += titleParsePoints
	}
	if s.AddressParsed {
		pts += addressParsePoints
	}
	if s.RecipientResolved {
		pts += recipientPoints
	}
	if s.VariablesScanned {
		pts += variableScanPoints
	}
	if s.PricingTable {
		pts += pricingTablePoints
	}
	if s.GrandTotal {
		pts += grandTotalPoints
	}
	if s.TextCorroborated {
		pts += textMatchPoints
	}
	if s.ModelAssisted {
		pts += modelAssistPoints
	}
	return math.Round(100 * float64(pts) / float64(maxPoints))
}

// FromExtraction derives the field-based signals from an extraction result.
// Recipient, pricing-table, text and model signals depend on the caller's
// knowledge of the source document and are set separately.
func FromExtraction(data *model.ExtractedQuoteData) Signals {
	if data == nil {
		return Signals{}
	}
	return Signals{
		TitleParsed:       data.ClientName != "" || data.ProjectName != "",
		AddressParsed:     data.ProjectAddress != "",
		RecipientResolved: hasEmailContact(data.Contacts),
		VariablesScanned:  len(data.Variables) > 0,
		PricingTable:      len(data.LineItems) > 0,
		GrandTotal:        data.TotalPrice > 0,
	}
}

func hasEmailContact(contacts []model.Contact) bool {
	for _, c := range contacts {
		if c.Email != "" {
			return true
		}
	}
	return false
}

// ValidateTotals compares the line-item sum to the grand total. Returns a
// warning note and true when the relative discrepancy exceeds the threshold;
// callers append the note and subtract DiscrepancyPenalty from confidence.
// No items or a zero grand total validates trivially.
func ValidateTotals(items []model.LineItem, grandTotal float64) (string, bool) {
	if grandTotal == 0 || len(items) == 0 {
		return "", false
	}
	sum := model.SumLineItems(items)
	diff := math.Abs(sum-grandTotal) / grandTotal
	if diff <= DiscrepancyThreshold {
		return "", false
	}
	return fmt.Sprintf("line items sum to %.2f but grand total is %.2f (%.1f%% apart)",
		sum, grandTotal, diff*100), true
}
