// Package fallback is the deterministic text parser used when the vision
// path is unavailable or produced nothing usable. It operates on raw PDF
// text only and makes no external calls.
package fallback

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/proposal-intel/internal/model"
)

var (
	estimateNumberRe = regexp.MustCompile(`(?i)\bESTIMATE\s*#?\s*(\d+)`)
	estimateDateRe   = regexp.MustCompile(`(?i)\bDATE[:\s]+(\d{1,2}/\d{1,2}/\d{4})`)

	// Anchored so SUBTOTAL lines don't match.
	grandTotalRe = regexp.MustCompile(`(?i)^\s*TOTAL\b[^$]*\$\s*([\d,]+(?:\.\d{1,2})?)`)
	subtotalRe   = regexp.MustCompile(`(?i)^\s*SUB\s*TOTAL\b[^$]*\$\s*([\d,]+(?:\.\d{1,2})?)`)
	taxRe        = regexp.MustCompile(`(?i)^\s*(?:SALES\s+)?TAX\b[^$]*\$\s*([\d,]+(?:\.\d{1,2})?)`)
	discountRe   = regexp.MustCompile(`(?i)^\s*DISCOUNT\b[^$]*\$\s*([\d,]+(?:\.\d{1,2})?)`)

	qtyRateAmountRe  = regexp.MustCompile(`^\s*([\d,]+(?:\.\d+)?)\s+\$?\s*([\d,]+(?:\.\d+)?)\s+\$\s*([\d,]+(?:\.\d{1,2})?)\s*$`)
	sqftQuantityRe   = regexp.MustCompile(`(?i)\b([\d,]+(?:\.\d+)?)\s*(?:sq\.?\s*ft\.?|sqft|square\s+feet)\b`)
	trailingAmountRe = regexp.MustCompile(`\$\s*([\d,]+(?:\.\d{1,2})?)\s*$`)
)

// serviceCatalog is the fixed set of known service names. A line matching one
// of these patterns opens a new line-item draft under the canonical name.
var serviceCatalog = []struct {
	name string
	re   *regexp.Regexp
}{
	{"House Wash", regexp.MustCompile(`(?i)\b(?:house|home)\s+wash(?:ing)?\b`)},
	{"Roof Wash", regexp.MustCompile(`(?i)\broof\s+(?:wash(?:ing)?|clean(?:ing)?)\b`)},
	{"Driveway Cleaning", regexp.MustCompile(`(?i)\bdriveway\s+(?:wash(?:ing)?|clean(?:ing)?)\b`)},
	{"Gutter Cleaning", regexp.MustCompile(`(?i)\bgutter\s+(?:clean(?:ing)?|brighten(?:ing)?)\b`)},
	{"Window Cleaning", regexp.MustCompile(`(?i)\bwindow\s+(?:wash(?:ing)?|clean(?:ing)?)\b`)},
	{"Concrete Cleaning", regexp.MustCompile(`(?i)\b(?:concrete|sidewalk|patio)\s+(?:wash(?:ing)?|clean(?:ing)?)\b`)},
	{"Deck Restoration", regexp.MustCompile(`(?i)\b(?:deck|fence)\s+(?:wash(?:ing)?|restoration|stain(?:ing)?)\b`)},
	{"Paver Sealing", regexp.MustCompile(`(?i)\bpaver\s+(?:seal(?:ing)?|clean(?:ing)?)\b`)},
	{"Soft Wash", regexp.MustCompile(`(?i)\bsoft\s+wash(?:ing)?\b`)},
	{"Pressure Washing", regexp.MustCompile(`(?i)\bpressure\s+wash(?:ing)?\b`)},
}

// Parse extracts quote data from raw proposal text. Fixed patterns only:
// estimate number, estimate date, grand total, and a sequential line scan
// where a known service name opens a line-item draft and following lines
// fill its quantity/rate/amount. Partial drafts are kept, a name-only item
// is emitted with nil quantity and total rather than discarded.
func Parse(text string) *model.ExtractedQuoteData {
	out := &model.ExtractedQuoteData{Currency: "USD"}

	if m := estimateNumberRe.FindStringSubmatch(text); m != nil {
		out.EstimateNumber = m[1]
	}
	if m := estimateDateRe.FindStringSubmatch(text); m != nil {
		out.EstimateDate = m[1]
	}

	var draft *model.LineItem
	emit := func() {
		if draft == nil {
			return
		}
		out.LineItems = append(out.LineItems, *draft)
		out.Services = append(out.Services, draft.Title)
		draft = nil
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		// Summary lines close the open draft: the item table is over.
		if m := grandTotalRe.FindStringSubmatch(line); m != nil {
			emit()
			if amt, ok := parseAmount(m[1]); ok {
				out.TotalPrice = amt
			}
			continue
		}
		if m := subtotalRe.FindStringSubmatch(line); m != nil {
			emit()
			if amt, ok := parseAmount(m[1]); ok {
				out.Subtotal = amt
			}
			continue
		}
		if m := taxRe.FindStringSubmatch(line); m != nil {
			emit()
			if amt, ok := parseAmount(m[1]); ok {
				out.Tax = amt
			}
			continue
		}
		if m := discountRe.FindStringSubmatch(line); m != nil {
			emit()
			if amt, ok := parseAmount(m[1]); ok {
				out.Discount = amt
			}
			continue
		}

		if name, ok := matchService(line); ok {
			emit()
			draft = &model.LineItem{Title: name}
			// A service line often carries its price inline.
			fillDraft(draft, line)
			continue
		}

		if draft != nil {
			fillDraft(draft, line)
		}
	}
	emit()

	out.ExtractionNotes = append(out.ExtractionNotes,
		"extracted via deterministic text parser")
	return out
}

func matchService(line string) (string, bool) {
	for _, svc := range serviceCatalog {
		if svc.re.MatchString(line) {
			return svc.name, true
		}
	}
	return "", false
}

// fillDraft applies the numeric patterns to a line, in decreasing order of
// specificity: qty rate $amount triple, "<n> sqft" quantity, trailing $amount.
func fillDraft(li *model.LineItem, line string) {
	if m := qtyRateAmountRe.FindStringSubmatch(line); m != nil {
		if qty, ok := parseAmount(m[1]); ok && li.Quantity == nil {
			li.Quantity = &qty
		}
		if rate, ok := parseAmount(m[2]); ok && li.Rate == nil {
			li.Rate = &rate
		}
		if total, ok := parseAmount(m[3]); ok && li.Total == nil {
			li.Total = &total
		}
		return
	}

	if m := sqftQuantityRe.FindStringSubmatch(line); m != nil {
		if qty, ok := parseAmount(m[1]); ok && li.Quantity == nil {
			li.Quantity = &qty
			li.Unit = "sqft"
		}
	}

	if m := trailingAmountRe.FindStringSubmatch(line); m != nil && li.Total == nil {
		if total, ok := parseAmount(m[1]); ok {
			li.Total = &total
		}
	}
}

func parseAmount(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
