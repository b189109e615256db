package model

// ExtractedQuoteData is the structured result of extracting a quote from a
// provider document. Immutable once written except by explicit human edit
// during approval.
type ExtractedQuoteData struct {
	ProjectName     string            `json:"project_name,omitempty"`
	ClientName      string            `json:"client_name,omitempty"`
	ClientCompany   string            `json:"client_company,omitempty"`
	ClientEmail     string            `json:"client_email,omitempty"`
	ProjectAddress  string            `json:"project_address,omitempty"`
	TotalPrice      float64           `json:"total_price"`
	Currency        string            `json:"currency,omitempty"`
	Subtotal        float64           `json:"subtotal,omitempty"`
	Tax             float64           `json:"tax,omitempty"`
	Discount        float64           `json:"discount,omitempty"`
	EstimateNumber  string            `json:"estimate_number,omitempty"`
	EstimateDate    string            `json:"estimate_date,omitempty"`
	Areas           []string          `json:"areas,omitempty"`
	Services        []string          `json:"services,omitempty"`
	LineItems       []LineItem        `json:"line_items,omitempty"`
	Contacts        []Contact         `json:"contacts,omitempty"`
	Variables       map[string]string `json:"variables,omitempty"`
	Confidence      float64           `json:"confidence"`
	UnmappedFields  []string          `json:"unmapped_fields,omitempty"`
	ExtractionNotes []string          `json:"extraction_notes,omitempty"`
}

// LineItem is a single priced row from an estimate. Quantity, Rate and Total
// are pointers because the fallback parser emits partial drafts: a name-only
// item keeps nil quantity/total rather than a misleading zero.
type LineItem struct {
	SKU         string   `json:"sku,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Quantity    *float64 `json:"quantity,omitempty"`
	Unit        string   `json:"unit,omitempty"`
	Rate        *float64 `json:"rate,omitempty"`
	Total       *float64 `json:"total,omitempty"`
	Confidence  float64  `json:"confidence,omitempty"`
}

// Contact is a person attached to the document (signer, CC, etc).
type Contact struct {
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Company string `json:"company,omitempty"`
	Role    string `json:"role,omitempty"`
}

// ItemTotal returns the item total, deriving quantity*rate when the explicit
// total is absent. Returns 0 when underivable.
func (li LineItem) ItemTotal() float64 {
	if li.Total != nil {
		return *li.Total
	}
	if li.Quantity != nil && li.Rate != nil {
		return *li.Quantity * *li.Rate
	}
	return 0
}

// SumLineItems sums item totals across all line items.
func SumLineItems(items []LineItem) float64 {
	var sum float64
	for _, li := range items {
		sum += li.ItemTotal()
	}
	return sum
}

// Float64Ptr returns a pointer to v. Convenience for literal line items.
func Float64Ptr(v float64) *float64 { return &v }
