package pandadoc

import (
	"encoding/json"
	"time"
)

// ListParams filters the paginated document listing.
type ListParams struct {
	DateFrom time.Time
	DateTo   time.Time
	Page     int
	Count    int
}

// ListResponse is one page of the provider's document listing.
type ListResponse struct {
	Results []ListedDocument `json:"results"`
}

// ListedDocument is a document summary from the listing endpoint.
type ListedDocument struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Status       string     `json:"status"`
	Version      string     `json:"version,omitempty"`
	DateCreated  *time.Time `json:"date_created,omitempty"`
	DateModified *time.Time `json:"date_modified,omitempty"`
}

// DocumentDetails is the full details payload for a single document.
type DocumentDetails struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Status        string          `json:"status"`
	Version       string          `json:"version,omitempty"`
	DateCreated   *time.Time      `json:"date_created,omitempty"`
	DateModified  *time.Time      `json:"date_modified,omitempty"`
	Recipients    []Recipient     `json:"recipients,omitempty"`
	Tokens        []Token         `json:"tokens,omitempty"`
	Fields        json.RawMessage `json:"fields,omitempty"`
	PricingTables []PricingTable  `json:"-"`
	GrandTotal    *Money          `json:"grand_total,omitempty"`
	Raw           json.RawMessage `json:"-"`
}

// Recipient is a person on the document (signer, CC).
type Recipient struct {
	Email         string `json:"email"`
	FirstName     string `json:"first_name,omitempty"`
	LastName      string `json:"last_name,omitempty"`
	CompanyName   string `json:"company_name,omitempty"`
	Role          string `json:"role,omitempty"`
	RecipientType string `json:"recipient_type,omitempty"`
	SigningOrder  *int   `json:"signing_order,omitempty"`
	HasCompleted  bool   `json:"has_completed,omitempty"`
}

// Token is a template variable resolved on the document.
type Token struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Money is an amount with currency as the provider reports it.
type Money struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// PricingTableKind tags which upstream shape a pricing table arrived in.
type PricingTableKind string

const (
	// PricingKindItems is the object-with-sections shape ({sections:[{rows:...}]}).
	PricingKindItems PricingTableKind = "items"
	// PricingKindArray is the bare row-array shape.
	PricingKindArray PricingTableKind = "array"
)

// PricingTable is the normalized internal form of a provider pricing table.
// Upstream sends two shapes (array vs object-with-items); both are folded
// into this tagged variant at the ingestion boundary so business logic never
// inspects raw shapes.
type PricingTable struct {
	Kind  PricingTableKind `json:"kind"`
	Name  string           `json:"name,omitempty"`
	Total string           `json:"total,omitempty"`
	Items []PricingItem    `json:"items"`
}

// PricingItem is one normalized pricing table row.
type PricingItem struct {
	SKU          string            `json:"sku,omitempty"`
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	Qty          string            `json:"qty,omitempty"`
	Price        string            `json:"price,omitempty"`
	Subtotal     string            `json:"subtotal,omitempty"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`
}

// rawPricingTable mirrors the object-with-sections upstream shape.
type rawPricingTable struct {
	Name     string          `json:"name"`
	Total    json.RawMessage `json:"total"`
	Sections []struct {
		Title string          `json:"title"`
		Rows  []rawPricingRow `json:"rows"`
	} `json:"sections"`
	// Some payloads carry rows at the top level instead of sections.
	Items []rawPricingRow `json:"items"`
}

type rawPricingRow struct {
	SKU  string `json:"sku"`
	Data struct {
		Name        string      `json:"name"`
		Description string      `json:"description"`
		Qty         json.Number `json:"qty"`
		Price       json.Number `json:"price"`
	} `json:"data"`
	// Flat-row variant.
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Qty          json.Number    `json:"qty"`
	Price        json.Number    `json:"price"`
	Subtotal     json.Number    `json:"subtotal"`
	CustomFields map[string]any `json:"custom_fields"`
}

// NormalizePricingTables folds either upstream shape (array of rows, or
// object with sections/items) into the tagged PricingTable variant.
func NormalizePricingTables(raw json.RawMessage) ([]PricingTable, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	// Shape 1: bare array of rows.
	var rows []rawPricingRow
	if err := json.Unmarshal(raw, &rows); err == nil && len(rows) > 0 && looksLikeRows(rows) {
		return []PricingTable{{
			Kind:  PricingKindArray,
			Items: normalizeRows(rows),
		}}, nil
	}

	// Shape 2: array of table objects with sections or items.
	var tables []rawPricingTable
	if err := json.Unmarshal(raw, &tables); err == nil && len(tables) > 0 {
		out := make([]PricingTable, 0, len(tables))
		for _, t := range tables {
			pt := PricingTable{
				Kind: PricingKindItems,
				Name: t.Name,
			}
			if len(t.Total) > 0 {
				pt.Total = decodeTotal(t.Total)
			}
			for _, sec := range t.Sections {
				pt.Items = append(pt.Items, normalizeRows(sec.Rows)...)
			}
			pt.Items = append(pt.Items, normalizeRows(t.Items)...)
			out = append(out, pt)
		}
		return out, nil
	}

	// Shape 3: single table object.
	var single rawPricingTable
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, err
	}
	pt := PricingTable{Kind: PricingKindItems, Name: single.Name}
	if len(single.Total) > 0 {
		pt.Total = decodeTotal(single.Total)
	}
	for _, sec := range single.Sections {
		pt.Items = append(pt.Items, normalizeRows(sec.Rows)...)
	}
	pt.Items = append(pt.Items, normalizeRows(single.Items)...)
	return []PricingTable{pt}, nil
}

func looksLikeRows(rows []rawPricingRow) bool {
	for _, r := range rows {
		if r.Name != "" || r.Data.Name != "" {
			return true
		}
	}
	return false
}

func normalizeRows(rows []rawPricingRow) []PricingItem {
	items := make([]PricingItem, 0, len(rows))
	for _, r := range rows {
		item := PricingItem{
			SKU:         r.SKU,
			Name:        r.Name,
			Description: r.Description,
			Qty:         r.Qty.String(),
			Price:       r.Price.String(),
			Subtotal:    r.Subtotal.String(),
		}
		// Nested data variant wins when present.
		if r.Data.Name != "" {
			item.Name = r.Data.Name
			item.Description = r.Data.Description
			item.Qty = r.Data.Qty.String()
			item.Price = r.Data.Price.String()
		}
		if len(r.CustomFields) > 0 {
			item.CustomFields = make(map[string]string, len(r.CustomFields))
			for k, v := range r.CustomFields {
				if s, ok := v.(string); ok {
					item.CustomFields[k] = s
				}
			}
		}
		if item.Name == "" {
			continue
		}
		items = append(items, item)
	}
	return items
}

// decodeTotal handles totals sent as either a bare number/string or a
// {amount, currency} object.
func decodeTotal(raw json.RawMessage) string {
	var m Money
	if err := json.Unmarshal(raw, &m); err == nil && m.Amount != "" {
		return m.Amount
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}
