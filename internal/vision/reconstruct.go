package vision

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Field reconstruction works on the raw JSON payload when the model response
// fails schema validation. Each field is an ordered list of alternate key
// names evaluated in order; the first non-null hit wins. Keeping the tables
// data-driven makes the alternates testable and easy to extend.

var clientNameKeys = []string{"name", "clientName", "client_name", "customer"}
var clientCompanyKeys = []string{"company", "companyName", "organization"}
var clientEmailKeys = []string{"email", "emailAddress", "contact_email"}
var projectAddressKeys = []string{"address", "projectAddress", "location", "site"}
var projectDateKeys = []string{"date", "estimateDate", "proposalDate"}
var lineItemsKeys = []string{"lineItems", "line_items", "items", "services"}
var grandTotalKeys = []string{"grandTotal", "grand_total", "total", "totalPrice", "total_price"}
var subtotalKeys = []string{"subtotal", "subTotal", "sub_total"}
var taxKeys = []string{"tax", "taxAmount", "salesTax"}
var discountKeys = []string{"discount", "discountAmount"}
var notesKeys = []string{"extractionNotes", "notes", "warnings"}

var itemSKUKeys = []string{"sku", "itemCode", "code"}
var itemTitleKeys = []string{"title", "name", "service", "item"}
var itemDescriptionKeys = []string{"description", "details"}
var itemQtyKeys = []string{"qty", "quantity", "sqft"}
var itemUnitKeys = []string{"unit", "uom", "units"}
var itemRateKeys = []string{"rate", "price", "unitPrice", "unit_price"}
var itemTotalKeys = []string{"total", "amount", "subtotal", "lineTotal"}

// Reconstruct rebuilds a visionResult field-by-field from a raw JSON payload
// that failed schema validation. Returns false only when the payload is not
// a JSON object at all.
func Reconstruct(raw string) (*visionResult, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, false
	}

	var v visionResult

	if client, ok := firstMap(m, "client", "customer", "recipient"); ok {
		v.Client.Name, _ = firstString(client, clientNameKeys...)
		v.Client.Company, _ = firstString(client, clientCompanyKeys...)
		v.Client.Email, _ = firstString(client, clientEmailKeys...)
		v.Client.Confidence, _ = firstNumber(client, "confidence")
	} else {
		v.Client.Name, _ = firstString(m, "clientName", "client_name")
	}

	if project, ok := firstMap(m, "project", "job", "site"); ok {
		v.Project.Address, _ = firstString(project, projectAddressKeys...)
		v.Project.Date, _ = firstString(project, projectDateKeys...)
		v.Project.Confidence, _ = firstNumber(project, "confidence")
	} else {
		v.Project.Address, _ = firstString(m, "projectAddress", "address")
	}

	if items, ok := firstSlice(m, lineItemsKeys...); ok {
		for _, entry := range items {
			im, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			li := reconstructLineItem(im)
			if li.Title == "" && li.Qty == nil && li.Total == nil {
				continue
			}
			v.LineItems = append(v.LineItems, li)
		}
	}

	v.GrandTotal, _ = firstNumber(m, grandTotalKeys...)
	v.Subtotal, _ = firstNumber(m, subtotalKeys...)
	v.Tax, _ = firstNumber(m, taxKeys...)
	v.Discount, _ = firstNumber(m, discountKeys...)

	if notes, ok := firstSlice(m, notesKeys...); ok {
		for _, n := range notes {
			if s, ok := n.(string); ok && s != "" {
				v.ExtractionNotes = append(v.ExtractionNotes, s)
			}
		}
	}

	// Derive missing numerics: total = qty*rate per item, then grand total
	// from the item sum when the model gave none.
	if v.GrandTotal == 0 {
		var sum float64
		for _, li := range v.LineItems {
			if li.Total != nil {
				sum += *li.Total
			}
		}
		v.GrandTotal = sum
	}

	return &v, true
}

func reconstructLineItem(im map[string]any) visionLineItem {
	var li visionLineItem
	li.SKU, _ = firstString(im, itemSKUKeys...)
	li.Title, _ = firstString(im, itemTitleKeys...)
	li.Description, _ = firstString(im, itemDescriptionKeys...)
	li.Unit, _ = firstString(im, itemUnitKeys...)
	li.Confidence, _ = firstNumber(im, "confidence")

	if qty, ok := firstNumber(im, itemQtyKeys...); ok {
		li.Qty = &qty
	}
	if rate, ok := firstNumber(im, itemRateKeys...); ok {
		li.Rate = &rate
	}
	if total, ok := firstNumber(im, itemTotalKeys...); ok {
		li.Total = &total
	} else if li.Qty != nil && li.Rate != nil {
		derived := *li.Qty * *li.Rate
		li.Total = &derived
	}
	return li
}

// firstString walks keys in order, returning the first non-empty string.
func firstString(m map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := asString(v); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// firstNumber walks keys in order, returning the first parseable number.
func firstNumber(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if n, ok := asNumber(v); ok {
				return n, true
			}
		}
	}
	return 0, false
}

func firstMap(m map[string]any, keys ...string) (map[string]any, bool) {
	for _, k := range keys {
		if v, ok := m[k].(map[string]any); ok {
			return v, true
		}
	}
	return nil, false
}

func firstSlice(m map[string]any, keys ...string) ([]any, bool) {
	for _, k := range keys {
		if v, ok := m[k].([]any); ok {
			return v, true
		}
	}
	return nil, false
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// asNumber accepts JSON numbers and numeric strings, tolerating currency
// symbols and thousands separators ("$1,250.00").
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		s := strings.TrimSpace(n)
		s = strings.TrimPrefix(s, "$")
		s = strings.ReplaceAll(s, ",", "")
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
