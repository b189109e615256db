package model

import "time"

// Lead is the CRM record materialized from an approved extraction.
type Lead struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ClientName  string    `json:"client_name,omitempty"`
	Address     string    `json:"address,omitempty"`
	DealStage   string    `json:"deal_stage"`
	Probability int       `json:"probability"`
	Source      string    `json:"source"`
	CreatedAt   time.Time `json:"created_at"`
}

// Quote is the priced record materialized alongside a Lead on approval.
type Quote struct {
	ID          string     `json:"id"`
	LeadID      string     `json:"lead_id"`
	QuoteNumber string     `json:"quote_number"`
	ProjectName string     `json:"project_name,omitempty"`
	TotalPrice  float64    `json:"total_price"`
	Currency    string     `json:"currency,omitempty"`
	Status      string     `json:"status"`
	LineItems   []LineItem `json:"line_items,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
