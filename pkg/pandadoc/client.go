// Package pandadoc provides a client for the PandaDoc document API.
package pandadoc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/proposal-intel/internal/resilience"
)

// Client defines the provider operations used by the import pipeline.
type Client interface {
	// ListDocuments fetches one page of the document listing.
	ListDocuments(ctx context.Context, params ListParams) (*ListResponse, error)
	// GetDocument fetches full details (recipients, tokens, pricing tables,
	// grand total) for a document.
	GetDocument(ctx context.Context, documentID string) (*DocumentDetails, error)
	// DownloadPDF downloads the rendered PDF bytes for a document.
	DownloadPDF(ctx context.Context, documentID string) ([]byte, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRateLimit overrides the request pacing (requests per second).
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) { c.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a PandaDoc API client. Returns a ConfigurationError when
// the API key is missing.
func NewClient(apiKey string, opts ...Option) (Client, error) {
	if apiKey == "" {
		return nil, resilience.NewConfigurationError("pandadoc api key is required")
	}
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://api.pandadoc.com/public/v1",
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		// Provider allows a few requests per second; pace conservatively.
		limiter: rate.NewLimiter(rate.Limit(3), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *httpClient) ListDocuments(ctx context.Context, params ListParams) (*ListResponse, error) {
	q := url.Values{}
	if !params.DateFrom.IsZero() {
		q.Set("created_from", params.DateFrom.UTC().Format(time.RFC3339))
	}
	if !params.DateTo.IsZero() {
		q.Set("created_to", params.DateTo.UTC().Format(time.RFC3339))
	}
	if params.Count > 0 {
		q.Set("count", strconv.Itoa(params.Count))
	}
	q.Set("page", strconv.Itoa(params.Page))

	body, err := c.get(ctx, "/documents?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var out ListResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "pandadoc: decode listing")
	}
	return &out, nil
}

func (c *httpClient) GetDocument(ctx context.Context, documentID string) (*DocumentDetails, error) {
	body, err := c.get(ctx, "/documents/"+url.PathEscape(documentID)+"/details")
	if err != nil {
		return nil, err
	}

	var details DocumentDetails
	if err := json.Unmarshal(body, &details); err != nil {
		return nil, eris.Wrapf(err, "pandadoc: decode details %s", documentID)
	}
	details.Raw = body

	// Pricing tables arrive in heterogeneous shapes; normalize here so
	// nothing downstream sees the raw variants.
	var envelope struct {
		PricingTables json.RawMessage `json:"pricing_tables"`
		Pricing       struct {
			Tables json.RawMessage `json:"tables"`
		} `json:"pricing"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		rawTables := envelope.PricingTables
		if len(rawTables) == 0 {
			rawTables = envelope.Pricing.Tables
		}
		tables, nErr := NormalizePricingTables(rawTables)
		if nErr != nil {
			return nil, eris.Wrapf(nErr, "pandadoc: normalize pricing tables %s", documentID)
		}
		details.PricingTables = tables
	}

	return &details, nil
}

func (c *httpClient) DownloadPDF(ctx context.Context, documentID string) ([]byte, error) {
	return c.get(ctx, "/documents/"+url.PathEscape(documentID)+"/download")
}

// get performs an authenticated GET and returns the body. Non-2xx responses
// become ProviderError so the retry layer can classify 429/5xx.
func (c *httpClient) get(ctx context.Context, path string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "pandadoc: rate limiter")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, eris.Wrap(err, "pandadoc: build request")
	}
	req.Header.Set("Authorization", "API-Key "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "pandadoc: GET %s", path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "pandadoc: read body %s", path)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resilience.NewProviderError(
			fmt.Errorf("GET %s: %s: %s", path, resp.Status, truncate(string(body), 200)),
			resp.StatusCode,
		)
	}

	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
