// Package ebay is a client for the eBay Browse API, used to sample active
// marketplace listings for an item. The listing median is the engine's
// anchor price.
package ebay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.ebay.com/buy/browse/v1"

// Client searches active marketplace listings.
type Client interface {
	SearchListings(ctx context.Context, query string, limit int) (*SearchResult, error)
}

// Listing is one active marketplace listing.
type Listing struct {
	ItemID   string  `json:"item_id"`
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
}

// SearchResult holds the sampled listings and the marketplace's total match
// count (which can exceed the sample size).
type SearchResult struct {
	Listings []Listing `json:"listings"`
	Total    int       `json:"total"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewClient creates an eBay Browse API client using an OAuth application
// token.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Wire shapes for item_summary/search.
type searchResponse struct {
	Total         int           `json:"total"`
	ItemSummaries []itemSummary `json:"itemSummaries"`
}

type itemSummary struct {
	ItemID string `json:"itemId"`
	Title  string `json:"title"`
	Price  struct {
		Value    string `json:"value"`
		Currency string `json:"currency"`
	} `json:"price"`
}

func (c *httpClient) SearchListings(ctx context.Context, query string, limit int) (*SearchResult, error) {
	if limit <= 0 {
		limit = 50
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/item_summary/search?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "ebay: create request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("X-EBAY-C-MARKETPLACE-ID", "EBAY_US")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "ebay: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "ebay: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("ebay: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var raw searchResponse
	if err := json.Unmarshal(respBody, &raw); err != nil {
		return nil, eris.Wrap(err, "ebay: unmarshal response")
	}

	result := &SearchResult{Total: raw.Total}
	for _, s := range raw.ItemSummaries {
		price, err := strconv.ParseFloat(s.Price.Value, 64)
		if err != nil || price <= 0 {
			continue
		}
		result.Listings = append(result.Listings, Listing{
			ItemID:   s.ItemID,
			Title:    s.Title,
			Price:    price,
			Currency: s.Price.Currency,
		})
	}

	return result, nil
}
