// Package pricecharting is a client for the PriceCharting product API, the
// engine's authority price-guide source.
package pricecharting

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://www.pricecharting.com/api"

// Client looks up authority prices for items.
type Client interface {
	LookupProduct(ctx context.Context, query string) (*Product, error)
}

// Product is one matched product from the price guide. Prices arrive in
// pennies from the API and are converted to dollars at the boundary.
type Product struct {
	ID            string  `json:"id"`
	ProductName   string  `json:"product_name"`
	ConsoleName   string  `json:"console_name"`   // product line / set name
	LoosePrice    float64 `json:"loose_price"`    // dollars, item only
	CompletePrice float64 `json:"complete_price"` // dollars, complete in box
	NewPrice      float64 `json:"new_price"`      // dollars, sealed/new
}

// BestPrice picks the most representative authority price: complete-in-box
// when known, else loose, else new.
func (p *Product) BestPrice() float64 {
	switch {
	case p.CompletePrice > 0:
		return p.CompletePrice
	case p.LoosePrice > 0:
		return p.LoosePrice
	default:
		return p.NewPrice
	}
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
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a PriceCharting API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
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

// apiProduct is the wire shape; prices are integer pennies.
type apiProduct struct {
	Status        string `json:"status"`
	ID            string `json:"id"`
	ProductName   string `json:"product-name"`
	ConsoleName   string `json:"console-name"`
	LoosePrice    int64  `json:"loose-price"`
	CompletePrice int64  `json:"cib-price"`
	NewPrice      int64  `json:"new-price"`
	ErrorMessage  string `json:"error-message"`
}

func (c *httpClient) LookupProduct(ctx context.Context, query string) (*Product, error) {
	q := url.Values{}
	q.Set("t", c.apiKey)
	q.Set("q", query)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/product?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "pricecharting: create request")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "pricecharting: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "pricecharting: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("pricecharting: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var raw apiProduct
	if err := json.Unmarshal(respBody, &raw); err != nil {
		return nil, eris.Wrap(err, "pricecharting: unmarshal response")
	}
	if raw.Status != "success" {
		return nil, eris.Errorf("pricecharting: lookup failed: %s", raw.ErrorMessage)
	}

	return &Product{
		ID:            raw.ID,
		ProductName:   raw.ProductName,
		ConsoleName:   raw.ConsoleName,
		LoosePrice:    float64(raw.LoosePrice) / 100,
		CompletePrice: float64(raw.CompletePrice) / 100,
		NewPrice:      float64(raw.NewPrice) / 100,
	}, nil
}
