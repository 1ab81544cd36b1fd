package ebay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchListings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/item_summary/search", r.URL.Path)
		assert.Equal(t, "lego 75192", r.URL.Query().Get("q"))
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"total": 137,
			"itemSummaries": [
				{"itemId": "v1|1|0", "title": "LEGO 75192 UCS", "price": {"value": "649.99", "currency": "USD"}},
				{"itemId": "v1|2|0", "title": "LEGO 75192 used", "price": {"value": "520.00", "currency": "USD"}},
				{"itemId": "v1|3|0", "title": "broken price", "price": {"value": "not-a-number", "currency": "USD"}}
			]
		}`))
	}))
	defer srv.Close()

	c := NewClient("test-token", WithBaseURL(srv.URL))
	res, err := c.SearchListings(context.Background(), "lego 75192", 25)
	require.NoError(t, err)

	assert.Equal(t, 137, res.Total)
	// Unparseable prices are dropped.
	require.Len(t, res.Listings, 2)
	assert.InDelta(t, 649.99, res.Listings[0].Price, 1e-9)
}

func TestSearchListings_DefaultLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"total": 0}`))
	}))
	defer srv.Close()

	c := NewClient("test-token", WithBaseURL(srv.URL))
	_, err := c.SearchListings(context.Background(), "anything", 0)
	require.NoError(t, err)
}

func TestSearchListings_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"errorId":1001}]}`))
	}))
	defer srv.Close()

	c := NewClient("bad-token", WithBaseURL(srv.URL))
	_, err := c.SearchListings(context.Background(), "anything", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 401")
}
