package pricecharting

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupProduct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/product", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("t"))
		assert.Equal(t, "pokemon charizard holo", r.URL.Query().Get("q"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "success",
			"id": "6910",
			"product-name": "Charizard",
			"console-name": "Pokemon Base Set",
			"loose-price": 21500,
			"cib-price": 0,
			"new-price": 0
		}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	p, err := c.LookupProduct(context.Background(), "pokemon charizard holo")
	require.NoError(t, err)

	assert.Equal(t, "Charizard", p.ProductName)
	assert.InDelta(t, 215.0, p.LoosePrice, 1e-9)
	assert.InDelta(t, 215.0, p.BestPrice(), 1e-9)
}

func TestLookupProduct_CompletePricePreferred(t *testing.T) {
	p := &Product{LoosePrice: 50, CompletePrice: 80, NewPrice: 120}
	assert.InDelta(t, 80.0, p.BestPrice(), 1e-9)
}

func TestLookupProduct_FailedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "error", "error-message": "no match"}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := c.LookupProduct(context.Background(), "nothing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no match")
}

func TestLookupProduct_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := c.LookupProduct(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 500")
}
