package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrySearchUnwrapsNestedCompanies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/companies/search", r.URL.Path)
		assert.Equal(t, "plumbing", r.URL.Query().Get("q"))
		assert.Equal(t, "us_tx", r.URL.Query().Get("jurisdiction"))
		assert.Equal(t, "secret", r.URL.Query().Get("api_token"))

		page := r.URL.Query().Get("page")
		if page == "1" {
			fmt.Fprint(w, `{"results": {"companies": [
				{"company": {"name": "Alpha LLC", "company_number": "123"}},
				{"company": null}
			], "total_pages": 2}}`)
			return
		}
		fmt.Fprint(w, `{"results": {"companies": [
			{"company": {"name": "Beta Inc", "company_number": "456"}}
		], "total_pages": 2}}`)
	}))
	defer server.Close()

	client := NewRegistryClient(server.URL, "secret", 0, nil)
	records, err := client.Search(context.Background(), "us_tx", "plumbing")
	require.NoError(t, err)

	require.Len(t, records, 2, "null company wrappers are skipped")
	assert.Equal(t, "Alpha LLC", records[0]["name"])
	assert.Equal(t, "registry", records[0]["source"])
	assert.Equal(t, "Beta Inc", records[1]["name"])
}

func TestRegistrySearchAnonymousOmitsToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasToken := r.URL.Query()["api_token"]
		assert.False(t, hasToken)
		fmt.Fprint(w, `{"results": {"companies": [], "total_pages": 1}}`)
	}))
	defer server.Close()

	client := NewRegistryClient(server.URL, "", 0, nil)
	records, err := client.Search(context.Background(), "us_tx", "plumbing")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRegistrySearchUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewRegistryClient(server.URL, "", 0, nil)
	_, err := client.Search(context.Background(), "us_tx", "plumbing")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}
