package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmartinezt1/cs-products-sub000/internal/domain"
	"github.com/angelmartinezt1/cs-products-sub000/internal/engine/memory"
	"github.com/angelmartinezt1/cs-products-sub000/internal/service"
	"github.com/angelmartinezt1/cs-products-sub000/pkg/health"
)

func newTestServer(t *testing.T, eng *memory.Engine) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	search := service.NewSearchService(eng, nil, 0, logger)
	browse := service.NewBrowseService(nil, logger)

	router := NewRouter(RouterConfig{
		ServiceName: "catalog-search",
		Algolia:     NewAlgoliaHandler(search, logger),
		Browse:      NewBrowseHandler(browse, logger),
		Health:      health.NewHandler(),
		Logger:      logger,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func seedEngine(t *testing.T, n int) *memory.Engine {
	t.Helper()

	eng := memory.NewEngine("products")
	docs := make([]domain.Document, 0, n)
	for i := 1; i <= n; i++ {
		brand := "Sony"
		if i%2 == 0 {
			brand = "JBL"
		}
		lvl0 := "electronica"
		docs = append(docs, domain.Document{
			ID:             fmt.Sprintf("%d", i),
			Title:          fmt.Sprintf("Televisor modelo %d", i),
			Brand:          brand,
			SalePrice:      float64(i) * 100,
			Stock:          i,
			IsActive:       true,
			FreeShipping:   i%3 == 0,
			RelevanceScore: float64(100 - i),
			Categories:     domain.CategoryLevels{Lvl0: &lvl0},
		})
	}
	results, err := eng.Import(t.Context(), docs)
	require.NoError(t, err)
	require.Len(t, results, n)
	return eng
}

func postQuery(t *testing.T, srv *httptest.Server, index string, body any) (*http.Response, searchResponse) {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/1/indexes/"+index+"/query", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var sr searchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sr))
	return resp, sr
}

func TestQuery_PagesAreZeroBasedOnTheWire(t *testing.T) {
	srv := newTestServer(t, seedEngine(t, 25))

	resp, sr := postQuery(t, srv, "products", map[string]any{
		"params": "query=televisor&page=0&hitsPerPage=10",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, 0, sr.Page)
	assert.Equal(t, 3, sr.NbPages)
	assert.Equal(t, 25, sr.NbHits)
	assert.Equal(t, 10, sr.HitsPerPage)
	assert.Len(t, sr.Hits, 10)
	assert.True(t, sr.ExhaustiveNbHits)
	assert.Equal(t, "televisor", sr.Query)

	// Highest relevance first, so the first hit is document 1.
	assert.Equal(t, "1", sr.Hits[0]["objectID"])

	_, last := postQuery(t, srv, "products", map[string]any{
		"params": "query=televisor&page=2&hitsPerPage=10",
	})
	assert.Equal(t, 2, last.Page)
	assert.Len(t, last.Hits, 5)
}

func TestQuery_HitsCarryObjectID(t *testing.T) {
	srv := newTestServer(t, seedEngine(t, 1))

	_, sr := postQuery(t, srv, "products", map[string]any{"params": "query=televisor"})
	require.Len(t, sr.Hits, 1)

	hit := sr.Hits[0]
	assert.Equal(t, "1", hit["objectID"])
	assert.Equal(t, "1", hit["id"])
	assert.Equal(t, "Televisor modelo 1", hit["title"])
}

func TestQuery_FacetFiltersNarrowResults(t *testing.T) {
	srv := newTestServer(t, seedEngine(t, 10))

	_, sr := postQuery(t, srv, "products", map[string]any{
		"query":        "televisor",
		"facetFilters": [][]string{{"brand:Sony"}},
	})
	assert.Equal(t, 5, sr.NbHits)
	for _, hit := range sr.Hits {
		assert.Equal(t, "Sony", hit["brand"])
	}

	// An OR group over one facet widens the match again.
	_, sr = postQuery(t, srv, "products", map[string]any{
		"query":        "televisor",
		"facetFilters": [][]string{{"brand:Sony", "brand:JBL"}},
	})
	assert.Equal(t, 10, sr.NbHits)
}

func TestQuery_NumericFilters(t *testing.T) {
	srv := newTestServer(t, seedEngine(t, 10))

	_, sr := postQuery(t, srv, "products", map[string]any{
		"query":          "televisor",
		"numericFilters": []string{"sale_price>=300", "sale_price<=500"},
	})
	assert.Equal(t, 3, sr.NbHits)
}

func TestQuery_FacetCounts(t *testing.T) {
	srv := newTestServer(t, seedEngine(t, 10))

	_, sr := postQuery(t, srv, "products", map[string]any{
		"query":  "televisor",
		"facets": []string{"brand"},
	})
	require.Contains(t, sr.Facets, "brand")
	assert.Equal(t, 5, sr.Facets["brand"]["Sony"])
	assert.Equal(t, 5, sr.Facets["brand"]["JBL"])
}

func TestQuery_InvalidBodyIsBadRequest(t *testing.T) {
	srv := newTestServer(t, seedEngine(t, 1))

	resp, err := http.Post(srv.URL+"/1/indexes/products/query", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var we wireError
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&we))
	assert.Equal(t, http.StatusBadRequest, we.Status)
	assert.NotEmpty(t, we.Message)
}

func TestQuery_InvalidFilterIsBadRequest(t *testing.T) {
	srv := newTestServer(t, seedEngine(t, 1))

	resp, _ := postQuery(t, srv, "products", map[string]any{
		"facetFilters": []string{"-brand:Sony"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMultiQuery_PerRequestOutcomes(t *testing.T) {
	srv := newTestServer(t, seedEngine(t, 10))

	body := map[string]any{
		"requests": []map[string]string{
			{"indexName": "products", "params": "query=televisor&hitsPerPage=3"},
			{"indexName": "products", "params": "page=-1"},
			{"indexName": "products", "params": "query=nomatch"},
		},
	}
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/1/indexes/*/queries", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Results []json.RawMessage `json:"results"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Results, 3)

	var first searchResponse
	require.NoError(t, json.Unmarshal(out.Results[0], &first))
	assert.Equal(t, 10, first.NbHits)
	assert.Len(t, first.Hits, 3)
	assert.Equal(t, "products", first.Index)

	var second wireError
	require.NoError(t, json.Unmarshal(out.Results[1], &second))
	assert.Equal(t, http.StatusBadRequest, second.Status)

	var third searchResponse
	require.NoError(t, json.Unmarshal(out.Results[2], &third))
	assert.Equal(t, 0, third.NbHits)
	assert.Empty(t, third.Hits)
}

func TestMultiQuery_RejectsInvalidBatches(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing requests", body: `{}`},
		{name: "empty batch", body: `{"requests":[]}`},
		{name: "missing index name", body: `{"requests":[{"params":"query=tv"}]}`},
	}

	srv := newTestServer(t, seedEngine(t, 1))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/1/indexes/*/queries", "application/json",
				bytes.NewReader([]byte(tt.body)))
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var we wireError
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&we))
			assert.Equal(t, http.StatusBadRequest, we.Status)
			assert.NotEmpty(t, we.Message)
		})
	}
}
