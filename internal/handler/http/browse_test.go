package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmartinezt1/cs-products-sub000/internal/domain"
	"github.com/angelmartinezt1/cs-products-sub000/internal/repository"
	"github.com/angelmartinezt1/cs-products-sub000/internal/service"
)

type stubMirror struct {
	lastQuery repository.BrowseQuery
	result    *repository.BrowseResult
	facets    *repository.FacetCounts
	err       error
}

func (m *stubMirror) UpsertProducts(context.Context, []domain.Document) error { return nil }

func (m *stubMirror) Browse(_ context.Context, q repository.BrowseQuery) (*repository.BrowseResult, error) {
	m.lastQuery = q
	return m.result, m.err
}

func (m *stubMirror) Facets(context.Context) (*repository.FacetCounts, error) {
	return m.facets, m.err
}

func newBrowseHandler(mirror *stubMirror) *BrowseHandler {
	logger := slog.New(slog.DiscardHandler)
	return NewBrowseHandler(service.NewBrowseService(mirror, logger), logger)
}

func TestBrowseList_TranslatesQueryParams(t *testing.T) {
	mirror := &stubMirror{
		result: &repository.BrowseResult{
			Products: []repository.Product{{ID: "1", Title: "Bocina", Brand: "JBL"}},
			Total:    41,
			Page:     2,
			PerPage:  20,
		},
	}
	h := newBrowseHandler(mirror)

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/browse?brand=JBL&category=electronica&page=2&price_min=100&price_max=900&free_shipping=true", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	q := mirror.lastQuery
	assert.Equal(t, "JBL", q.Brand)
	assert.Equal(t, "electronica", q.CategoryLvl0)
	assert.Equal(t, 2, q.Page)
	assert.Equal(t, 20, q.PerPage)
	assert.True(t, q.OnlyActive)
	require.NotNil(t, q.PriceMin)
	assert.Equal(t, 100.0, *q.PriceMin)
	require.NotNil(t, q.PriceMax)
	assert.Equal(t, 900.0, *q.PriceMax)
	require.NotNil(t, q.FreeShipping)
	assert.True(t, *q.FreeShipping)

	var body struct {
		Data struct {
			Data       []repository.Product `json:"data"`
			TotalCount int                  `json:"total_count"`
			Page       int                  `json:"page"`
			TotalPages int                  `json:"total_pages"`
			HasNext    bool                 `json:"has_next"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 41, body.Data.TotalCount)
	assert.Equal(t, 3, body.Data.TotalPages)
	assert.True(t, body.Data.HasNext)
	require.Len(t, body.Data.Data, 1)
	assert.Equal(t, "Bocina", body.Data.Data[0].Title)
}

func TestBrowseList_IncludeInactiveDisablesActiveFilter(t *testing.T) {
	mirror := &stubMirror{result: &repository.BrowseResult{Page: 1, PerPage: 20}}
	h := newBrowseHandler(mirror)

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/browse?include_inactive=true", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, mirror.lastQuery.OnlyActive)
}

func TestBrowseList_RejectsBadParams(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantCode string
	}{
		{name: "non-integer page", query: "page=two", wantCode: "INVALID_INPUT"},
		{name: "non-numeric price", query: "price_min=cheap", wantCode: "INVALID_INPUT"},
		{name: "non-boolean shipping", query: "free_shipping=maybe", wantCode: "INVALID_INPUT"},
		{name: "negative page", query: "page=-2", wantCode: "VALIDATION_ERROR"},
		{name: "negative price", query: "price_min=-10", wantCode: "VALIDATION_ERROR"},
		{name: "per_page above cap", query: "per_page=500", wantCode: "VALIDATION_ERROR"},
		{name: "inverted price range", query: "price_min=900&price_max=100", wantCode: "INVALID_INPUT"},
	}

	h := newBrowseHandler(&stubMirror{result: &repository.BrowseResult{}})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/browse?"+tt.query, nil))
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var body struct {
				Error struct {
					Code   string            `json:"code"`
					Fields map[string]string `json:"fields"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Error.Code)
			if tt.wantCode == "VALIDATION_ERROR" {
				assert.NotEmpty(t, body.Error.Fields)
			}
		})
	}
}

func TestBrowseFacets(t *testing.T) {
	mirror := &stubMirror{
		facets: &repository.FacetCounts{
			Brands:       map[string]int{"Sony": 12, "JBL": 4},
			Categories:   map[string]int{"electronica": 16},
			PriceBuckets: map[string]int{"0-500": 9, "500-1000": 7},
			FreeShipping: map[string]int{"true": 5, "false": 11},
		},
	}
	h := newBrowseHandler(mirror)

	rec := httptest.NewRecorder()
	h.Facets(rec, httptest.NewRequest(http.MethodGet, "/api/v1/browse/facets", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data repository.FacetCounts `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 12, body.Data.Brands["Sony"])
	assert.Equal(t, 9, body.Data.PriceBuckets["0-500"])
}
