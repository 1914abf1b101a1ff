package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/angelmartinezt1/cs-products-sub000/internal/repository"
	"github.com/angelmartinezt1/cs-products-sub000/internal/service"
	apperrors "github.com/angelmartinezt1/cs-products-sub000/pkg/errors"
	"github.com/angelmartinezt1/cs-products-sub000/pkg/httputil"
	"github.com/angelmartinezt1/cs-products-sub000/pkg/validator"
)

// BrowseHandler serves the catalog mirror listing and facet endpoints.
type BrowseHandler struct {
	browse *service.BrowseService
	logger *slog.Logger
}

// NewBrowseHandler creates the handler.
func NewBrowseHandler(browse *service.BrowseService, logger *slog.Logger) *BrowseHandler {
	return &BrowseHandler{browse: browse, logger: logger}
}

// List handles GET /api/v1/browse.
func (h *BrowseHandler) List(w http.ResponseWriter, r *http.Request) {
	q, err := parseBrowseQuery(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if err := validator.Validate(q); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	result, err := h.browse.Browse(r.Context(), *q)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: httputil.NewPaginatedResponse(result.Products, result.Total, result.Page, result.PerPage),
	})
}

// Facets handles GET /api/v1/browse/facets.
func (h *BrowseHandler) Facets(w http.ResponseWriter, r *http.Request) {
	counts, err := h.browse.Facets(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: counts})
}

func parseBrowseQuery(r *http.Request) (*repository.BrowseQuery, error) {
	values := r.URL.Query()
	q := &repository.BrowseQuery{
		Brand:        values.Get("brand"),
		CategoryLvl0: values.Get("category"),
		OnlyActive:   values.Get("include_inactive") != "true",
	}

	var err error
	if q.Page, err = intParam(values.Get("page"), 1); err != nil {
		return nil, apperrors.InvalidInput("page must be an integer")
	}
	if q.PerPage, err = intParam(values.Get("per_page"), 20); err != nil {
		return nil, apperrors.InvalidInput("per_page must be an integer")
	}

	if v := values.Get("price_min"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, apperrors.InvalidInput("price_min must be a number")
		}
		q.PriceMin = &f
	}
	if v := values.Get("price_max"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, apperrors.InvalidInput("price_max must be a number")
		}
		q.PriceMax = &f
	}
	if v := values.Get("free_shipping"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, apperrors.InvalidInput("free_shipping must be a boolean")
		}
		q.FreeShipping = &b
	}

	return q, nil
}

func intParam(v string, fallback int) (int, error) {
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}
