// Package http exposes the query-side HTTP surface: the third-party
// compatible search endpoints and the catalog browse API.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmartinezt1/cs-products-sub000/internal/domain"
	"github.com/angelmartinezt1/cs-products-sub000/internal/service"
	apperrors "github.com/angelmartinezt1/cs-products-sub000/pkg/errors"
	"github.com/angelmartinezt1/cs-products-sub000/pkg/httputil"
	"github.com/angelmartinezt1/cs-products-sub000/pkg/validator"
)

// AlgoliaHandler serves the compatible search wire format. Pages are
// 0-based on this surface and 1-based toward the engine.
type AlgoliaHandler struct {
	search *service.SearchService
	logger *slog.Logger
}

// NewAlgoliaHandler creates the handler.
func NewAlgoliaHandler(search *service.SearchService, logger *slog.Logger) *AlgoliaHandler {
	return &AlgoliaHandler{search: search, logger: logger}
}

// searchResponse is the compatible response shape. Errors use the
// protocol's own {message, status} form, not the service envelope.
type searchResponse struct {
	Hits             []map[string]any          `json:"hits"`
	NbHits           int                       `json:"nbHits"`
	Page             int                       `json:"page"`
	NbPages          int                       `json:"nbPages"`
	HitsPerPage      int                       `json:"hitsPerPage"`
	ProcessingTimeMS int64                     `json:"processingTimeMS"`
	Facets           map[string]map[string]int `json:"facets,omitempty"`
	ExhaustiveNbHits bool                      `json:"exhaustiveNbHits"`
	Query            string                    `json:"query"`
	Params           string                    `json:"params"`
	Index            string                    `json:"index,omitempty"`
}

type wireError struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// Query handles POST /1/indexes/{index}/query.
func (h *AlgoliaHandler) Query(w http.ResponseWriter, r *http.Request) {
	index := chi.URLParam(r, "index")

	var q algoliaQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		h.writeWireError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.runQuery(r, index, &q)
	if err != nil {
		h.writeQueryError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// multiQueryRequest is the body of POST /1/indexes/*/queries. The batch cap
// matches the emulated protocol's limit.
type multiQueryRequest struct {
	Requests []multiQueryItem `json:"requests" validate:"required,min=1,max=50,dive"`
}

type multiQueryItem struct {
	IndexName string `json:"indexName" validate:"required"`
	Params    string `json:"params"`
}

// MultiQuery handles POST /1/indexes/*/queries: every request in the batch
// runs, and each result slot carries its own outcome.
func (h *AlgoliaHandler) MultiQuery(w http.ResponseWriter, r *http.Request) {
	var body multiQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeWireError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validator.Validate(&body); err != nil {
		h.writeWireError(w, http.StatusBadRequest, err.Error())
		return
	}

	results := make([]any, 0, len(body.Requests))
	for _, req := range body.Requests {
		q := algoliaQuery{Params: req.Params}
		resp, err := h.runQuery(r, req.IndexName, &q)
		if err != nil {
			status := apperrors.HTTPStatus(err)
			results = append(results, wireError{Message: err.Error(), Status: status})
			continue
		}
		results = append(results, resp)
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (h *AlgoliaHandler) runQuery(r *http.Request, index string, q *algoliaQuery) (*searchResponse, error) {
	engineReq, resolved, err := toEngineRequest(q)
	if err != nil {
		return nil, err
	}

	result, err := h.search.Search(r.Context(), engineReq)
	if err != nil {
		return nil, err
	}

	nbPages := 0
	if result.Found > 0 {
		nbPages = int(math.Ceil(float64(result.Found) / float64(resolved.HitsPerPage)))
	}

	hits := make([]map[string]any, 0, len(result.Hits))
	for i := range result.Hits {
		hit, err := toHit(&result.Hits[i])
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}

	return &searchResponse{
		Hits:             hits,
		NbHits:           result.Found,
		Page:             resolved.Page,
		NbPages:          nbPages,
		HitsPerPage:      resolved.HitsPerPage,
		ProcessingTimeMS: result.TookMS,
		Facets:           nonEmptyFacets(result.Facets),
		ExhaustiveNbHits: true,
		Query:            resolved.Query,
		Params:           q.Params,
		Index:            index,
	}, nil
}

// toHit projects a document to a hit object keyed by objectID.
func toHit(doc *domain.Document) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	var hit map[string]any
	if err := json.Unmarshal(raw, &hit); err != nil {
		return nil, apperrors.Internal(err)
	}
	hit["objectID"] = doc.ID
	return hit, nil
}

func nonEmptyFacets(facets map[string]map[string]int) map[string]map[string]int {
	out := make(map[string]map[string]int, len(facets))
	for field, counts := range facets {
		if len(counts) > 0 {
			out[field] = counts
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (h *AlgoliaHandler) writeQueryError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "search query failed",
			slog.String("error", err.Error()),
			slog.String("path", r.URL.Path),
		)
		h.writeWireError(w, status, "internal error")
		return
	}

	var appErr *apperrors.AppError
	message := err.Error()
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	h.writeWireError(w, status, message)
}

func (h *AlgoliaHandler) writeWireError(w http.ResponseWriter, status int, message string) {
	httputil.WriteJSON(w, status, wireError{Message: message, Status: status})
}
