package http

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/angelmartinezt1/cs-products-sub000/internal/engine"
	apperrors "github.com/angelmartinezt1/cs-products-sub000/pkg/errors"
)

// defaultHitsPerPage mirrors the emulated protocol's default page size.
const defaultHitsPerPage = 20

// facetableFields is what a facets=["*"] request expands to.
var facetableFields = []string{
	"brand",
	"categories.lvl0",
	"categories.lvl1",
	"categories.lvl2",
	"is_active",
	"free_shipping",
}

// algoliaQuery is one inbound query. Clients send either a single
// URL-encoded `params` string or the individual fields; explicit fields win
// over values parsed from params.
type algoliaQuery struct {
	Params         string          `json:"params"`
	Query          *string         `json:"query"`
	Page           *int            `json:"page"`
	HitsPerPage    *int            `json:"hitsPerPage"`
	Facets         json.RawMessage `json:"facets"`
	FacetFilters   json.RawMessage `json:"facetFilters"`
	NumericFilters json.RawMessage `json:"numericFilters"`
}

// resolved is the query after merging params into the explicit fields.
type resolved struct {
	Query       string
	Page        int
	HitsPerPage int
	Facets      []string
	FilterBy    []string
}

// toEngineRequest translates the inbound query to the engine's native
// request. The inbound page is 0-based; the engine's is 1-based. The two
// conventions are deliberate and must not be unified.
func toEngineRequest(q *algoliaQuery) (*engine.SearchRequest, *resolved, error) {
	r, err := resolve(q)
	if err != nil {
		return nil, nil, err
	}

	req := &engine.SearchRequest{
		Query:    r.Query,
		Page:     r.Page + 1,
		PerPage:  r.HitsPerPage,
		FilterBy: strings.Join(r.FilterBy, " && "),
		FacetBy:  r.Facets,
	}
	return req, r, nil
}

func resolve(q *algoliaQuery) (*resolved, error) {
	r := &resolved{HitsPerPage: defaultHitsPerPage}

	if q.Params != "" {
		values, err := url.ParseQuery(q.Params)
		if err != nil {
			return nil, apperrors.InvalidInput("params is not a valid query string")
		}
		r.Query = values.Get("query")
		if v := values.Get("page"); v != "" {
			page, err := strconv.Atoi(v)
			if err != nil || page < 0 {
				return nil, apperrors.InvalidInput("page must be a non-negative integer")
			}
			r.Page = page
		}
		if v := values.Get("hitsPerPage"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return nil, apperrors.InvalidInput("hitsPerPage must be a positive integer")
			}
			r.HitsPerPage = n
		}
		if v := values.Get("facets"); v != "" {
			facets, err := parseFacets([]byte(v))
			if err != nil {
				return nil, err
			}
			r.Facets = facets
		}
		if v := values.Get("facetFilters"); v != "" {
			clauses, err := parseFacetFilters([]byte(v))
			if err != nil {
				return nil, err
			}
			r.FilterBy = append(r.FilterBy, clauses...)
		}
		if v := values.Get("numericFilters"); v != "" {
			clauses, err := parseNumericFilters([]byte(v))
			if err != nil {
				return nil, err
			}
			r.FilterBy = append(r.FilterBy, clauses...)
		}
	}

	if q.Query != nil {
		r.Query = *q.Query
	}
	if q.Page != nil {
		if *q.Page < 0 {
			return nil, apperrors.InvalidInput("page must be a non-negative integer")
		}
		r.Page = *q.Page
	}
	if q.HitsPerPage != nil {
		if *q.HitsPerPage <= 0 {
			return nil, apperrors.InvalidInput("hitsPerPage must be a positive integer")
		}
		r.HitsPerPage = *q.HitsPerPage
	}
	if len(q.Facets) > 0 {
		facets, err := parseFacets(q.Facets)
		if err != nil {
			return nil, err
		}
		r.Facets = facets
	}
	if len(q.FacetFilters) > 0 {
		clauses, err := parseFacetFilters(q.FacetFilters)
		if err != nil {
			return nil, err
		}
		r.FilterBy = append(r.FilterBy, clauses...)
	}
	if len(q.NumericFilters) > 0 {
		clauses, err := parseNumericFilters(q.NumericFilters)
		if err != nil {
			return nil, err
		}
		r.FilterBy = append(r.FilterBy, clauses...)
	}

	return r, nil
}

// parseFacets accepts a JSON array of field names, a single string, or "*",
// which expands to every facetable field.
func parseFacets(raw []byte) ([]string, error) {
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		var single string
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, apperrors.InvalidInput("facets must be a string or an array of strings")
		}
		list = []string{single}
	}

	for _, f := range list {
		if f == "*" {
			return facetableFields, nil
		}
	}
	return list, nil
}

// parseFacetFilters translates the emulated protocol's facetFilters into
// engine filter clauses. The top level is a conjunction; a nested array is
// a disjunction over values of one facet.
func parseFacetFilters(raw []byte) ([]string, error) {
	var top []json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		// A bare "facet:value" string is also accepted.
		var single string
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, apperrors.InvalidInput("facetFilters must be a string or an array")
		}
		top = []json.RawMessage{raw}
	}

	clauses := make([]string, 0, len(top))
	for _, entry := range top {
		var single string
		if err := json.Unmarshal(entry, &single); err == nil {
			clause, err := facetClause([]string{single})
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, clause)
			continue
		}

		var group []string
		if err := json.Unmarshal(entry, &group); err != nil {
			return nil, apperrors.InvalidInput("facetFilters entries must be strings or arrays of strings")
		}
		clause, err := facetClause(group)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
	}
	return clauses, nil
}

// facetClause builds one conjunct from an OR group of "facet:value" pairs.
// All pairs in a group must address the same facet.
func facetClause(group []string) (string, error) {
	if len(group) == 0 {
		return "", apperrors.InvalidInput("facetFilters group must not be empty")
	}

	field := ""
	values := make([]string, 0, len(group))
	for _, pair := range group {
		idx := strings.Index(pair, ":")
		if idx <= 0 || idx == len(pair)-1 {
			return "", apperrors.InvalidInput(fmt.Sprintf("facet filter %q must be facet:value", pair))
		}
		name, value := pair[:idx], pair[idx+1:]
		if strings.HasPrefix(name, "-") {
			return "", apperrors.InvalidInput("negated facet filters are not supported")
		}
		if field == "" {
			field = name
		} else if field != name {
			return "", apperrors.InvalidInput("a facetFilters group must address a single facet")
		}
		values = append(values, value)
	}

	if len(values) == 1 {
		return field + ":=" + values[0], nil
	}
	return field + ":=[" + strings.Join(values, ",") + "]", nil
}

// numericOps in match order: two-character operators first.
var numericOps = []string{"<=", ">=", "!=", "<", ">", "="}

// parseNumericFilters translates numericFilters entries ("field>=100") into
// engine range clauses.
func parseNumericFilters(raw []byte) ([]string, error) {
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		var single string
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, apperrors.InvalidInput("numericFilters must be a string or an array of strings")
		}
		list = []string{single}
	}

	clauses := make([]string, 0, len(list))
	for _, entry := range list {
		clause, err := numericClause(entry)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
	}
	return clauses, nil
}

func numericClause(entry string) (string, error) {
	for _, op := range numericOps {
		idx := strings.Index(entry, op)
		if idx <= 0 {
			continue
		}
		field := strings.TrimSpace(entry[:idx])
		value := strings.TrimSpace(entry[idx+len(op):])
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return "", apperrors.InvalidInput(fmt.Sprintf("numeric filter %q has a non-numeric value", entry))
		}
		switch op {
		case "=":
			return field + ":=" + value, nil
		case "!=":
			return "", apperrors.InvalidInput("numeric != filters are not supported")
		default:
			return field + ":" + op + value, nil
		}
	}
	return "", apperrors.InvalidInput(fmt.Sprintf("numeric filter %q has no operator", entry))
}
