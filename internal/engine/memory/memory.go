// Package memory is an in-memory engine implementation used by tests and
// dry runs. It honors the same upsert, search and facet semantics as the
// hosted engine, on a small filter grammar subset.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/angelmartinezt1/cs-products-sub000/internal/domain"
	"github.com/angelmartinezt1/cs-products-sub000/internal/engine"
)

// Engine stores documents keyed by id. Fault injection hooks let tests
// simulate transport and per-document failures.
type Engine struct {
	mu     sync.RWMutex
	name   string
	docs   map[string]domain.Document
	fields map[string]map[string]any
	order  []string

	importErr error
	docErrs   map[string]string
}

var _ engine.Engine = (*Engine)(nil)

// NewEngine creates an empty in-memory engine for the named collection.
func NewEngine(name string) *Engine {
	return &Engine{
		name:    name,
		docs:    make(map[string]domain.Document),
		fields:  make(map[string]map[string]any),
		docErrs: make(map[string]string),
	}
}

// FailNextImport makes the next Import call fail at transport level.
func (e *Engine) FailNextImport(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.importErr = err
}

// FailDocument makes imports of the given id report a per-document error.
func (e *Engine) FailDocument(id, message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.docErrs[id] = message
}

// Health always succeeds.
func (e *Engine) Health(context.Context) error { return nil }

// Collection reports the production schema shape: id as string primary key
// and relevance_score as the default sorting field.
func (e *Engine) Collection(context.Context) (*engine.Collection, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return &engine.Collection{
		Name:         e.name,
		NumDocuments: int64(len(e.docs)),
		Fields: []engine.Field{
			{Name: "id", Type: "string"},
			{Name: "title", Type: "string"},
			{Name: "brand", Type: "string", Facet: true},
			{Name: "categories.lvl0", Type: "string", Optional: true, Facet: true},
			{Name: "categories.lvl1", Type: "string", Optional: true, Facet: true},
			{Name: "categories.lvl2", Type: "string", Optional: true, Facet: true},
			{Name: "sale_price", Type: "float"},
			{Name: "is_active", Type: "bool", Facet: true},
			{Name: "free_shipping", Type: "bool", Facet: true},
			{Name: "relevance_score", Type: "float"},
		},
		DefaultSortingField: "relevance_score",
	}, nil
}

// Import upserts documents, one aligned result per document.
func (e *Engine) Import(_ context.Context, docs []domain.Document) ([]engine.ImportResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.importErr != nil {
		err := e.importErr
		e.importErr = nil
		return nil, err
	}

	results := make([]engine.ImportResult, 0, len(docs))
	for _, doc := range docs {
		if doc.ID == "" {
			results = append(results, engine.ImportResult{Success: false, Error: "document missing id", Code: 400})
			continue
		}
		if msg, ok := e.docErrs[doc.ID]; ok {
			results = append(results, engine.ImportResult{Success: false, Error: msg, Code: 400})
			continue
		}
		if _, exists := e.docs[doc.ID]; !exists {
			e.order = append(e.order, doc.ID)
		}
		e.docs[doc.ID] = doc
		e.fields[doc.ID] = flatten(doc)
		results = append(results, engine.ImportResult{Success: true})
	}
	return results, nil
}

// Search matches the query against title and brand, applies the filter
// expression and computes facet counts over the filtered set. Pages are
// 1-based.
func (e *Engine) Search(_ context.Context, req *engine.SearchRequest) (*engine.SearchResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	filters, err := parseFilter(req.FilterBy)
	if err != nil {
		return nil, err
	}

	matched := make([]domain.Document, 0, len(e.order))
	facets := make(map[string]map[string]int, len(req.FacetBy))
	for _, f := range req.FacetBy {
		facets[f] = make(map[string]int)
	}

	for _, id := range e.order {
		doc := e.docs[id]
		values := e.fields[id]
		if !matchesQuery(doc, req.Query) {
			continue
		}
		if !matchesFilters(values, filters) {
			continue
		}
		matched = append(matched, doc)
		for _, f := range req.FacetBy {
			if v, ok := values[f]; ok && v != nil {
				facets[f][fieldString(v)]++
			}
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].RelevanceScore > matched[j].RelevanceScore
	})

	perPage := req.PerPage
	if perPage <= 0 {
		perPage = 10
	}
	page := req.Page
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * perPage
	if start > len(matched) {
		start = len(matched)
	}
	end := start + perPage
	if end > len(matched) {
		end = len(matched)
	}

	return &engine.SearchResult{
		Found:  len(matched),
		Page:   page,
		Hits:   matched[start:end],
		Facets: facets,
	}, nil
}

// Delete removes a document by id.
func (e *Engine) Delete(_ context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.docs[id]; !ok {
		return engine.ErrDocumentNotFound
	}
	delete(e.docs, id)
	delete(e.fields, id)
	for i, existing := range e.order {
		if existing == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	return nil
}

// Len reports the number of stored documents.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.docs)
}

// Get returns a stored document by id.
func (e *Engine) Get(id string) (domain.Document, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	doc, ok := e.docs[id]
	return doc, ok
}

func matchesQuery(doc domain.Document, query string) bool {
	q := strings.TrimSpace(query)
	if q == "" || q == "*" {
		return true
	}
	q = strings.ToLower(q)
	return strings.Contains(strings.ToLower(doc.Title), q) ||
		strings.Contains(strings.ToLower(doc.Brand), q)
}

// filter is one parsed clause of the filter_by expression.
type filter struct {
	field  string
	op     string
	values []string
}

// parseFilter understands the subset of the engine's grammar the query
// services emit: `field:=value`, `field:=[a,b]`, and numeric comparisons
// `field:>n`, `field:>=n`, `field:<n`, `field:<=n`, joined by ` && `.
func parseFilter(expr string) ([]filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}

	clauses := strings.Split(expr, "&&")
	filters := make([]filter, 0, len(clauses))
	for _, clause := range clauses {
		clause = strings.TrimSpace(clause)
		idx := strings.Index(clause, ":")
		if idx <= 0 || idx == len(clause)-1 {
			return nil, fmt.Errorf("memory: bad filter clause %q", clause)
		}
		field := strings.TrimSpace(clause[:idx])
		rest := strings.TrimSpace(clause[idx+1:])

		var op string
		switch {
		case strings.HasPrefix(rest, "="):
			op, rest = "=", rest[1:]
		case strings.HasPrefix(rest, ">="):
			op, rest = ">=", rest[2:]
		case strings.HasPrefix(rest, "<="):
			op, rest = "<=", rest[2:]
		case strings.HasPrefix(rest, ">"):
			op, rest = ">", rest[1:]
		case strings.HasPrefix(rest, "<"):
			op, rest = "<", rest[1:]
		default:
			return nil, fmt.Errorf("memory: bad filter operator in %q", clause)
		}

		rest = strings.TrimSpace(rest)
		var values []string
		if strings.HasPrefix(rest, "[") && strings.HasSuffix(rest, "]") {
			for _, v := range strings.Split(rest[1:len(rest)-1], ",") {
				values = append(values, strings.Trim(strings.TrimSpace(v), "`"))
			}
		} else {
			values = []string{strings.Trim(rest, "`")}
		}
		filters = append(filters, filter{field: field, op: op, values: values})
	}
	return filters, nil
}

func matchesFilters(values map[string]any, filters []filter) bool {
	for _, f := range filters {
		v, ok := values[f.field]
		if !ok || v == nil {
			return false
		}
		if !matchesClause(v, f) {
			return false
		}
	}
	return true
}

func matchesClause(v any, f filter) bool {
	if f.op == "=" {
		actual := fieldString(v)
		for _, want := range f.values {
			if strings.EqualFold(actual, want) {
				return true
			}
		}
		return false
	}

	actual, ok := toFloat(v)
	if !ok {
		return false
	}
	want, err := strconv.ParseFloat(f.values[0], 64)
	if err != nil {
		return false
	}
	switch f.op {
	case ">":
		return actual > want
	case ">=":
		return actual >= want
	case "<":
		return actual < want
	case "<=":
		return actual <= want
	}
	return false
}

// flatten projects a document to a generic field map, so filters and facets
// can address any scalar by its JSON name, dotted category scalars included.
func flatten(doc domain.Document) map[string]any {
	raw, err := json.Marshal(doc)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{}
	}
	return m
}

func fieldString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
