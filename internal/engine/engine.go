// Package engine defines the search engine abstraction used by the indexing
// pipeline and the query services.
package engine

import (
	"context"
	"errors"

	"github.com/angelmartinezt1/cs-products-sub000/internal/domain"
)

// ErrDocumentNotFound is returned by Delete for unknown document ids.
var ErrDocumentNotFound = errors.New("engine: document not found")

// ImportResult is the per-document outcome of a bulk upsert, aligned 1:1
// with the submitted order.
type ImportResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// Field describes one declared field of the collection schema.
type Field struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Optional bool   `json:"optional"`
	Facet    bool   `json:"facet,omitempty"`
}

// Collection is the engine's collection metadata.
type Collection struct {
	Name                string  `json:"name"`
	NumDocuments        int64   `json:"num_documents"`
	Fields              []Field `json:"fields"`
	DefaultSortingField string  `json:"default_sorting_field"`
}

// PrimaryKeyField returns the name of the string field serving as the
// collection's primary key, or "" when none is declared.
func (c *Collection) PrimaryKeyField() string {
	for _, f := range c.Fields {
		if f.Name == "id" && f.Type == "string" {
			return f.Name
		}
	}
	return ""
}

// SearchRequest is an engine-native query. Page is 1-based.
type SearchRequest struct {
	Query    string
	Page     int
	PerPage  int
	FilterBy string
	FacetBy  []string
	SortBy   string
}

// SearchResult is an engine-native result page. Facets maps field name to
// value counts.
type SearchResult struct {
	Found  int
	Page   int
	Hits   []domain.Document
	Facets map[string]map[string]int
	TookMS int64
}

// Engine is the search engine contract. Import never fails for
// per-document errors; those surface in the aligned result slice.
type Engine interface {
	// Health reports whether the engine is reachable and ready.
	Health(ctx context.Context) error

	// Collection returns the collection metadata, used at startup to
	// verify the schema's primary key and at runtime for counts.
	Collection(ctx context.Context) (*Collection, error)

	// Import bulk-upserts documents and returns one result per document
	// in submission order. A returned error is transport-level and means
	// nothing in the batch is known to be durable.
	Import(ctx context.Context, docs []domain.Document) ([]ImportResult, error)

	// Search runs an engine-native query.
	Search(ctx context.Context, req *SearchRequest) (*SearchResult, error)

	// Delete removes one document by id.
	Delete(ctx context.Context, id string) error
}
