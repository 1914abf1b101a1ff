// Package repository defines the catalog mirror contract. The mirror keeps
// a relational copy of the indexed documents for faceted browsing and
// reporting; it is fed by the pipeline and read by the browse service.
package repository

import (
	"context"
	"time"

	"github.com/angelmartinezt1/cs-products-sub000/internal/domain"
)

// Product is one mirrored catalog row.
type Product struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	TitleSEO       string    `json:"title_seo"`
	Brand          string    `json:"brand"`
	SalePrice      float64   `json:"sale_price"`
	ListPrice      float64   `json:"list_price"`
	PercentOff     float64   `json:"percent_off"`
	Stock          int       `json:"stock"`
	IsActive       bool      `json:"is_active"`
	FreeShipping   bool      `json:"free_shipping"`
	SuperExpress   bool      `json:"super_express"`
	RatingAverage  float64   `json:"rating_average"`
	RatingCount    int       `json:"rating_count"`
	RelevanceScore float64   `json:"relevance_score"`
	CategoryLvl0   *string   `json:"category_lvl0"`
	CategoryLvl1   *string   `json:"category_lvl1"`
	CategoryLvl2   *string   `json:"category_lvl2"`
	IndexedAt      time.Time `json:"indexed_at"`
}

// BrowseQuery filters the mirrored catalog. Page is 1-based.
type BrowseQuery struct {
	Brand        string
	CategoryLvl0 string
	PriceMin     *float64 `validate:"omitempty,gte=0"`
	PriceMax     *float64 `validate:"omitempty,gte=0"`
	FreeShipping *bool
	OnlyActive   bool
	Page         int `validate:"gte=0"`
	PerPage      int `validate:"gte=0,lte=100"`
}

// BrowseResult is one page of mirrored products plus the total match count.
type BrowseResult struct {
	Products []Product `json:"products"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PerPage  int       `json:"per_page"`
}

// FacetCounts aggregates the mirrored catalog for the browse sidebar.
type FacetCounts struct {
	Brands       map[string]int `json:"brands"`
	Categories   map[string]int `json:"categories"`
	PriceBuckets map[string]int `json:"price_buckets"`
	FreeShipping map[string]int `json:"free_shipping"`
}

// ProductMirror is the catalog mirror contract.
type ProductMirror interface {
	// UpsertProducts writes a page's worth of documents; existing rows
	// are replaced by id.
	UpsertProducts(ctx context.Context, docs []domain.Document) error

	// Browse lists mirrored products matching the query.
	Browse(ctx context.Context, q BrowseQuery) (*BrowseResult, error)

	// Facets aggregates facet counts over active products.
	Facets(ctx context.Context) (*FacetCounts, error)
}
