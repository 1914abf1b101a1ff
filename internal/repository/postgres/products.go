// Package postgres implements the catalog mirror on PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/angelmartinezt1/cs-products-sub000/internal/domain"
	"github.com/angelmartinezt1/cs-products-sub000/internal/repository"
)

// DB is the subset of pgxpool.Pool the repository uses; pgxmock satisfies
// it in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// ProductRepository mirrors indexed documents into the products table.
type ProductRepository struct {
	db     DB
	logger *slog.Logger
}

var _ repository.ProductMirror = (*ProductRepository)(nil)

// NewProductRepository creates a repository backed by the given pool.
func NewProductRepository(db DB, logger *slog.Logger) *ProductRepository {
	return &ProductRepository{db: db, logger: logger}
}

const upsertProductSQL = `
	INSERT INTO products (
		id, title, title_seo, brand, sale_price, list_price, percent_off,
		stock, is_active, free_shipping, super_express,
		rating_average, rating_count, relevance_score,
		category_lvl0, category_lvl1, category_lvl2, indexed_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	ON CONFLICT (id) DO UPDATE SET
		title = EXCLUDED.title,
		title_seo = EXCLUDED.title_seo,
		brand = EXCLUDED.brand,
		sale_price = EXCLUDED.sale_price,
		list_price = EXCLUDED.list_price,
		percent_off = EXCLUDED.percent_off,
		stock = EXCLUDED.stock,
		is_active = EXCLUDED.is_active,
		free_shipping = EXCLUDED.free_shipping,
		super_express = EXCLUDED.super_express,
		rating_average = EXCLUDED.rating_average,
		rating_count = EXCLUDED.rating_count,
		relevance_score = EXCLUDED.relevance_score,
		category_lvl0 = EXCLUDED.category_lvl0,
		category_lvl1 = EXCLUDED.category_lvl1,
		category_lvl2 = EXCLUDED.category_lvl2,
		indexed_at = EXCLUDED.indexed_at`

// UpsertProducts writes documents in one batch round trip.
func (r *ProductRepository) UpsertProducts(ctx context.Context, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, doc := range docs {
		batch.Queue(upsertProductSQL,
			doc.ID, doc.Title, doc.TitleSEO, doc.Brand,
			doc.SalePrice, doc.ListPrice, doc.PercentOff,
			doc.Stock, doc.IsActive, doc.FreeShipping, doc.SuperExpress,
			doc.RatingAverage, doc.RatingCount, doc.RelevanceScore,
			doc.CategoriesLvl0, doc.CategoriesLvl1, doc.CategoriesLvl2, now,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for i := range docs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert product %s: %w", docs[i].ID, err)
		}
	}
	return nil
}

const browseColumns = `
	id, title, title_seo, brand, sale_price, list_price, percent_off,
	stock, is_active, free_shipping, super_express,
	rating_average, rating_count, relevance_score,
	category_lvl0, category_lvl1, category_lvl2, indexed_at`

// Browse lists mirrored products ordered by relevance score.
func (r *ProductRepository) Browse(ctx context.Context, q repository.BrowseQuery) (*repository.BrowseResult, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PerPage <= 0 {
		q.PerPage = 20
	}

	where, args := buildBrowseWhere(q)

	var total int
	countSQL := "SELECT COUNT(*) FROM products" + where
	if err := r.db.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	listSQL := fmt.Sprintf(
		"SELECT %s FROM products%s ORDER BY relevance_score DESC, id LIMIT $%d OFFSET $%d",
		browseColumns, where, len(args)+1, len(args)+2,
	)
	args = append(args, q.PerPage, (q.Page-1)*q.PerPage)

	rows, err := r.db.Query(ctx, listSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]repository.Product, 0, q.PerPage)
	for rows.Next() {
		var p repository.Product
		err := rows.Scan(
			&p.ID, &p.Title, &p.TitleSEO, &p.Brand,
			&p.SalePrice, &p.ListPrice, &p.PercentOff,
			&p.Stock, &p.IsActive, &p.FreeShipping, &p.SuperExpress,
			&p.RatingAverage, &p.RatingCount, &p.RelevanceScore,
			&p.CategoryLvl0, &p.CategoryLvl1, &p.CategoryLvl2, &p.IndexedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	return &repository.BrowseResult{
		Products: products,
		Total:    total,
		Page:     q.Page,
		PerPage:  q.PerPage,
	}, nil
}

func buildBrowseWhere(q repository.BrowseQuery) (string, []any) {
	var clauses []string
	var args []any

	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if q.OnlyActive {
		clauses = append(clauses, "is_active = TRUE")
	}
	if q.Brand != "" {
		add("brand = $%d", q.Brand)
	}
	if q.CategoryLvl0 != "" {
		add("category_lvl0 = $%d", q.CategoryLvl0)
	}
	if q.PriceMin != nil {
		add("sale_price >= $%d", *q.PriceMin)
	}
	if q.PriceMax != nil {
		add("sale_price <= $%d", *q.PriceMax)
	}
	if q.FreeShipping != nil {
		add("free_shipping = $%d", *q.FreeShipping)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

const facetSQL = `
	SELECT 'brand' AS facet, brand AS value, COUNT(*) AS n
	FROM products WHERE is_active AND brand <> '' GROUP BY brand
	UNION ALL
	SELECT 'category', category_lvl0, COUNT(*)
	FROM products WHERE is_active AND category_lvl0 IS NOT NULL GROUP BY category_lvl0
	UNION ALL
	SELECT 'price', CASE
		WHEN sale_price < 500 THEN '0-500'
		WHEN sale_price < 1000 THEN '500-1000'
		WHEN sale_price < 5000 THEN '1000-5000'
		ELSE '5000+'
	END, COUNT(*)
	FROM products WHERE is_active GROUP BY 2
	UNION ALL
	SELECT 'free_shipping', CASE WHEN free_shipping THEN 'true' ELSE 'false' END, COUNT(*)
	FROM products WHERE is_active GROUP BY 2`

// Facets aggregates browse facet counts over active products.
func (r *ProductRepository) Facets(ctx context.Context) (*repository.FacetCounts, error) {
	rows, err := r.db.Query(ctx, facetSQL)
	if err != nil {
		return nil, fmt.Errorf("query facets: %w", err)
	}
	defer rows.Close()

	counts := &repository.FacetCounts{
		Brands:       make(map[string]int),
		Categories:   make(map[string]int),
		PriceBuckets: make(map[string]int),
		FreeShipping: make(map[string]int),
	}

	for rows.Next() {
		var facet, value string
		var n int
		if err := rows.Scan(&facet, &value, &n); err != nil {
			return nil, fmt.Errorf("scan facet row: %w", err)
		}
		switch facet {
		case "brand":
			counts.Brands[value] = n
		case "category":
			counts.Categories[value] = n
		case "price":
			counts.PriceBuckets[value] = n
		case "free_shipping":
			counts.FreeShipping[value] = n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate facet rows: %w", err)
	}
	return counts, nil
}
