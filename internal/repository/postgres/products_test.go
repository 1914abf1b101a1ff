package postgres

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmartinezt1/cs-products-sub000/internal/domain"
	"github.com/angelmartinezt1/cs-products-sub000/internal/repository"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *ProductRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewProductRepository(mock, slog.New(slog.DiscardHandler))
}

func strPtr(s string) *string { return &s }

// pgxmock matches argument counts even without WithArgs, so batch exec
// expectations need one wildcard per upsert placeholder.
func anyUpsertArgs() []any {
	args := make([]any, 18)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestUpsertProducts(t *testing.T) {
	mock, repo := newMockRepo(t)

	docs := []domain.Document{
		{ID: "1", Title: "A", Brand: "Sony", CategoriesLvl0: strPtr("electrónica")},
		{ID: "2", Title: "B", Brand: "JBL"},
	}

	batch := mock.ExpectBatch()
	batch.ExpectExec("INSERT INTO products").
		WithArgs(anyUpsertArgs()...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	batch.ExpectExec("INSERT INTO products").
		WithArgs(anyUpsertArgs()...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.UpsertProducts(context.Background(), docs))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertProducts_EmptyIsNoop(t *testing.T) {
	mock, repo := newMockRepo(t)
	require.NoError(t, repo.UpsertProducts(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertProducts_PropagatesError(t *testing.T) {
	mock, repo := newMockRepo(t)

	batch := mock.ExpectBatch()
	batch.ExpectExec("INSERT INTO products").
		WithArgs(anyUpsertArgs()...).
		WillReturnError(assert.AnError)

	err := repo.UpsertProducts(context.Background(), []domain.Document{{ID: "1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert product 1")
}

func browseRow(id string) []any {
	return []any{
		id, "Title " + id, "title-" + id, "Sony",
		100.0, 120.0, 16.7,
		3, true, true, false,
		4.5, 10, 80.0,
		strPtr("electrónica"), strPtr("electrónica > audio"), strPtr("electrónica > audio > audífonos"),
		time.Now().UTC(),
	}
}

func browseColumnsList() []string {
	return []string{
		"id", "title", "title_seo", "brand", "sale_price", "list_price", "percent_off",
		"stock", "is_active", "free_shipping", "super_express",
		"rating_average", "rating_count", "relevance_score",
		"category_lvl0", "category_lvl1", "category_lvl2", "indexed_at",
	}
}

func TestBrowse_FiltersAndPagination(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM products WHERE is_active = TRUE AND brand = \$1`).
		WithArgs("Sony").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(41))

	mock.ExpectQuery(`SELECT .* FROM products WHERE is_active = TRUE AND brand = \$1 ORDER BY relevance_score DESC, id LIMIT \$2 OFFSET \$3`).
		WithArgs("Sony", 20, 20).
		WillReturnRows(pgxmock.NewRows(browseColumnsList()).
			AddRow(browseRow("1")...).
			AddRow(browseRow("2")...))

	res, err := repo.Browse(context.Background(), repository.BrowseQuery{
		Brand:      "Sony",
		OnlyActive: true,
		Page:       2,
		PerPage:    20,
	})
	require.NoError(t, err)

	assert.Equal(t, 41, res.Total)
	assert.Equal(t, 2, res.Page)
	require.Len(t, res.Products, 2)
	assert.Equal(t, "1", res.Products[0].ID)
	assert.Equal(t, "electrónica", *res.Products[0].CategoryLvl0)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBrowse_DefaultsPageAndSize(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM products`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT .* FROM products ORDER BY relevance_score DESC, id LIMIT \$1 OFFSET \$2`).
		WithArgs(20, 0).
		WillReturnRows(pgxmock.NewRows(browseColumnsList()))

	res, err := repo.Browse(context.Background(), repository.BrowseQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 20, res.PerPage)
	assert.Empty(t, res.Products)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFacets(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery(`SELECT 'brand' AS facet`).
		WillReturnRows(pgxmock.NewRows([]string{"facet", "value", "n"}).
			AddRow("brand", "Sony", 12).
			AddRow("brand", "JBL", 4).
			AddRow("category", "electrónica", 16).
			AddRow("price", "0-500", 9).
			AddRow("price", "5000+", 2).
			AddRow("free_shipping", "true", 11))

	counts, err := repo.Facets(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 12, counts.Brands["Sony"])
	assert.Equal(t, 16, counts.Categories["electrónica"])
	assert.Equal(t, 9, counts.PriceBuckets["0-500"])
	assert.Equal(t, 11, counts.FreeShipping["true"])
	require.NoError(t, mock.ExpectationsWereMet())
}
