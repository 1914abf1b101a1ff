package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmartinezt1/cs-products-sub000/internal/domain"
)

func TestSampleStore_DisabledDiscards(t *testing.T) {
	dir := t.TempDir()
	store := NewSampleStore(dir, "20260801-120000", false, discardLogger())

	store.Add(domain.ErrorSample{ProductID: "1", Error: "boom"})
	require.NoError(t, store.Flush())

	assert.Equal(t, 0, store.Count())
	assert.Empty(t, store.Path())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSampleStore_FlushesEveryTenth(t *testing.T) {
	store := NewSampleStore(t.TempDir(), "20260801-120000", true, discardLogger())

	for i := 0; i < 9; i++ {
		store.Add(domain.ErrorSample{ProductID: fmt.Sprintf("%d", i), Error: "bad", Phase: domain.PhaseIndexing})
	}
	_, err := os.Stat(store.Path())
	require.True(t, os.IsNotExist(err), "no flush before the tenth sample")

	store.Add(domain.ErrorSample{ProductID: "9", Error: "bad", Phase: domain.PhaseIndexing})

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	var flushed []domain.ErrorSample
	require.NoError(t, json.Unmarshal(data, &flushed))
	assert.Len(t, flushed, 10)
}

func TestSampleStore_FinalFlushWritesRemainder(t *testing.T) {
	store := NewSampleStore(t.TempDir(), "20260801-120000", true, discardLogger())

	store.Capture(domain.PhaseTransformation, domain.RawProduct{
		"title":   "Producto X",
		"brand":   "ACME",
		"pricing": map[string]any{"list_price": 100},
	}, "42", "missing id")
	require.NoError(t, store.Flush())

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	var flushed []domain.ErrorSample
	require.NoError(t, json.Unmarshal(data, &flushed))
	require.Len(t, flushed, 1)

	sample := flushed[0]
	assert.Equal(t, "42", sample.ProductID)
	assert.Equal(t, "missing id", sample.Error)
	assert.Equal(t, domain.PhaseTransformation, sample.Phase)
	assert.Equal(t, "Producto X", sample.Title)
	assert.Equal(t, "ACME", sample.Product.Brand)
	assert.NotNil(t, sample.Product.Pricing)
	assert.False(t, sample.Timestamp.IsZero())
}
