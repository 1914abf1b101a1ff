package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmartinezt1/cs-products-sub000/internal/domain"
	"github.com/angelmartinezt1/cs-products-sub000/internal/engine/memory"
)

func docsN(n int) []domain.Document {
	docs := make([]domain.Document, n)
	for i := range docs {
		docs[i] = domain.Document{ID: string(rune('a' + i)), Title: "Doc"}
	}
	return docs
}

func newTestUploader(eng *memory.Engine, batchSize int, dryRun bool) (*Uploader, *SampleStore) {
	samples := NewSampleStore("/tmp", "unused", false, discardLogger())
	return NewUploader(eng, batchSize, samples, discardLogger(), dryRun), samples
}

func TestUploader_Batches(t *testing.T) {
	u, _ := newTestUploader(memory.NewEngine("products"), 3, false)

	assert.Nil(t, u.Batches(nil))

	batches := u.Batches(docsN(7))
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 3)
	assert.Len(t, batches[1], 3)
	assert.Len(t, batches[2], 1)
}

func TestUploader_Upload_AllSucceed(t *testing.T) {
	eng := memory.NewEngine("products")
	u, _ := newTestUploader(eng, 10, false)

	res := u.Upload(context.Background(), docsN(4))
	assert.Equal(t, 4, res.Indexed)
	assert.Equal(t, 0, res.Failed)
	assert.False(t, res.Transport)
	assert.Equal(t, 4, eng.Len())
}

func TestUploader_Upload_PerDocumentFailure(t *testing.T) {
	eng := memory.NewEngine("products")
	eng.FailDocument("b", "field X bad")
	u, _ := newTestUploader(eng, 10, false)

	res := u.Upload(context.Background(), docsN(3))
	assert.Equal(t, 2, res.Indexed)
	assert.Equal(t, 1, res.Failed)
	assert.False(t, res.Transport)
	require.Len(t, res.Results, 3)
	assert.True(t, res.Results[0].Success)
	assert.False(t, res.Results[1].Success)
	assert.Equal(t, "field X bad", res.Results[1].Error)
}

func TestUploader_Upload_TransportFailure(t *testing.T) {
	eng := memory.NewEngine("products")
	eng.FailNextImport(errors.New("connection refused"))
	u, _ := newTestUploader(eng, 10, false)

	res := u.Upload(context.Background(), docsN(5))
	assert.True(t, res.Transport)
	assert.Equal(t, 5, res.Failed)
	assert.Equal(t, 0, res.Indexed)
	assert.Empty(t, res.Results)
	require.Error(t, res.Err)
}

func TestUploader_DryRunSkipsEngine(t *testing.T) {
	eng := memory.NewEngine("products")
	u, _ := newTestUploader(eng, 10, true)

	res := u.Upload(context.Background(), docsN(3))
	assert.Equal(t, 3, res.Indexed)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 0, eng.Len(), "dry run must not reach the engine")
}

func TestUploader_SamplesFailingDocuments(t *testing.T) {
	eng := memory.NewEngine("products")
	eng.FailDocument("a", "bad schema")

	samples := NewSampleStore(t.TempDir(), "stamp", true, discardLogger())
	u := NewUploader(eng, 10, samples, discardLogger(), false)

	u.Upload(context.Background(), docsN(2))
	require.Equal(t, 1, samples.Count())
}
