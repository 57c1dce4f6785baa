package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
)

func newTestCollection(backend *MemoryBackend, autoID bool) *Collection {
	return NewCollection(backend, CollectionOptions{
		Schema: NewSchema("docs", "vector", 3, autoID, 32),
		Index:  domain.IndexParams{Metric: domain.MetricIP},
	})
}

func row(doc string, chunk int64, text string, vec ...float32) domain.Row {
	return domain.Row{
		Text:    text,
		DocName: doc,
		DocType: domain.DocTypeTXT,
		ChunkID: chunk,
		Vector:  vec,
	}
}

func TestCollectionEnsureIsIdempotent(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	c := newTestCollection(backend, true)

	state, err := c.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StateAbsent, state)

	require.NoError(t, c.EnsureCollection(ctx))
	schema1, index1, err := backend.Schema(ctx, "docs")
	require.NoError(t, err)

	state, err = c.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StateIndexed, state)

	require.NoError(t, c.EnsureCollection(ctx))
	schema2, index2, err := backend.Schema(ctx, "docs")
	require.NoError(t, err)

	assert.Equal(t, schema1, schema2)
	assert.Equal(t, index1, index2)
	assert.Equal(t, DefaultIndexType, index2.IndexType)
	assert.Equal(t, domain.MetricIP, index2.Metric)
}

func TestCollectionEnsureConcurrent(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	c := newTestCollection(backend, true)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.EnsureCollection(ctx)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestCollectionEnsureDetectsSchemaMismatch(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	require.NoError(t, newTestCollection(backend, true).EnsureCollection(ctx))

	other := NewCollection(backend, CollectionOptions{
		Schema: NewSchema("docs", "vector", 8, true, 32),
		Index:  domain.IndexParams{Metric: domain.MetricIP},
	})
	assert.ErrorIs(t, other.EnsureCollection(ctx), domain.ErrSchemaMismatch)

	cosine := NewCollection(backend, CollectionOptions{
		Schema: NewSchema("docs", "vector", 3, true, 32),
		Index:  domain.IndexParams{Metric: domain.MetricCosine},
	})
	assert.ErrorIs(t, cosine.EnsureCollection(ctx), domain.ErrSchemaMismatch)
}

func TestCollectionEnsureIndexesCreatedCollection(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	require.NoError(t, backend.CreateCollection(ctx, NewSchema("docs", "vector", 3, true, 32)))

	c := newTestCollection(backend, true)
	require.NoError(t, c.EnsureCollection(ctx))

	state, err := c.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StateIndexed, state)
}

func TestCollectionInsertSkipsBlankAndTruncates(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	c := newTestCollection(backend, true)
	require.NoError(t, c.EnsureCollection(ctx))

	long := strings.Repeat("é", 40) // 80 bytes
	n, err := c.Insert(ctx, []domain.Row{
		row("a.txt", 0, "hello", 1, 0, 0),
		row("a.txt", 1, "   \n\t", 0, 1, 0),
		row("a.txt", 2, long, 0, 0, 1),
		{Text: "typed", DocName: strings.Repeat("n", 600), DocType: "averyveryverylongtype", Vector: []float32{1, 1, 0}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, c.Load(ctx))
	hits, err := c.Search(ctx, []float32{0, 0, 1}, 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	var truncated, typed domain.SearchHit
	for _, h := range hits {
		switch {
		case h.ChunkID == 2:
			truncated = h
		case h.Text == "typed":
			typed = h
		}
	}
	assert.Equal(t, strings.Repeat("é", 16), truncated.Text)
	assert.Len(t, typed.DocName, MaxDocNameLength)
	assert.Len(t, string(typed.DocType), MaxDocTypeLength)
}

func TestCollectionInsertRejectsWrongDimension(t *testing.T) {
	ctx := context.Background()
	c := newTestCollection(NewMemoryBackend(), true)
	require.NoError(t, c.EnsureCollection(ctx))

	_, err := c.Insert(ctx, []domain.Row{row("a.txt", 0, "x", 1, 0)})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestCollectionInsertCountBasedKeys(t *testing.T) {
	ctx := context.Background()
	c := newTestCollection(NewMemoryBackend(), false)
	require.NoError(t, c.EnsureCollection(ctx))

	_, err := c.Insert(ctx, []domain.Row{
		row("a.txt", 0, "one", 1, 0, 0),
		row("a.txt", 1, "two", 0, 1, 0),
	})
	require.NoError(t, err)
	_, err = c.Insert(ctx, []domain.Row{
		row("b.txt", 0, "three", 0, 0, 1),
	})
	require.NoError(t, err)

	require.NoError(t, c.Load(ctx))
	hits, err := c.Search(ctx, []float32{0, 0, 1}, 1, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(2), hits[0].ID)
	assert.Equal(t, "three", hits[0].Text)
}

func TestCollectionSearchAbsent(t *testing.T) {
	c := newTestCollection(NewMemoryBackend(), true)

	_, err := c.Search(context.Background(), []float32{1, 0, 0}, 3, nil)
	assert.ErrorIs(t, err, domain.ErrCollectionNotFound)
}

func TestCollectionSearchEmptyCollection(t *testing.T) {
	ctx := context.Background()
	c := newTestCollection(NewMemoryBackend(), true)
	require.NoError(t, c.EnsureCollection(ctx))

	hits, err := c.Search(ctx, []float32{1, 0, 0}, 3, nil)
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
}

func TestCollectionSearchOrdersAndLimits(t *testing.T) {
	ctx := context.Background()
	c := newTestCollection(NewMemoryBackend(), true)
	require.NoError(t, c.EnsureCollection(ctx))

	_, err := c.Insert(ctx, []domain.Row{
		row("a.txt", 0, "low", 0.1, 0, 0),
		row("a.txt", 1, "high", 0.9, 0, 0),
		row("b.txt", 0, "mid", 0.5, 0, 0),
		row("b.txt", 1, "tie", 0.5, 0, 0),
	})
	require.NoError(t, err)
	require.NoError(t, c.Load(ctx))

	hits, err := c.Search(ctx, []float32{1, 0, 0}, 3, nil)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "high", hits[0].Text)
	assert.Equal(t, "mid", hits[1].Text, "ties break by primary key")
	assert.Equal(t, "tie", hits[2].Text)
	assert.InDelta(t, 0.9, hits[0].Score, 1e-6)
}

func TestCollectionSearchProjectsFields(t *testing.T) {
	ctx := context.Background()
	c := newTestCollection(NewMemoryBackend(), true)
	require.NoError(t, c.EnsureCollection(ctx))
	_, err := c.Insert(ctx, []domain.Row{row("a.txt", 4, "body", 1, 0, 0)})
	require.NoError(t, err)

	hits, err := c.Search(ctx, []float32{1, 0, 0}, 1, []string{domain.FieldDocName})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a.txt", hits[0].DocName)
	assert.Empty(t, hits[0].Text)
	assert.Zero(t, hits[0].ChunkID)
	assert.NotZero(t, hits[0].ID)
}

func TestCollectionSearchLoadsIndexedCollection(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	c := newTestCollection(backend, true)
	require.NoError(t, c.EnsureCollection(ctx))
	_, err := c.Insert(ctx, []domain.Row{row("a.txt", 0, "body", 1, 0, 0)})
	require.NoError(t, err)

	// Indexed but never loaded.
	hits, err := c.Search(ctx, []float32{1, 0, 0}, 1, nil)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	state, err := c.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StateLoaded, state)
}

func TestCollectionSearchRebuildsDroppedIndex(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	c := newTestCollection(backend, true)
	require.NoError(t, c.EnsureCollection(ctx))
	_, err := c.Insert(ctx, []domain.Row{row("a.txt", 0, "body", 1, 0, 0)})
	require.NoError(t, err)
	require.NoError(t, c.Load(ctx))

	require.NoError(t, backend.DropIndex(ctx, "docs"))

	hits, err := c.Search(ctx, []float32{1, 0, 0}, 1, nil)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	state, err := c.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StateLoaded, state)
}

// staleBackend reports Loaded but fails searches with a missing index until
// the index is created again.
type staleBackend struct {
	*MemoryBackend
	indexMissing  bool
	createIndexes int
	searches      int
	failCreate    bool
	failRetry     bool
}

func (b *staleBackend) CreateIndex(ctx context.Context, collection string, params domain.IndexParams) error {
	b.createIndexes++
	if b.failCreate {
		return errors.New("index build rejected")
	}
	b.indexMissing = false
	return b.MemoryBackend.CreateIndex(ctx, collection, params)
}

func (b *staleBackend) Search(ctx context.Context, collection string, req domain.SearchRequest) ([]domain.SearchHit, error) {
	b.searches++
	if b.indexMissing || (b.failRetry && b.searches > 1) {
		return nil, domain.ErrIndexNotFound
	}
	return b.MemoryBackend.Search(ctx, collection, req)
}

func newStale(t *testing.T) (*staleBackend, *Collection) {
	t.Helper()
	ctx := context.Background()
	backend := &staleBackend{MemoryBackend: NewMemoryBackend()}
	c := NewCollection(backend, CollectionOptions{
		Schema: NewSchema("docs", "vector", 3, true, 32),
		Index:  domain.IndexParams{Metric: domain.MetricIP},
	})
	require.NoError(t, c.EnsureCollection(ctx))
	_, err := c.Insert(ctx, []domain.Row{row("a.txt", 0, "body", 1, 0, 0)})
	require.NoError(t, err)
	require.NoError(t, c.Load(ctx))

	backend.indexMissing = true
	backend.createIndexes = 0
	backend.searches = 0
	return backend, c
}

func TestCollectionSearchRecoversOnce(t *testing.T) {
	backend, c := newStale(t)

	hits, err := c.Search(context.Background(), []float32{1, 0, 0}, 1, nil)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
	assert.Equal(t, 1, backend.createIndexes)
	assert.Equal(t, 2, backend.searches)
}

func TestCollectionSearchRecoveryFails(t *testing.T) {
	t.Run("index build fails", func(t *testing.T) {
		backend, c := newStale(t)
		backend.failCreate = true

		_, err := c.Search(context.Background(), []float32{1, 0, 0}, 1, nil)
		assert.ErrorIs(t, err, domain.ErrIndexRecoveryFailed)
		assert.Equal(t, 1, backend.searches)
	})

	t.Run("retry fails", func(t *testing.T) {
		backend, c := newStale(t)
		backend.failRetry = true

		_, err := c.Search(context.Background(), []float32{1, 0, 0}, 1, nil)
		assert.ErrorIs(t, err, domain.ErrIndexRecoveryFailed)
		assert.ErrorIs(t, err, domain.ErrIndexNotFound)
		assert.Equal(t, 2, backend.searches, "retries exactly once")
	})
}

func TestCollectionSearchRejectsWrongDimension(t *testing.T) {
	ctx := context.Background()
	c := newTestCollection(NewMemoryBackend(), true)
	require.NoError(t, c.EnsureCollection(ctx))

	_, err := c.Search(ctx, []float32{1, 0}, 1, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestCollectionCount(t *testing.T) {
	ctx := context.Background()
	c := newTestCollection(NewMemoryBackend(), true)

	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, c.EnsureCollection(ctx))
	_, err = c.Insert(ctx, []domain.Row{row("a.txt", 0, "x", 1, 0, 0), row("a.txt", 1, "y", 0, 1, 0)})
	require.NoError(t, err)

	n, err = c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestCollectionLoadAbsent(t *testing.T) {
	c := newTestCollection(NewMemoryBackend(), true)
	assert.ErrorIs(t, c.Load(context.Background()), domain.ErrCollectionNotFound)
}
