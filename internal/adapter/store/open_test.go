package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/config"
	"docrag/internal/adapter/milvus"
	"docrag/internal/domain"
)

func TestOpenDispatchesOnURI(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		b, err := Open(ctx, config.StoreConfig{URI: "memory://"}, nil)
		require.NoError(t, err)
		defer b.Close()
		assert.IsType(t, &MemoryBackend{}, b)
	})

	t.Run("plain path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "vectors.db")
		b, err := Open(ctx, config.StoreConfig{URI: path}, nil)
		require.NoError(t, err)
		defer b.Close()
		assert.IsType(t, &BoltBackend{}, b)
		assert.FileExists(t, path)
	})

	t.Run("file scheme", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "vectors.db")
		b, err := Open(ctx, config.StoreConfig{URI: "file://" + path}, nil)
		require.NoError(t, err)
		defer b.Close()
		assert.FileExists(t, path)
	})

	t.Run("milvus", func(t *testing.T) {
		b, err := Open(ctx, config.StoreConfig{URI: "milvus://localhost:19530", VectorField: "vector"}, nil)
		require.NoError(t, err)
		assert.IsType(t, &milvus.Backend{}, b)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := Open(ctx, config.StoreConfig{}, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})
}

func TestNewCollectionFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Embedding.Dimension = 8
	cfg.Store.Metric = "COSINE"

	c := NewCollectionFromConfig(NewMemoryBackend(), cfg, nil)

	assert.Equal(t, "pdf_embeddings", c.Name())
	assert.Equal(t, 8, c.Schema().Dimension)
	assert.True(t, c.Schema().AutoID)
	assert.Equal(t, domain.MetricCosine, c.IndexParams().Metric)
	assert.Equal(t, DefaultIndexType, c.IndexParams().IndexType)
}
