package port

import (
	"context"

	"docrag/internal/domain"
)

// VectorBackend is the raw vector database. Implementations report a
// missing index by wrapping domain.ErrIndexNotFound and a missing
// collection by wrapping domain.ErrCollectionNotFound.
type VectorBackend interface {
	Describe(ctx context.Context, collection string) (domain.CollectionState, error)

	// Schema returns the stored schema of an existing collection.
	Schema(ctx context.Context, collection string) (domain.CollectionSchema, domain.IndexParams, error)

	CreateCollection(ctx context.Context, schema domain.CollectionSchema) error

	CreateIndex(ctx context.Context, collection string, params domain.IndexParams) error

	LoadCollection(ctx context.Context, collection string) error

	// Insert appends rows and returns their primary keys.
	Insert(ctx context.Context, collection string, rows []domain.Row) ([]int64, error)

	// Search returns up to req.TopK hits ordered by descending score.
	Search(ctx context.Context, collection string, req domain.SearchRequest) ([]domain.SearchHit, error)

	Count(ctx context.Context, collection string) (int64, error)

	Close() error
}

// VectorStore is the collection-level API used by the indexer and retriever.
type VectorStore interface {
	EnsureCollection(ctx context.Context) error
	Insert(ctx context.Context, rows []domain.Row) (int, error)
	Load(ctx context.Context) error
	Search(ctx context.Context, vector []float32, topK int, outputFields []string) ([]domain.SearchHit, error)
	State(ctx context.Context) (domain.CollectionState, error)
	Count(ctx context.Context) (int64, error)
}
