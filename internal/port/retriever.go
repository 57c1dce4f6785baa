package port

import (
	"context"

	"docrag/internal/domain"
)

// Retriever searches indexed content.
type Retriever interface {
	SearchChunks(ctx context.Context, query string, topK int) ([]domain.SearchHit, error)
	SearchGroupedByDocument(ctx context.Context, query string, opts domain.GroupOptions) ([]domain.DocumentAggregate, error)
}
