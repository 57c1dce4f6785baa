package port

import (
	"context"

	"docrag/internal/domain"
)

// Embedder is the remote embedding function.
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Health reports readiness and the active model.
	Health(ctx context.Context) (domain.EmbedderHealth, error)

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// ProgressFunc is called after each embedding batch completes.
type ProgressFunc func(done, total int)

// BatchEmbedder embeds many texts in bounded batches.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string, progress ProgressFunc) ([][]float32, error)
	Dimension() int
}

// QueryEmbedder embeds a single query string.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}
