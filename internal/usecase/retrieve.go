package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"docrag/internal/domain"
	"docrag/internal/logger"
	"docrag/internal/port"
)

const (
	DefaultTopK         = 5
	DefaultTopDocs      = 5
	DefaultChunksPerDoc = 3
	DefaultOversample   = 80
)

var _ port.Retriever = (*Retriever)(nil)

type RetrieverOptions struct {
	TopK         int
	TopDocs      int
	ChunksPerDoc int
	Oversample   int
	Logger       *slog.Logger
}

// Retriever answers similarity queries against the vector store.
type Retriever struct {
	embedder port.QueryEmbedder
	store    port.VectorStore
	opts     RetrieverOptions
	logger   *slog.Logger
}

func NewRetriever(embedder port.QueryEmbedder, store port.VectorStore, opts RetrieverOptions) *Retriever {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.TopDocs <= 0 {
		opts.TopDocs = DefaultTopDocs
	}
	if opts.ChunksPerDoc <= 0 {
		opts.ChunksPerDoc = DefaultChunksPerDoc
	}
	if opts.Oversample <= 0 {
		opts.Oversample = DefaultOversample
	}
	return &Retriever{
		embedder: embedder,
		store:    store,
		opts:     opts,
		logger:   logger.OrDefault(opts.Logger),
	}
}

// SearchChunks returns the topK most similar chunks.
func (u *Retriever) SearchChunks(ctx context.Context, query string, topK int) ([]domain.SearchHit, error) {
	if topK <= 0 {
		topK = u.opts.TopK
	}
	return u.search(ctx, query, topK)
}

// SearchGroupedByDocument over-fetches chunks, groups them by document and
// keeps the best documents. Fetching max(oversample, topDocs*chunksPerDoc*2)
// hits keeps one dominant document from crowding out the rest.
func (u *Retriever) SearchGroupedByDocument(ctx context.Context, query string, opts domain.GroupOptions) ([]domain.DocumentAggregate, error) {
	if opts.TopDocs <= 0 {
		opts.TopDocs = u.opts.TopDocs
	}
	if opts.ChunksPerDoc <= 0 {
		opts.ChunksPerDoc = u.opts.ChunksPerDoc
	}
	if opts.Oversample <= 0 {
		opts.Oversample = u.opts.Oversample
	}

	limit := max(opts.Oversample, opts.TopDocs*opts.ChunksPerDoc*2)
	hits, err := u.search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	docs := GroupByDocument(hits, opts.TopDocs, opts.ChunksPerDoc)
	u.logger.Debug("grouped hits", "hits", len(hits), "documents", len(docs))
	return docs, nil
}

func (u *Retriever) search(ctx context.Context, query string, topK int) ([]domain.SearchHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidArgument)
	}

	vector, err := u.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", query, err)
	}

	hits, err := u.store.Search(ctx, vector, topK, domain.DefaultOutputFields)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", query, err)
	}
	return hits, nil
}

// GroupByDocument buckets hits by document name (blank names go to
// "unknown"), keeps the best chunksPerDoc per document, scores each document by
// its best chunk and returns the topDocs best documents. Ties are broken by
// document name.
func GroupByDocument(hits []domain.SearchHit, topDocs, chunksPerDoc int) []domain.DocumentAggregate {
	groups := make(map[string][]domain.SearchHit)
	for _, h := range hits {
		name := strings.TrimSpace(h.DocName)
		if name == "" {
			name = domain.UnknownDocument
		}
		groups[name] = append(groups[name], h)
	}

	docs := make([]domain.DocumentAggregate, 0, len(groups))
	for name, chunks := range groups {
		sort.SliceStable(chunks, func(i, j int) bool {
			return chunks[i].Score > chunks[j].Score
		})
		if chunksPerDoc > 0 && len(chunks) > chunksPerDoc {
			chunks = chunks[:chunksPerDoc]
		}
		docs = append(docs, domain.DocumentAggregate{
			DocName: name,
			Score:   chunks[0].Score,
			Chunks:  chunks,
		})
	}

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Score != docs[j].Score {
			return docs[i].Score > docs[j].Score
		}
		return docs[i].DocName < docs[j].DocName
	})

	if topDocs > 0 && len(docs) > topDocs {
		docs = docs[:topDocs]
	}
	return docs
}
