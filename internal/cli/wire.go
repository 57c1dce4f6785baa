package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"docrag/config"
	"docrag/internal/adapter/cache"
	"docrag/internal/adapter/chunker"
	"docrag/internal/adapter/embedding"
	"docrag/internal/adapter/extractor"
	"docrag/internal/adapter/fs"
	"docrag/internal/adapter/llm"
	"docrag/internal/adapter/store"
	"docrag/internal/domain"
	"docrag/internal/port"
	"docrag/internal/usecase"
)

// services holds the components a command needs, built from config.
type services struct {
	cfg        *config.Config
	logger     *slog.Logger
	backend    port.VectorBackend
	collection *store.Collection
	gateway    *embedding.Gateway
	indexer    *usecase.Indexer
	retriever  *usecase.Retriever
}

func openServices(ctx context.Context, cfg *config.Config, log *slog.Logger) (*services, error) {
	embedder, err := newEmbedder(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	backend, err := store.Open(ctx, cfg.Store, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}

	gateway := embedding.NewGateway(embedder, cfg.Embedding.Dimension, embedding.GatewayOptions{
		BatchSize:         cfg.Embedding.BatchSize,
		Workers:           cfg.Embedding.Workers,
		BatchTimeout:      config.Seconds(cfg.Embedding.BatchTimeoutSecs, embedding.DefaultBatchTimeout),
		QueryTimeout:      config.Seconds(cfg.Embedding.QueryTimeoutSecs, embedding.DefaultQueryTimeout),
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
		Cache:             cache.NewVectorCache(cfg.Embedding.CacheSize, config.Seconds(cfg.Embedding.CacheTTLSecs, 10*time.Minute)),
		Logger:            log,
	})

	collection := store.NewCollectionFromConfig(backend, cfg, log)

	indexer := usecase.NewIndexer(
		extractor.New(),
		chunker.NewWordChunker(cfg.Index.ChunkSize, cfg.Index.ChunkOverlap),
		gateway,
		collection,
		fs.NewWalker(cfg.Index.Includes, cfg.Index.Excludes),
		log,
	)

	retriever := usecase.NewRetriever(gateway, collection, usecase.RetrieverOptions{
		TopK:         cfg.Retrieve.TopK,
		TopDocs:      cfg.Retrieve.TopDocs,
		ChunksPerDoc: cfg.Retrieve.ChunksPerDoc,
		Oversample:   cfg.Retrieve.Oversample,
		Logger:       log,
	})

	return &services{
		cfg:        cfg,
		logger:     log,
		backend:    backend,
		collection: collection,
		gateway:    gateway,
		indexer:    indexer,
		retriever:  retriever,
	}, nil
}

func (s *services) Close() error {
	return s.backend.Close()
}

// answerer builds the generation client and answer use case.
func (s *services) answerer() (*usecase.Answerer, error) {
	gen := s.cfg.Generation
	client, err := llm.NewClient(llm.Options{
		BaseURL:     gen.BaseURL,
		Model:       gen.Model,
		APIKeyEnv:   gen.APIKeyEnv,
		Temperature: gen.Temperature,
		MaxTokens:   gen.MaxTokens,
		Timeout:     config.Seconds(gen.TimeoutSecs, 60*time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create generation client: %w", err)
	}

	return usecase.NewAnswerer(s.retriever, client, usecase.AnswererOptions{
		Group: domainGroup(s.cfg.Retrieve),
		Limits: usecase.ContextLimits{
			SnippetWidth:    gen.SnippetWidth,
			MaxContextChars: gen.MaxContextChars,
		},
		Logger: s.logger,
	})
}

func domainGroup(r config.RetrieveConfig) domain.GroupOptions {
	return domain.GroupOptions{
		TopDocs:      r.TopDocs,
		ChunksPerDoc: r.ChunksPerDoc,
		Oversample:   r.Oversample,
	}
}

func newEmbedder(cfg config.EmbeddingConfig) (port.Embedder, error) {
	if cfg.Protocol == config.ProtocolMock {
		return embedding.NewMockEmbedder(cfg.Dimension), nil
	}
	return embedding.NewServiceClient(cfg.ServiceURL, cfg.Protocol, cfg.Model,
		config.Seconds(cfg.BatchTimeoutSecs, embedding.DefaultBatchTimeout))
}
