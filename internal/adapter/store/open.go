package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"docrag/config"
	"docrag/internal/adapter/milvus"
	"docrag/internal/adapter/pgvector"
	"docrag/internal/domain"
	"docrag/internal/logger"
	"docrag/internal/port"
)

// Open picks a backend from the connection URI:
//
//	memory://                     in-process, lost on exit
//	http(s)://host, milvus://host Milvus REST API
//	postgres://, postgresql://    PostgreSQL with pgvector
//	file://path or a plain path   embedded bbolt file
func Open(ctx context.Context, cfg config.StoreConfig, log *slog.Logger) (port.VectorBackend, error) {
	log = logger.OrDefault(log)
	uri := strings.TrimSpace(cfg.URI)
	timeout := config.Seconds(cfg.TimeoutSecs, 0)

	switch {
	case uri == "":
		return nil, fmt.Errorf("%w: store uri is empty", domain.ErrInvalidArgument)

	case strings.HasPrefix(uri, "memory://"):
		log.Debug("using in-memory vector store")
		return NewMemoryBackend(), nil

	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"), strings.HasPrefix(uri, "milvus://"):
		var token string
		if cfg.TokenEnv != "" {
			token = os.Getenv(cfg.TokenEnv)
		}
		client, err := milvus.NewClient(uri, token, "", timeout)
		if err != nil {
			return nil, err
		}
		log.Debug("using milvus vector store", "uri", uri)
		return milvus.NewBackend(client, cfg.VectorField), nil

	case strings.HasPrefix(uri, "postgres://"), strings.HasPrefix(uri, "postgresql://"):
		backend, err := pgvector.Open(ctx, uri)
		if err != nil {
			return nil, err
		}
		log.Debug("using pgvector store")
		return backend, nil

	default:
		path := strings.TrimPrefix(uri, "file://")
		if err := config.EnsureDir(path); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		backend, err := NewBoltBackend(path)
		if err != nil {
			return nil, err
		}
		log.Debug("using embedded vector store", "path", path)
		return backend, nil
	}
}

// NewCollectionFromConfig binds the configured collection on backend.
func NewCollectionFromConfig(backend port.VectorBackend, cfg *config.Config, log *slog.Logger) *Collection {
	return NewCollection(backend, CollectionOptions{
		Schema: NewSchema(
			cfg.Store.Collection,
			cfg.Store.VectorField,
			cfg.Embedding.Dimension,
			cfg.Store.AutoID,
			cfg.Store.MaxTextLength,
		),
		Index: domain.IndexParams{
			IndexType: DefaultIndexType,
			Metric:    domain.Metric(cfg.Store.Metric),
		},
		DefaultTopK: cfg.Retrieve.TopK,
		Logger:      log,
	})
}
