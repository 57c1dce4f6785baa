// Package handler exposes indexing, search and answering over HTTP.
package handler

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"docrag/internal/adapter/store"
	"docrag/internal/domain"
	"docrag/internal/logger"
	"docrag/internal/port"
	"docrag/internal/usecase"
)

// HealthChecker reports embedding service readiness.
type HealthChecker interface {
	Health(ctx context.Context) (domain.EmbedderHealth, error)
}

type Options struct {
	Indexer    *usecase.Indexer
	Retriever  port.Retriever
	Answerer   *usecase.Answerer
	Collection *store.Collection
	Embedder   HealthChecker
	UploadsDir string
	Logger     *slog.Logger
}

// Handler serves the document API.
type Handler struct {
	indexer    *usecase.Indexer
	retriever  port.Retriever
	answerer   *usecase.Answerer
	collection *store.Collection
	embedder   HealthChecker
	uploadsDir string
	logger     *slog.Logger
}

func New(opts Options) *Handler {
	if opts.UploadsDir == "" {
		opts.UploadsDir = "uploads"
	}
	return &Handler{
		indexer:    opts.Indexer,
		retriever:  opts.Retriever,
		answerer:   opts.Answerer,
		collection: opts.Collection,
		embedder:   opts.Embedder,
		uploadsDir: opts.UploadsDir,
		logger:     logger.OrDefault(opts.Logger),
	}
}

// Register sets up the API routes.
func (h *Handler) Register(router fiber.Router) {
	router.Get("/healthz", h.Health)

	v1 := router.Group("/v1")
	v1.Post("/documents", h.UploadDocument)
	v1.Post("/search", h.Search)
	v1.Post("/search/documents", h.SearchDocuments)
	v1.Post("/answer", h.Answer)
	v1.Get("/collection", h.Collection)
}
