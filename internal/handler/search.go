package handler

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v3"

	"docrag/internal/domain"
)

type searchRequest struct {
	Query        string `json:"query"`
	TopK         int    `json:"top_k"`
	TopDocs      int    `json:"top_docs"`
	ChunksPerDoc int    `json:"chunks_per_doc"`
	Oversample   int    `json:"oversample"`
	// Mode selects chunk-level ("chunks", default) or document-level ("documents") answers.
	Mode string `json:"mode"`
}

func bindSearch(c fiber.Ctx) (searchRequest, error) {
	var req searchRequest
	if err := c.Bind().JSON(&req); err != nil {
		return req, fmt.Errorf("%w: invalid request body", domain.ErrInvalidArgument)
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return req, fmt.Errorf("%w: query is required", domain.ErrInvalidArgument)
	}
	if req.TopK < 0 || req.TopDocs < 0 || req.ChunksPerDoc < 0 || req.Oversample < 0 {
		return req, fmt.Errorf("%w: limits must not be negative", domain.ErrInvalidArgument)
	}
	return req, nil
}

// Search returns the most similar chunks.
func (h *Handler) Search(c fiber.Ctx) error {
	req, err := bindSearch(c)
	if err != nil {
		return err
	}

	hits, err := h.retriever.SearchChunks(c.Context(), req.Query, req.TopK)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"query": req.Query, "hits": hits})
}

// SearchDocuments returns hits grouped by document.
func (h *Handler) SearchDocuments(c fiber.Ctx) error {
	req, err := bindSearch(c)
	if err != nil {
		return err
	}

	docs, err := h.retriever.SearchGroupedByDocument(c.Context(), req.Query, domain.GroupOptions{
		TopDocs:      req.TopDocs,
		ChunksPerDoc: req.ChunksPerDoc,
		Oversample:   req.Oversample,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"query": req.Query, "documents": docs})
}

// Answer generates an answer grounded in retrieved chunks or documents.
func (h *Handler) Answer(c fiber.Ctx) error {
	if h.answerer == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "answer generation is not configured")
	}

	req, err := bindSearch(c)
	if err != nil {
		return err
	}

	switch req.Mode {
	case "", "chunks":
		ans, err := h.answerer.AnswerWithTopChunks(c.Context(), req.Query, req.TopK)
		if err != nil {
			return err
		}
		return c.JSON(ans)
	case "documents":
		ans, err := h.answerer.AnswerWithTopDocs(c.Context(), req.Query, req.TopDocs, req.ChunksPerDoc)
		if err != nil {
			return err
		}
		return c.JSON(ans)
	default:
		return fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidArgument, req.Mode)
	}
}
