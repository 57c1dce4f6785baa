package handler

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"docrag/internal/domain"
)

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, domain.ErrInvalidArgument):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrFileNotFound), errors.Is(err, domain.ErrCollectionNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrUnsupportedFormat):
		return fiber.StatusUnsupportedMediaType
	case errors.Is(err, domain.ErrSchemaMismatch):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrEmbeddingShape), errors.Is(err, domain.ErrGenerationFailed):
		return fiber.StatusBadGateway
	case errors.Is(err, domain.ErrEmbeddingUnavailable), errors.Is(err, domain.ErrIndexRecoveryFailed):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler renders any error returned by a route as {"error": "..."}.
func ErrorHandler(log *slog.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		status := StatusFor(err)
		if status >= fiber.StatusInternalServerError {
			log.Error("request failed", "method", c.Method(), "path", c.Path(), "status", status, "error", err)
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}
}
