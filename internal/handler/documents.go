package handler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"docrag/internal/domain"
	"docrag/internal/usecase"
)

type uploadResponse struct {
	usecase.FileResult
	StoredAs string `json:"stored_as"`
}

// UploadDocument stores a multipart "file" in the uploads directory and
// indexes it. Unsupported formats are rejected before anything is written.
func (h *Handler) UploadDocument(c fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fmt.Errorf("%w: multipart field \"file\" is required", domain.ErrInvalidArgument)
	}

	name := baseName(fh.Filename)
	if name == "" {
		return fmt.Errorf("%w: missing file name", domain.ErrInvalidArgument)
	}
	if _, ok := domain.DocTypeFromExt(filepath.Ext(name)); !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, name)
	}

	if err := os.MkdirAll(h.uploadsDir, 0755); err != nil {
		return fmt.Errorf("failed to create uploads dir: %w", err)
	}

	dest := filepath.Join(h.uploadsDir, UploadName(name))
	if err := c.SaveFile(fh, dest); err != nil {
		return fmt.Errorf("failed to save upload: %w", err)
	}
	h.logger.Info("received document", "name", name, "stored_as", dest, "size", fh.Size)

	res, err := h.indexer.IndexFile(c.Context(), dest, nil)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(uploadResponse{FileResult: res, StoredAs: dest})
}

// UploadName prefixes a file name with a short random id so repeated
// uploads of the same name do not overwrite each other.
func UploadName(name string) string {
	return uuid.NewString()[:8] + "_" + name
}

// baseName strips any client-supplied directories, including Windows ones.
func baseName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSpace(name)
	if name == "." || name == ".." {
		return ""
	}
	return name
}
