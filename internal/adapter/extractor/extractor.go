// Package extractor turns pdf, txt and docx files into raw text blocks.
package extractor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"docrag/internal/domain"
	"docrag/internal/port"
)

var _ port.Extractor = (*Extractor)(nil)

// Extractor dispatches on the file extension to a format-specific reader.
type Extractor struct {
	paragraphs bool
}

// Option configures the extractor.
type Option func(*Extractor)

// WithParagraphs makes plain-text files yield one block per paragraph
// (blank-line separated) instead of a single block.
func WithParagraphs(enabled bool) Option {
	return func(e *Extractor) {
		e.paragraphs = enabled
	}
}

// New creates an extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract reads path and returns its whitespace-normalized text blocks
// together with the detected document type. Empty blocks are dropped.
func (e *Extractor) Extract(path string) ([]string, domain.DocType, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("%s: %w", path, domain.ErrFileNotFound)
		}
		return nil, "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, "", fmt.Errorf("%s is a directory: %w", path, domain.ErrInvalidArgument)
	}

	ext := filepath.Ext(path)
	docType, ok := domain.DocTypeFromExt(ext)
	if !ok {
		return nil, "", fmt.Errorf("%s (extension %q): %w", path, ext, domain.ErrUnsupportedFormat)
	}

	var raw []string
	switch docType {
	case domain.DocTypePDF:
		raw, err = readPDF(path)
	case domain.DocTypeTXT:
		raw, err = readTXT(path, e.paragraphs)
	case domain.DocTypeDOCX:
		raw, err = readDOCX(path)
	}
	if err != nil {
		return nil, docType, fmt.Errorf("extract %s: %w", filepath.Base(path), err)
	}

	blocks := make([]string, 0, len(raw))
	for _, b := range raw {
		if b = NormalizeWhitespace(b); b != "" {
			blocks = append(blocks, b)
		}
	}
	return blocks, docType, nil
}

// NormalizeWhitespace collapses whitespace runs to single spaces and trims the ends.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
