package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"docrag/internal/domain"
	"docrag/internal/logger"
	"docrag/internal/port"
)

// Indexer turns files into embedded rows in the vector store.
type Indexer struct {
	extractor port.Extractor
	chunker   port.Chunker
	embedder  port.BatchEmbedder
	store     port.VectorStore
	walker    port.FileWalker
	logger    *slog.Logger
}

func NewIndexer(
	extractor port.Extractor,
	chunker port.Chunker,
	embedder port.BatchEmbedder,
	store port.VectorStore,
	walker port.FileWalker,
	log *slog.Logger,
) *Indexer {
	return &Indexer{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		walker:    walker,
		logger:    logger.OrDefault(log),
	}
}

// FileResult describes one indexed file.
type FileResult struct {
	DocName  string         `json:"doc_name"`
	DocType  domain.DocType `json:"doc_type"`
	Chunks   int            `json:"chunks"`
	Inserted int            `json:"inserted"`
}

// IndexResult contains the results of indexing a file or a directory.
type IndexResult struct {
	FilesIndexed  int      `json:"files_indexed"`
	FilesSkipped  int      `json:"files_skipped"`
	ChunksCreated int      `json:"chunks_created"`
	Errors        []string `json:"errors,omitempty"`
}

// IndexFile extracts, chunks, embeds and stores one file, then loads the
// collection so it is immediately searchable. A file that yields no text is
// logged and skipped without error. Re-indexing a file appends a second copy.
func (u *Indexer) IndexFile(ctx context.Context, path string, progress port.ProgressFunc) (FileResult, error) {
	start := time.Now()
	docName := filepath.Base(path)
	result := FileResult{DocName: docName}

	blocks, docType, err := u.extractor.Extract(path)
	if err != nil {
		return result, fmt.Errorf("extract %s: %w", docName, err)
	}
	result.DocType = docType

	chunks := u.chunker.Chunk(strings.Join(blocks, " "))
	if len(chunks) == 0 {
		u.logger.Warn("no text extracted, nothing to index", "doc", docName, "type", docType)
		return result, nil
	}
	result.Chunks = len(chunks)

	vectors, err := u.embedder.EmbedBatch(ctx, chunks, progress)
	if err != nil {
		return result, fmt.Errorf("embed %s: %w", docName, err)
	}

	rows := make([]domain.Row, len(chunks))
	for i, text := range chunks {
		rows[i] = domain.Row{
			Text:    text,
			DocName: docName,
			DocType: docType,
			ChunkID: int64(i),
			Vector:  vectors[i],
		}
	}

	if err := u.store.EnsureCollection(ctx); err != nil {
		return result, fmt.Errorf("prepare collection for %s: %w", docName, err)
	}

	inserted, err := u.store.Insert(ctx, rows)
	if err != nil {
		return result, fmt.Errorf("store %s: %w", docName, err)
	}
	result.Inserted = inserted

	if err := u.store.Load(ctx); err != nil {
		return result, fmt.Errorf("load collection after %s: %w", docName, err)
	}

	u.logger.Info("indexed document",
		"doc", docName,
		"type", docType,
		"chunks", len(chunks),
		"inserted", inserted,
		"duration", time.Since(start).Round(time.Millisecond))

	return result, nil
}

// IndexPath indexes a single file, or every matching file under a directory.
// Per-file failures are collected in the result; cancellation stops the walk.
// progress, when set, is called after each file of a directory.
func (u *Indexer) IndexPath(ctx context.Context, path string, progress port.ProgressFunc) (*IndexResult, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrFileNotFound, path)
	}
	if err != nil {
		return nil, err
	}

	result := &IndexResult{}

	if !info.IsDir() {
		fr, err := u.IndexFile(ctx, path, progress)
		if err != nil {
			return nil, err
		}
		result.record(fr)
		return result, nil
	}

	if u.walker == nil {
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrInvalidArgument, path)
	}

	files, err := u.walker.Walk(path)
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		fr, err := u.IndexFile(ctx, file.Path, nil)
		if err != nil {
			if ctx.Err() != nil {
				return result, err
			}
			u.logger.Error("failed to index file", "path", file.Path, "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("failed to index %s: %v", file.Path, err))
		} else {
			result.record(fr)
		}

		if progress != nil {
			progress(i+1, len(files))
		}
	}

	return result, nil
}

func (r *IndexResult) record(fr FileResult) {
	if fr.Chunks == 0 {
		r.FilesSkipped++
		return
	}
	r.FilesIndexed++
	r.ChunksCreated += fr.Inserted
}
