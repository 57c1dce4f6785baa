package port

import "docrag/internal/domain"

// Extractor turns a file into raw text blocks.
type Extractor interface {
	Extract(path string) ([]string, domain.DocType, error)
}

type FileWalker interface {
	Walk(root string) ([]FileInfo, error)
}

type FileInfo struct {
	Path    string
	ModTime int64
	Size    int64
}
