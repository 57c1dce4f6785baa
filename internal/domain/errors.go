package domain

import "errors"

var (
	ErrFileNotFound         = errors.New("file not found")
	ErrUnsupportedFormat    = errors.New("unsupported format")
	ErrEmbeddingShape       = errors.New("embedding response has unexpected shape")
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
	ErrCollectionNotFound   = errors.New("collection not found")
	ErrIndexNotFound        = errors.New("index not found")
	ErrIndexRecoveryFailed  = errors.New("index recovery failed")
	ErrSchemaMismatch       = errors.New("collection schema mismatch")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrGenerationFailed     = errors.New("generation service failed")
)
