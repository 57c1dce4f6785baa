package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"docrag/internal/domain"
)

// CurrentSchemaVersion is bumped on breaking changes to the stored row format.
const CurrentSchemaVersion = 1

const (
	DefaultIndexType     = "AUTOINDEX"
	DefaultMaxTextLength = 4096
	MaxDocNameLength     = 512
	MaxDocTypeLength     = 16
)

// SchemaInfo is persisted next to each collection by the embedded backends.
type SchemaInfo struct {
	Version int    `json:"version"`
	Hash    string `json:"hash"`
}

// NewSchema fills in the fixed field widths for a collection.
func NewSchema(name, vectorField string, dimension int, autoID bool, maxText int) domain.CollectionSchema {
	if maxText <= 0 {
		maxText = DefaultMaxTextLength
	}
	return domain.CollectionSchema{
		Name:          name,
		VectorField:   vectorField,
		Dimension:     dimension,
		AutoID:        autoID,
		MaxTextLength: maxText,
		MaxDocName:    MaxDocNameLength,
		MaxDocType:    MaxDocTypeLength,
	}
}

// SchemaHash identifies the vector space of a collection. Two collections with
// the same hash can share query vectors.
func SchemaHash(schema domain.CollectionSchema, params domain.IndexParams) string {
	relevant := struct {
		VectorField string        `json:"vector_field"`
		Dimension   int           `json:"dimension"`
		Metric      domain.Metric `json:"metric"`
	}{
		VectorField: schema.VectorField,
		Dimension:   schema.Dimension,
		Metric:      params.Metric,
	}

	data, _ := json.Marshal(relevant)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}

// CompareSchema reports ErrSchemaMismatch when a stored collection cannot hold
// vectors produced for the wanted one. A stored index without a metric is not
// compared on metric.
func CompareSchema(want, got domain.CollectionSchema, wantIndex, gotIndex domain.IndexParams) error {
	if got.VectorField != "" && got.VectorField != want.VectorField {
		return fmt.Errorf("%w: collection %s has vector field %q, configured %q",
			domain.ErrSchemaMismatch, want.Name, got.VectorField, want.VectorField)
	}
	if got.Dimension != want.Dimension {
		return fmt.Errorf("%w: collection %s has dimension %d, configured %d",
			domain.ErrSchemaMismatch, want.Name, got.Dimension, want.Dimension)
	}
	if gotIndex.Metric != "" && gotIndex.Metric != wantIndex.Metric {
		return fmt.Errorf("%w: collection %s uses metric %s, configured %s",
			domain.ErrSchemaMismatch, want.Name, gotIndex.Metric, wantIndex.Metric)
	}
	return nil
}

// TruncateBytes shortens s to at most max bytes without splitting a rune.
func TruncateBytes(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
