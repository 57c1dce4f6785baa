package domain

import "strings"

// DocType is the closed set of formats that can be indexed.
type DocType string

const (
	DocTypePDF  DocType = "pdf"
	DocTypeTXT  DocType = "txt"
	DocTypeDOCX DocType = "docx"
)

// SupportedDocTypes lists every format the extractor understands.
var SupportedDocTypes = []DocType{DocTypePDF, DocTypeTXT, DocTypeDOCX}

// DocTypeFromExt maps a file extension (with or without the dot) to a DocType.
func DocTypeFromExt(ext string) (DocType, bool) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, t := range SupportedDocTypes {
		if string(t) == ext {
			return t, true
		}
	}
	return "", false
}

// UnknownDocument is the group name for hits that carry no document name.
const UnknownDocument = "unknown"

// Row is what gets written to the vector store for one chunk.
// ID is zero when the store assigns primary keys itself.
type Row struct {
	ID      int64
	Text    string
	DocName string
	DocType DocType
	ChunkID int64
	Vector  []float32
}

type SearchHit struct {
	ID      int64   `json:"id"`
	Text    string  `json:"text"`
	DocName string  `json:"doc_name"`
	DocType DocType `json:"doc_type,omitempty"`
	ChunkID int64   `json:"chunk_id"`
	Score   float64 `json:"score"`
}

// DocumentAggregate groups the best hits of one document.
type DocumentAggregate struct {
	DocName string      `json:"doc_name"`
	Score   float64     `json:"score"`
	Chunks  []SearchHit `json:"chunks"`
}

// Metric is the similarity metric of the vector index.
type Metric string

const (
	MetricIP     Metric = "IP"
	MetricCosine Metric = "COSINE"
)

// Field names shared by every backend.
const (
	FieldID      = "id"
	FieldText    = "text"
	FieldDocName = "doc_name"
	FieldDocType = "doc_type"
	FieldChunkID = "chunk_id"
)

// DefaultOutputFields are returned by a search when the caller asks for none.
var DefaultOutputFields = []string{FieldText, FieldDocName, FieldDocType, FieldChunkID}

// CollectionSchema describes the single schema shared by all documents.
type CollectionSchema struct {
	Name          string `json:"name"`
	VectorField   string `json:"vector_field"`
	Dimension     int    `json:"dimension"`
	AutoID        bool   `json:"auto_id"`
	MaxTextLength int    `json:"max_text_length"`
	MaxDocName    int    `json:"max_doc_name"`
	MaxDocType    int    `json:"max_doc_type"`
}

// IndexParams describes the vector index built over the vector field.
type IndexParams struct {
	IndexType string `json:"index_type"`
	Metric    Metric `json:"metric"`
}

// SearchRequest is one nearest-neighbour query.
type SearchRequest struct {
	Vector       []float32
	TopK         int
	OutputFields []string
}

// CollectionState tracks a collection through its lifecycle.
type CollectionState int

const (
	StateAbsent CollectionState = iota
	StateCreated
	StateIndexed
	StateLoaded
)

func (s CollectionState) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateCreated:
		return "created"
	case StateIndexed:
		return "indexed"
	case StateLoaded:
		return "loaded"
	default:
		return "unknown"
	}
}

// EmbedderHealth is the readiness report of the embedding service.
type EmbedderHealth struct {
	Status string `json:"status"`
	Device string `json:"device,omitempty"`
	Model  string `json:"model,omitempty"`
}

// GroupOptions controls document-level aggregation of search hits.
type GroupOptions struct {
	TopDocs      int
	ChunksPerDoc int
	Oversample   int
}
