package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"docrag/internal/domain"
	"docrag/internal/logger"
	"docrag/internal/port"
)

const DefaultTopK = 5

var _ port.VectorStore = (*Collection)(nil)

type CollectionOptions struct {
	Schema      domain.CollectionSchema
	Index       domain.IndexParams
	DefaultTopK int
	Logger      *slog.Logger
}

// Collection is one named collection on a backend. It drives the collection
// through Absent, Created, Indexed and Loaded, and owns primary-key assignment
// when the schema does not let the backend generate keys.
type Collection struct {
	backend     port.VectorBackend
	schema      domain.CollectionSchema
	index       domain.IndexParams
	defaultTopK int
	logger      *slog.Logger

	// mu serializes schema bootstrap and count-based key assignment within this process.
	mu sync.Mutex
}

func NewCollection(backend port.VectorBackend, opts CollectionOptions) *Collection {
	c := &Collection{
		backend:     backend,
		schema:      opts.Schema,
		index:       opts.Index,
		defaultTopK: opts.DefaultTopK,
		logger:      logger.OrDefault(opts.Logger),
	}
	if c.index.IndexType == "" {
		c.index.IndexType = DefaultIndexType
	}
	if c.index.Metric == "" {
		c.index.Metric = domain.MetricIP
	}
	if c.schema.MaxTextLength <= 0 {
		c.schema.MaxTextLength = DefaultMaxTextLength
	}
	if c.schema.MaxDocName <= 0 {
		c.schema.MaxDocName = MaxDocNameLength
	}
	if c.schema.MaxDocType <= 0 {
		c.schema.MaxDocType = MaxDocTypeLength
	}
	if c.defaultTopK <= 0 {
		c.defaultTopK = DefaultTopK
	}
	return c
}

func (c *Collection) Name() string {
	return c.schema.Name
}

func (c *Collection) Schema() domain.CollectionSchema {
	return c.schema
}

func (c *Collection) IndexParams() domain.IndexParams {
	return c.index
}

func (c *Collection) State(ctx context.Context) (domain.CollectionState, error) {
	return c.backend.Describe(ctx, c.schema.Name)
}

// EnsureCollection creates the collection and its vector index when missing.
// An existing collection is left untouched unless its vector space differs from
// the configured one, which fails with ErrSchemaMismatch.
func (c *Collection) EnsureCollection(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, err := c.backend.Describe(ctx, c.schema.Name)
	if err != nil {
		return fmt.Errorf("describe collection %s: %w", c.schema.Name, err)
	}

	if state == domain.StateAbsent {
		if err := c.backend.CreateCollection(ctx, c.schema); err != nil {
			return fmt.Errorf("create collection %s: %w", c.schema.Name, err)
		}
		if err := c.backend.CreateIndex(ctx, c.schema.Name, c.index); err != nil {
			return fmt.Errorf("create index on %s: %w", c.schema.Name, err)
		}
		c.logger.Info("created collection",
			"collection", c.schema.Name,
			"dimension", c.schema.Dimension,
			"metric", c.index.Metric)
		return nil
	}

	stored, storedIndex, err := c.backend.Schema(ctx, c.schema.Name)
	if err != nil {
		return fmt.Errorf("read schema of %s: %w", c.schema.Name, err)
	}
	if err := CompareSchema(c.schema, stored, c.index, storedIndex); err != nil {
		return err
	}

	if state == domain.StateCreated {
		if err := c.backend.CreateIndex(ctx, c.schema.Name, c.index); err != nil {
			return fmt.Errorf("create index on %s: %w", c.schema.Name, err)
		}
	}
	return nil
}

// Insert writes rows and returns how many were stored. Rows whose text is blank
// are skipped. Text, document name and document type are cut to their field widths.
//
// Without auto IDs, keys are count+offset. That read-then-write is only safe
// while a single process inserts into the collection.
func (c *Collection) Insert(ctx context.Context, rows []domain.Row) (int, error) {
	kept := make([]domain.Row, 0, len(rows))
	for _, row := range rows {
		if strings.TrimSpace(row.Text) == "" {
			continue
		}
		if len(row.Vector) != c.schema.Dimension {
			return 0, fmt.Errorf("%w: row %s#%d has dimension %d, expected %d",
				domain.ErrInvalidArgument, row.DocName, row.ChunkID, len(row.Vector), c.schema.Dimension)
		}
		row.Text = TruncateBytes(row.Text, c.schema.MaxTextLength)
		row.DocName = TruncateBytes(row.DocName, c.schema.MaxDocName)
		row.DocType = domain.DocType(TruncateBytes(string(row.DocType), c.schema.MaxDocType))
		kept = append(kept, row)
	}

	if skipped := len(rows) - len(kept); skipped > 0 {
		c.logger.Debug("skipped empty rows", "collection", c.schema.Name, "count", skipped)
	}
	if len(kept) == 0 {
		return 0, nil
	}

	if !c.schema.AutoID {
		c.mu.Lock()
		defer c.mu.Unlock()

		count, err := c.backend.Count(ctx, c.schema.Name)
		if err != nil {
			return 0, fmt.Errorf("count rows of %s: %w", c.schema.Name, err)
		}
		for i := range kept {
			kept[i].ID = count + int64(i)
		}
	}

	ids, err := c.backend.Insert(ctx, c.schema.Name, kept)
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", c.schema.Name, err)
	}
	return len(ids), nil
}

// Load makes the collection searchable, building the index first if needed.
func (c *Collection) Load(ctx context.Context) error {
	state, err := c.backend.Describe(ctx, c.schema.Name)
	if err != nil {
		return fmt.Errorf("describe collection %s: %w", c.schema.Name, err)
	}
	switch state {
	case domain.StateAbsent:
		return fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, c.schema.Name)
	case domain.StateCreated:
		if err := c.backend.CreateIndex(ctx, c.schema.Name, c.index); err != nil {
			return fmt.Errorf("create index on %s: %w", c.schema.Name, err)
		}
	}
	if err := c.backend.LoadCollection(ctx, c.schema.Name); err != nil {
		return fmt.Errorf("load collection %s: %w", c.schema.Name, err)
	}
	return nil
}

// Search returns up to topK hits by descending score. A collection that is not
// yet loaded is brought to Loaded first. If the backend still reports a missing
// index, the index is rebuilt and the search retried exactly once.
func (c *Collection) Search(ctx context.Context, vector []float32, topK int, outputFields []string) ([]domain.SearchHit, error) {
	if len(vector) != c.schema.Dimension {
		return nil, fmt.Errorf("%w: query vector has dimension %d, expected %d",
			domain.ErrInvalidArgument, len(vector), c.schema.Dimension)
	}
	if topK <= 0 {
		topK = c.defaultTopK
	}
	if len(outputFields) == 0 {
		outputFields = domain.DefaultOutputFields
	}

	state, err := c.backend.Describe(ctx, c.schema.Name)
	if err != nil {
		return nil, fmt.Errorf("describe collection %s: %w", c.schema.Name, err)
	}

	switch state {
	case domain.StateAbsent:
		return nil, fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, c.schema.Name)
	case domain.StateCreated, domain.StateIndexed:
		c.logger.Info("preparing collection for search", "collection", c.schema.Name, "state", state)
		if err := c.prepare(ctx, state); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrIndexRecoveryFailed, c.schema.Name, err)
		}
	}

	req := domain.SearchRequest{
		Vector:       vector,
		TopK:         topK,
		OutputFields: outputFields,
	}

	hits, err := c.backend.Search(ctx, c.schema.Name, req)
	if errors.Is(err, domain.ErrIndexNotFound) {
		c.logger.Warn("index not found, rebuilding", "collection", c.schema.Name)

		if err := c.prepare(ctx, domain.StateCreated); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrIndexRecoveryFailed, c.schema.Name, err)
		}
		hits, err = c.backend.Search(ctx, c.schema.Name, req)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: retry: %w", domain.ErrIndexRecoveryFailed, c.schema.Name, err)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", c.schema.Name, err)
	}

	return project(hits, outputFields), nil
}

func (c *Collection) Count(ctx context.Context) (int64, error) {
	state, err := c.backend.Describe(ctx, c.schema.Name)
	if err != nil {
		return 0, err
	}
	if state == domain.StateAbsent {
		return 0, nil
	}
	return c.backend.Count(ctx, c.schema.Name)
}

func (c *Collection) prepare(ctx context.Context, state domain.CollectionState) error {
	if state == domain.StateCreated {
		if err := c.backend.CreateIndex(ctx, c.schema.Name, c.index); err != nil {
			return err
		}
	}
	return c.backend.LoadCollection(ctx, c.schema.Name)
}

// project blanks the metadata fields the caller did not ask for. ID and score
// are always kept.
func project(hits []domain.SearchHit, fields []string) []domain.SearchHit {
	want := make(map[string]bool, len(fields))
	for _, f := range fields {
		want[f] = true
	}

	out := make([]domain.SearchHit, len(hits))
	for i, h := range hits {
		out[i] = domain.SearchHit{ID: h.ID, Score: h.Score}
		if want[domain.FieldText] {
			out[i].Text = h.Text
		}
		if want[domain.FieldDocName] {
			out[i].DocName = h.DocName
		}
		if want[domain.FieldDocType] {
			out[i].DocType = h.DocType
		}
		if want[domain.FieldChunkID] {
			out[i].ChunkID = h.ChunkID
		}
	}
	return out
}
