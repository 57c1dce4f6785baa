package store

import (
	"context"
	"fmt"
	"sync"

	"docrag/internal/domain"
	"docrag/internal/port"
)

var _ port.VectorBackend = (*MemoryBackend)(nil)

// MemoryBackend keeps collections in process memory. Nothing survives Close.
type MemoryBackend struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	schema domain.CollectionSchema
	index  *domain.IndexParams
	loaded bool
	rows   []domain.Row
	nextID int64
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		collections: make(map[string]*memCollection),
	}
}

func (s *MemoryBackend) get(name string) (*memCollection, error) {
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, name)
	}
	return c, nil
}

func (s *MemoryBackend) Describe(ctx context.Context, collection string) (domain.CollectionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	switch {
	case !ok:
		return domain.StateAbsent, nil
	case c.index == nil:
		return domain.StateCreated, nil
	case !c.loaded:
		return domain.StateIndexed, nil
	default:
		return domain.StateLoaded, nil
	}
}

func (s *MemoryBackend) Schema(ctx context.Context, collection string) (domain.CollectionSchema, domain.IndexParams, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.get(collection)
	if err != nil {
		return domain.CollectionSchema{}, domain.IndexParams{}, err
	}
	var params domain.IndexParams
	if c.index != nil {
		params = *c.index
	}
	return c.schema, params, nil
}

func (s *MemoryBackend) CreateCollection(ctx context.Context, schema domain.CollectionSchema) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[schema.Name]; ok {
		return nil
	}
	s.collections[schema.Name] = &memCollection{schema: schema, nextID: 1}
	return nil
}

func (s *MemoryBackend) CreateIndex(ctx context.Context, collection string, params domain.IndexParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.get(collection)
	if err != nil {
		return err
	}
	c.index = &params
	return nil
}

// DropIndex removes the index and unloads the collection.
func (s *MemoryBackend) DropIndex(ctx context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.get(collection)
	if err != nil {
		return err
	}
	c.index = nil
	c.loaded = false
	return nil
}

func (s *MemoryBackend) LoadCollection(ctx context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.get(collection)
	if err != nil {
		return err
	}
	if c.index == nil {
		return fmt.Errorf("%w: %s", domain.ErrIndexNotFound, collection)
	}
	c.loaded = true
	return nil
}

func (s *MemoryBackend) Insert(ctx context.Context, collection string, rows []domain.Row) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.get(collection)
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		if len(row.Vector) != c.schema.Dimension {
			return nil, fmt.Errorf("%w: vector dimension %d, collection expects %d",
				domain.ErrInvalidArgument, len(row.Vector), c.schema.Dimension)
		}
	}

	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		if c.schema.AutoID {
			row.ID = c.nextID
			c.nextID++
		}
		row.Vector = append([]float32(nil), row.Vector...)
		c.rows = append(c.rows, row)
		ids = append(ids, row.ID)
	}
	return ids, nil
}

func (s *MemoryBackend) Search(ctx context.Context, collection string, req domain.SearchRequest) ([]domain.SearchHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.get(collection)
	if err != nil {
		return nil, err
	}
	if c.index == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrIndexNotFound, collection)
	}
	if !c.loaded {
		return nil, fmt.Errorf("collection %s is not loaded", collection)
	}

	hits := make([]domain.SearchHit, 0, len(c.rows))
	for _, row := range c.rows {
		hits = append(hits, domain.SearchHit{
			ID:      row.ID,
			Text:    row.Text,
			DocName: row.DocName,
			DocType: row.DocType,
			ChunkID: row.ChunkID,
			Score:   Score(c.index.Metric, req.Vector, row.Vector),
		})
	}
	return RankHits(hits, req.TopK), nil
}

func (s *MemoryBackend) Count(ctx context.Context, collection string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.get(collection)
	if err != nil {
		return 0, err
	}
	return int64(len(c.rows)), nil
}

func (s *MemoryBackend) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections = make(map[string]*memCollection)
	return nil
}
