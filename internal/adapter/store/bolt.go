package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"docrag/internal/domain"
	"docrag/internal/port"
)

var (
	bucketCollections = []byte("collections")
	bucketRows        = []byte("rows")
	keyMeta           = []byte("meta")
)

var _ port.VectorBackend = (*BoltBackend)(nil)

// BoltBackend is an embedded, file-backed vector store. Each collection is a
// nested bucket holding its metadata and rows. Loading a collection reads its
// rows into memory and search is brute force over that copy.
type BoltBackend struct {
	db     *bbolt.DB
	mu     sync.RWMutex
	loaded map[string][]storedRow
}

type collectionMeta struct {
	SchemaInfo
	Schema domain.CollectionSchema `json:"schema"`
	Index  *domain.IndexParams     `json:"index,omitempty"`
}

type storedRow struct {
	ID      int64          `json:"-"`
	Vector  []float32      `json:"v"`
	Text    string         `json:"t"`
	DocName string         `json:"n"`
	DocType domain.DocType `json:"y,omitempty"`
	ChunkID int64          `json:"c"`
}

func NewBoltBackend(path string) (*BoltBackend, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCollections)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create collections bucket: %w", err)
	}

	return &BoltBackend{
		db:     db,
		loaded: make(map[string][]storedRow),
	}, nil
}

func (s *BoltBackend) Close() error {
	return s.db.Close()
}

func collectionBucket(tx *bbolt.Tx, name string) *bbolt.Bucket {
	return tx.Bucket(bucketCollections).Bucket([]byte(name))
}

func readMeta(b *bbolt.Bucket) (collectionMeta, error) {
	var meta collectionMeta
	data := b.Get(keyMeta)
	if data == nil {
		return meta, fmt.Errorf("collection metadata missing")
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("failed to decode collection metadata: %w", err)
	}
	return meta, nil
}

func writeMeta(b *bbolt.Bucket, meta collectionMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return b.Put(keyMeta, data)
}

func (s *BoltBackend) Describe(ctx context.Context, collection string) (domain.CollectionState, error) {
	state := domain.StateAbsent
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := collectionBucket(tx, collection)
		if b == nil {
			return nil
		}
		meta, err := readMeta(b)
		if err != nil {
			return err
		}
		state = domain.StateCreated
		if meta.Index != nil {
			state = domain.StateIndexed
		}
		return nil
	})
	if err != nil {
		return domain.StateAbsent, err
	}

	if state == domain.StateIndexed {
		s.mu.RLock()
		_, ok := s.loaded[collection]
		s.mu.RUnlock()
		if ok {
			state = domain.StateLoaded
		}
	}
	return state, nil
}

func (s *BoltBackend) Schema(ctx context.Context, collection string) (domain.CollectionSchema, domain.IndexParams, error) {
	var meta collectionMeta
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := collectionBucket(tx, collection)
		if b == nil {
			return fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, collection)
		}
		var err error
		meta, err = readMeta(b)
		return err
	})
	if err != nil {
		return domain.CollectionSchema{}, domain.IndexParams{}, err
	}

	var params domain.IndexParams
	if meta.Index != nil {
		params = *meta.Index
	}
	return meta.Schema, params, nil
}

func (s *BoltBackend) CreateCollection(ctx context.Context, schema domain.CollectionSchema) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketCollections)
		if root.Bucket([]byte(schema.Name)) != nil {
			return nil
		}

		b, err := root.CreateBucket([]byte(schema.Name))
		if err != nil {
			return fmt.Errorf("failed to create collection %s: %w", schema.Name, err)
		}
		if _, err := b.CreateBucket(bucketRows); err != nil {
			return err
		}

		return writeMeta(b, collectionMeta{
			SchemaInfo: SchemaInfo{
				Version: CurrentSchemaVersion,
				Hash:    SchemaHash(schema, domain.IndexParams{}),
			},
			Schema: schema,
		})
	})
}

func (s *BoltBackend) CreateIndex(ctx context.Context, collection string, params domain.IndexParams) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := collectionBucket(tx, collection)
		if b == nil {
			return fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, collection)
		}
		meta, err := readMeta(b)
		if err != nil {
			return err
		}

		meta.Index = &params
		meta.Hash = SchemaHash(meta.Schema, params)
		return writeMeta(b, meta)
	})
}

// LoadCollection reads all rows of an indexed collection into memory.
func (s *BoltBackend) LoadCollection(ctx context.Context, collection string) error {
	var rows []storedRow
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := collectionBucket(tx, collection)
		if b == nil {
			return fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, collection)
		}
		meta, err := readMeta(b)
		if err != nil {
			return err
		}
		if meta.Index == nil {
			return fmt.Errorf("%w: %s", domain.ErrIndexNotFound, collection)
		}

		rows = make([]storedRow, 0, b.Bucket(bucketRows).Stats().KeyN)
		return b.Bucket(bucketRows).ForEach(func(k, v []byte) error {
			var row storedRow
			if err := json.Unmarshal(v, &row); err != nil {
				// skip corrupted entries
				return nil
			}
			row.ID = int64(binary.BigEndian.Uint64(k))
			rows = append(rows, row)
			return nil
		})
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.loaded[collection] = rows
	s.mu.Unlock()
	return nil
}

func (s *BoltBackend) Insert(ctx context.Context, collection string, rows []domain.Row) ([]int64, error) {
	ids := make([]int64, 0, len(rows))
	stored := make([]storedRow, 0, len(rows))

	// Holding the lock across the transaction keeps the in-memory copy in step with disk.
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := collectionBucket(tx, collection)
		if b == nil {
			return fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, collection)
		}
		meta, err := readMeta(b)
		if err != nil {
			return err
		}
		rowsBucket := b.Bucket(bucketRows)

		for _, row := range rows {
			if len(row.Vector) != meta.Schema.Dimension {
				return fmt.Errorf("%w: vector dimension %d, collection expects %d",
					domain.ErrInvalidArgument, len(row.Vector), meta.Schema.Dimension)
			}

			id := row.ID
			if meta.Schema.AutoID {
				seq, err := rowsBucket.NextSequence()
				if err != nil {
					return err
				}
				id = int64(seq)
			}

			sr := storedRow{
				ID:      id,
				Vector:  row.Vector,
				Text:    row.Text,
				DocName: row.DocName,
				DocType: row.DocType,
				ChunkID: row.ChunkID,
			}
			data, err := json.Marshal(sr)
			if err != nil {
				return err
			}
			if err := rowsBucket.Put(itob(id), data); err != nil {
				return err
			}

			ids = append(ids, id)
			stored = append(stored, sr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if cached, ok := s.loaded[collection]; ok {
		s.loaded[collection] = append(cached, stored...)
	}
	return ids, nil
}

func (s *BoltBackend) Search(ctx context.Context, collection string, req domain.SearchRequest) ([]domain.SearchHit, error) {
	_, params, err := s.Schema(ctx, collection)
	if err != nil {
		return nil, err
	}
	if params.Metric == "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrIndexNotFound, collection)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, ok := s.loaded[collection]
	if !ok {
		return nil, fmt.Errorf("collection %s is not loaded", collection)
	}

	hits := make([]domain.SearchHit, 0, len(rows))
	for _, row := range rows {
		hits = append(hits, domain.SearchHit{
			ID:      row.ID,
			Text:    row.Text,
			DocName: row.DocName,
			DocType: row.DocType,
			ChunkID: row.ChunkID,
			Score:   Score(params.Metric, req.Vector, row.Vector),
		})
	}
	return RankHits(hits, req.TopK), nil
}

func (s *BoltBackend) Count(ctx context.Context, collection string) (int64, error) {
	var n int64
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := collectionBucket(tx, collection)
		if b == nil {
			return fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, collection)
		}
		n = int64(b.Bucket(bucketRows).Stats().KeyN)
		return nil
	})
	return n, err
}

// SchemaInfo returns the version and vector space hash stored with a collection.
func (s *BoltBackend) SchemaInfo(collection string) (SchemaInfo, error) {
	var info SchemaInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := collectionBucket(tx, collection)
		if b == nil {
			return fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, collection)
		}
		meta, err := readMeta(b)
		if err != nil {
			return err
		}
		info = meta.SchemaInfo
		return nil
	})
	return info, err
}

func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}
