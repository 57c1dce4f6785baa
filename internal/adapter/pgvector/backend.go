// Package pgvector stores collections as PostgreSQL tables with a pgvector column.
package pgvector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"docrag/internal/domain"
	"docrag/internal/port"
)

const metaTable = "docrag_collections"

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

var _ port.VectorBackend = (*Backend)(nil)

// Backend keeps one table per collection plus a metadata table holding each
// collection's schema and index parameters. Postgres tables are always
// queryable, so an indexed collection reports Loaded.
type Backend struct {
	db *sql.DB
}

// Open connects with lib/pq and installs the vector extension.
func Open(ctx context.Context, dsn string) (*Backend, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	b := &Backend{db: db}
	if err := b.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backend) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS ` + metaTable + ` (
			name         TEXT PRIMARY KEY,
			schema       JSONB NOT NULL,
			index_params JSONB
		)`,
	}
	for _, stmt := range stmts {
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (b *Backend) Close() error {
	return b.db.Close()
}

func validateName(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("%w: invalid collection or field name %q", domain.ErrInvalidArgument, name)
	}
	return nil
}

// opsClass picks the pgvector operator class matching a metric.
func opsClass(metric domain.Metric) string {
	if metric == domain.MetricCosine {
		return "vector_cosine_ops"
	}
	return "vector_ip_ops"
}

// scoreExpr returns the similarity expression and the ordering expression for a
// metric. <#> is the negated inner product and <=> the cosine distance.
func scoreExpr(metric domain.Metric, column string) (score, order string) {
	if metric == domain.MetricCosine {
		return "1 - (" + column + " <=> $1)", column + " <=> $1"
	}
	return "(" + column + " <#> $1) * -1", column + " <#> $1"
}

func indexName(collection, field string) string {
	return pq.QuoteIdentifier(collection + "_" + field + "_idx")
}

func (b *Backend) meta(ctx context.Context, collection string) (domain.CollectionSchema, *domain.IndexParams, error) {
	var (
		schemaJSON []byte
		indexJSON  []byte
	)
	err := b.db.QueryRowContext(ctx,
		`SELECT schema, index_params FROM `+metaTable+` WHERE name = $1`, collection,
	).Scan(&schemaJSON, &indexJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CollectionSchema{}, nil, fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, collection)
	}
	if err != nil {
		return domain.CollectionSchema{}, nil, fmt.Errorf("read collection meta: %w", err)
	}

	var schema domain.CollectionSchema
	if err := json.Unmarshal(schemaJSON, &schema); err != nil {
		return domain.CollectionSchema{}, nil, fmt.Errorf("decode schema: %w", err)
	}
	if len(indexJSON) == 0 {
		return schema, nil, nil
	}
	var params domain.IndexParams
	if err := json.Unmarshal(indexJSON, &params); err != nil {
		return domain.CollectionSchema{}, nil, fmt.Errorf("decode index params: %w", err)
	}
	return schema, &params, nil
}

func (b *Backend) Describe(ctx context.Context, collection string) (domain.CollectionState, error) {
	_, params, err := b.meta(ctx, collection)
	if errors.Is(err, domain.ErrCollectionNotFound) {
		return domain.StateAbsent, nil
	}
	if err != nil {
		return domain.StateAbsent, err
	}
	if params == nil {
		return domain.StateCreated, nil
	}
	return domain.StateLoaded, nil
}

func (b *Backend) Schema(ctx context.Context, collection string) (domain.CollectionSchema, domain.IndexParams, error) {
	schema, params, err := b.meta(ctx, collection)
	if err != nil {
		return domain.CollectionSchema{}, domain.IndexParams{}, err
	}
	if params == nil {
		return schema, domain.IndexParams{}, nil
	}
	return schema, *params, nil
}

func (b *Backend) CreateCollection(ctx context.Context, schema domain.CollectionSchema) error {
	if err := validateName(schema.Name); err != nil {
		return err
	}
	if err := validateName(schema.VectorField); err != nil {
		return err
	}

	idColumn := "id BIGINT PRIMARY KEY"
	if schema.AutoID {
		idColumn = "id BIGSERIAL PRIMARY KEY"
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		%s,
		%s vector(%d) NOT NULL,
		text VARCHAR(%d) NOT NULL,
		doc_name VARCHAR(%d) NOT NULL,
		doc_type VARCHAR(%d) NOT NULL,
		chunk_id BIGINT NOT NULL
	)`,
		pq.QuoteIdentifier(schema.Name),
		idColumn,
		pq.QuoteIdentifier(schema.VectorField), schema.Dimension,
		schema.MaxTextLength,
		schema.MaxDocName,
		schema.MaxDocType,
	)

	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return err
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", schema.Name, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO `+metaTable+` (name, schema) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
		schema.Name, schemaJSON,
	); err != nil {
		return fmt.Errorf("record collection %s: %w", schema.Name, err)
	}
	return tx.Commit()
}

func (b *Backend) CreateIndex(ctx context.Context, collection string, params domain.IndexParams) error {
	schema, _, err := b.meta(ctx, collection)
	if err != nil {
		return err
	}

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return err
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	ddl := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (%s %s)`,
		indexName(collection, schema.VectorField),
		pq.QuoteIdentifier(collection),
		pq.QuoteIdentifier(schema.VectorField),
		opsClass(params.Metric),
	)
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create index on %s: %w", collection, err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE `+metaTable+` SET index_params = $2 WHERE name = $1`,
		collection, paramsJSON,
	); err != nil {
		return fmt.Errorf("record index on %s: %w", collection, err)
	}
	return tx.Commit()
}

// LoadCollection only checks that the index exists.
func (b *Backend) LoadCollection(ctx context.Context, collection string) error {
	_, params, err := b.meta(ctx, collection)
	if err != nil {
		return err
	}
	if params == nil {
		return fmt.Errorf("%w: %s", domain.ErrIndexNotFound, collection)
	}
	return nil
}

func (b *Backend) Insert(ctx context.Context, collection string, rows []domain.Row) ([]int64, error) {
	schema, _, err := b.meta(ctx, collection)
	if err != nil {
		return nil, err
	}

	table := pq.QuoteIdentifier(collection)
	vec := pq.QuoteIdentifier(schema.VectorField)

	query := fmt.Sprintf(`INSERT INTO %s (%s, text, doc_name, doc_type, chunk_id)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`, table, vec)
	if !schema.AutoID {
		query = fmt.Sprintf(`INSERT INTO %s (id, %s, text, doc_name, doc_type, chunk_id)
			VALUES ($6, $1, $2, $3, $4, $5) RETURNING id`, table, vec)
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		args := []any{pgvector.NewVector(row.Vector), row.Text, row.DocName, string(row.DocType), row.ChunkID}
		if !schema.AutoID {
			args = append(args, row.ID)
		}

		var id int64
		if err := stmt.QueryRowContext(ctx, args...).Scan(&id); err != nil {
			return nil, fmt.Errorf("insert row %s#%d: %w", row.DocName, row.ChunkID, err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return ids, nil
}

func (b *Backend) Search(ctx context.Context, collection string, req domain.SearchRequest) ([]domain.SearchHit, error) {
	schema, params, err := b.meta(ctx, collection)
	if err != nil {
		return nil, err
	}
	if params == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrIndexNotFound, collection)
	}

	score, order := scoreExpr(params.Metric, pq.QuoteIdentifier(schema.VectorField))
	query := fmt.Sprintf(`SELECT id, text, doc_name, doc_type, chunk_id, %s AS score
		FROM %s
		ORDER BY %s, id
		LIMIT $2`, score, pq.QuoteIdentifier(collection), order)

	rows, err := b.db.QueryContext(ctx, query, pgvector.NewVector(req.Vector), req.TopK)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", collection, err)
	}
	defer rows.Close()

	hits := make([]domain.SearchHit, 0, req.TopK)
	for rows.Next() {
		var (
			hit     domain.SearchHit
			docType string
		)
		if err := rows.Scan(&hit.ID, &hit.Text, &hit.DocName, &docType, &hit.ChunkID, &hit.Score); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		hit.DocType = domain.DocType(docType)
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

func (b *Backend) Count(ctx context.Context, collection string) (int64, error) {
	if _, _, err := b.meta(ctx, collection); err != nil {
		return 0, err
	}
	var n int64
	err := b.db.QueryRowContext(ctx, `SELECT count(*) FROM `+pq.QuoteIdentifier(collection)).Scan(&n)
	return n, err
}
