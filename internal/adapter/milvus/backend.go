package milvus

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"docrag/internal/domain"
	"docrag/internal/port"
)

const (
	loadStateLoaded  = "LoadStateLoaded"
	loadPollInterval = 200 * time.Millisecond
)

var _ port.VectorBackend = (*Backend)(nil)

// Backend stores collections in Milvus. Every collection it manages uses the
// same vector field name.
type Backend struct {
	client      *Client
	vectorField string
}

func NewBackend(client *Client, vectorField string) *Backend {
	return &Backend{
		client:      client,
		vectorField: vectorField,
	}
}

type hasResponse struct {
	Has bool `json:"has"`
}

type loadStateResponse struct {
	LoadState string `json:"loadState"`
}

type describeResponse struct {
	CollectionName string          `json:"collectionName"`
	AutoID         bool            `json:"autoId"`
	Fields         []describeField `json:"fields"`
	Indexes        []describeIndex `json:"indexes"`
}

type describeField struct {
	Name       string       `json:"name"`
	Type       string       `json:"type"`
	PrimaryKey bool         `json:"primaryKey"`
	AutoID     bool         `json:"autoId"`
	Params     []fieldParam `json:"params"`
}

type fieldParam struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type describeIndex struct {
	FieldName  string `json:"fieldName"`
	IndexName  string `json:"indexName"`
	MetricType string `json:"metricType"`
}

type insertResponse struct {
	InsertCount json.Number `json:"insertCount"`
	InsertIDs   []any       `json:"insertIds"`
}

type statsResponse struct {
	RowCount json.Number `json:"rowCount"`
}

func collectionBody(name string) map[string]any {
	return map[string]any{"collectionName": name}
}

func (b *Backend) Describe(ctx context.Context, collection string) (domain.CollectionState, error) {
	var has hasResponse
	if err := b.client.call(ctx, "/collections/has", collectionBody(collection), &has); err != nil {
		return domain.StateAbsent, err
	}
	if !has.Has {
		return domain.StateAbsent, nil
	}

	var indexes []string
	if err := b.client.call(ctx, "/indexes/list", collectionBody(collection), &indexes); err != nil {
		return domain.StateAbsent, err
	}
	if len(indexes) == 0 {
		return domain.StateCreated, nil
	}

	var load loadStateResponse
	if err := b.client.call(ctx, "/collections/get_load_state", collectionBody(collection), &load); err != nil {
		return domain.StateAbsent, err
	}
	if load.LoadState == loadStateLoaded {
		return domain.StateLoaded, nil
	}
	return domain.StateIndexed, nil
}

func (b *Backend) Schema(ctx context.Context, collection string) (domain.CollectionSchema, domain.IndexParams, error) {
	var desc describeResponse
	if err := b.client.call(ctx, "/collections/describe", collectionBody(collection), &desc); err != nil {
		return domain.CollectionSchema{}, domain.IndexParams{}, err
	}

	schema := domain.CollectionSchema{
		Name:   collection,
		AutoID: desc.AutoID,
	}
	for _, f := range desc.Fields {
		switch {
		case f.PrimaryKey:
			schema.AutoID = schema.AutoID || f.AutoID
		case f.Type == "FloatVector":
			schema.VectorField = f.Name
			schema.Dimension = paramInt(f.Params, "dim")
		case f.Name == domain.FieldText:
			schema.MaxTextLength = paramInt(f.Params, "max_length")
		case f.Name == domain.FieldDocName:
			schema.MaxDocName = paramInt(f.Params, "max_length")
		case f.Name == domain.FieldDocType:
			schema.MaxDocType = paramInt(f.Params, "max_length")
		}
	}

	var params domain.IndexParams
	for _, idx := range desc.Indexes {
		if idx.FieldName == schema.VectorField {
			params.Metric = domain.Metric(idx.MetricType)
			params.IndexType = "AUTOINDEX"
		}
	}
	return schema, params, nil
}

func (b *Backend) CreateCollection(ctx context.Context, schema domain.CollectionSchema) error {
	fields := []map[string]any{
		{
			"fieldName": domain.FieldID,
			"dataType":  "Int64",
			"isPrimary": true,
		},
		{
			"fieldName":         schema.VectorField,
			"dataType":          "FloatVector",
			"elementTypeParams": map[string]any{"dim": strconv.Itoa(schema.Dimension)},
		},
		varchar(domain.FieldText, schema.MaxTextLength),
		varchar(domain.FieldDocName, schema.MaxDocName),
		varchar(domain.FieldDocType, schema.MaxDocType),
		{
			"fieldName": domain.FieldChunkID,
			"dataType":  "Int64",
		},
	}

	body := collectionBody(schema.Name)
	body["schema"] = map[string]any{
		"autoId":             schema.AutoID,
		"enableDynamicField": false,
		"fields":             fields,
	}
	return b.client.call(ctx, "/collections/create", body, nil)
}

func varchar(name string, maxLength int) map[string]any {
	return map[string]any{
		"fieldName":         name,
		"dataType":          "VarChar",
		"elementTypeParams": map[string]any{"max_length": strconv.Itoa(maxLength)},
	}
}

func (b *Backend) CreateIndex(ctx context.Context, collection string, params domain.IndexParams) error {
	body := collectionBody(collection)
	body["indexParams"] = []map[string]any{{
		"fieldName":  b.vectorField,
		"indexName":  b.vectorField,
		"metricType": string(params.Metric),
		"indexType":  params.IndexType,
	}}
	return b.client.call(ctx, "/indexes/create", body, nil)
}

// LoadCollection requests a load and waits until Milvus reports it loaded.
func (b *Backend) LoadCollection(ctx context.Context, collection string) error {
	if err := b.client.call(ctx, "/collections/load", collectionBody(collection), nil); err != nil {
		return err
	}

	ticker := time.NewTicker(loadPollInterval)
	defer ticker.Stop()

	for {
		var load loadStateResponse
		if err := b.client.call(ctx, "/collections/get_load_state", collectionBody(collection), &load); err != nil {
			return err
		}
		if load.LoadState == loadStateLoaded {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s to load: %w", collection, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (b *Backend) Insert(ctx context.Context, collection string, rows []domain.Row) ([]int64, error) {
	schema, _, err := b.Schema(ctx, collection)
	if err != nil {
		return nil, err
	}

	data := make([]map[string]any, len(rows))
	for i, row := range rows {
		entity := map[string]any{
			b.vectorField:       row.Vector,
			domain.FieldText:    row.Text,
			domain.FieldDocName: row.DocName,
			domain.FieldDocType: string(row.DocType),
			domain.FieldChunkID: row.ChunkID,
		}
		if !schema.AutoID {
			entity[domain.FieldID] = row.ID
		}
		data[i] = entity
	}

	body := collectionBody(collection)
	body["data"] = data

	var resp insertResponse
	if err := b.client.call(ctx, "/entities/insert", body, &resp); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(resp.InsertIDs))
	for _, raw := range resp.InsertIDs {
		id, err := toInt64(raw)
		if err != nil {
			return nil, fmt.Errorf("insert id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (b *Backend) Search(ctx context.Context, collection string, req domain.SearchRequest) ([]domain.SearchHit, error) {
	body := collectionBody(collection)
	body["data"] = [][]float32{req.Vector}
	body["annsField"] = b.vectorField
	body["limit"] = req.TopK
	body["outputFields"] = req.OutputFields

	var raw []map[string]any
	if err := b.client.call(ctx, "/entities/search", body, &raw); err != nil {
		return nil, err
	}

	hits := make([]domain.SearchHit, 0, len(raw))
	for _, entity := range raw {
		hit, err := decodeHit(entity)
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (b *Backend) Count(ctx context.Context, collection string) (int64, error) {
	var stats statsResponse
	if err := b.client.call(ctx, "/collections/get_stats", collectionBody(collection), &stats); err != nil {
		return 0, err
	}
	if stats.RowCount == "" {
		return 0, nil
	}
	return stats.RowCount.Int64()
}

func (b *Backend) Close() error {
	b.client.client.CloseIdleConnections()
	return nil
}

func decodeHit(entity map[string]any) (domain.SearchHit, error) {
	var hit domain.SearchHit

	id, err := toInt64(entity[domain.FieldID])
	if err != nil {
		return hit, fmt.Errorf("hit id: %w", err)
	}
	hit.ID = id

	if d, ok := entity["distance"].(json.Number); ok {
		hit.Score, _ = d.Float64()
	}
	if s, ok := entity[domain.FieldText].(string); ok {
		hit.Text = s
	}
	if s, ok := entity[domain.FieldDocName].(string); ok {
		hit.DocName = s
	}
	if s, ok := entity[domain.FieldDocType].(string); ok {
		hit.DocType = domain.DocType(s)
	}
	if v, ok := entity[domain.FieldChunkID]; ok {
		hit.ChunkID, _ = toInt64(v)
	}
	return hit, nil
}

// toInt64 accepts numbers and numeric strings; Milvus returns Int64 keys as either.
func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		return n.Int64()
	case string:
		return strconv.ParseInt(n, 10, 64)
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("unexpected id type %T", v)
	}
}

func paramInt(params []fieldParam, key string) int {
	for _, p := range params {
		if p.Key == key {
			n, err := strconv.Atoi(fmt.Sprint(p.Value))
			if err == nil {
				return n
			}
		}
	}
	return 0
}
