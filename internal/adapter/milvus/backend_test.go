package milvus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
)

// fakeMilvus answers the subset of /v2/vectordb used by Backend.
type fakeMilvus struct {
	mu       sync.Mutex
	t        *testing.T
	exists   bool
	autoID   bool
	dim      int
	metric   string
	indexed  bool
	loaded   bool
	rows     []map[string]any
	lastAuth string
	paths    []string
	// searchErr is returned once as an error envelope by /entities/search.
	searchErr string
}

func (f *fakeMilvus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastAuth = r.Header.Get("Authorization")
	path := strings.TrimPrefix(r.URL.Path, apiPrefix)
	f.paths = append(f.paths, path)

	var body map[string]any
	if !assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&body)) {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}

	reply := func(data any) {
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 0, "data": data})
	}
	fail := func(code int, msg string) {
		_ = json.NewEncoder(w).Encode(map[string]any{"code": code, "message": msg})
	}

	if path != "/collections/has" && path != "/collections/create" && !f.exists {
		fail(100, "collection not found[collection=docs]")
		return
	}

	switch path {
	case "/collections/has":
		reply(map[string]any{"has": f.exists})
	case "/collections/create":
		schema := body["schema"].(map[string]any)
		f.exists = true
		f.autoID = schema["autoId"].(bool)
		for _, field := range schema["fields"].([]any) {
			fm := field.(map[string]any)
			if fm["dataType"] == "FloatVector" {
				params := fm["elementTypeParams"].(map[string]any)
				f.dim = mustAtoi(params["dim"].(string))
			}
		}
		reply(map[string]any{})
	case "/collections/describe":
		var indexes []map[string]any
		if f.indexed {
			indexes = append(indexes, map[string]any{"fieldName": "vector", "indexName": "vector", "metricType": f.metric})
		}
		reply(map[string]any{
			"collectionName": "docs",
			"autoId":         f.autoID,
			"fields": []map[string]any{
				{"name": "id", "type": "Int64", "primaryKey": true, "autoId": f.autoID},
				{"name": "vector", "type": "FloatVector", "params": []map[string]any{{"key": "dim", "value": strconv.Itoa(f.dim)}}},
				{"name": "text", "type": "VarChar", "params": []map[string]any{{"key": "max_length", "value": 4096}}},
			},
			"indexes": indexes,
		})
	case "/indexes/list":
		if f.indexed {
			reply([]string{"vector"})
		} else {
			reply([]string{})
		}
	case "/indexes/create":
		params := body["indexParams"].([]any)[0].(map[string]any)
		f.metric = params["metricType"].(string)
		f.indexed = true
		reply(map[string]any{})
	case "/collections/load":
		if !f.indexed {
			fail(700, "index not found[collection=docs]")
			return
		}
		f.loaded = true
		reply(map[string]any{})
	case "/collections/get_load_state":
		state := "LoadStateNotLoad"
		if f.loaded {
			state = "LoadStateLoaded"
		}
		reply(map[string]any{"loadState": state})
	case "/entities/insert":
		var ids []any
		for _, raw := range body["data"].([]any) {
			row := raw.(map[string]any)
			if f.autoID {
				row["id"] = float64(450000 + len(f.rows))
				// large ids come back as strings
				ids = append(ids, strconv.Itoa(450000+len(f.rows)))
			} else {
				ids = append(ids, row["id"])
			}
			f.rows = append(f.rows, row)
		}
		reply(map[string]any{"insertCount": len(ids), "insertIds": ids})
	case "/entities/search":
		if f.searchErr != "" {
			msg := f.searchErr
			f.searchErr = ""
			fail(700, msg)
			return
		}
		limit := int(body["limit"].(float64))
		var hits []map[string]any
		for i, row := range f.rows {
			if i >= limit {
				break
			}
			hits = append(hits, map[string]any{
				"id":       row["id"],
				"distance": 0.9 - float64(i)*0.1,
				"text":     row["text"],
				"doc_name": row["doc_name"],
				"chunk_id": row["chunk_id"],
			})
		}
		reply(hits)
	case "/collections/get_stats":
		reply(map[string]any{"rowCount": len(f.rows)})
	default:
		http.NotFound(w, r)
	}
}

func mustAtoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func newTestBackend(t *testing.T, fake *fakeMilvus) *Backend {
	t.Helper()
	fake.t = t
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL, "secret", "", 5*time.Second)
	require.NoError(t, err)
	return NewBackend(client, "vector")
}

func testSchema() domain.CollectionSchema {
	return domain.CollectionSchema{
		Name:          "docs",
		VectorField:   "vector",
		Dimension:     3,
		AutoID:        true,
		MaxTextLength: 4096,
		MaxDocName:    512,
		MaxDocType:    16,
	}
}

func TestBackendLifecycle(t *testing.T) {
	ctx := context.Background()
	fake := &fakeMilvus{}
	b := newTestBackend(t, fake)

	state, err := b.Describe(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, domain.StateAbsent, state)

	require.NoError(t, b.CreateCollection(ctx, testSchema()))
	state, err = b.Describe(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, domain.StateCreated, state)

	require.NoError(t, b.CreateIndex(ctx, "docs", domain.IndexParams{IndexType: "AUTOINDEX", Metric: domain.MetricIP}))
	state, err = b.Describe(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, domain.StateIndexed, state)

	require.NoError(t, b.LoadCollection(ctx, "docs"))
	state, err = b.Describe(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, domain.StateLoaded, state)

	schema, params, err := b.Schema(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 3, schema.Dimension)
	assert.Equal(t, "vector", schema.VectorField)
	assert.True(t, schema.AutoID)
	assert.Equal(t, 4096, schema.MaxTextLength)
	assert.Equal(t, domain.MetricIP, params.Metric)

	assert.Equal(t, "Bearer secret", fake.lastAuth)
}

func TestBackendInsertAndSearch(t *testing.T) {
	ctx := context.Background()
	fake := &fakeMilvus{}
	b := newTestBackend(t, fake)

	require.NoError(t, b.CreateCollection(ctx, testSchema()))
	require.NoError(t, b.CreateIndex(ctx, "docs", domain.IndexParams{IndexType: "AUTOINDEX", Metric: domain.MetricIP}))
	require.NoError(t, b.LoadCollection(ctx, "docs"))

	ids, err := b.Insert(ctx, "docs", []domain.Row{
		{Text: "first", DocName: "a.pdf", DocType: domain.DocTypePDF, ChunkID: 0, Vector: []float32{1, 0, 0}},
		{Text: "second", DocName: "a.pdf", DocType: domain.DocTypePDF, ChunkID: 1, Vector: []float32{0, 1, 0}},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{450000, 450001}, ids)

	n, err := b.Count(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	hits, err := b.Search(ctx, "docs", domain.SearchRequest{
		Vector:       []float32{1, 0, 0},
		TopK:         5,
		OutputFields: domain.DefaultOutputFields,
	})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, int64(450000), hits[0].ID)
	assert.Equal(t, "first", hits[0].Text)
	assert.Equal(t, "a.pdf", hits[0].DocName)
	assert.InDelta(t, 0.9, hits[0].Score, 1e-9)
	assert.Equal(t, int64(1), hits[1].ChunkID)
}

func TestBackendExplicitIDs(t *testing.T) {
	ctx := context.Background()
	fake := &fakeMilvus{}
	b := newTestBackend(t, fake)

	schema := testSchema()
	schema.AutoID = false
	require.NoError(t, b.CreateCollection(ctx, schema))

	ids, err := b.Insert(ctx, "docs", []domain.Row{
		{ID: 7, Text: "x", DocName: "a.txt", Vector: []float32{1, 0, 0}},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, ids)
}

func TestBackendErrorClassification(t *testing.T) {
	ctx := context.Background()

	t.Run("collection missing", func(t *testing.T) {
		b := newTestBackend(t, &fakeMilvus{})
		_, err := b.Count(ctx, "docs")
		assert.ErrorIs(t, err, domain.ErrCollectionNotFound)
	})

	t.Run("index missing", func(t *testing.T) {
		fake := &fakeMilvus{searchErr: "failed to search: index not found[collection=docs]"}
		b := newTestBackend(t, fake)
		require.NoError(t, b.CreateCollection(ctx, testSchema()))

		_, err := b.Search(ctx, "docs", domain.SearchRequest{Vector: []float32{1, 0, 0}, TopK: 1})
		assert.ErrorIs(t, err, domain.ErrIndexNotFound)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 700, apiErr.Code)
	})
}

func TestNewClientSchemes(t *testing.T) {
	c, err := NewClient("milvus://localhost:19530/", "", "", 0)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:19530", c.baseURL)

	_, err = NewClient("grpc://localhost:19530", "", "", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}
