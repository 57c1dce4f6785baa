package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"docrag/internal/domain"
)

func TestTruncateBytes(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello", 3, "hel"},
		{"héllo", 2, "h"},
		{"héllo", 3, "hé"},
		{"日本語", 4, "日"},
		{"日本語", 0, "日本語"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, TruncateBytes(tc.in, tc.max), "TruncateBytes(%q, %d)", tc.in, tc.max)
	}
}

func TestCompareSchema(t *testing.T) {
	want := NewSchema("docs", "vector", 1024, true, 4096)
	ip := domain.IndexParams{IndexType: DefaultIndexType, Metric: domain.MetricIP}

	assert.NoError(t, CompareSchema(want, want, ip, ip))
	assert.NoError(t, CompareSchema(want, want, ip, domain.IndexParams{}), "unindexed collection matches any metric")

	other := want
	other.Dimension = 768
	assert.ErrorIs(t, CompareSchema(want, other, ip, ip), domain.ErrSchemaMismatch)

	other = want
	other.VectorField = "embedding"
	assert.ErrorIs(t, CompareSchema(want, other, ip, ip), domain.ErrSchemaMismatch)

	cosine := domain.IndexParams{Metric: domain.MetricCosine}
	assert.ErrorIs(t, CompareSchema(want, want, ip, cosine), domain.ErrSchemaMismatch)
}

func TestSchemaHash(t *testing.T) {
	a := NewSchema("docs", "vector", 1024, true, 4096)
	b := NewSchema("other", "vector", 1024, false, 100)
	ip := domain.IndexParams{Metric: domain.MetricIP}

	assert.Equal(t, SchemaHash(a, ip), SchemaHash(b, ip), "name and widths do not change the vector space")
	assert.NotEqual(t, SchemaHash(a, ip), SchemaHash(a, domain.IndexParams{Metric: domain.MetricCosine}))
}

func TestScore(t *testing.T) {
	assert.InDelta(t, 4.0, Score(domain.MetricIP, []float32{2, 0}, []float32{2, 1}), 1e-9)
	assert.InDelta(t, 0.0, Score(domain.MetricCosine, []float32{0, 0}, []float32{1, 1}), 1e-9)
	assert.InDelta(t, 1.0, Score(domain.MetricCosine, []float32{2, 0}, []float32{5, 0}), 1e-9)
	assert.Zero(t, Score(domain.MetricIP, []float32{1}, []float32{1, 2}))
}
