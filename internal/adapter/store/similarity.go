package store

import (
	"math"
	"sort"

	"docrag/internal/domain"
)

// Score compares a stored vector with a query under the given metric.
// Higher is always better.
func Score(metric domain.Metric, a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if metric != domain.MetricCosine {
		return dot
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// RankHits sorts by descending score, ties by ascending primary key, and keeps topK.
func RankHits(hits []domain.SearchHit, topK int) []domain.SearchHit {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}
