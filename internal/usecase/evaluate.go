package usecase

import (
	"context"
	"fmt"
	"math"

	"docrag/internal/domain"
)

// EvalCase is one query together with the documents that should answer it.
type EvalCase struct {
	Query    string   `yaml:"query" json:"query"`
	Relevant []string `yaml:"relevant" json:"relevant"`
}

// EvalResult scores the documents retrieved for one case.
type EvalResult struct {
	Query          string   `json:"query"`
	Retrieved      []string `json:"retrieved"`
	Precision      float64  `json:"precision"`
	Recall         float64  `json:"recall"`
	ReciprocalRank float64  `json:"reciprocal_rank"`
	NDCG           float64  `json:"ndcg"`
}

// EvalReport aggregates document-level retrieval quality over a query set.
type EvalReport struct {
	K             int          `json:"k"`
	Cases         []EvalResult `json:"cases"`
	MeanPrecision float64      `json:"mean_precision"`
	MeanRecall    float64      `json:"mean_recall"`
	MRR           float64      `json:"mrr"`
	MeanNDCG      float64      `json:"mean_ndcg"`
}

// Evaluate runs every case through document-level search with k documents
// and reports precision@k, recall@k, MRR and binary-relevance nDCG@k.
func (u *Retriever) Evaluate(ctx context.Context, cases []EvalCase, k int) (*EvalReport, error) {
	if k <= 0 {
		k = u.opts.TopDocs
	}

	report := &EvalReport{K: k, Cases: make([]EvalResult, 0, len(cases))}
	if len(cases) == 0 {
		return report, nil
	}

	for i, c := range cases {
		docs, err := u.SearchGroupedByDocument(ctx, c.Query, domain.GroupOptions{TopDocs: k})
		if err != nil {
			return nil, fmt.Errorf("case %d: %w", i, err)
		}

		retrieved := make([]string, len(docs))
		for j, d := range docs {
			retrieved[j] = d.DocName
		}

		res := EvalResult{
			Query:          c.Query,
			Retrieved:      retrieved,
			Precision:      PrecisionAtK(retrieved, c.Relevant),
			Recall:         RecallAtK(retrieved, c.Relevant),
			ReciprocalRank: ReciprocalRank(retrieved, c.Relevant),
			NDCG:           BinaryNDCG(retrieved, c.Relevant, k),
		}
		report.Cases = append(report.Cases, res)

		report.MeanPrecision += res.Precision
		report.MeanRecall += res.Recall
		report.MRR += res.ReciprocalRank
		report.MeanNDCG += res.NDCG
	}

	n := float64(len(cases))
	report.MeanPrecision /= n
	report.MeanRecall /= n
	report.MRR /= n
	report.MeanNDCG /= n
	return report, nil
}

func PrecisionAtK(retrieved, relevant []string) float64 {
	if len(retrieved) == 0 {
		return 0
	}
	return float64(countRelevant(retrieved, relevant)) / float64(len(retrieved))
}

func RecallAtK(retrieved, relevant []string) float64 {
	if len(relevant) == 0 {
		return 0
	}
	return float64(countRelevant(retrieved, relevant)) / float64(len(relevant))
}

// ReciprocalRank is 1/rank of the first relevant result, or 0.
func ReciprocalRank(retrieved, relevant []string) float64 {
	set := toSet(relevant)
	for i, r := range retrieved {
		if set[r] {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}

// BinaryNDCG scores each retrieved result 1 when relevant and compares the
// ranking to an ideal one that puts every relevant document first.
func BinaryNDCG(retrieved, relevant []string, k int) float64 {
	set := toSet(relevant)

	gains := make([]float64, 0, len(retrieved))
	for _, r := range retrieved {
		if set[r] {
			gains = append(gains, 1)
		} else {
			gains = append(gains, 0)
		}
	}

	ideal := make([]float64, min(len(set), k))
	for i := range ideal {
		ideal[i] = 1
	}
	return NDCG(gains, ideal)
}

func NDCG(scores, ideal []float64) float64 {
	dcg := calculateDCG(scores)
	idcg := calculateDCG(ideal)
	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

func calculateDCG(scores []float64) float64 {
	dcg := 0.0
	for i, score := range scores {
		dcg += score / math.Log2(float64(i+2))
	}
	return dcg
}

func countRelevant(retrieved, relevant []string) int {
	set := toSet(relevant)
	hits := 0
	for _, r := range retrieved {
		if set[r] {
			hits++
		}
	}
	return hits
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
