package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"docrag/internal/usecase"
)

var (
	evalSet  string
	evalK    int
	evalJSON bool
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Measure document retrieval quality against a query set",
	Long: `Run a YAML list of queries with their relevant documents through
document-level search and report precision@k, recall@k, MRR and nDCG@k.

The query set looks like:
  - query: "How long is the warranty?"
    relevant: ["warranty.pdf"]

Example:
  docrag eval --set queries.yaml --top-docs 3`,
	RunE: runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)
	evalCmd.Flags().StringVar(&evalSet, "set", "", "path to the YAML query set (required)")
	evalCmd.Flags().IntVarP(&evalK, "top-docs", "k", 0, "documents per query (default top_docs from config)")
	evalCmd.Flags().BoolVar(&evalJSON, "json", false, "output as JSON")
	evalCmd.MarkFlagRequired("set")
}

func loadEvalCases(path string) ([]usecase.EvalCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read query set: %w", err)
	}

	var cases []usecase.EvalCase
	if err := yaml.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	for i, c := range cases {
		if strings.TrimSpace(c.Query) == "" {
			return nil, fmt.Errorf("case %d: query is empty", i)
		}
	}
	return cases, nil
}

func runEval(cmd *cobra.Command, args []string) error {
	cases, err := loadEvalCases(evalSet)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	svc, err := openServices(ctx, GetConfig(), log)
	if err != nil {
		return err
	}
	defer svc.Close()

	report, err := svc.retriever.Evaluate(ctx, cases, evalK)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	if evalJSON {
		return printJSON(report)
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("Retrieval quality over %d queries (k=%d)", len(report.Cases), report.K)))
	fmt.Println(strings.Repeat("-", 70))
	for i, c := range report.Cases {
		fmt.Printf("%d. %s\n", i+1, c.Query)
		fmt.Printf("   P=%.3f R=%.3f RR=%.3f nDCG=%.3f  %s\n",
			c.Precision, c.Recall, c.ReciprocalRank, c.NDCG,
			mutedStyle.Render(strings.Join(c.Retrieved, ", ")))
	}
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("  Mean precision@%d: %.3f\n", report.K, report.MeanPrecision)
	fmt.Printf("  Mean recall@%d:    %.3f\n", report.K, report.MeanRecall)
	fmt.Printf("  MRR:               %.3f\n", report.MRR)
	fmt.Printf("  Mean nDCG@%d:      %.3f\n", report.K, report.MeanNDCG)
	return nil
}
