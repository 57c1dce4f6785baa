package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"docrag/internal/usecase"
)

var (
	askText   string
	askTopK   int
	askByDoc  bool
	askJSON   bool
	askTopDoc int
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer a question from indexed documents",
	Long: `Retrieve the most relevant chunks and ask the chat model to answer using
only them. When nothing relevant is found the model is not called.

Examples:
  docrag ask -q "How long is the warranty?"
  docrag ask -q "Compare the two contracts" --by-doc --top-docs 2`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askText, "query", "q", "", "question (required)")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of chunks in the context (default 10)")
	askCmd.Flags().BoolVar(&askByDoc, "by-doc", false, "build the context from the best documents")
	askCmd.Flags().IntVar(&askTopDoc, "top-docs", 0, "number of documents with --by-doc (default from config)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output as JSON")
	askCmd.MarkFlagRequired("query")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	svc, err := openServices(ctx, GetConfig(), log)
	if err != nil {
		return err
	}
	defer svc.Close()

	answerer, err := svc.answerer()
	if err != nil {
		return err
	}

	var ans *usecase.Answer
	if askByDoc {
		ans, err = answerer.AnswerWithTopDocs(ctx, askText, askTopDoc, 0)
	} else {
		ans, err = answerer.AnswerWithTopChunks(ctx, askText, askTopK)
	}
	if err != nil {
		return fmt.Errorf("answer failed: %w", err)
	}

	if askJSON {
		return printJSON(ans)
	}
	renderAnswer(os.Stdout, ans)
	return nil
}
