package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	queryText         string
	queryTopK         int
	queryJSON         bool
	queryByDoc        bool
	queryTopDocs      int
	queryChunksPerDoc int
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search indexed documents",
	Long: `Search for the chunks most similar to a query, or group the hits by document.

Examples:
  docrag query -q "warranty period"
  docrag query -q "warranty period" --top-k 10 --json
  docrag query -q "warranty period" --by-doc --top-docs 3`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of chunks (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.Flags().BoolVar(&queryByDoc, "by-doc", false, "group hits by document")
	queryCmd.Flags().IntVar(&queryTopDocs, "top-docs", 0, "number of documents with --by-doc (default from config)")
	queryCmd.Flags().IntVar(&queryChunksPerDoc, "chunks-per-doc", 0, "chunks kept per document with --by-doc (default from config)")
	queryCmd.MarkFlagRequired("query")
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	svc, err := openServices(ctx, GetConfig(), log)
	if err != nil {
		return err
	}
	defer svc.Close()

	var result any
	if queryByDoc {
		opts := domainGroup(GetConfig().Retrieve)
		if queryTopDocs > 0 {
			opts.TopDocs = queryTopDocs
		}
		if queryChunksPerDoc > 0 {
			opts.ChunksPerDoc = queryChunksPerDoc
		}

		docs, err := svc.retriever.SearchGroupedByDocument(ctx, queryText, opts)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		if !queryJSON {
			renderDocuments(os.Stdout, queryText, docs)
			return nil
		}
		result = docs
	} else {
		hits, err := svc.retriever.SearchChunks(ctx, queryText, queryTopK)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		if !queryJSON {
			renderHits(os.Stdout, queryText, hits)
			return nil
		}
		result = hits
	}

	return printJSON(result)
}

func printJSON(v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(output))
	return nil
}

