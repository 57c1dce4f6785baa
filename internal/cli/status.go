package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the collection state and row count",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, err := openServices(ctx, GetConfig(), log)
		if err != nil {
			return err
		}
		defer svc.Close()

		state, err := svc.collection.State(ctx)
		if err != nil {
			return err
		}
		count, err := svc.collection.Count(ctx)
		if err != nil {
			return err
		}

		schema := svc.collection.Schema()
		fmt.Println(headerStyle.Render("Collection " + schema.Name))
		fmt.Printf("  Store:        %s\n", GetConfig().Store.URI)
		fmt.Printf("  State:        %s\n", state)
		fmt.Printf("  Rows:         %d\n", count)
		fmt.Printf("  Dimension:    %d\n", schema.Dimension)
		fmt.Printf("  Vector field: %s\n", schema.VectorField)
		fmt.Printf("  Metric:       %s\n", svc.collection.IndexParams().Metric)
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the embedding service",
	RunE: func(cmd *cobra.Command, args []string) error {
		embedder, err := newEmbedder(GetConfig().Embedding)
		if err != nil {
			return err
		}

		health, err := embedder.Health(cmd.Context())
		if err != nil {
			return fmt.Errorf("embedding service unhealthy: %w", err)
		}
		fmt.Printf("status=%s model=%s device=%s\n", health.Status, health.Model, health.Device)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(healthCmd)
}
