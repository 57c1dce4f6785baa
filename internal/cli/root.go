package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"docrag/config"
	"docrag/internal/logger"
)

var (
	cfgFile  string
	cfg      *config.Config
	rootDir  string
	logLevel string
	log      *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "docrag",
	Short: "Index documents into a vector store and answer questions from them",
	Long: `docrag extracts text from pdf, txt and docx files, splits it into overlapping
word windows, embeds the windows with a remote embedding service and stores them
in a vector collection. Queries retrieve the most similar chunks, optionally
grouped by document, and can be answered by a chat model grounded in them.

Example usage:
  docrag index ./docs                     # Index a directory
  docrag query -q "warranty period"       # Search for relevant chunks
  docrag query -q "warranty" --by-doc     # Group hits by document
  docrag ask -q "How long is the warranty?"
  docrag serve                            # Start the HTTP API`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		log = logger.Setup(logger.Options{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
		})

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./rag.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory (default is current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}
