package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"docrag/internal/handler"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serve document upload, search and answering over HTTP.

Routes:
  POST /v1/documents          multipart "file" upload, indexed immediately
  POST /v1/search             {"query", "top_k"}
  POST /v1/search/documents   {"query", "top_docs", "chunks_per_doc", "oversample"}
  POST /v1/answer             {"query", "mode": "chunks"|"documents", ...}
  GET  /v1/collection         collection state and row count
  GET  /healthz               embedding service readiness`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	svc, err := openServices(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer svc.Close()

	answerer, err := svc.answerer()
	if err != nil {
		log.Warn("answer generation disabled", "error", err)
	}

	h := handler.New(handler.Options{
		Indexer:    svc.indexer,
		Retriever:  svc.retriever,
		Answerer:   answerer,
		Collection: svc.collection,
		Embedder:   svc.gateway,
		UploadsDir: cfg.Index.UploadsDir,
		Logger:     log,
	})
	app := handler.NewApp(cfg.Server, h, log)

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	if err := svc.collection.EnsureCollection(ctx); err != nil && ctx.Err() == nil {
		log.Warn("collection not ready", "collection", svc.collection.Name(), "error", err)
	}

	log.Info("listening", "addr", addr, "collection", svc.collection.Name(), "store", cfg.Store.URI)
	if err := handler.Serve(ctx, app, addr); err != nil && ctx.Err() == nil {
		return err
	}
	log.Info("server stopped")
	return nil
}
