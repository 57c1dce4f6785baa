package usecase

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"docrag/internal/adapter/chunker"
	"docrag/internal/adapter/embedding"
	"docrag/internal/adapter/extractor"
	"docrag/internal/adapter/fs"
	"docrag/internal/adapter/store"
	"docrag/internal/domain"
)

const testDim = 256

type pipeline struct {
	collection *store.Collection
	gateway    *embedding.Gateway
	indexer    *Indexer
	retriever  *Retriever
}

func newPipeline(t *testing.T, size, overlap int) *pipeline {
	t.Helper()

	backend := store.NewMemoryBackend()
	t.Cleanup(func() { _ = backend.Close() })

	collection := store.NewCollection(backend, store.CollectionOptions{
		Schema: store.NewSchema("docs", "vector", testDim, true, store.DefaultMaxTextLength),
	})
	gateway := embedding.NewGateway(embedding.NewMockEmbedder(testDim), testDim, embedding.GatewayOptions{BatchSize: 4})

	return &pipeline{
		collection: collection,
		gateway:    gateway,
		indexer: NewIndexer(
			extractor.New(),
			chunker.NewWordChunker(size, overlap),
			gateway,
			collection,
			fs.NewWalker([]string{"**/*.txt", "**/*.pdf", "**/*.docx"}, nil),
			nil,
		),
		retriever: NewRetriever(gateway, collection, RetrieverOptions{}),
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func words(word string, n int) string {
	return strings.TrimSpace(strings.Repeat(word+" ", n))
}

// fakeLLM records the prompts it receives.
type fakeLLM struct {
	mu     sync.Mutex
	reply  string
	err    error
	system []string
	user   []string
}

func (f *fakeLLM) GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.system = append(f.system, systemPrompt)
	f.user = append(f.user, userPrompt)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeLLM) ModelName() string { return "fake-chat" }

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.user)
}

// fakeRetriever returns canned results and records the options it was given.
type fakeRetriever struct {
	hits     []domain.SearchHit
	docs     []domain.DocumentAggregate
	err      error
	lastTopK int
	lastOpts domain.GroupOptions
}

func (f *fakeRetriever) SearchChunks(ctx context.Context, query string, topK int) ([]domain.SearchHit, error) {
	f.lastTopK = topK
	return f.hits, f.err
}

func (f *fakeRetriever) SearchGroupedByDocument(ctx context.Context, query string, opts domain.GroupOptions) ([]domain.DocumentAggregate, error) {
	f.lastOpts = opts
	return f.docs, f.err
}
