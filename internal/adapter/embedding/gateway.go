package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"docrag/internal/adapter/cache"
	"docrag/internal/domain"
	"docrag/internal/logger"
	"docrag/internal/port"
)

const (
	DefaultBatchSize    = 16
	DefaultBatchTimeout = 120 * time.Second
	DefaultQueryTimeout = 15 * time.Second
)

var (
	_ port.BatchEmbedder = (*Gateway)(nil)
	_ port.QueryEmbedder = (*Gateway)(nil)
)

type GatewayOptions struct {
	BatchSize int
	// Workers bounds how many batches are in flight at once.
	Workers           int
	BatchTimeout      time.Duration
	QueryTimeout      time.Duration
	RequestsPerSecond float64
	Cache             *cache.VectorCache
	Logger            *slog.Logger
}

// Gateway batches calls to an Embedder and checks every response is [len(batch), D].
type Gateway struct {
	embedder     port.Embedder
	dimension    int
	batchSize    int
	workers      int
	batchTimeout time.Duration
	queryTimeout time.Duration
	limiter      *rate.Limiter
	cache        *cache.VectorCache
	logger       *slog.Logger
}

func NewGateway(embedder port.Embedder, dimension int, opts GatewayOptions) *Gateway {
	g := &Gateway{
		embedder:     embedder,
		dimension:    dimension,
		batchSize:    opts.BatchSize,
		workers:      opts.Workers,
		batchTimeout: opts.BatchTimeout,
		queryTimeout: opts.QueryTimeout,
		cache:        opts.Cache,
		logger:       logger.OrDefault(opts.Logger),
	}
	if g.batchSize <= 0 {
		g.batchSize = DefaultBatchSize
	}
	if g.workers <= 0 {
		g.workers = 1
	}
	if g.batchTimeout <= 0 {
		g.batchTimeout = DefaultBatchTimeout
	}
	if g.queryTimeout <= 0 {
		g.queryTimeout = DefaultQueryTimeout
	}
	if opts.RequestsPerSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return g
}

func (g *Gateway) Dimension() int {
	return g.dimension
}

func (g *Gateway) ModelName() string {
	return g.embedder.ModelName()
}

func (g *Gateway) Health(ctx context.Context) (domain.EmbedderHealth, error) {
	ctx, cancel := context.WithTimeout(ctx, g.queryTimeout)
	defer cancel()
	return g.embedder.Health(ctx)
}

// EmbedBatch embeds texts in batches of at most batchSize and returns one vector per
// text in input order. Empty input returns an empty matrix without calling the service.
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string, progress port.ProgressFunc) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	batches := splitBatches(texts, g.batchSize)
	results := make([][][]float32, len(batches))

	var (
		progressMu sync.Mutex
		done       int
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)

	for i, batch := range batches {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}

			start := time.Now()
			vecs, err := g.call(egCtx, batch, g.batchTimeout)
			if err != nil {
				return fmt.Errorf("embed batch %d: %w", i, err)
			}
			// slot by batch index so completion order does not matter
			results[i] = vecs

			g.logger.Debug("embedded batch",
				"batch", i,
				"size", len(batch),
				"duration", time.Since(start))

			if progress != nil {
				progressMu.Lock()
				done += len(batch)
				progress(done, len(texts))
				progressMu.Unlock()
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	out := make([][]float32, 0, len(texts))
	for _, vecs := range results {
		out = append(out, vecs...)
	}
	return out, nil
}

func (g *Gateway) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return g.EmbedBatch(ctx, texts, nil)
}

// EmbedQuery embeds a single query under the shorter query timeout, consulting the
// cache first when one is configured.
func (g *Gateway) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidArgument)
	}

	model := g.embedder.ModelName()
	if g.cache != nil {
		if vec, ok := g.cache.Get(model, query); ok {
			return vec, nil
		}
	}

	vecs, err := g.call(ctx, []string{query}, g.queryTimeout)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	if g.cache != nil {
		g.cache.Put(model, query, vecs[0])
	}
	return vecs[0], nil
}

func (g *Gateway) call(ctx context.Context, batch []string, timeout time.Duration) ([][]float32, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	vecs, err := g.embedder.Embed(callCtx, batch)
	if err != nil {
		return nil, err
	}
	if err := g.validate(vecs, len(batch)); err != nil {
		return nil, err
	}
	return vecs, nil
}

func (g *Gateway) validate(vecs [][]float32, rows int) error {
	if len(vecs) != rows {
		return fmt.Errorf("%w: expected %d rows, got %d", domain.ErrEmbeddingShape, rows, len(vecs))
	}
	for i, v := range vecs {
		if len(v) != g.dimension {
			return fmt.Errorf("%w: row %d has dimension %d, expected %d",
				domain.ErrEmbeddingShape, i, len(v), g.dimension)
		}
	}
	return nil
}

func splitBatches(texts []string, size int) [][]string {
	batches := make([][]string, 0, (len(texts)+size-1)/size)
	for i := 0; i < len(texts); i += size {
		end := min(i+size, len(texts))
		batches = append(batches, texts[i:end])
	}
	return batches
}
