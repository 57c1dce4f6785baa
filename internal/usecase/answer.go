package usecase

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"docrag/internal/domain"
	"docrag/internal/logger"
	"docrag/internal/port"
)

//go:embed templates/*.txt
var promptTemplates embed.FS

// NoContentMessage is returned instead of calling the model when retrieval
// finds nothing.
const NoContentMessage = "No relevant content was found in the indexed documents. Try rephrasing the question."

const DefaultAnswerTopK = 10

// Answer is a generated response together with the evidence it was built from.
type Answer struct {
	Query     string                     `json:"query"`
	Text      string                     `json:"answer"`
	Model     string                     `json:"model,omitempty"`
	Hits      []domain.SearchHit         `json:"hits,omitempty"`
	Documents []domain.DocumentAggregate `json:"documents,omitempty"`
}

type AnswererOptions struct {
	TopK   int
	Group  domain.GroupOptions
	Limits ContextLimits
	Logger *slog.Logger
}

// Answerer retrieves context and asks the chat model to answer from it.
type Answerer struct {
	retriever port.Retriever
	llm       port.LLM
	opts      AnswererOptions
	templates *template.Template
	system    string
	logger    *slog.Logger
}

type promptData struct {
	Query     string
	Context   string
	Documents int
}

func NewAnswerer(retriever port.Retriever, llm port.LLM, opts AnswererOptions) (*Answerer, error) {
	if opts.TopK <= 0 {
		opts.TopK = DefaultAnswerTopK
	}
	if opts.Group.TopDocs <= 0 {
		opts.Group.TopDocs = DefaultTopDocs
	}
	if opts.Group.ChunksPerDoc <= 0 {
		opts.Group.ChunksPerDoc = DefaultChunksPerDoc
	}
	if opts.Group.Oversample <= 0 {
		opts.Group.Oversample = DefaultOversample
	}
	opts.Limits = opts.Limits.withDefaults()

	tmpl, err := template.New("prompts").Funcs(templateFuncs()).ParseFS(promptTemplates, "templates/*.txt")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	system, err := promptTemplates.ReadFile("templates/system.txt")
	if err != nil {
		return nil, fmt.Errorf("template not found: %w", err)
	}

	return &Answerer{
		retriever: retriever,
		llm:       llm,
		opts:      opts,
		templates: tmpl,
		system:    strings.TrimSpace(string(system)),
		logger:    logger.OrDefault(opts.Logger),
	}, nil
}

// AnswerWithTopChunks answers from the topK best chunks.
func (u *Answerer) AnswerWithTopChunks(ctx context.Context, query string, topK int) (*Answer, error) {
	if topK <= 0 {
		topK = u.opts.TopK
	}

	hits, err := u.retriever.SearchChunks(ctx, query, topK)
	if err != nil {
		return nil, err
	}

	answer := &Answer{Query: query, Hits: hits}
	if len(hits) == 0 {
		answer.Text = NoContentMessage
		return answer, nil
	}

	data := promptData{
		Query:   query,
		Context: BuildChunkContext(hits, u.opts.Limits),
	}
	if err := u.generate(ctx, "chunks.txt", data, answer); err != nil {
		return nil, err
	}
	return answer, nil
}

// AnswerWithTopDocs answers from the best chunks of the best documents.
func (u *Answerer) AnswerWithTopDocs(ctx context.Context, query string, topDocs, chunksPerDoc int) (*Answer, error) {
	opts := u.opts.Group
	if topDocs > 0 {
		opts.TopDocs = topDocs
	}
	if chunksPerDoc > 0 {
		opts.ChunksPerDoc = chunksPerDoc
	}

	docs, err := u.retriever.SearchGroupedByDocument(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	answer := &Answer{Query: query, Documents: docs}
	if len(docs) == 0 {
		answer.Text = NoContentMessage
		return answer, nil
	}

	data := promptData{
		Query:     query,
		Context:   BuildDocumentContext(docs, u.opts.Limits),
		Documents: len(docs),
	}
	if err := u.generate(ctx, "documents.txt", data, answer); err != nil {
		return nil, err
	}
	return answer, nil
}

func (u *Answerer) generate(ctx context.Context, name string, data promptData, answer *Answer) error {
	var buf bytes.Buffer
	if err := u.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}

	start := time.Now()
	text, err := u.llm.GenerateWithSystem(ctx, u.system, buf.String())
	if err != nil {
		return fmt.Errorf("answer %q: %w", data.Query, err)
	}

	answer.Text = text
	answer.Model = u.llm.ModelName()
	u.logger.Info("generated answer",
		"model", answer.Model,
		"context_chars", len(data.Context),
		"duration", time.Since(start).Round(time.Millisecond))
	return nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"plural": func(n int, one, many string) string {
			if n == 1 {
				return one
			}
			return many
		},
	}
}
