package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"docrag/internal/domain"
	"docrag/internal/port"
)

const (
	ProtocolEmbed  = "embed"
	ProtocolKServe = "kserve"
)

var _ port.Embedder = (*ServiceClient)(nil)

// ServiceClient talks to a remote embedding model over HTTP.
//
// The embed protocol posts {"texts": [...]} to /embed. The kserve protocol posts
// {"inputs": [...]} to /v1/models/<model>:predict. Both answer {"embeddings": [[...]]}.
type ServiceClient struct {
	baseURL  string
	protocol string
	model    string
	client   *http.Client
}

type embedRequest struct {
	Texts []string `json:"texts"`
}

type predictRequest struct {
	Inputs []string `json:"inputs"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

type healthResponse struct {
	Status string `json:"status"`
	Device string `json:"device"`
	Model  string `json:"model"`
}

func NewServiceClient(baseURL, protocol, model string, timeout time.Duration) (*ServiceClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: embedding service URL is empty", domain.ErrInvalidArgument)
	}
	switch protocol {
	case "":
		protocol = ProtocolEmbed
	case ProtocolEmbed, ProtocolKServe:
	default:
		return nil, fmt.Errorf("%w: unknown embedding protocol %q", domain.ErrInvalidArgument, protocol)
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &ServiceClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		protocol: protocol,
		model:    model,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func (c *ServiceClient) ModelName() string {
	return c.model
}

func (c *ServiceClient) request(texts []string) (string, any) {
	if c.protocol == ProtocolKServe {
		return "/v1/models/" + url.PathEscape(c.model) + ":predict", predictRequest{Inputs: texts}
	}
	return "/embed", embedRequest{Texts: texts}
}

// Embed sends one request for all texts. Batching is the caller's concern.
func (c *ServiceClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	path, body := c.request(texts)

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s", domain.ErrEmbeddingUnavailable, readErrorBody(resp))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrEmbeddingShape, err)
	}
	if out.Embeddings == nil {
		return nil, fmt.Errorf("%w: response has no embeddings", domain.ErrEmbeddingShape)
	}

	return out.Embeddings, nil
}

// Health queries GET /healthz.
func (c *ServiceClient) Health(ctx context.Context) (domain.EmbedderHealth, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return domain.EmbedderHealth{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.EmbedderHealth{}, fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return domain.EmbedderHealth{}, fmt.Errorf("%w: %s", domain.ErrEmbeddingUnavailable, readErrorBody(resp))
	}

	var h healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return domain.EmbedderHealth{}, fmt.Errorf("decode health: %w", err)
	}

	return domain.EmbedderHealth{
		Status: h.Status,
		Device: h.Device,
		Model:  h.Model,
	}, nil
}

func drainAndClose(r io.ReadCloser) {
	_, _ = io.Copy(io.Discard, r)
	r.Close()
}

func readErrorBody(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return resp.Status
	}
	return fmt.Sprintf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
}
