// Package milvus implements a vector backend over the Milvus RESTful v2 API.
package milvus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docrag/internal/domain"
)

const apiPrefix = "/v2/vectordb"

// Client is a thin JSON client for the /v2/vectordb endpoints.
type Client struct {
	baseURL string
	token   string
	dbName  string
	client  *http.Client
}

// envelope is the common response wrapper. Code 0 means success.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// APIError is a non-zero code returned by Milvus.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("milvus error %d: %s", e.Code, e.Message)
}

// NewClient accepts http(s):// or milvus:// URIs. milvus:// is treated as plain HTTP.
func NewClient(uri, token, dbName string, timeout time.Duration) (*Client, error) {
	base := strings.TrimRight(uri, "/")
	switch {
	case strings.HasPrefix(base, "milvus://"):
		base = "http://" + strings.TrimPrefix(base, "milvus://")
	case strings.HasPrefix(base, "http://"), strings.HasPrefix(base, "https://"):
	default:
		return nil, fmt.Errorf("%w: unsupported milvus uri %q", domain.ErrInvalidArgument, uri)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: base,
		token:   token,
		dbName:  dbName,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// call posts body to path and decodes the envelope's data into out, when out is non-nil.
func (c *Client) call(ctx context.Context, path string, body map[string]any, out any) error {
	if c.dbName != "" {
		body["dbName"] = c.dbName
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+apiPrefix+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("milvus %s: %w", path, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("milvus %s: %s", path, readErrorBody(resp))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("milvus %s: decode response: %w", path, err)
	}
	if env.Code != 0 && env.Code != http.StatusOK {
		return classify(&APIError{Code: env.Code, Message: env.Message})
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(env.Data))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("milvus %s: decode data: %w", path, err)
	}
	return nil
}

// classify maps Milvus messages onto the domain sentinels.
func classify(err *APIError) error {
	msg := strings.ToLower(err.Message)
	switch {
	case strings.Contains(msg, "index not found"),
		strings.Contains(msg, "index doesn't exist"),
		strings.Contains(msg, "there is no vector index"):
		return fmt.Errorf("%w: %w", domain.ErrIndexNotFound, err)
	case strings.Contains(msg, "collection not found"),
		strings.Contains(msg, "can't find collection"):
		return fmt.Errorf("%w: %w", domain.ErrCollectionNotFound, err)
	default:
		return err
	}
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
