package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/execution-hub/fnhub/internal/domain/types"
	"github.com/execution-hub/fnhub/internal/domain/worker"
	"github.com/execution-hub/fnhub/internal/protocol"
)

// Client talks to the control plane's worker registry API.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Register(ctx context.Context, address string) (worker.Worker, error) {
	body, err := json.Marshal(address)
	if err != nil {
		return worker.Worker{}, err
	}
	return c.do(ctx, http.MethodPost, "/v1/workers", body)
}

func (c *Client) Get(ctx context.Context, id types.ID) (worker.Worker, error) {
	return c.do(ctx, http.MethodGet, "/v1/workers/"+id.String(), nil)
}

func (c *Client) Update(ctx context.Context, w worker.Worker) (worker.Worker, error) {
	body, err := json.Marshal(w)
	if err != nil {
		return worker.Worker{}, err
	}
	return c.do(ctx, http.MethodPatch, "/v1/workers/"+w.ID.String(), body)
}

// Heartbeat sends an empty PATCH, which only refreshes last_heartbeat.
func (c *Client) Heartbeat(ctx context.Context, id types.ID) (worker.Worker, error) {
	return c.do(ctx, http.MethodPatch, "/v1/workers/"+id.String(), nil)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (worker.Worker, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return worker.Worker{}, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return worker.Worker{}, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return worker.Worker{}, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return worker.Worker{}, worker.ErrNotFound
	case resp.StatusCode >= 300:
		var e protocol.ErrorResponse
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return worker.Worker{}, fmt.Errorf("control plane %s %s: %d %s: %s", method, path, resp.StatusCode, e.Error, e.Message)
		}
		return worker.Worker{}, fmt.Errorf("control plane %s %s: status %d", method, path, resp.StatusCode)
	}

	var w worker.Worker
	if err := json.Unmarshal(data, &w); err != nil {
		return worker.Worker{}, fmt.Errorf("decode worker: %w", err)
	}
	return w, nil
}
