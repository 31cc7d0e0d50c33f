package workerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/execution-hub/fnhub/internal/application/dispatch"
	"github.com/execution-hub/fnhub/internal/protocol"
)

const maxResponseBytes = 16 << 20

// Client forwards executions to workers over HTTP.
type Client struct {
	http *http.Client
}

var _ dispatch.WorkerClient = (*Client)(nil)

// New builds a client. The timeout is a transport ceiling; the dispatcher
// bounds each call with its own deadline.
func New(timeout time.Duration) *Client {
	return &Client{http: &http.Client{Timeout: timeout}}
}

// BaseURL turns a worker address into a URL prefix.
func BaseURL(address string) string {
	if strings.Contains(address, "://") {
		return strings.TrimRight(address, "/")
	}
	return "http://" + strings.TrimRight(address, "/")
}

func (c *Client) Execute(ctx context.Context, call dispatch.Call) (*dispatch.CallResult, error) {
	if call.OnAccepted != nil {
		var once sync.Once
		ctx = httptrace.WithClientTrace(ctx, &httptrace.ClientTrace{
			WroteRequest: func(info httptrace.WroteRequestInfo) {
				if info.Err == nil {
					once.Do(call.OnAccepted)
				}
			},
		})
	}

	endpoint := BaseURL(call.Worker.Address) + "/execute/" + url.PathEscape(call.Function)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(call.Input))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &dispatch.StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out protocol.ExecuteResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", dispatch.ErrMalformedResponse, err)
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", dispatch.ErrMalformedResponse, err)
	}
	output := out.Output
	if bytes.Equal(bytes.TrimSpace(output), []byte("null")) {
		output = nil
	}
	return &dispatch.CallResult{
		Exit:   *out.Exit,
		Output: output,
		Stdout: out.Stdout,
		Stderr: out.Stderr,
	}, nil
}
