package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds every round-trip to a worker so a single unreachable
// worker cannot stall a dispatch tick.
const DefaultTimeout = 30 * time.Second

// ErrWorkerFailure wraps transport faults, timeouts and unexpected replies.
var ErrWorkerFailure = errors.New("worker failure")

// Client is the RPC surface of a single remote build worker.
type Client interface {
	Info(ctx context.Context) (*Info, error)
	Status(ctx context.Context) (*StatusResponse, error)
	EnsurePresent(ctx context.Context, request EnsurePresentRequest) (*EnsurePresentResponse, error)
	Build(ctx context.Context, request BuildRequest) (*BuildResponse, error)
	Abort(ctx context.Context) error
	Clean(ctx context.Context) error
}

// HTTPClient speaks JSON over HTTP to the worker at BaseURL.
type HTTPClient struct {
	BaseURL string
	Timeout time.Duration
	http    *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Timeout: timeout,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Info(ctx context.Context) (*Info, error) {
	var info Info
	if err := c.call(ctx, http.MethodGet, "/info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *HTTPClient) Status(ctx context.Context) (*StatusResponse, error) {
	var status StatusResponse
	if err := c.call(ctx, http.MethodGet, "/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *HTTPClient) EnsurePresent(ctx context.Context, request EnsurePresentRequest) (*EnsurePresentResponse, error) {
	var response EnsurePresentResponse
	if err := c.call(ctx, http.MethodPost, "/ensurepresent", request, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *HTTPClient) Build(ctx context.Context, request BuildRequest) (*BuildResponse, error) {
	var response BuildResponse
	if err := c.call(ctx, http.MethodPost, "/build", request, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *HTTPClient) Abort(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/abort", nil, nil)
}

func (c *HTTPClient) Clean(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/clean", nil, nil)
}

func (c *HTTPClient) call(ctx context.Context, method string, path string, body interface{}, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", path, err)
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.http.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrWorkerFailure, method, path, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return fmt.Errorf("%w: %s %s: unexpected status code %d", ErrWorkerFailure, method, path, response.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s %s: failed to decode response: %v", ErrWorkerFailure, method, path, err)
	}
	return nil
}
