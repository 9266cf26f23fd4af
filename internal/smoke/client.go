package smoke

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

	"github.com/okian/civiclens/internal/domain/model"
)

// ErrBackpressure is returned when the service rejects a submit with 429.
var ErrBackpressure = errors.New("service queue full")

// apiError is the error envelope written by the HTTP adapter.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client is a thin JSON client for the analysis API.
type Client struct {
	base string
	http *http.Client
}

// NewClient returns a client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// Health checks /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// Submit enqueues an async analysis and returns its task id.
func (c *Client) Submit(ctx context.Context, req model.TaskRequest) (string, error) {
	var ack struct {
		TaskID string `json:"task_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/tasks", req, &ack); err != nil {
		return "", err
	}
	if ack.TaskID == "" {
		return "", errors.New("submit: empty task id")
	}
	return ack.TaskID, nil
}

// Task fetches a task snapshot.
func (c *Client) Task(ctx context.Context, id string) (model.Task, error) {
	var t model.Task
	err := c.do(ctx, http.MethodGet, "/v1/tasks/"+id, nil, &t)
	return t, err
}

// Classify runs keyword classification on text.
func (c *Client) Classify(ctx context.Context, text string) (model.Classification, error) {
	var out model.Classification
	err := c.do(ctx, http.MethodPost, "/v1/classify", map[string]string{"text": text}, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return ErrBackpressure
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var e apiError
		if json.Unmarshal(raw, &e) == nil && e.Message != "" {
			return fmt.Errorf("%s %s: %d %s: %s", method, path, resp.StatusCode, e.Code, e.Message)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
