// Package client is a typed client for the transcription REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cuongbtq/transcribe-be/internal/api/dto"
	"github.com/cuongbtq/transcribe-be/internal/poller"
)

const defaultTimeout = 30 * time.Second

// APIError is a non-2xx response from the API
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("api returned status %d: %s", e.StatusCode, e.Message)
}

// IsPermanent reports whether retrying the same request cannot succeed.
// Client errors are permanent except 408 and 429.
func IsPermanent(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500
}

// Config holds the client configuration
type Config struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// Client calls the transcription API with a bearer token
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a new Client
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: httpClient,
	}
}

// Submit creates a transcription for an already uploaded file
func (c *Client) Submit(ctx context.Context, fileName, filePath string) (*dto.CreateTranscriptionResponse, error) {
	var out dto.CreateTranscriptionResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/transcriptions", dto.CreateTranscriptionRequest{
		FileName: fileName,
		FilePath: filePath,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Status reads the job status. It satisfies poller.Fetcher.
func (c *Client) Status(ctx context.Context, id string) (*poller.Snapshot, error) {
	var out dto.TranscriptionStatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/transcriptions/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &poller.Snapshot{
		ID:              out.ID,
		Status:          out.Status,
		ErrorMessage:    out.ErrorMessage,
		DurationSeconds: out.DurationSeconds,
		CreatedAt:       out.CreatedAt,
		CompletedAt:     out.CompletedAt,
	}, nil
}

// Result reads the transcript and summary of a job
func (c *Client) Result(ctx context.Context, id string) (*dto.TranscriptionResultResponse, error) {
	var out dto.TranscriptionResultResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/transcriptions/"+url.PathEscape(id)+"/result", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Usage reads the caller's minutes for period; an empty period means the current one
func (c *Client) Usage(ctx context.Context, period string) (*dto.UsageResponse, error) {
	path := "/api/v1/usage"
	if period != "" {
		path += "?" + url.Values{"period": {period}}.Encode()
	}
	var out dto.UsageResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &e)
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
