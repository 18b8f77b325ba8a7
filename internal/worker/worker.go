// Package worker hands transcription jobs off to the external
// speech-processing worker. The handoff only starts processing: the worker
// reports progress back through the callback URL.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultHandoffTimeout bounds the whole POST /process exchange
const DefaultHandoffTimeout = 10 * time.Second

// Kind distinguishes why a handoff failed
type Kind string

const (
	// KindUnreachable covers network errors and timeouts
	KindUnreachable Kind = "unreachable"
	// KindRejected covers non-2xx responses
	KindRejected Kind = "rejected"
)

// HandoffError is returned by Client.Process when the worker did not accept the job
type HandoffError struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *HandoffError) Error() string {
	if e.Kind == KindRejected {
		return fmt.Sprintf("worker rejected request with status %d", e.StatusCode)
	}
	return fmt.Sprintf("worker unreachable: %v", e.Err)
}

func (e *HandoffError) Unwrap() error { return e.Err }

// IsUnreachable reports whether err is a network or timeout handoff failure
func IsUnreachable(err error) bool {
	var he *HandoffError
	return errors.As(err, &he) && he.Kind == KindUnreachable
}

// IsRejected reports whether err is a non-2xx handoff failure
func IsRejected(err error) bool {
	var he *HandoffError
	return errors.As(err, &he) && he.Kind == KindRejected
}

// Config holds the worker endpoint configuration
type Config struct {
	BaseURL     string
	CallbackURL string
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// ProcessRequest is the body of POST /process
type ProcessRequest struct {
	JobID       string `json:"job_id"`
	AudioURL    string `json:"audio_url"`
	CallbackURL string `json:"callback_url"`
}

// Client calls the external worker
type Client struct {
	baseURL     string
	callbackURL string
	timeout     time.Duration
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewClient creates a new worker Client
func NewClient(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultHandoffTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		callbackURL: cfg.CallbackURL,
		timeout:     timeout,
		httpClient:  httpClient,
		logger:      logger,
	}
}

// Process hands jobID off to the worker with a readable audioURL. It returns
// once the worker has acknowledged the job, or a *HandoffError.
func (c *Client) Process(ctx context.Context, jobID, audioURL string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(ProcessRequest{
		JobID:       jobID,
		AudioURL:    audioURL,
		CallbackURL: c.callbackURL,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal process request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/process", bytes.NewReader(body))
	if err != nil {
		return &HandoffError{Kind: KindUnreachable, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Worker handoff failed",
			slog.String("job_id", jobID),
			slog.Duration("latency", time.Since(start)),
			slog.Any("error", err),
		)
		return &HandoffError{Kind: KindUnreachable, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("Worker rejected job",
			slog.String("job_id", jobID),
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(b)),
		)
		return &HandoffError{
			Kind:       KindRejected,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("worker http %d", resp.StatusCode),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.Info("Job handed off to worker",
		slog.String("job_id", jobID),
		slog.Duration("latency", time.Since(start)),
	)
	return nil
}
