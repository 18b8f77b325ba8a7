// Package supabase is a minimal Supabase Storage client used to hand the
// processing worker a time-limited read URL for uploaded audio.
package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBucket       = "audio"
	DefaultSignedURLTTL = time.Hour
)

// Config holds Supabase Storage settings
type Config struct {
	URL        string
	Bucket     string
	ServiceKey string
	HTTPClient *http.Client
}

// Validate checks that the Supabase configuration is usable
func (c *Config) Validate() error {
	var errs []error
	if c.URL == "" {
		errs = append(errs, errors.New("url is required"))
	}
	if c.ServiceKey == "" {
		errs = append(errs, errors.New("service_key is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("supabase: invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Storage signs object URLs through the Supabase Storage REST API
type Storage struct {
	baseURL    string
	bucket     string
	serviceKey string
	httpClient *http.Client
}

// NewStorage creates a new Supabase storage client
func NewStorage(cfg Config) *Storage {
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = DefaultBucket
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Storage{
		baseURL:    strings.TrimRight(cfg.URL, "/") + "/storage/v1",
		bucket:     bucket,
		serviceKey: cfg.ServiceKey,
		httpClient: httpClient,
	}
}

// SignedURL returns an absolute URL for path that stays readable for expiry
func (s *Storage) SignedURL(ctx context.Context, path string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = DefaultSignedURLTTL
	}

	u := fmt.Sprintf("%s/object/sign/%s/%s", s.baseURL, s.bucket, escapePath(path))
	body := fmt.Sprintf(`{"expiresIn": %d}`, int(expiry.Seconds()))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("supabase: create sign request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("supabase: sign request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("supabase: sign failed (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		SignedURL string `json:"signedURL"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("supabase: decode sign response: %w", err)
	}
	if result.SignedURL == "" {
		return "", errors.New("supabase: sign returned empty URL")
	}

	// relative to the storage API root
	if !strings.HasPrefix(result.SignedURL, "http") {
		return s.baseURL + result.SignedURL, nil
	}
	return result.SignedURL, nil
}

func escapePath(path string) string {
	parts := strings.Split(strings.TrimLeft(path, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
