package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClient_Process(t *testing.T) {
	var got ProcessRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/process", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := NewClient(Config{
		BaseURL:     server.URL + "/",
		CallbackURL: "https://api.example.com/api/v1/process-callback",
	}, discardLogger())

	require.NoError(t, client.Process(context.Background(), "job-1", "https://storage.example.com/signed"))
	assert.Equal(t, ProcessRequest{
		JobID:       "job-1",
		AudioURL:    "https://storage.example.com/signed",
		CallbackURL: "https://api.example.com/api/v1/process-callback",
	}, got)
}

func TestClient_ProcessRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "queue full", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, discardLogger())
	err := client.Process(context.Background(), "job-1", "url")

	require.Error(t, err)
	assert.True(t, IsRejected(err))
	assert.False(t, IsUnreachable(err))

	var he *HandoffError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusServiceUnavailable, he.StatusCode)
}

func TestClient_ProcessUnreachable(t *testing.T) {
	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		client := NewClient(Config{BaseURL: server.URL, Timeout: 50 * time.Millisecond}, discardLogger())

		start := time.Now()
		err := client.Process(context.Background(), "job-1", "url")
		require.Error(t, err)
		assert.True(t, IsUnreachable(err))
		assert.Less(t, time.Since(start), 2*time.Second)
	})

	t.Run("connection refused", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		client := NewClient(Config{BaseURL: url}, discardLogger())
		err := client.Process(context.Background(), "job-1", "url")
		assert.True(t, IsUnreachable(err))
	})
}
