package supabase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorage_SignedURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/storage/v1/object/sign/audio/user-1/meeting one.webm", r.URL.Path)
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))

		var body map[string]int
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 3600, body["expiresIn"])

		_ = json.NewEncoder(w).Encode(map[string]string{
			"signedURL": "/object/sign/audio/user-1/meeting%20one.webm?token=abc",
		})
	}))
	defer server.Close()

	s := NewStorage(Config{URL: server.URL + "/", ServiceKey: "service-key"})
	got, err := s.SignedURL(context.Background(), "user-1/meeting one.webm", time.Hour)

	require.NoError(t, err)
	assert.Equal(t, server.URL+"/storage/v1/object/sign/audio/user-1/meeting%20one.webm?token=abc", got)
}

func TestStorage_SignedURLErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "object not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
			},
		},
		{
			name: "empty url",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"signedURL":""}`))
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`not json`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			s := NewStorage(Config{URL: server.URL, ServiceKey: "k"})
			_, err := s.SignedURL(context.Background(), "a/b.webm", time.Minute)
			assert.Error(t, err)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	assert.Error(t, (&Config{}).Validate())
	assert.NoError(t, (&Config{URL: "https://x.supabase.co", ServiceKey: "k"}).Validate())
}
