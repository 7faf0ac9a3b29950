package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/@me", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"u123","username":"someone","global_name":"Someone Nice"}`))
	}))
	defer server.Close()

	resolver := NewResolver(server.URL, 0)
	id, err := resolver.Resolve(context.Background(), "tok-123")
	require.NoError(t, err)
	assert.Equal(t, "u123", id.ID)
	assert.Equal(t, "Someone Nice", id.DisplayName)
}

func TestResolve_FallsBackToUsername(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"u123","username":"someone"}`))
	}))
	defer server.Close()

	resolver := NewResolver(server.URL, 0)
	id, err := resolver.Resolve(context.Background(), "tok-123")
	require.NoError(t, err)
	assert.Equal(t, "someone", id.DisplayName)
}

func TestResolve_AuthFailed(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		resolver := NewResolver(server.URL, 0)
		_, err := resolver.Resolve(context.Background(), "expired")
		assert.ErrorIs(t, err, ErrAuthFailed)

		server.Close()
	}
}

func TestResolve_EmptyCredential(t *testing.T) {
	resolver := NewResolver("http://unused.example.com", 0)
	_, err := resolver.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestResolve_UpstreamUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	resolver := NewResolver(server.URL, 0)
	_, err := resolver.Resolve(context.Background(), "tok-123")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestResolve_TransportError(t *testing.T) {
	// Closed server: connection refused.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	resolver := NewResolver(server.URL, 500*time.Millisecond)
	_, err := resolver.Resolve(context.Background(), "tok-123")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestResolve_MalformedProfile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	resolver := NewResolver(server.URL, 0)
	_, err := resolver.Resolve(context.Background(), "tok-123")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestResolve_MissingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"username":"someone"}`))
	}))
	defer server.Close()

	resolver := NewResolver(server.URL, 0)
	_, err := resolver.Resolve(context.Background(), "tok-123")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}
