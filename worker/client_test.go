package worker

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

func TestHTTPClient_Info(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/info", r.URL.Path)
		_ = json.NewEncoder(w).Encode(Info{ProtocolVersion: "1.0", ArchTags: []string{"amd64", "i386"}})
	}))
	defer server.Close()

	info, err := NewHTTPClient(server.URL+"/", time.Second).Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ProtocolVersion, info.ProtocolVersion)
	assert.True(t, info.SupportsArch("i386"))
	assert.False(t, info.SupportsArch("arm64"))
}

func TestHTTPClient_EnsurePresentSendsCredentials(t *testing.T) {
	var received EnsurePresentRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ensurepresent", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_ = json.NewEncoder(w).Encode(EnsurePresentResponse{Present: true, Info: "Download"})
	}))
	defer server.Close()

	response, err := NewHTTPClient(server.URL, time.Second).EnsurePresent(context.Background(), EnsurePresentRequest{
		SHA1:     "abc",
		URL:      "http://archive/pool/foo.dsc",
		User:     "buildd",
		Password: "secret",
	})
	require.NoError(t, err)
	assert.True(t, response.Present)
	assert.Equal(t, "buildd", received.User)
	assert.Equal(t, "secret", received.Password)
	assert.Equal(t, "abc", received.SHA1)
}

func TestHTTPClient_UnexpectedStatusIsWorkerFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewHTTPClient(server.URL, time.Second).Status(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWorkerFailure)
}

func TestHTTPClient_TimeoutIsWorkerFailure(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	err := NewHTTPClient(server.URL, 50*time.Millisecond).Abort(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWorkerFailure)
}

func TestHTTPClient_UnreachableIsWorkerFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewHTTPClient(url, time.Second).Info(context.Background())
	assert.ErrorIs(t, err, ErrWorkerFailure)
}
