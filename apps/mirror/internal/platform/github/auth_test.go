package github_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ghplatform "github.com/tilsley/treemirror/apps/mirror/internal/platform/github"
)

// headerRecorder keeps the headers of the last request it served.
type headerRecorder struct {
	mu  sync.Mutex
	got http.Header
}

func (h *headerRecorder) Get(key string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.got.Get(key)
}

func captureAuth(t *testing.T) (*httptest.Server, *headerRecorder) {
	t.Helper()
	rec := &headerRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.mu.Lock()
		rec.got = r.Header.Clone()
		rec.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func get(t *testing.T, srvURL string, auth ghplatform.Auth) {
	t.Helper()
	c, err := ghplatform.New(auth, srvURL, 5*time.Second)
	require.NoError(t, err)
	req, err := c.NewRequest(http.MethodGet, "repos/o/r/contents/x", nil)
	require.NoError(t, err)
	_, err = c.Do(context.Background(), req, nil)
	require.NoError(t, err)
}

func TestNew_Token(t *testing.T) {
	srv, got := captureAuth(t)

	get(t, srv.URL, ghplatform.Auth{Token: "abc", Header: "ignored"})

	assert.Equal(t, "Bearer abc", got.Get("Authorization"))
	assert.Equal(t, "treemirror", got.Get("User-Agent"))
}

func TestNew_RawHeader(t *testing.T) {
	srv, got := captureAuth(t)

	get(t, srv.URL, ghplatform.Auth{Header: "token xyz"})

	assert.Equal(t, "token xyz", got.Get("Authorization"))
}

func TestNew_Anonymous(t *testing.T) {
	srv, got := captureAuth(t)

	get(t, srv.URL, ghplatform.Auth{})

	assert.Empty(t, got.Get("Authorization"))
}

func TestNew_AppWithMissingKey(t *testing.T) {
	_, err := ghplatform.New(ghplatform.Auth{
		AppID:          1,
		InstallationID: 2,
		PrivateKeyPath: filepath.Join(t.TempDir(), "missing.pem"),
	}, "", 0)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "github app auth")
}

func TestNewTokenClient_DefaultBaseURL(t *testing.T) {
	c := ghplatform.NewTokenClient("", "")
	assert.Equal(t, "https://api.github.com/", c.BaseURL.String())

	c = ghplatform.NewTokenClient("", "http://localhost:9090")
	assert.Equal(t, "http://localhost:9090/", c.BaseURL.String())
}

func TestNew_TimeoutApplied(t *testing.T) {
	c, err := ghplatform.New(ghplatform.Auth{Token: "abc"}, "", 7*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 7*time.Second, c.Client().Timeout)
}
