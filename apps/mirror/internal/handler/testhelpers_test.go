package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/tilsley/treemirror/apps/mirror/internal/handler"
	"github.com/tilsley/treemirror/apps/mirror/internal/mirror"
	"github.com/tilsley/treemirror/apps/mirror/internal/platform/validation"
	"github.com/tilsley/treemirror/apps/mirror/internal/store"
	"github.com/tilsley/treemirror/pkg/api"
	"github.com/tilsley/treemirror/pkg/logging"
	"github.com/tilsley/treemirror/schemas"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func ptr[T any](v T) *T { return &v }

// ─── Stubs ────────────────────────────────────────────────────────────────────

type stubRunner struct {
	mu       sync.Mutex
	startErr error
	started  map[string]api.RunRequest
	statuses map[string]*api.RunStatus
	statErr  error
}

func newStubRunner() *stubRunner {
	return &stubRunner{started: map[string]api.RunRequest{}, statuses: map[string]*api.RunStatus{}}
}

func (r *stubRunner) Start(_ context.Context, runID string, req api.RunRequest) error {
	if r.startErr != nil {
		return r.startErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started[runID] = req
	return nil
}

func (r *stubRunner) GetStatus(_ context.Context, runID string) (*api.RunStatus, error) {
	if r.statErr != nil {
		return nil, r.statErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.statuses[runID]
	if !ok {
		return nil, mirror.ErrRunNotFound
	}
	return st, nil
}

type stubReader struct {
	latest *api.Snapshot
	err    error
}

var _ store.Reader = (*stubReader)(nil)

func (s *stubReader) Name() string { return "stub" }

func (s *stubReader) Get(context.Context, string) (*api.Snapshot, error) { return nil, nil }

func (s *stubReader) Latest(context.Context) (*api.Snapshot, error) { return s.latest, s.err }

// ─── Router ───────────────────────────────────────────────────────────────────

func newRouter(t *testing.T, runner *stubRunner, reader store.Reader, metrics http.Handler) *gin.Engine {
	t.Helper()
	mw, err := validation.New(schemas.OpenAPISpec)
	require.NoError(t, err)

	r := gin.New()
	r.Use(mw)
	handler.RegisterRoutes(r, runner, reader, metrics, logging.Discard())
	return r
}

func do(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
