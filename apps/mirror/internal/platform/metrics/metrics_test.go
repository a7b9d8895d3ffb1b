package metrics_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilsley/treemirror/apps/mirror/internal/platform/metrics"
	"github.com/tilsley/treemirror/pkg/api"
)

// scrape returns the text exposition of m.
func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	return string(body)
}

func TestObserveRequest(t *testing.T) {
	m := metrics.New()

	m.ObserveRequest("api", 200, nil)
	m.ObserveRequest("api", 200, nil)
	m.ObserveRequest("content", 0, errors.New("connection refused"))
	m.ObserveRequest("api", 403, errors.New("forbidden"))

	out := scrape(t, m)
	assert.Contains(t, out, `treemirror_github_requests_total{kind="api",status="200"} 2`)
	assert.Contains(t, out, `treemirror_github_requests_total{kind="content",status="error"} 1`)
	assert.Contains(t, out, `treemirror_github_requests_total{kind="api",status="403"} 1`)
}

func TestObserveRateLimitWait(t *testing.T) {
	m := metrics.New()

	m.ObserveRateLimitWait(30 * time.Second)
	m.ObserveRateLimitWait(1500 * time.Millisecond)

	out := scrape(t, m)
	assert.Contains(t, out, "treemirror_rate_limit_waits_total 2")
	assert.Contains(t, out, "treemirror_rate_limit_wait_seconds_total 31.5")
}

func TestObserveRun(t *testing.T) {
	m := metrics.New()

	m.ObserveRun(&api.Summary{TargetPath: "tab", Counts: api.Counts{Directories: 4, Files: 7}}, time.Second)
	m.ObserveRun(&api.Summary{Error: "boom"}, time.Second)

	out := scrape(t, m)
	assert.Contains(t, out, `treemirror_runs_total{result="completed"} 1`)
	assert.Contains(t, out, `treemirror_runs_total{result="failed"} 1`)
	assert.Contains(t, out, `treemirror_last_run_nodes{type="directory"} 4`)
	assert.Contains(t, out, `treemirror_last_run_nodes{type="file"} 7`)
	assert.Contains(t, out, "treemirror_run_duration_seconds_count 2")
}
