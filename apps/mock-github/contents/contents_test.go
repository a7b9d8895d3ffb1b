package contents_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilsley/treemirror/apps/mock-github/contents"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newServer(t *testing.T, s *contents.Server) *httptest.Server {
	t.Helper()
	r := gin.New()
	s.Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func seeded() *contents.Server {
	s := contents.New()
	s.Put("acme", "tools", "ext/a.extension/b.txt", []byte("hello"), "text/plain; charset=utf-8")
	s.Put("acme", "tools", "ext/a.extension/icon.png", []byte{0x89, 'P', 'N', 'G'}, "image/png")
	s.Put("acme", "tools", "ext/readme.md", []byte("# tools"), "text/plain; charset=utf-8")
	return s
}

func getEntries(t *testing.T, url string) (*http.Response, []contents.Entry) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	var entries []contents.Entry
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
	}
	return resp, entries
}

// ─── Listings ─────────────────────────────────────────────────────────────────

func TestListDir(t *testing.T) {
	srv := newServer(t, seeded())

	resp, entries := getEntries(t, srv.URL+"/repos/acme/tools/contents/ext?ref=dev")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, entries, 2)
	assert.Equal(t, "a.extension", entries[0].Name)
	assert.Equal(t, "dir", entries[0].Type)
	assert.Equal(t, srv.URL+"/repos/acme/tools/contents/ext/a.extension?ref=dev", entries[0].URL)
	assert.Nil(t, entries[0].DownloadURL)

	assert.Equal(t, "readme.md", entries[1].Name)
	assert.Equal(t, "file", entries[1].Type)
	assert.Equal(t, 7, entries[1].Size)
	require.NotNil(t, entries[1].DownloadURL)
	assert.Equal(t, srv.URL+"/raw/acme/tools/ext/readme.md", *entries[1].DownloadURL)
}

func TestListDir_NotFound(t *testing.T) {
	srv := newServer(t, seeded())

	resp, _ := getEntries(t, srv.URL+"/repos/acme/tools/contents/nope")

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListDir_Paginates(t *testing.T) {
	s := seeded()
	s.PageSize = 1
	srv := newServer(t, s)

	resp, first := getEntries(t, srv.URL+"/repos/acme/tools/contents/ext")
	require.Len(t, first, 1)
	assert.Contains(t, resp.Header.Get("Link"), `page=2>; rel="next"`)

	resp, second := getEntries(t, srv.URL+"/repos/acme/tools/contents/ext?page=2")
	require.Len(t, second, 1)
	assert.Empty(t, resp.Header.Get("Link"))
	assert.Equal(t, "readme.md", second[0].Name)
}

// ─── Raw downloads ────────────────────────────────────────────────────────────

func TestRaw(t *testing.T) {
	srv := newServer(t, seeded())

	resp, err := http.Get(srv.URL + "/raw/acme/tools/ext/a.extension/icon.png")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, body)
}

func TestRaw_NoContentType(t *testing.T) {
	s := contents.New()
	s.Put("acme", "tools", "x.bin", []byte("data"), "")
	srv := newServer(t, s)

	resp, err := http.Get(srv.URL + "/raw/acme/tools/x.bin")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_, present := resp.Header["Content-Type"]
	assert.False(t, present)
}

// ─── Quota ────────────────────────────────────────────────────────────────────

func TestQuota(t *testing.T) {
	s := seeded()
	s.SetQuota(1, time.Hour)
	srv := newServer(t, s)

	resp, _ := getEntries(t, srv.URL+"/repos/acme/tools/contents/ext")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))

	resp, _ = getEntries(t, srv.URL+"/repos/acme/tools/contents/ext")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Reset"))

	raw, err := http.Get(srv.URL + "/raw/acme/tools/ext/readme.md")
	require.NoError(t, err)
	raw.Body.Close()
	assert.Equal(t, http.StatusOK, raw.StatusCode, "downloads do not count against the quota")
}

func TestQuota_RefillsAfterReset(t *testing.T) {
	s := seeded()
	s.SetQuota(1, 50*time.Millisecond)
	srv := newServer(t, s)

	resp, _ := getEntries(t, srv.URL+"/repos/acme/tools/contents/ext")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	time.Sleep(60 * time.Millisecond)

	resp, _ = getEntries(t, srv.URL+"/repos/acme/tools/contents/ext")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
