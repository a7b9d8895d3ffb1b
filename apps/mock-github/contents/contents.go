// Package contents is a GitHub-compatible contents API serving an in-memory
// file tree. It backs the mock-github app and end-to-end tests.
package contents

import (
	"fmt"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Entry is one item of a directory listing, in the GitHub shape.
type Entry struct {
	Name        string  `json:"name"`
	Path        string  `json:"path"`
	Type        string  `json:"type"` // "file" or "dir"
	Size        int     `json:"size"`
	URL         string  `json:"url"`
	HTMLURL     string  `json:"html_url"`
	DownloadURL *string `json:"download_url"`
}

type file struct {
	body        []byte
	contentType string
}

// Server holds the repositories and the request quota.
type Server struct {
	mu    sync.Mutex
	files map[string]map[string]file // repo key "owner/repo" → path → file

	// PageSize splits listings into pages linked by a Link header; zero
	// returns every entry at once.
	PageSize int

	limit     int
	window    time.Duration
	remaining int
	reset     time.Time
	now       func() time.Time
}

// New creates an empty server with an unlimited quota.
func New() *Server {
	return &Server{files: make(map[string]map[string]file), now: time.Now}
}

// SetQuota limits API requests to limit per window. Raw downloads are free,
// as on github.com. A limit of zero disables the quota.
func (s *Server) SetQuota(limit int, window time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limit, s.window, s.remaining = limit, window, limit
	s.reset = s.now().Add(window)
}

// Put adds or replaces a file. Parent directories exist implicitly.
func (s *Server) Put(owner, repo, filePath string, body []byte, contentType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := owner + "/" + repo
	if s.files[key] == nil {
		s.files[key] = make(map[string]file)
	}
	s.files[key][strings.Trim(filePath, "/")] = file{body: body, contentType: contentType}
}

// Register mounts the API routes on r.
func (s *Server) Register(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/repos/:owner/:repo/contents/*path", s.handleContents)
	r.GET("/raw/:owner/:repo/*path", s.handleRaw)
}

func (s *Server) handleContents(c *gin.Context) {
	if !s.take(c) {
		c.JSON(http.StatusForbidden, gin.H{
			"message":           "API rate limit exceeded",
			"documentation_url": "https://docs.github.com/rest/overview/resources-in-the-rest-api#rate-limiting",
		})
		return
	}

	owner, repo := c.Param("owner"), c.Param("repo")
	dirPath := strings.Trim(c.Param("path"), "/")
	base := "http://" + c.Request.Host
	ref := c.Query("ref")

	if f, ok := s.file(owner, repo, dirPath); ok {
		c.JSON(http.StatusOK, s.entry(base, owner, repo, ref, dirPath, "file", len(f.body)))
		return
	}

	entries := s.listDir(base, owner, repo, ref, dirPath)
	if len(entries) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": "Not Found"})
		return
	}
	c.JSON(http.StatusOK, s.page(c, entries))
}

func (s *Server) handleRaw(c *gin.Context) {
	f, ok := s.file(c.Param("owner"), c.Param("repo"), strings.Trim(c.Param("path"), "/"))
	if !ok {
		c.String(http.StatusNotFound, "404: Not Found")
		return
	}
	// An empty Content-Type is sent as no header at all.
	if f.contentType == "" {
		c.Writer.Header()["Content-Type"] = nil
		c.Status(http.StatusOK)
		_, _ = c.Writer.Write(f.body)
		return
	}
	c.Data(http.StatusOK, f.contentType, f.body)
}

// take consumes one request from the quota and writes the X-RateLimit
// headers. It reports false when the quota is exhausted.
func (s *Server) take(c *gin.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.limit == 0 {
		return true
	}
	if now := s.now(); !now.Before(s.reset) {
		s.remaining = s.limit
		s.reset = now.Add(s.window)
	}
	allowed := s.remaining > 0
	if allowed {
		s.remaining--
	}
	h := c.Writer.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(s.limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(s.remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(s.reset.Unix(), 10))
	return allowed
}

func (s *Server) file(owner, repo, filePath string) (file, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[owner+"/"+repo][filePath]
	return f, ok
}

// listDir returns the immediate children of dirPath, sorted by name.
func (s *Server) listDir(base, owner, repo, ref, dirPath string) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := dirPath
	if prefix != "" {
		prefix += "/"
	}

	seen := map[string]bool{}
	var entries []Entry
	for filePath, f := range s.files[owner+"/"+repo] {
		if !strings.HasPrefix(filePath, prefix) {
			continue
		}
		rest := filePath[len(prefix):]
		name, entryType, size := rest, "file", len(f.body)
		if idx := strings.Index(rest, "/"); idx != -1 {
			name, entryType, size = rest[:idx], "dir", 0
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		entries = append(entries, s.entry(base, owner, repo, ref, path.Join(dirPath, name), entryType, size))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

func (s *Server) entry(base, owner, repo, ref, p, entryType string, size int) Entry {
	apiURL := fmt.Sprintf("%s/repos/%s/%s/contents/%s", base, owner, repo, p)
	if ref != "" {
		apiURL += "?ref=" + url.QueryEscape(ref)
	}
	kind := "blob"
	if entryType == "dir" {
		kind = "tree"
	}
	e := Entry{
		Name:    path.Base(p),
		Path:    p,
		Type:    entryType,
		Size:    size,
		URL:     apiURL,
		HTMLURL: fmt.Sprintf("%s/%s/%s/%s/%s/%s", base, owner, repo, kind, refOr(ref), p),
	}
	if entryType == "file" {
		dl := fmt.Sprintf("%s/raw/%s/%s/%s", base, owner, repo, p)
		e.DownloadURL = &dl
	}
	return e
}

// page cuts entries down to the requested page and sets the Link header.
func (s *Server) page(c *gin.Context, entries []Entry) []Entry {
	if s.PageSize <= 0 || len(entries) <= s.PageSize {
		return entries
	}
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	start := (page - 1) * s.PageSize
	if start >= len(entries) {
		return []Entry{}
	}
	end := min(start+s.PageSize, len(entries))
	if end < len(entries) {
		next := *c.Request.URL
		q := next.Query()
		q.Set("page", strconv.Itoa(page+1))
		next.RawQuery = q.Encode()
		c.Header("Link", fmt.Sprintf(`<http://%s%s>; rel="next"`, c.Request.Host, next.RequestURI()))
	}
	return entries[start:end]
}

func refOr(ref string) string {
	if ref == "" {
		return "main"
	}
	return ref
}
