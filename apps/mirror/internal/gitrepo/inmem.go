package gitrepo

import (
	"context"
	"fmt"
	"sync"
)

// InMem is an in-memory Lister for unit tests. Listings are keyed by URL.
type InMem struct {
	mu       sync.Mutex
	listings map[string][]DirEntry
	failures map[string]error
	calls    []string
}

// NewInMem creates an empty InMem lister.
func NewInMem() *InMem {
	return &InMem{
		listings: make(map[string][]DirEntry),
		failures: make(map[string]error),
	}
}

// SetListing seeds the entries returned for url, in order.
func (m *InMem) SetListing(url string, entries ...DirEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listings[url] = append([]DirEntry(nil), entries...)
}

// Fail makes every ListDir call for url return err.
func (m *InMem) Fail(url string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[url] = err
}

// Calls returns the URLs listed so far, in call order.
func (m *InMem) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// ListDir returns the seeded listing for url, or an error if none exists.
func (m *InMem) ListDir(ctx context.Context, url string) ([]DirEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, url)
	if err, ok := m.failures[url]; ok {
		return nil, err
	}
	entries, ok := m.listings[url]
	if !ok {
		return nil, fmt.Errorf("listing not found: %s", url)
	}
	out := make([]DirEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// Dir builds a directory entry whose URL is "api/<path>".
func Dir(name, path string) DirEntry {
	return DirEntry{
		Name:    name,
		Path:    path,
		Type:    EntryDir,
		URL:     "api/" + path,
		HTMLURL: "html/" + path,
	}
}

// File builds a file entry whose download URL is "raw/<path>".
func File(name, path string, size int64) DirEntry {
	return DirEntry{
		Name:        name,
		Path:        path,
		Type:        EntryFile,
		URL:         "api/" + path,
		HTMLURL:     "html/" + path,
		Size:        size,
		DownloadURL: "raw/" + path,
	}
}
