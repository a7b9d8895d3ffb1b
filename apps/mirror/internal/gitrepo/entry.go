package gitrepo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Entry types reported by the contents API.
const (
	EntryDir  = "dir"
	EntryFile = "file"
)

// DirEntry is one item of a contents API directory listing.
type DirEntry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"` // "dir", "file", "symlink" or "submodule"
	URL         string `json:"url"`  // API URL, listed to expand a directory
	HTMLURL     string `json:"html_url"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"download_url"` // empty for directories and submodules
}

// IsDir reports whether the entry is a directory. Symlinks and submodules are
// treated as files.
func (e DirEntry) IsDir() bool {
	return e.Type == EntryDir
}

// Validate checks the fields the mirror depends on.
func (e DirEntry) Validate() error {
	if e.Name == "" {
		return errors.New("entry has no name")
	}
	if e.Type == "" {
		return fmt.Errorf("entry %q has no type", e.Name)
	}
	if e.IsDir() && e.URL == "" {
		return fmt.Errorf("directory %q has no url", e.Name)
	}
	return nil
}

// DecodeListing parses a contents API body as a directory listing. A JSON
// object (the API's reply for a file path) is rejected.
func DecodeListing(body []byte) ([]DirEntry, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errors.New("response is not a directory listing")
	}
	var entries []DirEntry
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, fmt.Errorf("decode dir listing: %w", err)
	}
	for i, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("listing entry %d: %w", i, err)
		}
	}
	return entries, nil
}

// Lister is the port the mirror uses to read a remote directory. Pagination
// is handled by the implementation; entries come back in listing order.
type Lister interface {
	ListDir(ctx context.Context, url string) ([]DirEntry, error)
}
