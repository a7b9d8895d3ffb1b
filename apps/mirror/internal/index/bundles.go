// Package index derives a flat bundle index from a mirrored tree: every
// directory whose name carries the bundle suffix (".pushbutton" by default)
// together with the files directly inside it.
package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tilsley/treemirror/pkg/api"
)

// Bundle is one suffixed directory.
type Bundle struct {
	Name  string       `json:"name"` // directory name without the suffix
	Path  string       `json:"path"`
	URL   string       `json:"url"`
	Files []BundleFile `json:"files"`
}

// BundleFile is a file directly inside a bundle.
type BundleFile struct {
	Name        string       `json:"name"`
	Path        string       `json:"path"`
	URL         string       `json:"url"`
	Size        int64        `json:"size"`
	ContentType *string      `json:"content_type,omitempty"`
	Encoding    api.Encoding `json:"encoding,omitempty"`
	Content     *string      `json:"content,omitempty"`
}

// Bundles returns every directory under root whose name ends with suffix, in
// depth-first pre-order. Bundles nested inside bundles are included too.
func Bundles(root *api.Node, suffix string) []Bundle {
	out := []Bundle{}
	if root == nil || suffix == "" {
		return out
	}
	var visit func(n *api.Node)
	visit = func(n *api.Node) {
		for _, child := range n.Items {
			if !child.IsDir() {
				continue
			}
			if strings.HasSuffix(child.Name, suffix) {
				out = append(out, newBundle(child, suffix))
			}
			visit(child)
		}
	}
	visit(root)
	return out
}

func newBundle(dir *api.Node, suffix string) Bundle {
	b := Bundle{
		Name:  strings.TrimSuffix(dir.Name, suffix),
		Path:  dir.Path,
		URL:   dir.URL,
		Files: []BundleFile{},
	}
	for _, n := range dir.Items {
		if n.IsDir() {
			continue
		}
		b.Files = append(b.Files, BundleFile{
			Name:        n.Name,
			Path:        n.Path,
			URL:         n.URL,
			Size:        n.Size,
			ContentType: n.ContentType,
			Encoding:    n.Encoding,
			Content:     n.Content,
		})
	}
	return b
}

// WriteFile writes bundles to path as indented JSON, creating parent
// directories as needed.
func WriteFile(path string, bundles []Bundle) error {
	data, err := json.MarshalIndent(bundles, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal bundle index: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil { //nolint:gosec // output artifact is meant to be world-readable
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
