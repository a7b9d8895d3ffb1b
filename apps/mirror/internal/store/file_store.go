package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/tilsley/treemirror/apps/mirror/internal/mirror"
	"github.com/tilsley/treemirror/pkg/api"
)

// Output formats understood by FileStore.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Compile-time check: *FileStore implements mirror.SnapshotSaver.
var _ mirror.SnapshotSaver = (*FileStore)(nil)

// FileStore writes the snapshot's tree to a single local document, replacing
// it on every run. Only the tree is written, not the snapshot metadata.
type FileStore struct {
	path   string
	format string
}

// NewFileStore creates a FileStore writing to path in format.
func NewFileStore(path, format string) (*FileStore, error) {
	switch format {
	case "", FormatJSON:
		format = FormatJSON
	case FormatYAML:
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
	return &FileStore{path: path, format: format}, nil
}

// Name implements mirror.SnapshotSaver.
func (s *FileStore) Name() string { return "file" }

// Path returns the output path.
func (s *FileStore) Path() string { return s.path }

// Save encodes snap.Root with two-space indentation, creating parent
// directories as needed.
func (s *FileStore) Save(_ context.Context, snap *api.Snapshot) error {
	data, err := s.encode(snap.Root)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", s.path, err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil { //nolint:gosec // output artifact is meant to be world-readable
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) encode(root *api.Node) ([]byte, error) {
	if s.format == FormatYAML {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(root); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		return buf.Bytes(), nil
	}
	data, err := json.MarshalIndent(root, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return append(data, '\n'), nil
}
