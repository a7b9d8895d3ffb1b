// Package api holds the wire types shared by treemirror apps: the mirrored
// tree, the run summary and stored snapshots.
package api

import (
	"encoding/json"
	"fmt"
	"time"
)

// NodeType discriminates the two Node variants.
type NodeType string

const (
	NodeDirectory NodeType = "directory"
	NodeFile      NodeType = "file"
)

// Encoding describes how a file node's Content is encoded.
type Encoding string

const (
	EncodingUTF8   Encoding = "utf8"
	EncodingBase64 Encoding = "base64"
	// EncodingError marks Content as an error message rather than file data.
	EncodingError Encoding = "error"
)

// Node is one entry of a mirrored tree. It is either a directory (Items, Error)
// or a file (Size, Content, Encoding, ContentType); the fields of the other
// variant are ignored when serializing.
//
// A Node is built bottom-up by its constructors and is not modified after it
// has been appended to a parent.
type Node struct {
	Name string
	Path string
	Type NodeType
	URL  string

	Items []*Node
	Error string

	Size        int64
	Content     *string
	Encoding    Encoding
	ContentType *string
}

// NewDirectory returns a directory node owning items. A nil items slice is
// serialized as an empty list.
func NewDirectory(name, path, url string, items []*Node, errMsg string) *Node {
	if items == nil {
		items = []*Node{}
	}
	return &Node{Name: name, Path: path, Type: NodeDirectory, URL: url, Items: items, Error: errMsg}
}

// NewFile returns a file node without content.
func NewFile(name, path, url string, size int64) *Node {
	return &Node{Name: name, Path: path, Type: NodeFile, URL: url, Size: size}
}

// WithContent returns a copy of a file node carrying fetched content.
func (n Node) WithContent(content string, enc Encoding, contentType *string) *Node {
	n.Content = &content
	n.Encoding = enc
	n.ContentType = contentType
	return &n
}

// IsDir reports whether n is a directory node.
func (n *Node) IsDir() bool { return n.Type == NodeDirectory }

type directoryShape struct {
	Name  string  `json:"name"            yaml:"name"`
	Path  string  `json:"path"            yaml:"path"`
	Type  string  `json:"type"            yaml:"type"`
	URL   string  `json:"url"             yaml:"url"`
	Items []*Node `json:"items"           yaml:"items"`
	Error string  `json:"error,omitempty" yaml:"error,omitempty"`
}

type fileShape struct {
	Name        string  `json:"name"                   yaml:"name"`
	Path        string  `json:"path"                   yaml:"path"`
	Type        string  `json:"type"                   yaml:"type"`
	Size        int64   `json:"size"                   yaml:"size"`
	URL         string  `json:"url"                    yaml:"url"`
	ContentType *string `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	Encoding    string  `json:"encoding,omitempty"     yaml:"encoding,omitempty"`
	Content     *string `json:"content,omitempty"      yaml:"content,omitempty"`
}

func (n Node) shape() any {
	if n.Type == NodeDirectory {
		items := n.Items
		if items == nil {
			items = []*Node{}
		}
		return directoryShape{
			Name: n.Name, Path: n.Path, Type: string(NodeDirectory), URL: n.URL,
			Items: items, Error: n.Error,
		}
	}
	return fileShape{
		Name: n.Name, Path: n.Path, Type: string(NodeFile), Size: n.Size, URL: n.URL,
		ContentType: n.ContentType, Encoding: string(n.Encoding), Content: n.Content,
	}
}

// MarshalJSON emits the variant-specific shape of the node.
func (n Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.shape())
}

// MarshalYAML emits the same shape as MarshalJSON for gopkg.in/yaml.v3.
func (n Node) MarshalYAML() (any, error) {
	return n.shape(), nil
}

// UnmarshalJSON decodes either variant, rejecting unknown node types.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name        string   `json:"name"`
		Path        string   `json:"path"`
		Type        NodeType `json:"type"`
		URL         string   `json:"url"`
		Items       []*Node  `json:"items"`
		Error       string   `json:"error"`
		Size        int64    `json:"size"`
		Content     *string  `json:"content"`
		Encoding    Encoding `json:"encoding"`
		ContentType *string  `json:"content_type"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Type {
	case NodeDirectory:
		*n = *NewDirectory(raw.Name, raw.Path, raw.URL, raw.Items, raw.Error)
	case NodeFile:
		*n = Node{
			Name: raw.Name, Path: raw.Path, Type: NodeFile, URL: raw.URL, Size: raw.Size,
			Content: raw.Content, Encoding: raw.Encoding, ContentType: raw.ContentType,
		}
	default:
		return fmt.Errorf("unknown node type %q at %q", raw.Type, raw.Path)
	}
	return nil
}

// Counts is the number of directory and file nodes beneath a root.
type Counts struct {
	Directories int `json:"directories" yaml:"directories"`
	Files       int `json:"files"       yaml:"files"`
}

// Summary is the completion report of a mirror run. On a fatal failure only
// Error is set and the counts are not emitted.
type Summary struct {
	TargetPath string
	Counts
	Error string
}

// MarshalJSON emits {target_path, directories, files} or {error}.
func (s Summary) MarshalJSON() ([]byte, error) {
	if s.Error != "" {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{s.Error})
	}
	return json.Marshal(struct {
		TargetPath  string `json:"target_path"`
		Directories int    `json:"directories"`
		Files       int    `json:"files"`
	}{s.TargetPath, s.Directories, s.Files})
}

// UnmarshalJSON accepts both shapes produced by MarshalJSON.
func (s *Summary) UnmarshalJSON(data []byte) error {
	var raw struct {
		TargetPath  string `json:"target_path"`
		Directories int    `json:"directories"`
		Files       int    `json:"files"`
		Error       string `json:"error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Summary{
		TargetPath: raw.TargetPath,
		Counts:     Counts{Directories: raw.Directories, Files: raw.Files},
		Error:      raw.Error,
	}
	return nil
}

// Snapshot is a completed tree together with where and when it was taken.
type Snapshot struct {
	ID         string    `json:"id"          yaml:"id"`
	Owner      string    `json:"owner"       yaml:"owner"`
	Repo       string    `json:"repo"        yaml:"repo"`
	Ref        string    `json:"ref"         yaml:"ref"`
	TargetPath string    `json:"target_path" yaml:"target_path"`
	CreatedAt  time.Time `json:"created_at"  yaml:"created_at"`
	Counts     Counts    `json:"counts"      yaml:"counts"`
	Root       *Node     `json:"root"        yaml:"root"`
}

// RunRequest starts a mirror run. Nil fields fall back to configured defaults.
type RunRequest struct {
	IncludeContent *bool `json:"include_content,omitempty"`
}

// RunState is the lifecycle state of a run.
type RunState string

const (
	RunRunning   RunState = "running"
	RunCompleted RunState = "completed"
	RunFailed    RunState = "failed"
)

// RunStatus reports the progress of a run started through the HTTP API.
type RunStatus struct {
	ID      string   `json:"id"`
	State   RunState `json:"state"`
	Summary *Summary `json:"summary,omitempty"`
}
