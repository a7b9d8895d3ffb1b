// Package mirror holds the core of treemirror: locating the target directory,
// expanding it into a tree and reporting what was collected.
package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tilsley/treemirror/apps/mirror/internal/gitrepo"
	"github.com/tilsley/treemirror/apps/mirror/internal/index"
	"github.com/tilsley/treemirror/pkg/api"
)

// Settings is the static description of what a run mirrors.
type Settings struct {
	Owner    string
	Repo     string
	Ref      string
	StartURL string

	IncludeContent bool

	// IndexSuffix and IndexOutput enable the bundle index when both are set.
	IndexSuffix string
	IndexOutput string
}

// Service runs the mirror pipeline: locate, expand, summarize, save, index.
type Service struct {
	locator  *Locator
	walker   *Walker
	savers   []SnapshotSaver
	settings Settings
	log      *slog.Logger
	now      func() time.Time
}

// NewService creates a Service. Every saver receives each finished snapshot.
func NewService(locator *Locator, walker *Walker, savers []SnapshotSaver, settings Settings, log *slog.Logger) *Service {
	return &Service{
		locator:  locator,
		walker:   walker,
		savers:   savers,
		settings: settings,
		log:      log,
		now:      time.Now,
	}
}

// Settings returns the configuration the service was built with.
func (s *Service) Settings() Settings { return s.settings }

// Run mirrors the target once. An empty runID gets a generated one. The
// returned summary is never nil: on failure it carries only the error
// message, and the error is returned as well.
func (s *Service) Run(ctx context.Context, runID string, req api.RunRequest) (*api.Summary, error) {
	s.log.Info("starting mirror run", "owner", s.settings.Owner, "repo", s.settings.Repo, "ref", s.settings.Ref)

	target, err := s.Locate(ctx)
	if err != nil {
		return &api.Summary{Error: err.Error()}, err
	}
	return s.Materialize(ctx, runID, target, s.IncludeContent(req))
}

// Locate finds the target directory below the configured start point.
func (s *Service) Locate(ctx context.Context) (gitrepo.DirEntry, error) {
	target, err := s.locator.Locate(ctx, s.settings.StartURL)
	if err != nil {
		s.log.Error("failed to locate target", "error", err)
		return gitrepo.DirEntry{}, err
	}
	return target, nil
}

// Materialize expands target, stores the snapshot and writes the bundle index.
// Expansion problems are recorded in the tree; only persistence fails the run.
func (s *Service) Materialize(ctx context.Context, runID string, target gitrepo.DirEntry, includeContent bool) (*api.Summary, error) {
	if runID == "" {
		runID = uuid.New().String()
	}

	root := s.walker.Expand(ctx, target, includeContent)
	counts := Summarize(root)

	snap := &api.Snapshot{
		ID:         runID,
		Owner:      s.settings.Owner,
		Repo:       s.settings.Repo,
		Ref:        s.settings.Ref,
		TargetPath: root.Path,
		CreatedAt:  s.now().UTC(),
		Counts:     counts,
		Root:       root,
	}
	// A cancelled or timed-out walk still yields a partial tree worth keeping.
	saveCtx := context.WithoutCancel(ctx)
	for _, sv := range s.savers {
		if err := sv.Save(saveCtx, snap); err != nil {
			err = SaveError{Store: sv.Name(), Err: err}
			s.log.Error("error saving data", "store", sv.Name(), "error", err)
			return &api.Summary{Error: err.Error()}, err
		}
		s.log.Info("snapshot saved", "store", sv.Name(), "id", runID)
	}

	if s.settings.IndexSuffix != "" && s.settings.IndexOutput != "" {
		bundles := index.Bundles(root, s.settings.IndexSuffix)
		if err := index.WriteFile(s.settings.IndexOutput, bundles); err != nil {
			err = fmt.Errorf("bundle index: %w", err)
			s.log.Error("error saving bundle index", "error", err)
			return &api.Summary{Error: err.Error()}, err
		}
		s.log.Info("bundle index written", "path", s.settings.IndexOutput, "bundles", len(bundles))
	}

	s.log.Info("exploration complete",
		"target_path", root.Path,
		"directories", counts.Directories,
		"files", counts.Files,
	)
	return &api.Summary{TargetPath: root.Path, Counts: counts}, nil
}

// IncludeContent resolves the content flag of req against the configured default.
func (s *Service) IncludeContent(req api.RunRequest) bool {
	if req.IncludeContent != nil {
		return *req.IncludeContent
	}
	return s.settings.IncludeContent
}
