package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tilsley/treemirror/apps/mirror/internal/gitrepo"
)

// Locator finds the target directory below a start point. It looks at most
// two levels deep: the start listing itself, then the direct children of each
// container directory (a directory whose name ends with the container suffix).
type Locator struct {
	lister gitrepo.Lister
	target string
	suffix string
	log    *slog.Logger
}

// NewLocator creates a Locator searching for target inside containers named
// *containerSuffix.
func NewLocator(lister gitrepo.Lister, target, containerSuffix string, log *slog.Logger) *Locator {
	return &Locator{lister: lister, target: target, suffix: containerSuffix, log: log}
}

// Locate returns the directory entry for the target. A direct child of the
// start point wins over any match inside a container; among containers the
// first one in listing order that holds the target wins.
//
// Failing to list the start point or any container is returned as an error,
// never as NotFoundError.
func (l *Locator) Locate(ctx context.Context, startURL string) (gitrepo.DirEntry, error) {
	l.log.Info("searching for target", "target", l.target, "start", startURL)

	entries, err := l.lister.ListDir(ctx, startURL)
	if err != nil {
		return gitrepo.DirEntry{}, fmt.Errorf("locate %s: %w", l.target, err)
	}

	for _, e := range entries {
		if e.IsDir() && e.Name == l.target {
			l.log.Info("found target directly", "path", e.Path)
			return e, nil
		}
	}

	for _, container := range entries {
		if !container.IsDir() || !strings.HasSuffix(container.Name, l.suffix) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return gitrepo.DirEntry{}, fmt.Errorf("locate %s: %w", l.target, err)
		}

		children, err := l.lister.ListDir(ctx, container.URL)
		if err != nil {
			l.log.Error("listing container failed", "path", container.Path, "error", err)
			return gitrepo.DirEntry{}, fmt.Errorf("locate %s: %w", l.target, err)
		}
		for _, e := range children {
			if e.IsDir() && e.Name == l.target {
				l.log.Info("found target", "path", e.Path, "container", container.Name)
				return e, nil
			}
		}
	}

	l.log.Error("target directory not found", "target", l.target)
	return gitrepo.DirEntry{}, NotFoundError{Target: l.target, Start: startURL}
}
