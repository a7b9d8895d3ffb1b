package mirror

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/tilsley/treemirror/apps/mirror/internal/gitrepo"
	"github.com/tilsley/treemirror/pkg/api"
)

const instrName = "github.com/tilsley/treemirror"

// Walker expands a remote directory into a fully materialized api.Node tree.
type Walker struct {
	lister  gitrepo.Lister
	content ContentFetcher
	log     *slog.Logger

	// pool bounds the number of extra goroutines expanding sibling
	// directories. Nil means strictly sequential.
	pool *semaphore.Weighted

	listed metric.Int64Counter
	files  metric.Int64Counter
}

// NewWalker creates a Walker. With concurrency above 1, up to concurrency-1
// subdirectories are expanded in background goroutines while the calling
// goroutine keeps working; when the pool is full the walk continues inline.
func NewWalker(lister gitrepo.Lister, content ContentFetcher, log *slog.Logger, concurrency int) *Walker {
	m := otel.Meter(instrName)
	listed, _ := m.Int64Counter("treemirror.walker.directories",
		metric.WithDescription("Directory listings attempted by the walker"))
	files, _ := m.Int64Counter("treemirror.walker.files",
		metric.WithDescription("File nodes produced by the walker"))

	w := &Walker{lister: lister, content: content, log: log, listed: listed, files: files}
	if concurrency > 1 {
		w.pool = semaphore.NewWeighted(int64(concurrency - 1))
	}
	return w
}

// Expand builds the tree rooted at entry. It never fails: a directory whose
// listing fails, or whose expansion is interrupted by ctx, carries the error
// message in Error together with whatever children were completed.
//
// Children appear in listing order regardless of concurrency. A file gets
// content only when includeContent is set and the entry has a download URL.
func (w *Walker) Expand(ctx context.Context, entry gitrepo.DirEntry, includeContent bool) *api.Node {
	ctx, span := otel.Tracer(instrName).Start(ctx, "mirror.Expand",
		trace.WithAttributes(
			attribute.String("mirror.path", entry.Path),
			attribute.Bool("mirror.include_content", includeContent),
		),
	)
	defer span.End()

	return w.expand(ctx, entry, includeContent)
}

func (w *Walker) expand(ctx context.Context, entry gitrepo.DirEntry, includeContent bool) *api.Node {
	if !entry.IsDir() {
		return w.file(ctx, entry, includeContent)
	}
	if err := ctx.Err(); err != nil {
		return api.NewDirectory(entry.Name, entry.Path, entry.HTMLURL, nil, err.Error())
	}

	children, err := w.lister.ListDir(ctx, entry.URL)
	w.listed.Add(ctx, 1, metric.WithAttributes(attribute.Bool("error", err != nil)))
	if err != nil {
		w.log.Error("error exploring directory", "path", entry.Path, "error", err)
		return api.NewDirectory(entry.Name, entry.Path, entry.HTMLURL, nil, err.Error())
	}

	items := make([]*api.Node, len(children))
	var (
		wg      sync.WaitGroup
		stopErr error
	)
	for i, child := range children {
		if !child.IsDir() {
			items[i] = w.file(ctx, child, includeContent)
			continue
		}
		if err := ctx.Err(); err != nil {
			stopErr = err
			break
		}
		if w.pool != nil && w.pool.TryAcquire(1) {
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer w.pool.Release(1)
				items[i] = w.expand(ctx, child, includeContent)
			}()
			continue
		}
		items[i] = w.expand(ctx, child, includeContent)
	}
	wg.Wait()

	if stopErr != nil {
		w.log.Warn("directory expansion interrupted", "path", entry.Path, "error", stopErr)
		return api.NewDirectory(entry.Name, entry.Path, entry.HTMLURL, compact(items), stopErr.Error())
	}
	return api.NewDirectory(entry.Name, entry.Path, entry.HTMLURL, items, "")
}

func (w *Walker) file(ctx context.Context, entry gitrepo.DirEntry, includeContent bool) *api.Node {
	n := api.NewFile(entry.Name, entry.Path, entry.HTMLURL, entry.Size)
	w.files.Add(ctx, 1)
	if !includeContent || entry.DownloadURL == "" {
		return n
	}
	w.log.Debug("fetching content", "path", entry.Path)
	c := w.content.FetchContent(ctx, entry.DownloadURL)
	return n.WithContent(c.Content, c.Encoding, c.ContentType)
}

// compact drops the slots left empty when a walk stopped early.
func compact(items []*api.Node) []*api.Node {
	out := make([]*api.Node, 0, len(items))
	for _, n := range items {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}
