package mirror

import (
	"context"
	"time"

	"github.com/tilsley/treemirror/apps/mirror/internal/fetch"
	"github.com/tilsley/treemirror/pkg/api"
)

// ContentFetcher downloads a file body. It never fails; errors are reported
// in the returned Content. *fetch.Fetcher satisfies it.
type ContentFetcher interface {
	FetchContent(ctx context.Context, url string) fetch.Content
}

// SnapshotSaver persists a finished snapshot. Implementations live in the
// store package (file, Redis, Postgres, S3).
type SnapshotSaver interface {
	Name() string
	Save(ctx context.Context, snap *api.Snapshot) error
}

// RunObserver is told about every finished run. *metrics.Metrics satisfies it.
type RunObserver interface {
	ObserveRun(summary *api.Summary, elapsed time.Duration)
}
