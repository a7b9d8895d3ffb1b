// Package store persists mirror snapshots. Every backend implements
// mirror.SnapshotSaver; backends that can read snapshots back also implement
// Reader, which the HTTP API uses to serve the latest snapshot.
package store

import (
	"context"

	"github.com/tilsley/treemirror/pkg/api"
)

// Reader reads stored snapshots. Get and Latest return nil, nil when nothing
// matches.
type Reader interface {
	Name() string
	Get(ctx context.Context, id string) (*api.Snapshot, error)
	Latest(ctx context.Context) (*api.Snapshot, error)
}
