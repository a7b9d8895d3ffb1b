package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tilsley/treemirror/apps/mirror/internal/mirror"
	"github.com/tilsley/treemirror/pkg/api"
)

// Compile-time checks.
var (
	_ mirror.SnapshotSaver = (*PGStore)(nil)
	_ Reader               = (*PGStore)(nil)
)

// PGStore keeps snapshots in the snapshots table; the tree is stored as JSONB.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a new PGStore.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Name implements mirror.SnapshotSaver.
func (s *PGStore) Name() string { return "postgres" }

// Save upserts snap.
func (s *PGStore) Save(ctx context.Context, snap *api.Snapshot) error {
	rootJSON, err := json.Marshal(snap.Root)
	if err != nil {
		return fmt.Errorf("marshal root: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO snapshots (id, owner, repo, ref, target_path, directories, files, root, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			target_path = EXCLUDED.target_path,
			directories = EXCLUDED.directories,
			files       = EXCLUDED.files,
			root        = EXCLUDED.root,
			created_at  = EXCLUDED.created_at`,
		snap.ID, snap.Owner, snap.Repo, snap.Ref, snap.TargetPath,
		snap.Counts.Directories, snap.Counts.Files, rootJSON, snap.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save snapshot %q: %w", snap.ID, err)
	}
	return nil
}

// Get retrieves a snapshot by ID. Returns nil, nil if not found.
func (s *PGStore) Get(ctx context.Context, id string) (*api.Snapshot, error) {
	row := s.pool.QueryRow(ctx, selectSnapshot+` WHERE id = $1`, id)
	return scanSnapshot(row)
}

// Latest returns the most recently created snapshot. Returns nil, nil if the
// table is empty.
func (s *PGStore) Latest(ctx context.Context) (*api.Snapshot, error) {
	row := s.pool.QueryRow(ctx, selectSnapshot+` ORDER BY created_at DESC LIMIT 1`)
	return scanSnapshot(row)
}

// ── helpers ──────────────────────────────────────────────────────────────────

const selectSnapshot = `
	SELECT id, owner, repo, ref, target_path, directories, files, root, created_at
	FROM snapshots`

func scanSnapshot(row pgx.Row) (*api.Snapshot, error) {
	var (
		snap     api.Snapshot
		rootJSON []byte
	)
	err := row.Scan(&snap.ID, &snap.Owner, &snap.Repo, &snap.Ref, &snap.TargetPath,
		&snap.Counts.Directories, &snap.Counts.Files, &rootJSON, &snap.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil //nolint:nilnil
	}
	if err != nil {
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}
	var root api.Node
	if err := json.Unmarshal(rootJSON, &root); err != nil {
		return nil, fmt.Errorf("unmarshal root of %q: %w", snap.ID, err)
	}
	snap.Root = &root
	snap.CreatedAt = snap.CreatedAt.UTC()
	return &snap, nil
}
