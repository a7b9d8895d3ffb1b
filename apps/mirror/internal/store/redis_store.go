package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tilsley/treemirror/apps/mirror/internal/mirror"
	"github.com/tilsley/treemirror/pkg/api"
)

const (
	redisIndexKey  = "snapshots:index"
	redisLatestKey = "snapshots:latest"
	redisKeyPrefix = "snapshot:"
)

// Compile-time checks.
var (
	_ mirror.SnapshotSaver = (*RedisStore)(nil)
	_ Reader               = (*RedisStore)(nil)
)

// RedisStore keeps snapshots as JSON strings, indexed by creation time.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore creates a RedisStore. A zero ttl keeps snapshots forever.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// Name implements mirror.SnapshotSaver.
func (s *RedisStore) Name() string { return "redis" }

// Save stores snap and marks it as the latest snapshot.
func (s *RedisStore) Save(ctx context.Context, snap *api.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, redisKeyPrefix+snap.ID, data, s.ttl)
		p.ZAdd(ctx, redisIndexKey, redis.Z{Score: float64(snap.CreatedAt.Unix()), Member: snap.ID})
		p.Set(ctx, redisLatestKey, snap.ID, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save snapshot %q: %w", snap.ID, err)
	}
	return nil
}

// Get retrieves a snapshot by ID, returning nil if not found.
func (s *RedisStore) Get(ctx context.Context, id string) (*api.Snapshot, error) {
	val, err := s.rdb.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil //nolint:nilnil // caller checks nil value to detect "not found"
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot %q: %w", id, err)
	}
	var snap api.Snapshot
	if err := json.Unmarshal(val, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot %q: %w", id, err)
	}
	return &snap, nil
}

// Latest returns the most recently saved snapshot, or nil if there is none.
func (s *RedisStore) Latest(ctx context.Context) (*api.Snapshot, error) {
	id, err := s.rdb.Get(ctx, redisLatestKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil //nolint:nilnil // no snapshot saved yet
	}
	if err != nil {
		return nil, fmt.Errorf("get latest snapshot id: %w", err)
	}
	return s.Get(ctx, id)
}

// IDs returns stored snapshot IDs, oldest first.
func (s *RedisStore) IDs(ctx context.Context) ([]string, error) {
	ids, err := s.rdb.ZRange(ctx, redisIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list index: %w", err)
	}
	return ids, nil
}
