package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	adaptergh "github.com/tilsley/treemirror/apps/mirror/internal/adapters/github"
	"github.com/tilsley/treemirror/apps/mirror/internal/config"
	"github.com/tilsley/treemirror/apps/mirror/internal/fetch"
	"github.com/tilsley/treemirror/apps/mirror/internal/mirror"
	ghplatform "github.com/tilsley/treemirror/apps/mirror/internal/platform/github"
	"github.com/tilsley/treemirror/apps/mirror/internal/platform/metrics"
	pgplatform "github.com/tilsley/treemirror/apps/mirror/internal/platform/postgres"
	"github.com/tilsley/treemirror/apps/mirror/internal/platform/telemetry"
	"github.com/tilsley/treemirror/apps/mirror/internal/store"
	"github.com/tilsley/treemirror/apps/mirror/internal/store/pgmigrations"
)

// deps is the assembled mirror pipeline and the resources it holds.
type deps struct {
	svc    *mirror.Service
	reader store.Reader // first store able to read snapshots back; may be nil
	closer []func()
}

// Close releases store connections in reverse order of creation.
func (d *deps) Close() {
	for i := len(d.closer) - 1; i >= 0; i-- {
		d.closer[i]()
	}
}

// build wires the GitHub client, fetcher, locator, walker and stores from cfg.
func build(ctx context.Context, cfg *config.Config, m *metrics.Metrics, log *slog.Logger) (*deps, error) {
	gh, err := ghplatform.New(ghplatform.Auth{
		Token:          cfg.Auth.Token,
		Header:         cfg.Auth.Header,
		AppID:          cfg.Auth.AppID,
		InstallationID: cfg.Auth.InstallationID,
		PrivateKeyPath: cfg.Auth.PrivateKeyPath,
	}, cfg.APIURL, cfg.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("github client: %w", err)
	}

	fetcher := fetch.New(gh, fetch.Options{Retries: cfg.Retries, BaseDelay: cfg.RetryDelay}, log,
		fetch.WithObserver(m))
	lister := adaptergh.NewLister(fetcher)

	d := &deps{}
	savers, err := d.openStores(ctx, cfg, log)
	if err != nil {
		d.Close()
		return nil, err
	}

	settings := mirror.Settings{
		Owner:          cfg.Owner,
		Repo:           cfg.Repo,
		Ref:            cfg.Ref,
		StartURL:       adaptergh.ContentsURL(cfg.APIURL, cfg.Owner, cfg.Repo, cfg.StartPath, cfg.Ref),
		IncludeContent: cfg.IncludeContent,
		IndexSuffix:    cfg.Index.Suffix,
		IndexOutput:    cfg.Index.Output,
	}
	d.svc = mirror.NewService(
		mirror.NewLocator(lister, cfg.Target, cfg.ContainerSuffix, log),
		mirror.NewWalker(lister, fetcher, log, cfg.Concurrency),
		savers,
		settings,
		log,
	)
	return d, nil
}

// openStores opens every configured backend in the configured order.
func (d *deps) openStores(ctx context.Context, cfg *config.Config, log *slog.Logger) ([]mirror.SnapshotSaver, error) {
	savers := make([]mirror.SnapshotSaver, 0, len(cfg.Stores))
	for _, name := range cfg.Stores {
		s, err := d.openStore(ctx, name, cfg)
		if err != nil {
			return nil, fmt.Errorf("open %s store: %w", name, err)
		}
		savers = append(savers, s)
		if r, ok := s.(store.Reader); ok && d.reader == nil {
			d.reader = r
		}
		log.Info("snapshot store ready", "store", name)
	}
	return savers, nil
}

func (d *deps) openStore(ctx context.Context, name string, cfg *config.Config) (mirror.SnapshotSaver, error) {
	switch name {
	case config.StoreFile:
		return store.NewFileStore(cfg.Output, cfg.Format)

	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		d.closer = append(d.closer, func() { _ = rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping %s: %w", cfg.Redis.Addr, err)
		}
		return store.NewRedisStore(rdb, cfg.Redis.TTL), nil

	case config.StorePostgres:
		pool, err := pgplatform.New(ctx, cfg.Postgres.URL, pgmigrations.FS)
		if err != nil {
			return nil, err
		}
		d.closer = append(d.closer, pool.Close)
		return store.NewPGStore(pool), nil

	case config.StoreS3:
		client, err := store.NewS3Client(ctx, store.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
		if err != nil {
			return nil, err
		}
		s := store.NewS3Store(client, cfg.S3.Bucket, cfg.S3.Prefix)
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, errors.New("unknown store")
}

func shutdownTelemetry(tel *telemetry.Telemetry, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tel.Shutdown(ctx); err != nil {
		log.Error("telemetry shutdown failed", "error", err)
	}
}
