// Package postgres opens the snapshot database and keeps its schema current.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	applicationName = "treemirror"
	// Snapshots are written once per run and read rarely.
	maxConns = 4
)

// New migrates the schema from migrations, then opens a pool. connString is
// a postgres:// or postgresql:// URL.
func New(ctx context.Context, connString string, migrations fs.FS) (*pgxpool.Pool, error) {
	cfg, err := PoolConfig(connString)
	if err != nil {
		return nil, err
	}
	if err := Migrate(connString, migrations); err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open snapshot db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping snapshot db: %w", err)
	}
	return pool, nil
}

// PoolConfig parses connString and tags connections with the application
// name so snapshot writers show up in pg_stat_activity. A max_conns set in
// the URL wins over the default.
func PoolConfig(connString string) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	if _, ok := cfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		cfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	}
	if !strings.Contains(connString, "pool_max_conns") {
		cfg.MaxConns = maxConns
	}
	return cfg, nil
}

// Migrate applies every pending up migration.
func Migrate(connString string, migrations fs.FS) error {
	src, err := iofs.New(migrations, ".")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, MigrateURL(connString))
	if err != nil {
		return fmt.Errorf("prepare migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// MigrateURL rewrites the scheme to "pgx5://" so golang-migrate picks its
// pgx/v5 driver. Other URLs come back unchanged.
func MigrateURL(connString string) string {
	for _, scheme := range []string{"postgresql://", "postgres://"} {
		if rest, ok := strings.CutPrefix(connString, scheme); ok {
			return "pgx5://" + rest
		}
	}
	return connString
}
