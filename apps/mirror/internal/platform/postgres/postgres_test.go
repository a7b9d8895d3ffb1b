package postgres_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilsley/treemirror/apps/mirror/internal/platform/postgres"
)

func TestMigrateURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"postgres://u:p@localhost:5432/mirror", "pgx5://u:p@localhost:5432/mirror"},
		{"postgresql://u:p@localhost/mirror?sslmode=disable", "pgx5://u:p@localhost/mirror?sslmode=disable"},
		{"pgx5://already", "pgx5://already"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, postgres.MigrateURL(tt.in))
		})
	}
}

// ─── PoolConfig ───────────────────────────────────────────────────────────────

func TestPoolConfig_Defaults(t *testing.T) {
	cfg, err := postgres.PoolConfig("postgres://u:p@localhost:5432/mirror")

	require.NoError(t, err)
	assert.Equal(t, "treemirror", cfg.ConnConfig.RuntimeParams["application_name"])
	assert.EqualValues(t, 4, cfg.MaxConns)
}

func TestPoolConfig_URLOverrides(t *testing.T) {
	cfg, err := postgres.PoolConfig("postgres://u:p@localhost:5432/mirror?application_name=nightly&pool_max_conns=10")

	require.NoError(t, err)
	assert.Equal(t, "nightly", cfg.ConnConfig.RuntimeParams["application_name"])
	assert.EqualValues(t, 10, cfg.MaxConns)
}

func TestPoolConfig_BadURL(t *testing.T) {
	_, err := postgres.PoolConfig("postgres://u:p@localhost:notaport/mirror")
	assert.Error(t, err)
}
