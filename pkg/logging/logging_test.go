package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
	assert.Equal(t, slog.LevelInfo, parseLevel("nonsense"))
}

func TestBuild_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	log, closer, err := Build(Config{Format: "text"}, &buf)
	require.NoError(t, err)
	defer closer.Close()

	log.Info("hello", "key", "value")

	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "key=value")
}

func TestBuild_LevelFiltersRecords(t *testing.T) {
	var buf bytes.Buffer
	log, _, err := Build(Config{Level: "warn"}, &buf)
	require.NoError(t, err)

	log.Info("dropped")
	log.Warn("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}

func TestBuild_TeesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.log")
	var buf bytes.Buffer
	log, closer, err := Build(Config{File: path}, &buf)
	require.NoError(t, err)

	log.Info("written twice")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written twice")
	assert.Contains(t, buf.String(), "written twice")
}

func TestBuild_UnopenableFileFallsBackToOut(t *testing.T) {
	var buf bytes.Buffer
	log, closer, err := Build(Config{File: filepath.Join(t.TempDir(), "missing", "dir", "x.log")}, &buf)
	require.Error(t, err)
	require.NotNil(t, log)
	require.NoError(t, closer.Close())

	log.Info("still logging")
	assert.Contains(t, buf.String(), "still logging")
}
