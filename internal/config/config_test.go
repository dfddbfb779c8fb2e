package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/holovault/rangestore/internal/config"
)

func TestLoad_MissingFileReturnsZeroValue(t *testing.T) {
	dir := t.TempDir()

	cfg, err := config.Load(filepath.Join(dir, "absent.jsonc"))
	require.NoError(t, err)
	require.Equal(t, config.Config{}, cfg)
}

func TestLoad_ParsesJSONCWithCommentsAndTrailingCommas(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rangestore.jsonc")

	content := `{
		// defaults for local development
		"dataset": "/tmp/dev.bin",
		"indexPath": "/tmp/dev.idx",
	}`

	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/dev.bin", cfg.Dataset)
	require.Equal(t, "/tmp/dev.idx", cfg.IndexPath)
	require.Equal(t, "", cfg.LockPath)
}

func TestSave_ThenLoad_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rangestore.jsonc")

	want := config.Config{Dataset: "a.bin", IndexPath: "a.idx", LockPath: "a.lck"}

	require.NoError(t, config.Save(path, want))

	got, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestFindNearest_WalksUpToParent(t *testing.T) {
	root := t.TempDir()
	child := filepath.Join(root, "a", "b")

	require.NoError(t, os.MkdirAll(child, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, config.FileName), []byte("{}"), 0o644))

	found := config.FindNearest(child)
	require.Equal(t, filepath.Join(root, config.FileName), found)
}

func TestFindNearest_ReturnsEmptyWhenNoneFound(t *testing.T) {
	dir := t.TempDir()

	require.Equal(t, "", config.FindNearest(dir))
}
