package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "auto", cfg.Theme)
	require.Equal(t, "json", cfg.Store.Backend)
	require.Equal(t, 3, cfg.Store.Backups)
	require.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadFromFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".config", "taskdeck")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	yaml := `
theme: dark
store:
  backend: sqlite
  backups: 7
columns:
  task: [id, text, due]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "dark", cfg.Theme)
	require.Equal(t, "sqlite", cfg.Store.Backend)
	require.Equal(t, 7, cfg.Store.Backups)
	require.Equal(t, []string{"id", "text", "due"}, cfg.Columns["task"])
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("TASKDECK_THEME", "light")
	t.Setenv("TASKDECK_STORE_BACKEND", "sqlite")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "light", cfg.Theme)
	require.Equal(t, "sqlite", cfg.Store.Backend)
}

func TestBadBackendRejected(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("TASKDECK_STORE_BACKEND", "postgres")

	_, err := Load()
	require.Error(t, err)
}
