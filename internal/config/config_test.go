package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingUsesDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	assert.Equal(t, "/tmp/xdg/logdex/config.toml", GetConfigPath())
}

func TestLoadOverridesSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	doc := `
[engine]
rebuild_batch_lines = 128
disable_accelerated = true

[logging]
level = "debug"
path = "~/logdex.log"

[keybindings]
include = ["ctrl+f"]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 128, cfg.Engine.RebuildBatchLines)
	assert.True(t, cfg.Engine.DisableAccelerated)
	assert.Equal(t, 64*1024, cfg.Engine.IndexChunkBytes, "unset keys keep defaults")
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.NotContains(t, cfg.Logging.Path, "~")
	assert.Equal(t, []string{"ctrl+f"}, cfg.Keybindings.Include)
	assert.Equal(t, []string{"\\"}, cfg.Keybindings.Exclude)
	assert.NotEmpty(t, cfg.LogLevels.ErrorPatterns)
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[engine\n"), 0644))

	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := DefaultConfig()
	cfg.Display.ContextLines = 3
	cfg.Bookmarks.Dir = "/var/tmp/marks"

	require.NoError(t, SaveTo(path, cfg))
	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
