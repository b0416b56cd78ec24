package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/harun/plughost/internal/config"
	"github.com/harun/plughost/pkg/plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigInitCommand(t *testing.T) {
	registerDemo(t, "beaker-plugin-initdemo", "initdemo")

	t.Run("writes config and entry manifest", func(t *testing.T) {
		home := setupHome(t)
		configPath := filepath.Join(home, "plughost.json")

		output, err := executeCommand(t, "config", "init", "--config", configPath)
		require.NoError(t, err)
		assert.Contains(t, output, "Wrote "+configPath)

		cfg, err := config.NewLoader(configPath).Load()
		require.NoError(t, err)
		assert.Equal(t, config.DefaultConfig().Plugins.Prefix, cfg.Plugins.Prefix)
		assert.Equal(t, filepath.Join(home, ".plughost", "plugins"), cfg.Plugins.Dir)

		manifest, err := plugin.ReadEntryManifest(filepath.Join(cfg.Plugins.Dir, plugin.DefaultEntryManifest))
		require.NoError(t, err)
		assert.Contains(t, manifest.Plugins, plugin.Entry{Name: "beaker-plugin-initdemo"})
	})

	t.Run("built-in plugins load without a directory", func(t *testing.T) {
		home := setupHome(t)
		configPath := filepath.Join(home, "plughost.json")

		_, err := executeCommand(t, "config", "init", "--config", configPath)
		require.NoError(t, err)

		output, err := executeCommand(t, "schemes", "--config", configPath)
		require.NoError(t, err)
		assert.Contains(t, output, "initdemo")
	})

	t.Run("refuses to overwrite", func(t *testing.T) {
		home := setupHome(t)
		configPath := filepath.Join(home, "plughost.json")
		require.NoError(t, os.WriteFile(configPath, []byte(`{}`), 0644))

		_, err := executeCommand(t, "config", "init", "--config", configPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already exists")

		_, err = executeCommand(t, "config", "init", "--config", configPath, "--force")
		require.NoError(t, err)
	})

	t.Run("keeps an existing entry manifest", func(t *testing.T) {
		home := setupHome(t)
		pluginsDir := filepath.Join(home, ".plughost", "plugins")
		require.NoError(t, os.MkdirAll(pluginsDir, 0755))
		manifestPath := filepath.Join(pluginsDir, plugin.DefaultEntryManifest)
		require.NoError(t, os.WriteFile(manifestPath, []byte("plugins:\n  - name: beaker-plugin-mine\n"), 0644))

		_, err := executeCommand(t, "config", "init", "--config", filepath.Join(home, "plughost.json"))
		require.NoError(t, err)

		manifest, err := plugin.ReadEntryManifest(manifestPath)
		require.NoError(t, err)
		assert.Equal(t, []plugin.Entry{{Name: "beaker-plugin-mine"}}, manifest.Plugins)
	})
}

func TestConfigShowCommand(t *testing.T) {
	setupHome(t)

	output, err := executeCommand(t, "config", "show", "--plugins-dir", "/tmp/plughost-show")
	require.NoError(t, err)
	assert.Contains(t, output, `"dir": "/tmp/plughost-show"`)
	assert.Contains(t, output, `"conflict_policy": "warn"`)
}
