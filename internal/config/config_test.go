package config

import (
	"os"
	"path/filepath"
	"testing"

	"gsneval/internal/graph"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
storage:
  db_path: /var/lib/gsneval/leaves.db
gsn:
  dir: /etc/gsneval/gsn
log:
  level: debug
  format: json
explore:
  reset_rule: depth
  reset_depth: 2
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/gsneval/leaves.db", cfg.Storage.DBPath)
	assert.Equal(t, "/etc/gsneval/gsn", cfg.GSN.Dir)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "depth", cfg.Explore.ResetRule)
	assert.Equal(t, 2, cfg.Explore.ResetDepth)
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "log:\n  level: warn\n"))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "gsneval.db", cfg.Storage.DBPath)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("GSNEVAL_DB_PATH", "/tmp/override.db")
	t.Setenv("GSNEVAL_RESET_RULE", "none")
	t.Setenv("GSNEVAL_LOG_FORMAT", "json")

	cfg, err := LoadConfig(writeConfig(t, "storage:\n  db_path: file.db\n"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/override.db", cfg.Storage.DBPath)
	assert.Equal(t, "none", cfg.Explore.ResetRule)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":      "storage: [",
		"log format":    "log:\n  format: xml\n",
		"reset rule":    "explore:\n  reset_rule: sometimes\n",
		"reset depth":   "explore:\n  reset_depth: 0\n",
		"empty db path": "storage:\n  db_path: \"\"\n",
		"unknown level": "log:\n  level: loud\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestConfig_ExploreConfig(t *testing.T) {
	cfg := Default()
	ec, err := cfg.ExploreConfig()
	require.NoError(t, err)
	assert.True(t, ec.Reset.Resets(&graph.Node{ID: "S4-1"}, 5))

	cfg.Explore.ResetRule = "depth"
	cfg.Explore.ResetDepth = 2
	ec, err = cfg.ExploreConfig()
	require.NoError(t, err)
	assert.True(t, ec.Reset.Resets(&graph.Node{ID: "X"}, 2))
	assert.False(t, ec.Reset.Resets(&graph.Node{ID: "S4-1"}, 1))
}
