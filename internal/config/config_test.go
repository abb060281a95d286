package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rockslide/rockslide/internal/config"
)

func TestLoadFillsDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rockslide.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rockslide:
  master_key: "s3cr3t"
registry:
  storage_path: /data/registry
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "s3cr3t", cfg.Rockslide.MasterKey)
	assert.Equal(t, "info", cfg.Rockslide.Log)
	assert.Equal(t, "/data/registry", cfg.Registry.StoragePath)
	assert.Equal(t, "0.0.0.0:80", cfg.ReverseProxy.HTTPBind)
	assert.Equal(t, "podman", cfg.Containers.PodmanPath)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
