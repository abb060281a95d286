package controller

import (
	"os"
	"path"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/rockslide/rockslide/internal/registry/storage"
)

// RuntimeConfig is the optional per-manifest configuration the deployment
// controller reads when publishing a running container to the proxy,
// decoded from "<runtime_dir>/configs/<repo>/<image>/<reference>".
type RuntimeConfig struct {
	// HTTPAccess maps a hostname the reverse proxy should route to this
	// container's route key. If empty, a default hostname convention derived
	// from the ImageLocation is used instead.
	HTTPAccess map[string]string `yaml:"http_access"`
}

func configPath(configsDir string, loc storage.ImageLocation, ref storage.Reference) string {
	return path.Join(configsDir, loc.Repository, loc.Image, ref.String())
}

// loadRuntimeConfig reads the config for ref, returning the zero value (no
// HTTPAccess override) if no config file exists.
func loadRuntimeConfig(fs afero.Fs, configsDir string, loc storage.ImageLocation, ref storage.Reference) (RuntimeConfig, error) {
	raw, err := afero.ReadFile(fs, configPath(configsDir, loc, ref))
	if err != nil {
		if os.IsNotExist(err) {
			return RuntimeConfig{}, nil
		}
		return RuntimeConfig{}, err
	}
	var cfg RuntimeConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return RuntimeConfig{}, err
	}
	return cfg, nil
}
