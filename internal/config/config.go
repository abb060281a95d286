// Package config loads rockslide's single YAML deployment file, the one
// optional positional CLI argument accepted by the rockslide binary.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root of the YAML deployment file.
type Config struct {
	Rockslide    RockslideConfig    `yaml:"rockslide"`
	Registry     RegistryConfig     `yaml:"registry"`
	ReverseProxy ReverseProxyConfig `yaml:"reverse_proxy"`
	Containers   ContainersConfig   `yaml:"containers"`
}

// RockslideConfig holds top-level deployment settings.
type RockslideConfig struct {
	// Log is a single-word log level directive ("debug", "info", "warn", "error").
	Log string `yaml:"log"`
	// MasterKey authenticates the registry's own built-in master-password credentials.
	MasterKey string `yaml:"master_key"`
}

// RegistryConfig configures the content-addressed blob/manifest store.
type RegistryConfig struct {
	// StoragePath is the filesystem root the blob and manifest store reads and writes under.
	StoragePath string `yaml:"storage_path"`
}

// ReverseProxyConfig configures the inbound HTTP proxy.
type ReverseProxyConfig struct {
	// HTTPBind is the address the proxy listens on, e.g. "0.0.0.0:80".
	HTTPBind string `yaml:"http_bind"`
}

// ContainersConfig configures the deployment controller's container engine.
type ContainersConfig struct {
	// PodmanPath is the path to the podman binary.
	PodmanPath string `yaml:"podman_path"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Rockslide: RockslideConfig{
			Log: "info",
		},
		Registry: RegistryConfig{
			StoragePath: "/var/lib/rockslide/registry",
		},
		ReverseProxy: ReverseProxyConfig{
			HTTPBind: "0.0.0.0:80",
		},
		Containers: ContainersConfig{
			PodmanPath: "podman",
		},
	}
}

// Load reads and parses the YAML file at path, starting from Default() so
// any keys the file omits keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
