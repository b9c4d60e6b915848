// Package config loads the demonstration server's configuration (spec
// §1 Non-goals: no authentication, no distributed topology — this is
// listen address, default database name, and the logging/metrics knobs
// the ambient stack needs).
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jongodb/jongodb/pkg/log"
)

// Config is the full set of tunables cmd/jongodb accepts, loadable from a
// YAML file and overridable by flags at the call site.
type Config struct {
	Listen          string   `yaml:"listen"`
	MetricsListen   string   `yaml:"metricsListen"`
	DefaultDatabase string   `yaml:"defaultDatabase"`
	LogLevel        log.Level `yaml:"logLevel"`
	LogJSON         bool     `yaml:"logJSON"`
}

// Default returns the built-in configuration used when no file is
// supplied.
func Default() Config {
	return Config{
		Listen:          "127.0.0.1:27017",
		MetricsListen:   "127.0.0.1:9090",
		DefaultDatabase: "test",
		LogLevel:        log.InfoLevel,
		LogJSON:         false,
	}
}

// Load reads a YAML configuration file, overlaying it onto Default().
// A missing path is not an error: the caller gets the default
// configuration back unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
