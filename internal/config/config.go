// Package config loads the optional YAML run configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the configuration file looked up in the working directory.
const DefaultFile = "rbxtract.yaml"

// Config holds one extraction run's settings.
type Config struct {
	Input    string   `yaml:"input"`
	Output   string   `yaml:"output"`
	Manifest bool     `yaml:"manifest"`
	Exclude  []string `yaml:"exclude"`
}

// Default returns the configuration used when no file and no flags are
// given. The defaults preserve the zero-argument contract: a fixed input
// file name and a fixed output location.
func Default() Config {
	return Config{
		Input:    "starter_platformer.rbxlx",
		Output:   "src",
		Manifest: true,
	}
}

// Load reads the configuration file at path, layered over Default. A missing
// file is not an error and yields the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}
	if cfg.Input == "" || cfg.Output == "" {
		return cfg, fmt.Errorf("config file %s: input and output must not be empty", path)
	}
	return cfg, nil
}
