// Package config loads healthkube's optional configuration file and
// provides built-in defaults for everything it omits.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Jezza/healthkube/pkg/logging"
)

const (
	userConfigDir  = ".config/healthkube"
	configFileName = "config.yaml"
)

// osUserHomeDir is swapped out by tests.
var osUserHomeDir = os.UserHomeDir

// DefaultPath returns the default config file location,
// ~/.config/healthkube/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

// Load reads the config file at path, layered over the defaults. A
// missing file is not an error: the defaults are returned as-is. A
// malformed or invalid file is an error, silently proceeding with
// half-read settings against live systems is not acceptable.
func Load(path string) (Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Debug("ConfigLoader", "No config file at %s, using defaults", path)
			return config, nil
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}

	logging.Info("ConfigLoader", "Loaded configuration from %s", path)
	return config, nil
}
