package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ServeConfig is the yaml configuration for the serve command.
type ServeConfig struct {
	// Port to listen on, zero asks the OS for a free port.
	Port int `yaml:"port"`
	// Store is the block store file path. Empty defers to the --store flag.
	Store string `yaml:"store"`
}

// DefaultServeConfig returns the configuration used when no file is given.
func DefaultServeConfig() ServeConfig {
	return ServeConfig{Port: 7461}
}

// LoadServeConfig reads and validates a yaml serve configuration.
func LoadServeConfig(path string) (ServeConfig, error) {
	cfg := DefaultServeConfig()

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return cfg, fmt.Errorf("%s: port %d out of range", path, cfg.Port)
	}
	return cfg, nil
}
