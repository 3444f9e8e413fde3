package internal

import (
	"fmt"

	"github.com/hbomb79/Grabber/internal/api"
	"github.com/hbomb79/Grabber/internal/extractor"
	"github.com/ilyakaznacheev/cleanenv"
)

// GrabberConfig is the struct used to contain the
// various user config supplied by file or by the
// environment.
type GrabberConfig struct {
	RestConfig api.RestConfig   `yaml:"api"`
	Extractor  extractor.Config `yaml:"extractor"`
	LogLevel   string           `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
}

// LoadFromFile reads a YAML configuration file in to the GrabberConfig,
// with any environment variables taking precedence over the file.
func (config *GrabberConfig) LoadFromFile(configPath string) error {
	if err := cleanenv.ReadConfig(configPath, config); err != nil {
		return fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}

	return nil
}

// LoadFromEnv populates the GrabberConfig using only the environment
// and the default values declared on the struct tags.
func (config *GrabberConfig) LoadFromEnv() error {
	if err := cleanenv.ReadEnv(config); err != nil {
		return fmt.Errorf("failed to load configuration from environment: %w", err)
	}

	return nil
}
