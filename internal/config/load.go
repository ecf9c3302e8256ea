package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/leonardotrapani/watranscriber/internal/logging"
)

const appDir = "watranscriber"

var ErrConfigNotFound = errors.New("config not found")

func GetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, appDir, "config.toml"), nil
}

// Load reads the config at the default path. A missing file yields
// DefaultConfig.
func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	c, err := LoadFile(configPath)
	if errors.Is(err, ErrConfigNotFound) {
		logging.For("config").Debug().Str("path", configPath).Msg("no config file, using defaults")
		c = DefaultConfig()
		if err := c.loadEnv(filepath.Dir(configPath)); err != nil {
			return nil, err
		}
		return c, nil
	}
	return c, err
}

// LoadFile decodes the config at path over DefaultConfig and loads its env
// file. It returns ErrConfigNotFound when path does not exist.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat config file %s: %w", path, err)
	}

	config := DefaultConfig()
	meta, err := toml.DecodeFile(path, config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		logging.For("config").Warn().Str("key", undecoded[0].String()).Msg("unknown config key ignored")
	}
	if err := config.loadEnv(filepath.Dir(path)); err != nil {
		return nil, err
	}

	logging.For("config").Debug().Str("path", path).Msg("configuration loaded")
	return config, nil
}

// loadEnv loads the env file into the process environment without
// overriding variables that are already set. A missing default file is fine.
func (c *Config) loadEnv(configDir string) error {
	path := c.Defaults.EnvFile
	explicit := path != ""
	if !explicit {
		path = filepath.Join(configDir, ".env")
	}
	path, err := expandHome(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) && !explicit {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}
