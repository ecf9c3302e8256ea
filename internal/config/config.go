package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/leonardotrapani/watranscriber/internal/bus"
	"github.com/leonardotrapani/watranscriber/internal/provider"
	"github.com/leonardotrapani/watranscriber/internal/settings"
)

// Config is the process configuration of the background daemon and the CLI.
// User settings are not stored here; see package settings.
type Config struct {
	Log           LogConfig           `toml:"log"`
	Storage       StorageConfig       `toml:"storage"`
	Bus           BusConfig           `toml:"bus"`
	HTTP          HTTPConfig          `toml:"http"`
	Notifications NotificationsConfig `toml:"notifications"`
	Defaults      DefaultsConfig      `toml:"defaults"`
}

type LogConfig struct {
	Level  string `toml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Format string `toml:"format" validate:"omitempty,oneof=console json"`
}

type StorageConfig struct {
	Dir string `toml:"dir"`
}

type BusConfig struct {
	Socket   string        `toml:"socket"`
	Debounce time.Duration `toml:"debounce" validate:"gte=0"`
}

type HTTPConfig struct {
	// Timeout bounds each provider request; zero leaves it to the transport.
	Timeout time.Duration `toml:"timeout" validate:"gte=0"`
}

type NotificationsConfig struct {
	Enabled bool   `toml:"enabled"`
	Type    string `toml:"type" validate:"omitempty,oneof=desktop log none"`
}

// DefaultsConfig holds the compiled defaults used when neither storage area
// has a value.
type DefaultsConfig struct {
	TranscriptionProvider string `toml:"transcription_provider"`
	ProcessingProvider    string `toml:"processing_provider"`
	TranscriptionAPIKey   string `toml:"transcription_api_key"`
	ProcessingAPIKey      string `toml:"processing_api_key"`
	Language              string `toml:"language"`
	LocalWhisperURL       string `toml:"local_whisper_url" validate:"omitempty,url"`
	OllamaServerURL       string `toml:"ollama_server_url" validate:"omitempty,url"`
	EnvFile               string `toml:"env_file"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
		return name
	})
	return v
}

// Validate checks field formats. Provider ids are checked against a registry
// in SettingsDefaults.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid %s: %v (%s)", tomlPath(fe.Namespace()), fe.Value(), fe.Tag())
		}
		return err
	}
	return nil
}

// tomlPath turns "Config.log.level" into "log.level".
func tomlPath(ns string) string {
	_, rest, ok := strings.Cut(ns, ".")
	if !ok {
		return ns
	}
	return rest
}

// StorageDir returns the directory of the storage areas.
func (c *Config) StorageDir() (string, error) {
	if c.Storage.Dir != "" {
		return expandHome(c.Storage.Dir)
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(dir, appDir, "data"), nil
}

// SocketPath returns the daemon control socket path.
func (c *Config) SocketPath() (string, error) {
	if c.Bus.Socket != "" {
		return expandHome(c.Bus.Socket)
	}
	return bus.SockPath()
}

// SettingsDefaults builds the compiled-default user settings. API keys left
// empty here are taken from the provider's environment variable.
func (c *Config) SettingsDefaults(reg *provider.Registry) (settings.Settings, error) {
	s := settings.Defaults(reg)
	d := c.Defaults
	if d.TranscriptionProvider != "" {
		s.TranscriptionProviderType = d.TranscriptionProvider
	}
	if d.ProcessingProvider != "" {
		s.ProcessingProviderType = d.ProcessingProvider
	}
	if d.Language != "" {
		s.Language = d.Language
	}
	if d.LocalWhisperURL != "" {
		s.LocalWhisperURL = d.LocalWhisperURL
	}
	if d.OllamaServerURL != "" {
		s.OllamaServerURL = d.OllamaServerURL
	}
	s.TranscriptionAPIKey = keyOrEnv(d.TranscriptionAPIKey, s.TranscriptionProviderType)
	s.ProcessingAPIKey = keyOrEnv(d.ProcessingAPIKey, s.ProcessingProviderType)

	if err := settings.Validate(s, reg); err != nil {
		return settings.Defaults(reg), fmt.Errorf("invalid [defaults]: %w", err)
	}
	return s, nil
}

func keyOrEnv(key, providerID string) string {
	if key != "" {
		return key
	}
	if env := provider.EnvVarForProvider(providerID); env != "" {
		return os.Getenv(env)
	}
	return ""
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}
