package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/leonardotrapani/watranscriber/internal/bus"
	"github.com/leonardotrapani/watranscriber/internal/logging"
	"github.com/leonardotrapani/watranscriber/internal/notify"
)

// DefaultConfig returns the configuration used when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: logging.FormatConsole,
		},
		Bus: BusConfig{
			Debounce: bus.DefaultDebounce,
		},
		HTTP: HTTPConfig{
			Timeout: 2 * time.Minute,
		},
		Notifications: NotificationsConfig{
			Enabled: true,
			Type:    notify.TypeDesktop,
		},
	}
}

// SaveDefaultConfig writes a commented default config file to path. An
// existing file is left alone.
func SaveDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigContent), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

const defaultConfigContent = `# WA Transcriber Configuration
# Changes are picked up by a running daemon without restart.

[log]
  level = "info"               # trace, debug, info, warn, error
  format = "console"           # console or json

[storage]
  dir = ""                     # Storage areas (empty = ~/.config/watranscriber/data)

[bus]
  socket = ""                  # Control socket (empty = ~/.cache/watranscriber/control.sock)
  debounce = "500ms"           # Window for collapsing settings broadcasts to pages

[http]
  timeout = "2m"               # Per-request timeout for provider calls (0 = none)

[notifications]
  enabled = true
  type = "desktop"             # desktop, log, none

# Used when no value has been saved yet. Empty API keys fall back to
# OPENAI_API_KEY, ANTHROPIC_API_KEY or GEMINI_API_KEY, which may also be
# set in env_file (default: .env next to this file).
[defaults]
  transcription_provider = ""  # openai, localWhisper
  processing_provider = ""     # openai, claude, gemini, ollama, none
  transcription_api_key = ""
  processing_api_key = ""
  language = ""                # auto, en, es, fr, de, it, ar
  local_whisper_url = ""
  ollama_server_url = ""
  env_file = ""
`
