package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/leonardotrapani/watranscriber/internal/provider"
	"github.com/leonardotrapani/watranscriber/internal/registry"
)

// unsetEnv clears key for the duration of the test.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "defaults", modify: func(*Config) {}},
		{name: "bad level", modify: func(c *Config) { c.Log.Level = "loud" }, wantErr: "log.level"},
		{name: "bad format", modify: func(c *Config) { c.Log.Format = "xml" }, wantErr: "log.format"},
		{name: "negative debounce", modify: func(c *Config) { c.Bus.Debounce = -time.Second }, wantErr: "bus.debounce"},
		{name: "negative timeout", modify: func(c *Config) { c.HTTP.Timeout = -time.Second }, wantErr: "http.timeout"},
		{name: "bad notification type", modify: func(c *Config) { c.Notifications.Type = "pigeon" }, wantErr: "notifications.type"},
		{name: "bad url", modify: func(c *Config) { c.Defaults.OllamaServerURL = "not a url" }, wantErr: "defaults.ollama_server_url"},
		{name: "empty optional fields", modify: func(c *Config) { *c = Config{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.modify(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Load(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())

		c, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if diff := cmp.Diff(DefaultConfig(), c); diff != "" {
			t.Errorf("Load() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("decodes over defaults", func(t *testing.T) {
		dir := t.TempDir()
		path := writeConfig(t, dir, `
[log]
level = "debug"

[bus]
debounce = "250ms"

[defaults]
processing_provider = "claude"
processing_api_key = "sk-ant-test"
`)
		c, err := LoadFile(path)
		if err != nil {
			t.Fatalf("LoadFile() error = %v", err)
		}
		want := DefaultConfig()
		want.Log.Level = "debug"
		want.Bus.Debounce = 250 * time.Millisecond
		want.Defaults.ProcessingProvider = provider.IDClaude
		want.Defaults.ProcessingAPIKey = "sk-ant-test"
		if diff := cmp.Diff(want, c); diff != "" {
			t.Errorf("LoadFile() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("LoadFile() error = %v, want ErrConfigNotFound", err)
		}
	})

	t.Run("invalid toml", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), "[log\nlevel = ")
		if _, err := LoadFile(path); err == nil {
			t.Error("LoadFile() should fail on invalid TOML")
		}
	})
}

func TestConfig_SaveDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watranscriber", "config.toml")
	if err := SaveDefaultConfig(path); err != nil {
		t.Fatalf("SaveDefaultConfig() error = %v", err)
	}

	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), c); diff != "" {
		t.Errorf("default file does not decode to DefaultConfig (-want +got):\n%s", diff)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("default file is invalid: %v", err)
	}

	if err := SaveDefaultConfig(path); err == nil {
		t.Error("SaveDefaultConfig() should refuse to overwrite")
	}
}

func TestGetConfigPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	if want := filepath.Join(dir, "watranscriber", "config.toml"); path != want {
		t.Errorf("GetConfigPath() = %s, want %s", path, want)
	}
}

func TestConfig_SettingsDefaults(t *testing.T) {
	reg := registry.New()

	tests := []struct {
		name      string
		defaults  DefaultsConfig
		env       map[string]string
		wantTrans string
		wantProc  string
		wantErr   bool
	}{
		{
			name:      "env fallback",
			env:       map[string]string{provider.EnvOpenAIKey: "sk-env"},
			wantTrans: "sk-env",
			wantProc:  "sk-env",
		},
		{
			name:      "explicit key wins over env",
			defaults:  DefaultsConfig{TranscriptionAPIKey: "sk-file"},
			env:       map[string]string{provider.EnvOpenAIKey: "sk-env"},
			wantTrans: "sk-file",
			wantProc:  "sk-env",
		},
		{
			name:      "env follows provider",
			defaults:  DefaultsConfig{ProcessingProvider: provider.IDGemini},
			env:       map[string]string{provider.EnvOpenAIKey: "sk-env", provider.EnvGeminiKey: "gm-env"},
			wantTrans: "sk-env",
			wantProc:  "gm-env",
		},
		{
			name:     "unknown provider",
			defaults: DefaultsConfig{TranscriptionProvider: "nonexistent"},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{provider.EnvOpenAIKey, provider.EnvAnthropicKey, provider.EnvGeminiKey} {
				unsetEnv(t, k)
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			c := DefaultConfig()
			c.Defaults = tt.defaults
			s, err := c.SettingsDefaults(reg)
			if tt.wantErr {
				if !errors.Is(err, provider.ErrNotFound) {
					t.Errorf("SettingsDefaults() error = %v, want ErrNotFound", err)
				}
				if s.TranscriptionProviderType != reg.DefaultTranscriberID() {
					t.Errorf("fallback transcriber = %q", s.TranscriptionProviderType)
				}
				return
			}
			if err != nil {
				t.Fatalf("SettingsDefaults() error = %v", err)
			}
			if s.TranscriptionAPIKey != tt.wantTrans || s.ProcessingAPIKey != tt.wantProc {
				t.Errorf("keys = (%q, %q), want (%q, %q)", s.TranscriptionAPIKey, s.ProcessingAPIKey, tt.wantTrans, tt.wantProc)
			}
		})
	}
}

func TestConfig_EnvFile(t *testing.T) {
	unsetEnv(t, provider.EnvGeminiKey)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("GEMINI_API_KEY=gm-dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	path := writeConfig(t, dir, "[defaults]\nprocessing_provider = \"gemini\"\n")

	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	s, err := c.SettingsDefaults(registry.New())
	if err != nil {
		t.Fatal(err)
	}
	if s.ProcessingAPIKey != "gm-dotenv" {
		t.Errorf("processing key = %q, want value from .env", s.ProcessingAPIKey)
	}

	t.Run("explicit env file must exist", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), "[defaults]\nenv_file = \"/nonexistent/.env\"\n")
		if _, err := LoadFile(path); err == nil {
			t.Error("LoadFile() should fail on a missing explicit env file")
		}
	})
}

func TestConfig_Paths(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	c := DefaultConfig()
	c.Storage.Dir = "~/wa"
	c.Bus.Socket = "/run/wa.sock"

	dir, err := c.StorageDir()
	if err != nil || dir != filepath.Join(home, "wa") {
		t.Errorf("StorageDir() = %q, %v", dir, err)
	}
	sock, err := c.SocketPath()
	if err != nil || sock != "/run/wa.sock" {
		t.Errorf("SocketPath() = %q, %v", sock, err)
	}
}

func TestManager_Reload(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "[log]\nlevel = \"info\"\n")

	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	reloaded := make(chan *Config, 4)
	m.OnReload(func(c *Config) { reloaded <- c })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.StartWatching(ctx); err != nil {
		t.Fatalf("StartWatching() error = %v", err)
	}
	defer m.Stop()

	// invalid config is rejected and the old one kept
	writeConfig(t, dir, "[log]\nlevel = \"loud\"\n")
	time.Sleep(100 * time.Millisecond)
	if got := m.GetConfig().Log.Level; got != "info" {
		t.Errorf("level after invalid reload = %q, want info", got)
	}

	writeConfig(t, dir, "[log]\nlevel = \"debug\"\n")
	deadline := time.After(2 * time.Second)
	for {
		select {
		case c := <-reloaded:
			if c.Log.Level == "debug" {
				if got := m.GetConfig().Log.Level; got != "debug" {
					t.Errorf("GetConfig() level = %q", got)
				}
				return
			}
		case <-deadline:
			t.Fatal("config was not reloaded")
		}
	}
}

func TestNewManager_MissingFile(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), m.GetConfig()); diff != "" {
		t.Errorf("GetConfig() mismatch (-want +got):\n%s", diff)
	}
}
