package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/leonardotrapani/watranscriber/internal/settings"
)

func TestMaskKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{key: "short", want: "*****"},
		{key: "12345678", want: "********"},
		{key: "sk-abcdefghij1234", want: "********1234"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := MaskKey(tt.key); got != tt.want {
				t.Errorf("MaskKey(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}

	if got := MaskKey(""); !strings.Contains(got, "(not set)") {
		t.Errorf("empty key should render as not set, got %q", got)
	}
}

func TestRenderSettings(t *testing.T) {
	s := settings.Settings{
		Language:                  "es",
		IsExtensionEnabled:        false,
		TranscriptionProviderType: "openai",
		TranscriptionAPIKey:       "sk-secretsecret9999",
		ProcessingProviderType:    "none",
		PromptTemplate:            "first line\nsecond line",
	}
	out := RenderSettings(s)

	for _, want := range []string{"Spanish (es)", "disabled", "********9999", "first line ...", "(not set)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "sk-secretsecret") {
		t.Errorf("output leaks API key:\n%s", out)
	}
}

func TestRenderStatus(t *testing.T) {
	st := settings.Status{
		TranscriptionProviderStatus: "✅ OpenAI ready",
		ProcessingProviderStatus:    "❌ Claude API key missing",
		PendingTranscriptions:       2,
		LastError:                   "boom",
		LastRefreshed:               time.Date(2024, 1, 1, 12, 30, 45, 0, time.UTC),
	}
	d := settings.DisplayStatus{Text: "Transcribing 2 messages", Type: settings.DisplayPending}

	out := RenderStatus(d, st, 3)
	for _, want := range []string{"Transcribing 2 messages", "OpenAI ready", "API key missing", "boom", "12:30:45"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
