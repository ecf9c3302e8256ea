package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSetupJSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	Setup("debug", FormatJSON, &buf)
	t.Cleanup(func() { Setup("info", FormatConsole, nil) })

	l := For("settings")
	l.Warn().Str("key", "summary").Msg("missing field")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not json: %q", buf.String())
	}
	if entry[FieldComponent] != "settings" {
		t.Errorf("component = %v", entry[FieldComponent])
	}
	if entry["level"] != "warn" {
		t.Errorf("level = %v", entry["level"])
	}
}

func TestSetupLevels(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	t.Cleanup(func() { Setup("info", FormatConsole, nil) })
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			Setup(tc.in, FormatJSON, &bytes.Buffer{})
			if got := zerolog.GlobalLevel(); got != tc.want {
				t.Errorf("GlobalLevel() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	Setup("info", "console", &buf)
	t.Cleanup(func() { Setup("info", FormatConsole, nil) })

	l := For("bus")
	l.Info().Msg("listening")
	if !strings.Contains(buf.String(), "listening") || strings.HasPrefix(buf.String(), "{") {
		t.Errorf("unexpected console output %q", buf.String())
	}
}
