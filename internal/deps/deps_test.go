package deps

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/leonardotrapani/watranscriber/internal/notify"
)

// fakeTool puts an executable script on an isolated PATH.
func fakeTool(t *testing.T, name, script string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir)
}

func TestCheck(t *testing.T) {
	fakeTool(t, "fake-tool", `echo "fake-tool 1.2.3"; echo "second line"`)

	status := Check(Tool{Name: "fake-tool", VersionArg: "--version"})
	if !status.Installed {
		t.Fatal("expected tool to be installed")
	}
	if status.Path == "" {
		t.Error("installed but path empty")
	}
	if status.Version != "fake-tool 1.2.3" {
		t.Errorf("expected first version line, got %q", status.Version)
	}
}

func TestCheck_NotInstalled(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	status := Check(NotifySend)
	if status.Installed {
		t.Error("expected Installed=false when tool not in PATH")
	}
	if status.Path != "" {
		t.Error("expected empty path when not installed")
	}
	if status.Tool.Name != "notify-send" {
		t.Errorf("expected tool to be reported, got %+v", status.Tool)
	}
}

func TestCheck_VersionFails(t *testing.T) {
	fakeTool(t, "broken", "exit 1")

	status := Check(Tool{Name: "broken", VersionArg: "--version"})
	if !status.Installed {
		t.Fatal("expected tool to be installed")
	}
	if status.Version != "" {
		t.Errorf("expected no version, got %q", status.Version)
	}
}

func TestRequired(t *testing.T) {
	tests := []struct {
		kind string
		want int
	}{
		{notify.TypeDesktop, 1},
		{notify.TypeLog, 0},
		{notify.TypeNone, 0},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			if got := len(Required(tt.kind)); got != tt.want {
				t.Errorf("Required(%q) returned %d tools, want %d", tt.kind, got, tt.want)
			}
			if got := len(CheckAll(tt.kind)); got != tt.want {
				t.Errorf("CheckAll(%q) returned %d statuses, want %d", tt.kind, got, tt.want)
			}
		})
	}
}
