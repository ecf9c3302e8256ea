// Package deps reports on the external programs the daemon shells out to.
package deps

import (
	"os/exec"
	"strings"

	"github.com/leonardotrapani/watranscriber/internal/notify"
)

// Status represents the installation status of a dependency
type Status struct {
	Tool      Tool
	Installed bool
	Path      string
	Version   string
}

// Tool is an external program and the flag that prints its version.
type Tool struct {
	Name       string
	VersionArg string
	Purpose    string
}

// NotifySend delivers desktop notifications.
var NotifySend = Tool{Name: "notify-send", VersionArg: "--version", Purpose: "desktop notifications"}

// Check looks t up on PATH and reads the first line of its version output.
func Check(t Tool) Status {
	path, err := exec.LookPath(t.Name)
	if err != nil {
		return Status{Tool: t}
	}

	status := Status{
		Tool:      t,
		Installed: true,
		Path:      path,
	}
	if t.VersionArg == "" {
		return status
	}

	output, err := exec.Command(path, t.VersionArg).Output()
	if err == nil {
		line, _, _ := strings.Cut(string(output), "\n")
		status.Version = strings.TrimSpace(line)
	}
	return status
}

// Required lists the tools needed for a notification type.
func Required(notificationType string) []Tool {
	if notificationType == notify.TypeDesktop {
		return []Tool{NotifySend}
	}
	return nil
}

// CheckAll checks every tool needed for a notification type.
func CheckAll(notificationType string) []Status {
	tools := Required(notificationType)
	out := make([]Status, 0, len(tools))
	for _, t := range tools {
		out = append(out, Check(t))
	}
	return out
}
