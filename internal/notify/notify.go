package notify

import (
	"os/exec"

	"github.com/leonardotrapani/watranscriber/internal/logging"
)

const appName = "WA Transcriber"

// Notification backends
const (
	TypeDesktop = "desktop"
	TypeLog     = "log"
	TypeNone    = "none"
)

type Notifier interface {
	Notify(title, message string)
	Error(msg string)
}

// New returns the notifier for a configured type. Unknown types log.
func New(kind string) Notifier {
	switch kind {
	case TypeDesktop:
		return Desktop{}
	case TypeNone:
		return Nop{}
	default:
		return Log{}
	}
}

// Desktop sends notifications through notify-send.
type Desktop struct{}

func (Desktop) Notify(title, message string) {
	cmd := exec.Command("notify-send", "-a", appName, title, message)
	if err := cmd.Run(); err != nil {
		logging.For("notify").Warn().Err(err).Msg("failed to send notification")
	}
}

func (Desktop) Error(msg string) {
	cmd := exec.Command("notify-send", "-a", appName, "-u", "critical", appName+" error", msg)
	if err := cmd.Run(); err != nil {
		logging.For("notify").Warn().Err(err).Msg("failed to send error notification")
	}
}

// Log writes notifications to the process log.
type Log struct{}

func (Log) Notify(title, message string) {
	logging.For("notify").Info().Str("title", title).Msg(message)
}

func (Log) Error(msg string) {
	logging.For("notify").Error().Msg(msg)
}

// Nop is a Notifier that does absolutely nothing.
// Useful in unit tests or headless builds.
type Nop struct{}

func (Nop) Notify(string, string) {}
func (Nop) Error(string)          {}
