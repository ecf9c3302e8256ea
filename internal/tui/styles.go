package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/leonardotrapani/watranscriber/internal/provider"
	"github.com/leonardotrapani/watranscriber/internal/settings"
)

var (
	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			MarginBottom(1)

	StyleLabel = lipgloss.NewStyle().
			Foreground(ColorText).
			Bold(true)

	StyleSuccess = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	StyleError = lipgloss.NewStyle().
			Foreground(ColorError).
			Bold(true)

	StyleWarning = lipgloss.NewStyle().
			Foreground(ColorWarning)

	StylePending = lipgloss.NewStyle().
			Foreground(ColorPending)

	StyleMuted = lipgloss.NewStyle().
			Foreground(ColorMuted)

	StyleBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorSubtle).
			Padding(0, 1)
)

// Title returns the styled program title.
func Title() string {
	return StyleHeader.Render("WA Transcriber")
}

// styleFor picks the style of a display status type.
func styleFor(kind string) lipgloss.Style {
	switch kind {
	case settings.DisplayError:
		return StyleError
	case settings.DisplayWarning:
		return StyleWarning
	case settings.DisplayPending:
		return StylePending
	default:
		return StyleSuccess
	}
}

// RenderStatus formats the daemon status as a small boxed report.
func RenderStatus(d settings.DisplayStatus, st settings.Status, pages int) string {
	var b strings.Builder
	b.WriteString(styleFor(d.Type).Render(d.Text))
	b.WriteString("\n\n")
	row := func(label, value string) {
		fmt.Fprintf(&b, "%s %s\n", StyleLabel.Render(label), value)
	}
	row("Transcription:", st.TranscriptionProviderStatus)
	row("Processing:   ", st.ProcessingProviderStatus)
	row("Pending:      ", fmt.Sprint(st.PendingTranscriptions))
	row("Pages:        ", fmt.Sprint(pages))
	if st.LastError != "" {
		row("Last error:   ", StyleError.Render(st.LastError))
	}
	if !st.LastRefreshed.IsZero() {
		row("Refreshed:    ", StyleMuted.Render(st.LastRefreshed.Format("15:04:05")))
	}
	return StyleBox.Render(strings.TrimRight(b.String(), "\n"))
}

// RenderSettings lists the settings with API keys masked.
func RenderSettings(s settings.Settings) string {
	enabled := StyleSuccess.Render("enabled")
	if !s.IsExtensionEnabled {
		enabled = StyleWarning.Render("disabled")
	}
	lines := []string{
		fmt.Sprintf("%s %s", StyleLabel.Render("Extension:    "), enabled),
		fmt.Sprintf("%s %s", StyleLabel.Render("Language:     "), provider.LanguageLabel(s.Language)),
		fmt.Sprintf("%s %s (%s) key %s", StyleLabel.Render("Transcription:"), s.TranscriptionProviderType, s.TranscriptionModel, MaskKey(s.TranscriptionAPIKey)),
		fmt.Sprintf("%s %s (%s) key %s", StyleLabel.Render("Processing:   "), s.ProcessingProviderType, s.ProcessingModel, MaskKey(s.ProcessingAPIKey)),
		fmt.Sprintf("%s %s", StyleLabel.Render("Whisper URL:  "), s.LocalWhisperURL),
		fmt.Sprintf("%s %s", StyleLabel.Render("Ollama URL:   "), s.OllamaServerURL),
	}
	if s.PromptTemplate != "" {
		lines = append(lines, fmt.Sprintf("%s %s", StyleLabel.Render("Prompt:       "), StyleMuted.Render(firstLine(s.PromptTemplate))))
	}
	return strings.Join(lines, "\n")
}

// MaskKey hides all but the last four characters of an API key.
func MaskKey(key string) string {
	switch {
	case key == "":
		return StyleMuted.Render("(not set)")
	case len(key) <= 8:
		return strings.Repeat("*", len(key))
	default:
		return strings.Repeat("*", 8) + key[len(key)-4:]
	}
}

func firstLine(s string) string {
	line, _, cut := strings.Cut(strings.TrimSpace(s), "\n")
	if cut {
		return line + " ..."
	}
	return line
}
