package settings

import (
	"fmt"
	"strings"
	"time"

	"github.com/leonardotrapani/watranscriber/internal/provider"
)

// Provider readiness markers
const (
	MarkReady   = "✅"
	MarkWarning = "⚠️"
)

// Status is runtime state derived from settings plus the pipeline counters.
// It is never persisted.
type Status struct {
	IsAPIKeyConfigured          bool      `json:"isApiKeyConfigured"`
	IsExtensionEnabled          bool      `json:"isExtensionEnabled"`
	PendingTranscriptions       int       `json:"pendingTranscriptions"`
	LastError                   string    `json:"lastError,omitempty"`
	TranscriptionProviderStatus string    `json:"transcriptionProviderStatus"`
	ProcessingProviderStatus    string    `json:"processingProviderStatus"`
	LastRefreshed               time.Time `json:"lastRefreshed"`
}

// PendingUpdate changes the pending counter either relatively or absolutely.
type PendingUpdate struct {
	delta int
	abs   *int
}

// Increment marks one more transcription in flight.
func Increment() *PendingUpdate { return &PendingUpdate{delta: 1} }

// Decrement marks one transcription finished.
func Decrement() *PendingUpdate { return &PendingUpdate{delta: -1} }

// SetPending sets the counter to n.
func SetPending(n int) *PendingUpdate { return &PendingUpdate{abs: &n} }

func (u *PendingUpdate) apply(cur int) int {
	n := cur + u.delta
	if u.abs != nil {
		n = *u.abs
	}
	return max(n, 0)
}

// StatusPatch is a partial status update. Nil fields are left alone; an empty
// LastError clears it.
type StatusPatch struct {
	IsExtensionEnabled *bool
	Pending            *PendingUpdate
	LastError          *string
}

// ErrorText is a helper for building a StatusPatch.LastError.
func ErrorText(s string) *string { return &s }

// Display kinds
const (
	DisplayError   = "error"
	DisplayWarning = "warning"
	DisplayPending = "pending"
	DisplaySuccess = "success"
)

// DisplayStatus is the one-line status shown to the user.
type DisplayStatus struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

// ProviderStatus returns the readiness text for the provider selected for
// category c. It only looks at registry metadata, so new providers need no
// changes here.
func ProviderStatus(reg *provider.Registry, s Settings, c provider.Category) string {
	id := s.ProviderID(c)
	info, ok := reg.Info(c, id)
	if !ok {
		return "Not Configured"
	}
	switch {
	case info.Disabled:
		return MarkReady + " Processing Disabled"
	case info.Local:
		if s.ServerURL(c) == "" {
			return fmt.Sprintf("%s %s URL Missing", MarkWarning, info.Name)
		}
	case info.RequiresAPIKey:
		if s.APIKey(c) == "" {
			return fmt.Sprintf("%s %s API Key Missing", MarkWarning, info.Name)
		}
	}
	return fmt.Sprintf("%s %s Ready", MarkReady, info.Name)
}

func ready(text string) bool { return strings.HasPrefix(text, MarkReady) }
func warned(text string) bool { return strings.HasPrefix(text, MarkWarning) }

// computeStatus refreshes the settings-derived fields of st.
func computeStatus(reg *provider.Registry, s Settings, st Status, now time.Time) Status {
	st.TranscriptionProviderStatus = ProviderStatus(reg, s, provider.Transcription)
	st.ProcessingProviderStatus = ProviderStatus(reg, s, provider.Processing)
	st.IsAPIKeyConfigured = ready(st.TranscriptionProviderStatus) && ready(st.ProcessingProviderStatus)
	st.IsExtensionEnabled = s.IsExtensionEnabled
	st.LastRefreshed = now
	return st
}

// DeriveStatusText picks the status line. Provider configuration problems
// win over a disabled extension, which wins over the last error, then the
// pending count, then the all-clear.
func DeriveStatusText(s Settings, st Status) DisplayStatus {
	processingOff := s.ProcessingProviderType == provider.IDNone

	if warned(st.TranscriptionProviderStatus) {
		return DisplayStatus{Text: st.TranscriptionProviderStatus, Type: DisplayError}
	}
	if !processingOff && warned(st.ProcessingProviderStatus) {
		return DisplayStatus{Text: st.ProcessingProviderStatus, Type: DisplayError}
	}
	if !st.IsExtensionEnabled {
		return DisplayStatus{Text: "Extension disabled", Type: DisplayWarning}
	}
	if st.LastError != "" {
		return DisplayStatus{Text: "Error: " + st.LastError, Type: DisplayError}
	}
	if st.PendingTranscriptions > 0 {
		return DisplayStatus{Text: fmt.Sprintf("Transcribing (%d)...", st.PendingTranscriptions), Type: DisplayPending}
	}

	transcriptionOK := ready(st.TranscriptionProviderStatus)
	processingOK := processingOff || ready(st.ProcessingProviderStatus)
	switch {
	case transcriptionOK && processingOK && processingOff:
		return DisplayStatus{Text: MarkReady + " Transcription ready (Processing disabled)", Type: DisplaySuccess}
	case transcriptionOK && processingOK:
		return DisplayStatus{Text: MarkReady + " All systems go!", Type: DisplaySuccess}
	case !transcriptionOK && st.TranscriptionProviderStatus != "":
		return DisplayStatus{Text: "Transcription provider not ready", Type: DisplayWarning}
	case !processingOK && st.ProcessingProviderStatus != "":
		return DisplayStatus{Text: "Processing provider not ready", Type: DisplayWarning}
	}
	return DisplayStatus{Text: "Ready", Type: DisplaySuccess}
}
