package apierr

import (
	"errors"
	"fmt"
)

// Error is the single normalized error providers return to callers. Raw vendor
// payloads never escape past it.
type Error struct {
	Kind        Kind
	Message     string
	UserMessage string
	Provider    string
	Err         error
}

func (e *Error) Error() string {
	if e == nil {
		return "provider error"
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New builds an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, UserMessage: userMessage(kind, "")}
}

// FromInfo builds an Error from a normalized Info.
func FromInfo(provider string, info Info) *Error {
	return &Error{
		Kind:        info.Kind,
		Message:     info.Message,
		UserMessage: info.UserMessage,
		Provider:    provider,
	}
}

// Wrap attaches a cause and a kind to a message.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{
		Kind:        kind,
		Message:     fmt.Sprintf(format, args...),
		UserMessage: userMessage(kind, ""),
		Err:         err,
	}
}

// MissingAPIKey reports a provider invoked without a key.
func MissingAPIKey(provider string) *Error {
	return &Error{
		Kind:        KindAuthentication,
		Message:     ErrMissingAPIKey.Error(),
		UserMessage: userMessage(KindAuthentication, provider),
		Provider:    provider,
		Err:         ErrMissingAPIKey,
	}
}

// KindOf returns the kind carried anywhere in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var te *TranscriptionError
	if errors.As(err, &te) && te.Kind != "" {
		return te.Kind
	}
	var e *Error
	if errors.As(err, &e) && e.Kind != "" {
		return e.Kind
	}
	return KindUnknown
}

// TranscriptionError marks a failed voice-message run.
type TranscriptionError struct {
	Kind Kind
	Err  error
}

func (e *TranscriptionError) Error() string {
	if e == nil || e.Err == nil {
		return "transcription failed"
	}
	return e.Err.Error()
}

func (e *TranscriptionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewTranscriptionError wraps err, keeping the kind already attached to it.
func NewTranscriptionError(err error) error {
	if err == nil {
		return nil
	}
	return &TranscriptionError{Kind: KindOf(err), Err: err}
}

// IsTranscriptionError reports whether err is a wrapped voice-message failure.
func IsTranscriptionError(err error) bool {
	var te *TranscriptionError
	return errors.As(err, &te)
}

// Remediation returns the user-actionable hint shown in place of a processed
// transcript when a run fails.
func Remediation(kind Kind) string {
	switch kind {
	case KindQuotaExceeded:
		return "Please update your API key in the extension settings or check your account billing details."
	case KindAuthentication:
		return "Invalid API key. Please check your settings."
	default:
		return "Try again later or check the extension settings."
	}
}
