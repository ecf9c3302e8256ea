// Package apierr normalizes provider HTTP error payloads into a small, fixed
// taxonomy that callers can branch on and show to users directly.
package apierr

import (
	"encoding/json"
	"errors"
	"strings"
)

// Kind is the normalized error category.
type Kind string

const (
	KindAuthentication Kind = "authentication"
	KindQuotaExceeded  Kind = "quota_exceeded"
	KindInvalidRequest Kind = "invalid_request"
	KindUnknown        Kind = "unknown"
)

// ErrMissingAPIKey is returned by providers invoked without a configured key.
var ErrMissingAPIKey = errors.New("API key not configured")

const genericUserMessage = "There was an error processing your request. Please try again."

// Info is the result of normalizing one error payload.
type Info struct {
	Message     string
	Kind        Kind
	UserMessage string
	// VendorType is the raw error type string reported by the vendor, if any.
	VendorType string
}

// Envelope is the common `{"error": {"type": ..., "message": ...}}` shape
// returned by OpenAI-style and Anthropic-style APIs.
type Envelope struct {
	Error *EnvelopeError `json:"error"`
}

// EnvelopeError is the inner error object of an Envelope.
type EnvelopeError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Status  string `json:"status"`
	Code    any    `json:"code"`
}

// UnmarshalJSON also accepts a bare string, as in Ollama's
// `{"error": "model not found"}`, taking it as the message.
func (e *EnvelopeError) UnmarshalJSON(b []byte) error {
	var msg string
	if err := json.Unmarshal(b, &msg); err == nil {
		*e = EnvelopeError{Message: msg}
		return nil
	}
	type plain EnvelopeError
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*e = EnvelopeError(p)
	return nil
}

// Predicate reports whether a vendor error type belongs to a kind.
type Predicate func(vendorType string) bool

// Classifier maps one kind to the predicate that recognizes it.
type Classifier struct {
	Kind  Kind
	Match Predicate
}

// Classifiers is the shared classification table, checked in order.
var Classifiers = []Classifier{
	{KindAuthentication, containsAny("authentication_error", "unauthorized")},
	{KindQuotaExceeded, containsAny("insufficient_quota", "quota", "rate_limit")},
	{KindInvalidRequest, equalsAny("invalid_request_error")},
}

// Hints carries the vendor-specific bits of normalization.
type Hints struct {
	// Provider is the display name used in quota messages (e.g. "OpenAI").
	Provider string
	// Classifiers are checked before the shared table.
	Classifiers []Classifier
	// ErrorType extracts the vendor error type; defaults to error.type.
	ErrorType func(Envelope) string
	// ErrorMessage extracts the vendor message; defaults to error.message.
	ErrorMessage func(Envelope) string
}

// Normalize classifies raw, which may be a JSON string, raw bytes, an
// Envelope or any JSON-marshalable value.
func Normalize(raw any, defaultMessage string, hints Hints) Info {
	if defaultMessage == "" {
		defaultMessage = "API request failed"
	}

	env, text, ok := decode(raw)
	if !ok {
		msg := defaultMessage
		if text != "" {
			msg = text
		}
		return Info{Message: msg, Kind: KindUnknown, UserMessage: genericUserMessage}
	}
	if env.Error == nil {
		return Info{Message: defaultMessage, Kind: KindUnknown, UserMessage: genericUserMessage}
	}

	vendorType := env.Error.Type
	if hints.ErrorType != nil {
		vendorType = hints.ErrorType(env)
	}
	message := env.Error.Message
	if hints.ErrorMessage != nil {
		message = hints.ErrorMessage(env)
	}
	if message == "" {
		message = defaultMessage
	}

	return withKind(Info{Message: message, VendorType: vendorType}, classify(vendorType, hints.Classifiers), hints.Provider)
}

// withKind sets info's kind and the user-facing text that goes with it.
// Authentication and quota errors replace the vendor message.
func withKind(info Info, kind Kind, provider string) Info {
	info.Kind = kind
	info.UserMessage = userMessage(kind, provider)
	switch kind {
	case KindAuthentication:
		info.Message = "Authentication failed. Please check your API key."
	case KindQuotaExceeded:
		info.Message = "Your " + provider + " API key has reached its usage limit. Please check your billing details or use a different API key."
	}
	return info
}

func userMessage(kind Kind, provider string) string {
	switch kind {
	case KindAuthentication:
		return "Your API key appears to be invalid. Please check your settings."
	case KindQuotaExceeded:
		if provider == "" {
			return "Your API key has reached its usage limit. Please check your account billing details or update your API key."
		}
		return "Your API key has reached its usage limit. Please check your " + provider + " account billing details or update your API key."
	case KindInvalidRequest:
		return "There was a problem with the request. Please check your settings."
	default:
		return genericUserMessage
	}
}

func classify(vendorType string, extra []Classifier) Kind {
	if vendorType == "" {
		return KindUnknown
	}
	for _, table := range [][]Classifier{extra, Classifiers} {
		for _, c := range table {
			if c.Match(vendorType) {
				return c.Kind
			}
		}
	}
	return KindUnknown
}

// decode turns raw into an Envelope. The returned text is the trimmed raw
// string when raw was textual, used as the message on parse failure.
func decode(raw any) (Envelope, string, bool) {
	var env Envelope
	switch v := raw.(type) {
	case nil:
		return env, "", false
	case Envelope:
		return v, "", true
	case *Envelope:
		if v == nil {
			return env, "", false
		}
		return *v, "", true
	case string:
		return decodeText([]byte(v))
	case []byte:
		return decodeText(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return env, "", false
		}
		if err := json.Unmarshal(b, &env); err != nil {
			return env, "", false
		}
		return env, "", true
	}
}

func decodeText(b []byte) (Envelope, string, bool) {
	var env Envelope
	text := strings.TrimSpace(string(b))
	if err := json.Unmarshal(b, &env); err != nil {
		return env, text, false
	}
	return env, text, true
}

func containsAny(subs ...string) Predicate {
	return func(t string) bool {
		for _, s := range subs {
			if strings.Contains(t, s) {
				return true
			}
		}
		return false
	}
}

func equalsAny(vals ...string) Predicate {
	return func(t string) bool {
		for _, v := range vals {
			if t == v {
				return true
			}
		}
		return false
	}
}
