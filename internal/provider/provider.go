// Package provider defines the two capability sets a backend can implement
// (transcription and text processing) and the registry that resolves them
// by plain string ids.
package provider

import (
	"context"
	"net/http"
)

// Category names which capability set a provider id belongs to.
type Category string

const (
	Transcription Category = "transcription"
	Processing    Category = "processing"
)

// VerifyResult is the outcome of a key or server check. Verification never
// returns an error; failures are reported through Error.
type VerifyResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// Invalid is shorthand for a failed VerifyResult.
func Invalid(msg string) VerifyResult {
	return VerifyResult{Valid: false, Error: msg}
}

// Valid is shorthand for a successful VerifyResult.
func Valid() VerifyResult {
	return VerifyResult{Valid: true}
}

// Audio is one captured voice message.
type Audio struct {
	Data     []byte
	MIMEType string
}

// ProcessedResult is the normalized output of one processing call. Original
// and Processed are always set, even on failure.
type ProcessedResult struct {
	Original  string `json:"original"`
	Processed string `json:"processed"`
	Summary   string `json:"summary,omitempty"`
	Reply     string `json:"reply,omitempty"`
	Error     string `json:"error,omitempty"`
}

type TranscribeOptions struct {
	Language string
}

type ProcessOptions struct {
	Language string
	// PromptTemplate overrides the provider's default template when set.
	PromptTemplate string
}

// Transcriber turns audio into text.
type Transcriber interface {
	VerifyAPIKey(ctx context.Context, key string) VerifyResult
	TranscribeAudio(ctx context.Context, audio Audio, opts TranscribeOptions) (string, error)
}

// Processor turns a raw transcript into a ProcessedResult.
type Processor interface {
	VerifyAPIKey(ctx context.Context, key string) VerifyResult
	ProcessTranscription(ctx context.Context, text string, opts ProcessOptions) (ProcessedResult, error)
}

// Config is the per-instance configuration handed to a provider factory.
// Empty fields are filled from the provider's Info before the factory runs.
type Config struct {
	APIKey     string
	APIURL     string
	Model      string
	HTTPClient *http.Client
}

// Info is the static metadata for one registered provider.
type Info struct {
	ID       string
	Name     string
	Category Category
	// RequiresAPIKey is false for local servers and for the passthrough processor.
	RequiresAPIKey bool
	// Local providers talk to a user-run server at APIURL instead of a vendor.
	Local           bool
	Disabled        bool
	DefaultModel    string
	DefaultURL      string
	DefaultTemplate string
	// KeyPrefix is the expected API key prefix, checked before any network probe.
	KeyPrefix string
}

func (c Config) withDefaults(info Info) Config {
	if c.APIURL == "" {
		c.APIURL = info.DefaultURL
	}
	if c.Model == "" {
		c.Model = info.DefaultModel
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	return c
}
