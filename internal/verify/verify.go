// Package verify checks an API key before it is saved: an emptiness check, an
// optional format check and then one cheap live request to the vendor.
package verify

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/leonardotrapani/watranscriber/internal/logging"
	"github.com/leonardotrapani/watranscriber/internal/provider"
)

// Vendor probe types
const (
	OpenAI = "openai"
	Claude = "claude"
	Gemini = "gemini"
)

const (
	ErrEmptyKey      = "API key is empty"
	ErrInvalidKeyFmt = "Invalid API key format"
)

// FormatCheck rejects keys that cannot be valid without asking the vendor.
type FormatCheck struct {
	Check   func(key string) bool
	Message string
}

// PrefixCheck builds a FormatCheck requiring a key prefix.
func PrefixCheck(prefix string) *FormatCheck {
	return &FormatCheck{
		Check:   func(k string) bool { return strings.HasPrefix(k, prefix) },
		Message: fmt.Sprintf("Invalid API key format, should start with %s", prefix),
	}
}

type Options struct {
	APIKey       string
	ProviderType string
	// APIURL overrides the vendor endpoint, for proxies and self-hosted gateways.
	APIURL     string
	Model      string
	Format     *FormatCheck
	HTTPClient *http.Client
}

// Probe performs the live check for one vendor.
type Probe func(ctx context.Context, opts Options) provider.VerifyResult

var probes = map[string]Probe{
	OpenAI: probeOpenAI,
	Claude: probeClaude,
	Gemini: probeGemini,
}

// Verify never returns an error; every failure is reported in the result.
// It persists nothing.
func Verify(ctx context.Context, opts Options) provider.VerifyResult {
	if opts.APIKey == "" {
		return provider.Invalid(ErrEmptyKey)
	}
	if opts.Format != nil && opts.Format.Check != nil && !opts.Format.Check(opts.APIKey) {
		msg := opts.Format.Message
		if msg == "" {
			msg = ErrInvalidKeyFmt
		}
		return provider.Invalid(msg)
	}

	probe, ok := probes[opts.ProviderType]
	if !ok {
		return provider.Invalid(fmt.Sprintf("Unknown provider type: %s", opts.ProviderType))
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	res := probe(ctx, opts)
	if !res.Valid {
		log := logging.For("verify")
		log.Debug().Str("provider", opts.ProviderType).Str("error", res.Error).Msg("api key rejected")
	}
	return res
}
