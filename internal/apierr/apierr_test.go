package apierr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		raw      any
		hints    Hints
		wantKind Kind
		wantMsg  string
	}{
		{
			name:     "openai invalid key",
			raw:      `{"error":{"type":"invalid_request_error","code":"invalid_api_key","message":"Incorrect API key provided"}}`,
			hints:    OpenAI,
			wantKind: KindAuthentication,
			wantMsg:  "Authentication failed. Please check your API key.",
		},
		{
			name:     "anthropic authentication",
			raw:      `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`,
			hints:    Anthropic,
			wantKind: KindAuthentication,
			wantMsg:  "Authentication failed. Please check your API key.",
		},
		{
			name:     "openai quota",
			raw:      `{"error":{"type":"insufficient_quota","message":"You exceeded your current quota"}}`,
			hints:    OpenAI,
			wantKind: KindQuotaExceeded,
			wantMsg:  "Your OpenAI API key has reached its usage limit. Please check your billing details or use a different API key.",
		},
		{
			name:     "rate limit counts as quota",
			raw:      `{"error":{"type":"rate_limit_error","message":"slow down"}}`,
			hints:    Anthropic,
			wantKind: KindQuotaExceeded,
		},
		{
			name:     "not json",
			raw:      "upstream connect error",
			hints:    OpenAI,
			wantKind: KindUnknown,
			wantMsg:  "upstream connect error",
		},
		{
			name:     "json without error object",
			raw:      `{"detail":"nope"}`,
			hints:    OpenAI,
			wantKind: KindUnknown,
			wantMsg:  "Invalid API key",
		},
		{
			name:     "unclassified vendor type",
			raw:      `{"error":{"type":"server_error","message":"boom"}}`,
			hints:    OpenAI,
			wantKind: KindUnknown,
			wantMsg:  "boom",
		},
		{
			name:     "envelope value",
			raw:      Envelope{Error: &EnvelopeError{Type: "unauthorized", Message: "x"}},
			hints:    OpenAI,
			wantKind: KindAuthentication,
		},
		{
			name:     "map value",
			raw:      map[string]any{"error": map[string]any{"type": "invalid_request_error", "message": "bad body"}},
			hints:    OpenAI,
			wantKind: KindInvalidRequest,
			wantMsg:  "bad body",
		},
		{
			name:     "gemini bad key",
			raw:      `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`,
			hints:    Gemini,
			wantKind: KindAuthentication,
		},
		{
			name:     "string error field",
			raw:      `{"error":"model \"llama9\" not found, try pulling it first"}`,
			hints:    Ollama,
			wantKind: KindUnknown,
			wantMsg:  `model "llama9" not found, try pulling it first`,
		},
		{
			name:     "null error field",
			raw:      `{"error":null}`,
			hints:    Ollama,
			wantKind: KindUnknown,
			wantMsg:  "Invalid API key",
		},
		{
			name:     "gemini exhausted",
			raw:      `{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`,
			hints:    Gemini,
			wantKind: KindQuotaExceeded,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			info := Normalize(tc.raw, "Invalid API key", tc.hints)
			if info.Kind != tc.wantKind {
				t.Errorf("Kind = %q, want %q", info.Kind, tc.wantKind)
			}
			if tc.wantMsg != "" && info.Message != tc.wantMsg {
				t.Errorf("Message = %q, want %q", info.Message, tc.wantMsg)
			}
			if info.UserMessage == "" {
				t.Error("UserMessage should never be empty")
			}
		})
	}
}

func TestNormalizeDefaultMessage(t *testing.T) {
	info := Normalize(nil, "", OpenAI)
	if info.Message != "API request failed" {
		t.Errorf("Message = %q, want default", info.Message)
	}
	if info.Kind != KindUnknown {
		t.Errorf("Kind = %q, want unknown", info.Kind)
	}
}

func TestExtraClassifierWins(t *testing.T) {
	hints := Hints{
		Provider:    "Acme",
		Classifiers: []Classifier{{KindQuotaExceeded, equalsAny("server_error")}},
	}
	info := Normalize(`{"error":{"type":"server_error","message":"m"}}`, "", hints)
	if info.Kind != KindQuotaExceeded {
		t.Errorf("Kind = %q, want quota_exceeded", info.Kind)
	}
	if !strings.Contains(info.UserMessage, "Acme") {
		t.Errorf("UserMessage should name provider, got %q", info.UserMessage)
	}
}

func TestKindOf(t *testing.T) {
	authErr := FromInfo("OpenAI", Info{Kind: KindAuthentication, Message: "bad key"})

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"plain", errors.New("x"), KindUnknown},
		{"direct", authErr, KindAuthentication},
		{"wrapped", fmt.Errorf("transcribe: %w", authErr), KindAuthentication},
		{"transcription error", NewTranscriptionError(fmt.Errorf("x: %w", authErr)), KindAuthentication},
		{"missing key", MissingAPIKey("OpenAI"), KindAuthentication},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Errorf("KindOf() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestTranscriptionError(t *testing.T) {
	if NewTranscriptionError(nil) != nil {
		t.Error("NewTranscriptionError(nil) should be nil")
	}
	base := New(KindQuotaExceeded, "limit")
	err := NewTranscriptionError(base)
	if !IsTranscriptionError(err) {
		t.Error("expected IsTranscriptionError")
	}
	if !errors.Is(err, base) {
		t.Error("expected chain to contain base error")
	}
	if err.Error() != "limit" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(MissingAPIKey("x"), ErrMissingAPIKey) {
		t.Error("MissingAPIKey should wrap ErrMissingAPIKey")
	}
}

func TestRemediation(t *testing.T) {
	if !strings.Contains(Remediation(KindAuthentication), "API key") {
		t.Error("authentication remediation should mention API key")
	}
	if !strings.Contains(Remediation(KindQuotaExceeded), "billing") {
		t.Error("quota remediation should mention billing")
	}
	if Remediation(KindUnknown) != Remediation(KindInvalidRequest) {
		t.Error("non-credential kinds share generic guidance")
	}
}
