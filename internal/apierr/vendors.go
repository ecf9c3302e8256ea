package apierr

import "strings"

// OpenAI normalizes api.openai.com error bodies. A rejected key comes back as
// invalid_request_error with code invalid_api_key, so the code wins when set.
var OpenAI = Hints{
	Provider: "OpenAI",
	Classifiers: []Classifier{
		{KindAuthentication, equalsAny("invalid_api_key")},
	},
	ErrorType: func(env Envelope) string {
		if code, ok := env.Error.Code.(string); ok && code == "invalid_api_key" {
			return code
		}
		return env.Error.Type
	},
}

// Anthropic normalizes api.anthropic.com error bodies.
var Anthropic = Hints{Provider: "Anthropic"}

// Gemini normalizes Google Generative Language API error bodies, which carry
// a gRPC status instead of an OpenAI-style type.
var Gemini = Hints{
	Provider: "Gemini",
	Classifiers: []Classifier{
		{KindAuthentication, equalsAny("UNAUTHENTICATED", "PERMISSION_DENIED", "API_KEY_INVALID")},
		{KindQuotaExceeded, equalsAny("RESOURCE_EXHAUSTED")},
		{KindInvalidRequest, equalsAny("INVALID_ARGUMENT", "FAILED_PRECONDITION")},
	},
	ErrorType: func(env Envelope) string {
		if strings.Contains(env.Error.Message, "API key not valid") {
			return "API_KEY_INVALID"
		}
		if env.Error.Status != "" {
			return env.Error.Status
		}
		return env.Error.Type
	},
}

// Ollama normalizes local Ollama server error bodies (`{"error": "..."}` is
// not an envelope, so these mostly fall through to the raw-text path).
var Ollama = Hints{Provider: "Ollama"}
