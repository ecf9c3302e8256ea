package provider

// Provider ids as stored in settings
const (
	IDOpenAI       = "openai"
	IDLocalWhisper = "localWhisper"
	IDClaude       = "claude"
	IDOllama       = "ollama"
	IDGemini       = "gemini"
	IDNone         = "none"
)

// Environment variable names for compiled-default API keys
const (
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
	EnvGeminiKey    = "GEMINI_API_KEY"
)

// EnvVarForProvider returns the environment variable holding a provider's
// default API key, or "" for providers that take none.
func EnvVarForProvider(id string) string {
	switch id {
	case IDOpenAI:
		return EnvOpenAIKey
	case IDClaude:
		return EnvAnthropicKey
	case IDGemini:
		return EnvGeminiKey
	default:
		return ""
	}
}

// LanguageAuto lets the transcriber detect the spoken language.
const LanguageAuto = "auto"

// SupportedLanguages is the list offered in the settings editor.
var SupportedLanguages = []string{LanguageAuto, "en", "es", "fr", "de", "it", "ar"}
