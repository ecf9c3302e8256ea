// Package registry wires the built-in providers into a provider.Registry.
package registry

import (
	"github.com/leonardotrapani/watranscriber/internal/llm"
	"github.com/leonardotrapani/watranscriber/internal/provider"
	"github.com/leonardotrapani/watranscriber/internal/transcriber"
)

// Transcribers lists the built-in transcription providers.
var Transcribers = []provider.Info{
	{
		ID:             provider.IDOpenAI,
		Name:           "OpenAI",
		RequiresAPIKey: true,
		DefaultModel:   transcriber.DefaultOpenAIModel,
		DefaultURL:     llm.DefaultOpenAIURL,
		KeyPrefix:      "sk-",
	},
	{
		ID:         provider.IDLocalWhisper,
		Name:       "Local Whisper",
		Local:      true,
		DefaultURL: transcriber.DefaultLocalWhisperURL,
	},
}

// Processors lists the built-in processing providers.
var Processors = []provider.Info{
	{
		ID:              provider.IDOpenAI,
		Name:            "OpenAI",
		RequiresAPIKey:  true,
		DefaultModel:    llm.DefaultOpenAIModel,
		DefaultURL:      llm.DefaultOpenAIURL,
		DefaultTemplate: llm.DefaultTemplate(provider.IDOpenAI),
		KeyPrefix:       "sk-",
	},
	{
		ID:              provider.IDClaude,
		Name:            "Claude",
		RequiresAPIKey:  true,
		DefaultModel:    llm.DefaultClaudeModel,
		DefaultURL:      llm.DefaultClaudeURL,
		DefaultTemplate: llm.DefaultTemplate(provider.IDClaude),
		KeyPrefix:       "sk-ant-",
	},
	{
		ID:              provider.IDGemini,
		Name:            "Gemini",
		RequiresAPIKey:  true,
		DefaultModel:    llm.DefaultGeminiModel,
		DefaultTemplate: llm.DefaultTemplate(provider.IDGemini),
	},
	{
		ID:              provider.IDOllama,
		Name:            "Ollama",
		Local:           true,
		DefaultModel:    llm.DefaultOllamaModel,
		DefaultURL:      llm.DefaultOllamaURL,
		DefaultTemplate: llm.DefaultTemplate(provider.IDOllama),
	},
	{
		ID:       provider.IDNone,
		Name:     "None",
		Disabled: true,
	},
}

var transcriberFactories = map[string]provider.TranscriberFactory{
	provider.IDOpenAI:       func(c provider.Config) provider.Transcriber { return transcriber.NewOpenAITranscriber(c) },
	provider.IDLocalWhisper: func(c provider.Config) provider.Transcriber { return transcriber.NewLocalWhisper(c) },
}

var processorFactories = map[string]provider.ProcessorFactory{
	provider.IDOpenAI: func(c provider.Config) provider.Processor { return llm.NewOpenAIProcessor(c) },
	provider.IDClaude: func(c provider.Config) provider.Processor { return llm.NewClaudeProcessor(c) },
	provider.IDGemini: func(c provider.Config) provider.Processor { return llm.NewGeminiProcessor(c) },
	provider.IDOllama: func(c provider.Config) provider.Processor { return llm.NewOllamaProcessor(c) },
	provider.IDNone:   func(c provider.Config) provider.Processor { return llm.NewNoneProcessor(c) },
}

// New returns a registry holding every built-in provider, with OpenAI as the
// default for both categories.
func New() *provider.Registry {
	r := provider.NewRegistry()
	for _, info := range Transcribers {
		r.RegisterTranscriber(info, transcriberFactories[info.ID])
	}
	for _, info := range Processors {
		r.RegisterProcessor(info, processorFactories[info.ID])
	}
	_ = r.SetDefaults(provider.IDOpenAI, provider.IDOpenAI)
	return r
}
