package tui

import (
	"github.com/charmbracelet/huh"

	"github.com/leonardotrapani/watranscriber/internal/pipeline"
	"github.com/leonardotrapani/watranscriber/internal/provider"
	"github.com/leonardotrapani/watranscriber/internal/settings"
)

func categoryTitle(c provider.Category) string {
	if c == provider.Processing {
		return "Processing"
	}
	return "Transcription"
}

func providerName(reg *provider.Registry, c provider.Category, id string) string {
	if info, ok := reg.Info(c, id); ok {
		return info.Name
	}
	return id
}

// providerOptions lists the registered providers of c, marking the current one.
func providerOptions(reg *provider.Registry, c provider.Category, current string) []huh.Option[string] {
	ids := reg.ListIDs(c)
	options := make([]huh.Option[string], 0, len(ids))
	for _, id := range ids {
		info, _ := reg.Info(c, id)
		label := info.Name
		switch {
		case info.Disabled:
			label += " (disable processing)"
		case info.Local:
			label += " (local server)"
		}
		if id == current {
			label += " (current)"
		}
		options = append(options, huh.NewOption(label, id))
	}
	return options
}

// languageOptions lists the supported languages, auto-detect first.
func languageOptions(current string) []huh.Option[string] {
	options := make([]huh.Option[string], 0, len(provider.SupportedLanguages))
	for _, code := range provider.SupportedLanguages {
		label := provider.LanguageLabel(code)
		if code == current {
			label += " (current)"
		}
		options = append(options, huh.NewOption(label, code))
	}
	return options
}

func keyDescription(info provider.Info) string {
	if env := provider.EnvVarForProvider(info.ID); env != "" {
		return "Also read from " + env + " when left unset in the config"
	}
	return ""
}

// patchFor turns a verified request into the settings change it selects.
func patchFor(c provider.Category, req pipeline.VerifyRequest) settings.Patch {
	id := req.ProviderType
	var p settings.Patch
	if c == provider.Processing {
		p.ProcessingProviderType = &id
		if req.OllamaServerURL != "" {
			u := req.OllamaServerURL
			p.OllamaServerURL = &u
		}
		if req.APIKey != "" {
			k := req.APIKey
			p.ProcessingAPIKey = &k
		}
		return p
	}
	p.TranscriptionProviderType = &id
	if req.LocalWhisperURL != "" {
		u := req.LocalWhisperURL
		p.LocalWhisperURL = &u
	}
	if req.APIKey != "" {
		k := req.APIKey
		p.TranscriptionAPIKey = &k
	}
	return p
}
