package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/muesli/termenv"

	"github.com/leonardotrapani/watranscriber/internal/pipeline"
	"github.com/leonardotrapani/watranscriber/internal/provider"
	"github.com/leonardotrapani/watranscriber/internal/settings"
)

// Backend is what the editor needs from a running daemon.
type Backend interface {
	Settings(ctx context.Context) (settings.Settings, error)
	UpdateSettings(ctx context.Context, p settings.Patch) (settings.Settings, error)
	Verify(ctx context.Context, req pipeline.VerifyRequest, save bool) (provider.VerifyResult, error)
}

// ConfigureResult holds the outcome of the editor.
type ConfigureResult struct {
	Settings  settings.Settings
	Cancelled bool
}

// ConfigSection represents a menu entry.
type ConfigSection string

const (
	SectionTranscription ConfigSection = "transcription"
	SectionProcessing    ConfigSection = "processing"
	SectionLanguage      ConfigSection = "language"
	SectionPrompt        ConfigSection = "prompt"
	SectionEnabled       ConfigSection = "enabled"
	SectionSaveExit      ConfigSection = "save_exit"
	SectionDiscardExit   ConfigSection = "discard_exit"
)

// editor holds the working copy while the menu runs.
type editor struct {
	ctx     context.Context
	backend Backend
	reg     *provider.Registry
	cur     settings.Settings
	patch   settings.Patch
}

// Run starts the interactive settings editor. Changes are only sent to the
// daemon after the summary is confirmed.
func Run(ctx context.Context, b Backend, reg *provider.Registry) (*ConfigureResult, error) {
	cur, err := b.Settings(ctx)
	if err != nil {
		return nil, err
	}
	e := &editor{ctx: ctx, backend: b, reg: reg, cur: cur}

	for {
		clearScreen()
		fmt.Println(Title())

		section, err := e.selectSection()
		if err != nil {
			return &ConfigureResult{Cancelled: true}, nil
		}

		switch section {
		case SectionSaveExit:
			if e.patch.IsEmpty() {
				return &ConfigureResult{Settings: e.cur, Cancelled: true}, nil
			}
			confirmed, err := e.showSummary()
			if err != nil {
				return &ConfigureResult{Cancelled: true}, nil
			}
			if !confirmed {
				continue
			}
			saved, err := b.UpdateSettings(ctx, e.patch)
			if err != nil {
				return nil, fmt.Errorf("save settings: %w", err)
			}
			return &ConfigureResult{Settings: saved}, nil

		case SectionDiscardExit:
			return &ConfigureResult{Cancelled: true}, nil

		case SectionTranscription:
			e.editProvider(provider.Transcription)
		case SectionProcessing:
			e.editProvider(provider.Processing)
		case SectionLanguage:
			e.editLanguage()
		case SectionPrompt:
			e.editPrompt()
		case SectionEnabled:
			v := !e.working().IsExtensionEnabled
			e.patch.IsExtensionEnabled = &v
		}
	}
}

// working returns the settings as they would be saved.
func (e *editor) working() settings.Settings {
	return e.patch.Apply(e.cur)
}

func (e *editor) selectSection() (ConfigSection, error) {
	w := e.working()
	enabled := "Disable extension"
	if !w.IsExtensionEnabled {
		enabled = "Enable extension"
	}
	options := []huh.Option[ConfigSection]{
		huh.NewOption(fmt.Sprintf("Transcription (%s)", providerName(e.reg, provider.Transcription, w.TranscriptionProviderType)), SectionTranscription),
		huh.NewOption(fmt.Sprintf("Processing (%s)", providerName(e.reg, provider.Processing, w.ProcessingProviderType)), SectionProcessing),
		huh.NewOption(fmt.Sprintf("Language (%s)", provider.LanguageLabel(w.Language)), SectionLanguage),
		huh.NewOption("Prompt template", SectionPrompt),
		huh.NewOption(enabled, SectionEnabled),
		huh.NewOption("Save & Exit", SectionSaveExit),
		huh.NewOption("Discard & Exit", SectionDiscardExit),
	}

	var selected ConfigSection
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[ConfigSection]().
				Title("Settings").
				Description("↑/↓ navigate • enter select • esc cancel").
				Options(options...).
				Value(&selected),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return "", err
	}
	return selected, nil
}

// editProvider picks a provider for c, asks for its key or server URL and
// checks it before keeping the choice.
func (e *editor) editProvider(c provider.Category) {
	w := e.working()
	id := w.ProviderID(c)

	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(categoryTitle(c) + " provider").
				Options(providerOptions(e.reg, c, id)...).
				Value(&id),
		),
	).WithTheme(getTheme()).Run()
	if err != nil {
		return
	}

	info, ok := e.reg.Info(c, id)
	if !ok {
		return
	}
	req := pipeline.VerifyRequest{ProviderType: id, Category: c}

	switch {
	case info.Disabled:
	case info.Local:
		url := w.ServerURL(c)
		if url == "" {
			url = info.DefaultURL
		}
		err := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title(info.Name + " server URL").
					Value(&url).
					Validate(requireNonEmpty("URL")),
			),
		).WithTheme(getTheme()).Run()
		if err != nil {
			return
		}
		url = strings.TrimSpace(url)
		if c == provider.Processing {
			req.OllamaServerURL = url
		} else {
			req.LocalWhisperURL = url
		}
	default:
		key := ""
		if id == w.ProviderID(c) {
			key = w.APIKey(c)
		}
		err := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title(info.Name + " API key").
					Description(keyDescription(info)).
					EchoMode(huh.EchoModePassword).
					Value(&key).
					Validate(requireNonEmpty("API key")),
			),
		).WithTheme(getTheme()).Run()
		if err != nil {
			return
		}
		req.APIKey = strings.TrimSpace(key)
	}

	res, err := e.backend.Verify(e.ctx, req, false)
	if err != nil {
		fmt.Println(StyleError.Render("Verification failed: " + err.Error()))
		return
	}
	if !res.Valid && !e.keepAnyway(res.Error) {
		return
	}
	if res.Valid {
		fmt.Println(StyleSuccess.Render("✅ " + info.Name + " verified"))
	}
	e.patch = e.patch.Merge(patchFor(c, req))
}

func (e *editor) keepAnyway(reason string) bool {
	keep := false
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Verification failed").
				Description(reason).
				Affirmative("Keep anyway").
				Negative("Discard").
				Value(&keep),
		),
	).WithTheme(getTheme()).Run()
	return err == nil && keep
}

func (e *editor) editLanguage() {
	lang := e.working().Language
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Language").
				Description("Language of the processed transcript").
				Options(languageOptions(lang)...).
				Value(&lang),
		),
	).WithTheme(getTheme()).Run()
	if err != nil {
		return
	}
	e.patch.Language = &lang
}

func (e *editor) editPrompt() {
	tmpl := e.working().PromptTemplate
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title("Prompt template").
				Description("Leave empty for the provider default. Placeholders: {{transcription}}, {{language}}").
				Value(&tmpl),
		),
	).WithTheme(getTheme()).Run()
	if err != nil {
		return
	}
	e.patch.PromptTemplate = &tmpl
}

func (e *editor) showSummary() (bool, error) {
	fmt.Println()
	fmt.Println(StyleHeader.Render("Settings Summary"))
	fmt.Println(RenderSettings(e.working()))
	fmt.Println()

	var confirmed bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save these settings?").
				Affirmative("Save").
				Negative("Back").
				Value(&confirmed),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return false, err
	}
	return confirmed, nil
}

func requireNonEmpty(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(what + " is required")
		}
		return nil
	}
}

func clearScreen() {
	output := termenv.NewOutput(os.Stdout)
	output.ClearScreen()
}
