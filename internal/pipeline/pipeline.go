// Package pipeline turns a voice message into a processed transcription,
// tracking progress and failures in the settings store.
package pipeline

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/leonardotrapani/watranscriber/internal/apierr"
	"github.com/leonardotrapani/watranscriber/internal/logging"
	"github.com/leonardotrapani/watranscriber/internal/provider"
	"github.com/leonardotrapani/watranscriber/internal/settings"
)

type Pipeline struct {
	store      *settings.Store
	registry   *provider.Registry
	httpClient *http.Client
	log        zerolog.Logger
}

type Option func(*Pipeline)

// WithHTTPClient sets the client handed to every provider.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Pipeline) { p.httpClient = c }
}

func New(store *settings.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:    store,
		registry: store.Registry(),
		log:      logging.For("pipeline"),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ProcessVoiceMessage transcribes and processes one voice message. It never
// fails: errors come back in the result, with a remediation hint in
// Processed, and are recorded as the status's last error. Concurrent calls
// are counted independently in the pending counter.
func (p *Pipeline) ProcessVoiceMessage(ctx context.Context, audio provider.Audio) provider.ProcessedResult {
	p.store.UpdateStatus(settings.StatusPatch{Pending: settings.Increment()})

	result, err := p.run(ctx, audio)
	if err != nil {
		terr := apierr.NewTranscriptionError(err)
		kind := apierr.KindOf(terr)
		p.log.Error().Err(err).Str("kind", string(kind)).Msg("voice message failed")
		p.store.UpdateStatus(settings.StatusPatch{
			Pending:   settings.Decrement(),
			LastError: settings.ErrorText(terr.Error()),
		})
		return FailureResult(terr)
	}

	p.store.UpdateStatus(settings.StatusPatch{
		Pending:   settings.Decrement(),
		LastError: settings.ErrorText(""),
	})
	return result
}

func (p *Pipeline) run(ctx context.Context, audio provider.Audio) (provider.ProcessedResult, error) {
	p.store.EnsureInitialized(ctx)
	s := p.store.Settings()

	tr, err := p.transcriber(s)
	if err != nil {
		return provider.ProcessedResult{}, err
	}
	proc, err := p.processor(s)
	if err != nil {
		return provider.ProcessedResult{}, err
	}

	start := time.Now()
	text, err := tr.TranscribeAudio(ctx, audio, provider.TranscribeOptions{Language: s.Language})
	if err != nil {
		return provider.ProcessedResult{}, err
	}
	p.log.Info().
		Str("provider", s.TranscriptionProviderType).
		Int("chars", len(text)).
		Dur("took", time.Since(start)).
		Msg("transcribed")

	start = time.Now()
	result, err := proc.ProcessTranscription(ctx, text, provider.ProcessOptions{
		Language:       s.Language,
		PromptTemplate: p.promptTemplate(s),
	})
	if err != nil {
		return provider.ProcessedResult{}, err
	}
	p.log.Info().
		Str("provider", s.ProcessingProviderType).
		Dur("took", time.Since(start)).
		Msg("processed")
	return result, nil
}

// promptTemplate prefers the user's template over the provider default.
func (p *Pipeline) promptTemplate(s settings.Settings) string {
	if s.PromptTemplate != "" {
		return s.PromptTemplate
	}
	info, _ := p.registry.Info(provider.Processing, s.ProcessingProviderType)
	return info.DefaultTemplate
}

func (p *Pipeline) transcriber(s settings.Settings) (provider.Transcriber, error) {
	return p.registry.GetTranscriber(s.TranscriptionProviderType, p.providerConfig(s, provider.Transcription))
}

func (p *Pipeline) processor(s settings.Settings) (provider.Processor, error) {
	return p.registry.GetProcessor(s.ProcessingProviderType, p.providerConfig(s, provider.Processing))
}

// providerConfig builds the config for the provider selected in category c.
// Local providers get the server URL instead of a key.
func (p *Pipeline) providerConfig(s settings.Settings, c provider.Category) provider.Config {
	id := s.ProviderID(c)
	info, _ := p.registry.Info(c, id)

	model := s.TranscriptionModel
	if c == provider.Processing {
		model = s.ProcessingModel
	}
	cfg := provider.Config{
		Model:      p.modelFor(c, id, model),
		HTTPClient: p.httpClient,
	}
	if info.Local {
		cfg.APIURL = s.ServerURL(c)
	} else {
		cfg.APIKey = s.APIKey(c)
	}
	return cfg
}

// modelFor drops a configured model that is another provider's default, so
// switching providers does not send e.g. an OpenAI model name to Claude.
func (p *Pipeline) modelFor(c provider.Category, id, model string) string {
	if model == "" {
		return ""
	}
	for _, other := range p.registry.ListIDs(c) {
		if other == id {
			continue
		}
		if info, _ := p.registry.Info(c, other); info.DefaultModel == model {
			return ""
		}
	}
	return model
}

// FailureResult renders a failed run as a result the user can act on.
func FailureResult(err error) provider.ProcessedResult {
	msg := "Unknown error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return provider.ProcessedResult{
		Original:  "ERROR: " + msg,
		Processed: apierr.Remediation(apierr.KindOf(err)),
		Error:     msg,
	}
}

// TranscribeMessage serves id from the cache, or runs ProcessVoiceMessage and
// caches a successful result under id. cached reports a cache hit.
func (p *Pipeline) TranscribeMessage(ctx context.Context, id string, audio provider.Audio) (result provider.ProcessedResult, cached bool) {
	p.store.EnsureInitialized(ctx)
	if id != "" {
		if r, ok := p.store.CachedTranscription(id); ok {
			p.log.Debug().Str("id", id).Msg("cache hit")
			return r, true
		}
	}
	result = p.ProcessVoiceMessage(ctx, audio)
	if result.Error == "" {
		p.store.CacheTranscription(ctx, id, result)
	}
	return result, false
}
