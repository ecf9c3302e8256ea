package llm

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/leonardotrapani/watranscriber/internal/apierr"
	"github.com/leonardotrapani/watranscriber/internal/logging"
	"github.com/leonardotrapani/watranscriber/internal/provider"
	"github.com/leonardotrapani/watranscriber/internal/verify"
)

const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiProcessor processes transcripts with the Gemini API.
type GeminiProcessor struct {
	cfg provider.Config
	log zerolog.Logger
}

func NewGeminiProcessor(cfg provider.Config) *GeminiProcessor {
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &GeminiProcessor{cfg: cfg, log: logging.For("gemini-processor")}
}

func (p *GeminiProcessor) VerifyAPIKey(ctx context.Context, key string) provider.VerifyResult {
	if key == "" {
		key = p.cfg.APIKey
	}
	return verify.Verify(ctx, verify.Options{
		APIKey:       key,
		ProviderType: verify.Gemini,
		APIURL:       p.cfg.APIURL,
		HTTPClient:   p.cfg.HTTPClient,
	})
}

func (p *GeminiProcessor) ProcessTranscription(ctx context.Context, text string, opts provider.ProcessOptions) (provider.ProcessedResult, error) {
	if p.cfg.APIKey == "" {
		return provider.ProcessedResult{}, apierr.MissingAPIKey("Gemini")
	}

	cc := &genai.ClientConfig{
		APIKey:     p.cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: p.cfg.HTTPClient,
	}
	if p.cfg.APIURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: p.cfg.APIURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return provider.ProcessedResult{}, apierr.Wrap(apierr.KindUnknown, err, "gemini: create client: %v", err)
	}

	resp, err := client.Models.GenerateContent(ctx, p.cfg.Model, genai.Text(BuildPrompt(provider.IDGemini, text, opts)), nil)
	if err != nil {
		e := apierr.FromGenAI(err, processingFailed)
		p.log.Error().Err(err).Str("kind", string(e.Kind)).Msg("generate content failed")
		return provider.ProcessedResult{}, e
	}
	return ParseProcessedResponse(resp.Text(), text), nil
}
