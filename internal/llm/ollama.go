package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/leonardotrapani/watranscriber/internal/apierr"
	"github.com/leonardotrapani/watranscriber/internal/logging"
	"github.com/leonardotrapani/watranscriber/internal/provider"
)

const (
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "ollama3.2:latest"
)

// OllamaProcessor processes transcripts with a local Ollama server. It needs
// no API key; VerifyAPIKey checks that the server answers instead.
type OllamaProcessor struct {
	cfg provider.Config
	log zerolog.Logger
}

func NewOllamaProcessor(cfg provider.Config) *OllamaProcessor {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultOllamaURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &OllamaProcessor{cfg: cfg, log: logging.For("ollama-processor")}
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

type ollamaTagsResponse struct {
	Models []json.RawMessage `json:"models"`
}

func (p *OllamaProcessor) VerifyAPIKey(ctx context.Context, _ string) provider.VerifyResult {
	if err := p.ping(ctx); err != nil {
		return provider.Invalid(fmt.Sprintf("Ollama server error: %v. Make sure Ollama is running at %s", err, p.cfg.APIURL))
	}
	return provider.Valid()
}

func (p *OllamaProcessor) ping(ctx context.Context) error {
	status, raw, err := doJSON(ctx, p.cfg.HTTPClient, http.MethodGet, trimURL(p.cfg.APIURL)+"/api/tags", nil, nil)
	if err != nil || !ok(status) {
		return errors.New("Failed to connect to Ollama server")
	}
	var tags ollamaTagsResponse
	if err := json.Unmarshal(raw, &tags); err != nil || tags.Models == nil {
		return errors.New("Unexpected response from Ollama server")
	}
	return nil
}

func (p *OllamaProcessor) ProcessTranscription(ctx context.Context, text string, opts provider.ProcessOptions) (provider.ProcessedResult, error) {
	body := ollamaGenerateRequest{
		Model:  p.cfg.Model,
		Prompt: BuildPrompt(provider.IDOllama, text, opts),
		Stream: false,
	}

	status, raw, err := doJSON(ctx, p.cfg.HTTPClient, http.MethodPost, trimURL(p.cfg.APIURL)+"/api/generate", nil, body)
	if err != nil {
		return provider.ProcessedResult{}, apierr.Wrap(apierr.KindUnknown, err,
			"Ollama server error: %v. Make sure Ollama is running at %s", err, p.cfg.APIURL)
	}
	if !ok(status) {
		info := apierr.Normalize(raw, processingFailed, apierr.Ollama)
		p.log.Error().Int("status", status).Str("error", info.Message).Msg("generate request failed")
		return provider.ProcessedResult{}, apierr.New(apierr.KindForStatus(status), "Ollama processing failed: "+info.Message)
	}

	var resp ollamaGenerateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return provider.ProcessedResult{}, apierr.Wrap(apierr.KindUnknown, err, "ollama: decode response: %v", err)
	}
	return ParseProcessedResponse(repairJSON(resp.Response), text), nil
}

// repairJSON appends a closing brace to replies that were cut off right
// before it, which small local models do often.
func repairJSON(s string) string {
	s = StripCodeFence(s)
	if s == "" || strings.HasSuffix(s, "}") {
		return s
	}
	return s + "}"
}
