package llm

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/leonardotrapani/watranscriber/internal/apierr"
	"github.com/leonardotrapani/watranscriber/internal/logging"
	"github.com/leonardotrapani/watranscriber/internal/provider"
	"github.com/leonardotrapani/watranscriber/internal/verify"
)

const (
	DefaultClaudeURL   = verify.DefaultClaudeURL
	DefaultClaudeModel = verify.DefaultClaudeModel

	claudeMaxTokens = 1000
)

// ClaudeProcessor processes transcripts with the Anthropic messages API.
type ClaudeProcessor struct {
	cfg provider.Config
	log zerolog.Logger
}

func NewClaudeProcessor(cfg provider.Config) *ClaudeProcessor {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultClaudeURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultClaudeModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &ClaudeProcessor{cfg: cfg, log: logging.For("claude-processor")}
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeRequest struct {
	Model     string          `json:"model"`
	Messages  []claudeMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (p *ClaudeProcessor) VerifyAPIKey(ctx context.Context, key string) provider.VerifyResult {
	if key == "" {
		key = p.cfg.APIKey
	}
	return verify.Verify(ctx, verify.Options{
		APIKey:       key,
		ProviderType: verify.Claude,
		APIURL:       p.cfg.APIURL,
		Model:        p.cfg.Model,
		Format:       verify.PrefixCheck("sk-ant-"),
		HTTPClient:   p.cfg.HTTPClient,
	})
}

func (p *ClaudeProcessor) ProcessTranscription(ctx context.Context, text string, opts provider.ProcessOptions) (provider.ProcessedResult, error) {
	if p.cfg.APIKey == "" {
		return provider.ProcessedResult{}, apierr.MissingAPIKey("Anthropic")
	}

	body := claudeRequest{
		Model:     p.cfg.Model,
		Messages:  []claudeMessage{{Role: "user", Content: BuildPrompt(provider.IDClaude, text, opts)}},
		MaxTokens: claudeMaxTokens,
	}
	headers := map[string]string{
		"x-api-key":         p.cfg.APIKey,
		"anthropic-version": verify.AnthropicVersion,
	}

	status, raw, err := doJSON(ctx, p.cfg.HTTPClient, http.MethodPost, trimURL(p.cfg.APIURL)+"/v1/messages", headers, body)
	if err != nil {
		return provider.ProcessedResult{}, apierr.Wrap(apierr.KindUnknown, err, "claude: %v", err)
	}
	if !ok(status) {
		info := apierr.WithStatus(apierr.Normalize(raw, processingFailed, apierr.Anthropic), status, apierr.Anthropic.Provider)
		p.log.Error().Int("status", status).Str("kind", string(info.Kind)).Msg("messages request failed")
		return provider.ProcessedResult{}, apierr.FromInfo("Anthropic", info)
	}

	var resp claudeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return provider.ProcessedResult{}, apierr.Wrap(apierr.KindUnknown, err, "claude: decode response: %v", err)
	}
	if len(resp.Content) == 0 {
		return provider.ProcessedResult{}, apierr.New(apierr.KindUnknown, "claude: empty response")
	}
	return ParseProcessedResponse(resp.Content[0].Text, text), nil
}
