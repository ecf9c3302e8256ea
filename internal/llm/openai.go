package llm

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"github.com/leonardotrapani/watranscriber/internal/apierr"
	"github.com/leonardotrapani/watranscriber/internal/logging"
	"github.com/leonardotrapani/watranscriber/internal/provider"
	"github.com/leonardotrapani/watranscriber/internal/verify"
)

const (
	DefaultOpenAIURL   = verify.DefaultOpenAIURL
	DefaultOpenAIModel = "gpt-4o"
)

// OpenAIProcessor processes transcripts with the chat completions API.
type OpenAIProcessor struct {
	client *openai.Client
	cfg    provider.Config
	log    zerolog.Logger
}

func NewOpenAIProcessor(cfg provider.Config) *OpenAIProcessor {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultOpenAIURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	cc := openai.DefaultConfig(cfg.APIKey)
	cc.BaseURL = trimURL(cfg.APIURL) + "/v1"
	if cfg.HTTPClient != nil {
		cc.HTTPClient = cfg.HTTPClient
	}
	return &OpenAIProcessor{
		client: openai.NewClientWithConfig(cc),
		cfg:    cfg,
		log:    logging.For("openai-processor"),
	}
}

func (p *OpenAIProcessor) VerifyAPIKey(ctx context.Context, key string) provider.VerifyResult {
	if key == "" {
		key = p.cfg.APIKey
	}
	return verify.Verify(ctx, verify.Options{
		APIKey:       key,
		ProviderType: verify.OpenAI,
		APIURL:       p.cfg.APIURL,
		Format:       verify.PrefixCheck("sk-"),
		HTTPClient:   p.cfg.HTTPClient,
	})
}

func (p *OpenAIProcessor) ProcessTranscription(ctx context.Context, text string, opts provider.ProcessOptions) (provider.ProcessedResult, error) {
	if p.cfg.APIKey == "" {
		return provider.ProcessedResult{}, apierr.MissingAPIKey("OpenAI")
	}

	req := openai.ChatCompletionRequest{
		Model: p.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(provider.IDOpenAI, text, opts)},
		},
	}

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		p.log.Error().Err(err).Dur("took", time.Since(start)).Msg("chat completion failed")
		return provider.ProcessedResult{}, apierr.FromOpenAI(err, processingFailed)
	}
	if len(resp.Choices) == 0 {
		return provider.ProcessedResult{}, apierr.New(apierr.KindUnknown, "openai chat completion: no response choices")
	}

	p.log.Debug().Dur("took", time.Since(start)).Msg("processed transcription")
	return ParseProcessedResponse(resp.Choices[0].Message.Content, text), nil
}
