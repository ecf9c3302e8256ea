package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"

	"github.com/leonardotrapani/watranscriber/internal/apierr"
	"github.com/leonardotrapani/watranscriber/internal/provider"
)

const (
	DefaultOpenAIURL = "https://api.openai.com"
	DefaultClaudeURL = "https://api.anthropic.com"
	// DefaultClaudeModel is used by the probe when no model is configured.
	DefaultClaudeModel = "claude-3-opus-20240229"
	AnthropicVersion   = "2023-06-01"
)

const rejectedKey = "Invalid API key"

func baseURL(url, fallback string) string {
	if url == "" {
		url = fallback
	}
	return strings.TrimRight(url, "/")
}

// probeOpenAI lists models, which needs a valid key and costs nothing.
func probeOpenAI(ctx context.Context, opts Options) provider.VerifyResult {
	cc := openai.DefaultConfig(opts.APIKey)
	cc.BaseURL = baseURL(opts.APIURL, DefaultOpenAIURL) + "/v1"
	cc.HTTPClient = opts.HTTPClient

	if _, err := openai.NewClientWithConfig(cc).ListModels(ctx); err != nil {
		return provider.Invalid(apierr.FromOpenAI(err, rejectedKey).Message)
	}
	return provider.Valid()
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

// probeClaude sends a one-token completion; Anthropic has no free key check.
func probeClaude(ctx context.Context, opts Options) provider.VerifyResult {
	model := opts.Model
	if model == "" {
		model = DefaultClaudeModel
	}
	body, err := json.Marshal(claudeRequest{
		Model:     model,
		Messages:  []claudeMessage{{Role: "user", Content: "Hello"}},
		MaxTokens: 1,
	})
	if err != nil {
		return provider.Invalid(err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		baseURL(opts.APIURL, DefaultClaudeURL)+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return provider.Invalid(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", opts.APIKey)
	req.Header.Set("anthropic-version", AnthropicVersion)

	resp, err := opts.HTTPClient.Do(req)
	if err != nil {
		return provider.Invalid(fmt.Sprintf("Error validating %s API key: %v", Claude, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return provider.Invalid(apierr.Normalize(raw, rejectedKey, apierr.Anthropic).Message)
	}
	return provider.Valid()
}

// probeGemini lists one model through the genai client.
func probeGemini(ctx context.Context, opts Options) provider.VerifyResult {
	cc := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if opts.APIURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.APIURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return provider.Invalid(err.Error())
	}
	if _, err := client.Models.List(ctx, &genai.ListModelsConfig{PageSize: 1}); err != nil {
		return provider.Invalid(apierr.FromGenAI(err, rejectedKey).Message)
	}
	return provider.Valid()
}
