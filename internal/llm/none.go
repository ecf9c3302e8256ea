package llm

import (
	"context"

	"github.com/leonardotrapani/watranscriber/internal/provider"
)

// NoneProcessor skips processing and returns the transcript unchanged.
type NoneProcessor struct{}

func NewNoneProcessor(provider.Config) *NoneProcessor { return &NoneProcessor{} }

func (NoneProcessor) VerifyAPIKey(context.Context, string) provider.VerifyResult {
	return provider.Valid()
}

func (NoneProcessor) ProcessTranscription(_ context.Context, text string, _ provider.ProcessOptions) (provider.ProcessedResult, error) {
	return provider.ProcessedResult{Original: text, Processed: text}, nil
}
