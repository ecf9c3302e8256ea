package pipeline

import (
	"context"

	"github.com/leonardotrapani/watranscriber/internal/provider"
	"github.com/leonardotrapani/watranscriber/internal/settings"
)

// VerifyRequest names the provider to check and the credentials to check it
// with. Local providers use the server URL of their category.
type VerifyRequest struct {
	APIKey          string            `json:"apiKey"`
	ProviderType    string            `json:"providerType" validate:"required"`
	Category        provider.Category `json:"category" validate:"required,oneof=transcription processing"`
	LocalWhisperURL string            `json:"localWhisperUrl,omitempty" validate:"omitempty,url"`
	OllamaServerURL string            `json:"ollamaServerUrl,omitempty" validate:"omitempty,url"`
}

func (r VerifyRequest) serverURL() string {
	if r.Category == provider.Processing {
		return r.OllamaServerURL
	}
	return r.LocalWhisperURL
}

// Verify checks the credentials without saving anything.
func (p *Pipeline) Verify(ctx context.Context, req VerifyRequest) provider.VerifyResult {
	res, _ := p.verify(ctx, req)
	return res
}

// VerifyAndSave checks the credentials and, when they work, selects the
// provider and stores the key or server URL in the settings.
func (p *Pipeline) VerifyAndSave(ctx context.Context, req VerifyRequest) provider.VerifyResult {
	res, patch := p.verify(ctx, req)
	if res.Valid {
		p.store.EnsureInitialized(ctx)
		p.store.UpdateSettings(ctx, patch)
		p.log.Info().Str("provider", req.ProviderType).Str("category", string(req.Category)).Msg("provider verified and saved")
	}
	return res
}

// verify runs the provider's own check and returns the patch that would
// select it.
func (p *Pipeline) verify(ctx context.Context, req VerifyRequest) (provider.VerifyResult, settings.Patch) {
	info, ok := p.registry.Info(req.Category, req.ProviderType)
	if !ok {
		err := &provider.NotFoundError{Category: req.Category, ID: req.ProviderType}
		return provider.Invalid(err.Error()), settings.Patch{}
	}

	id := req.ProviderType
	var patch settings.Patch
	if req.Category == provider.Processing {
		patch.ProcessingProviderType = &id
	} else {
		patch.TranscriptionProviderType = &id
	}

	if info.Disabled {
		return provider.Valid(), patch
	}

	cfg := provider.Config{HTTPClient: p.httpClient}
	key := req.APIKey
	if info.Local {
		url := req.serverURL()
		if url == "" {
			url = info.DefaultURL
		}
		cfg.APIURL = url
		key = ""
		if req.Category == provider.Processing {
			patch.OllamaServerURL = &url
		} else {
			patch.LocalWhisperURL = &url
		}
	} else {
		cfg.APIKey = key
		if req.Category == provider.Processing {
			patch.ProcessingAPIKey = &key
		} else {
			patch.TranscriptionAPIKey = &key
		}
	}

	var res provider.VerifyResult
	if req.Category == provider.Processing {
		proc, err := p.registry.GetProcessor(id, cfg)
		if err != nil {
			return provider.Invalid(err.Error()), patch
		}
		res = proc.VerifyAPIKey(ctx, key)
	} else {
		tr, err := p.registry.GetTranscriber(id, cfg)
		if err != nil {
			return provider.Invalid(err.Error()), patch
		}
		res = tr.VerifyAPIKey(ctx, key)
	}
	if !res.Valid {
		p.log.Warn().Str("provider", id).Str("error", res.Error).Msg("verification failed")
	}
	return res, patch
}
