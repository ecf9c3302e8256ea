package transcriber

import (
	"bytes"
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"github.com/leonardotrapani/watranscriber/internal/apierr"
	"github.com/leonardotrapani/watranscriber/internal/logging"
	"github.com/leonardotrapani/watranscriber/internal/provider"
	"github.com/leonardotrapani/watranscriber/internal/verify"
)

const DefaultOpenAIModel = "whisper-1"

// OpenAITranscriber uses the OpenAI audio transcriptions endpoint.
type OpenAITranscriber struct {
	client *openai.Client
	cfg    provider.Config
	log    zerolog.Logger
}

func NewOpenAITranscriber(cfg provider.Config) *OpenAITranscriber {
	if cfg.APIURL == "" {
		cfg.APIURL = verify.DefaultOpenAIURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	cc := openai.DefaultConfig(cfg.APIKey)
	cc.BaseURL = trimURL(cfg.APIURL) + "/v1"
	if cfg.HTTPClient != nil {
		cc.HTTPClient = cfg.HTTPClient
	}
	return &OpenAITranscriber{
		client: openai.NewClientWithConfig(cc),
		cfg:    cfg,
		log:    logging.For("openai-transcriber"),
	}
}

func (t *OpenAITranscriber) VerifyAPIKey(ctx context.Context, key string) provider.VerifyResult {
	if key == "" {
		key = t.cfg.APIKey
	}
	return verify.Verify(ctx, verify.Options{
		APIKey:       key,
		ProviderType: verify.OpenAI,
		APIURL:       t.cfg.APIURL,
		Format:       verify.PrefixCheck("sk-"),
		HTTPClient:   t.cfg.HTTPClient,
	})
}

func (t *OpenAITranscriber) TranscribeAudio(ctx context.Context, audio provider.Audio, opts provider.TranscribeOptions) (string, error) {
	if t.cfg.APIKey == "" {
		return "", apierr.MissingAPIKey("OpenAI")
	}

	req := openai.AudioRequest{
		Model:    t.cfg.Model,
		Reader:   newAudioReader(audio),
		FilePath: fileName,
		Language: languageHint(opts.Language),
	}

	start := time.Now()
	resp, err := t.client.CreateTranscription(ctx, req)
	if err != nil {
		e := apierr.FromOpenAI(err, transcriptionFailed)
		t.log.Error().Err(err).Str("kind", string(e.Kind)).Dur("took", time.Since(start)).Msg("API call failed")
		return "", e
	}

	t.log.Debug().Int("bytes", len(audio.Data)).Dur("took", time.Since(start)).Msg("transcribed")
	return resp.Text, nil
}

// audioReader carries the part Content-Type the form builder puts on the
// file field.
type audioReader struct {
	*bytes.Reader
	mimeType string
}

func newAudioReader(audio provider.Audio) *audioReader {
	mimeType := audio.MIMEType
	if mimeType == "" {
		mimeType = DefaultMIMEType
	}
	return &audioReader{Reader: bytes.NewReader(audio.Data), mimeType: mimeType}
}

func (r *audioReader) ContentType() string { return r.mimeType }
