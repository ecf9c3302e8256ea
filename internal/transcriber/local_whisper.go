package transcriber

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/leonardotrapani/watranscriber/internal/apierr"
	"github.com/leonardotrapani/watranscriber/internal/logging"
	"github.com/leonardotrapani/watranscriber/internal/provider"
)

const DefaultLocalWhisperURL = "http://localhost:9000"

// asrPath is the whisper-asr-webservice transcription route.
const asrPath = "/asr"

// LocalWhisper talks to a self-hosted whisper-asr-webservice. It needs no
// key; VerifyAPIKey probes the server's OpenAPI document for the /asr route.
type LocalWhisper struct {
	cfg provider.Config
	log zerolog.Logger
}

func NewLocalWhisper(cfg provider.Config) *LocalWhisper {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultLocalWhisperURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &LocalWhisper{cfg: cfg, log: logging.For("local-whisper")}
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

type openAPIDoc struct {
	Paths map[string]json.RawMessage `json:"paths"`
}

func (l *LocalWhisper) VerifyAPIKey(ctx context.Context, _ string) provider.VerifyResult {
	if err := l.probe(ctx); err != nil {
		return provider.Invalid(fmt.Sprintf("Local Whisper server error: %v. Make sure a Whisper ASR server is running at %s", err, l.cfg.APIURL))
	}
	return provider.Valid()
}

func (l *LocalWhisper) probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, trimURL(l.cfg.APIURL)+"/openapi.json", nil)
	if err != nil {
		return err
	}
	resp, err := l.cfg.HTTPClient.Do(req)
	if err != nil {
		return errors.New("failed to connect")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var doc openAPIDoc
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return errors.New("unexpected response")
	}
	if _, ok := doc.Paths[asrPath]; !ok {
		return fmt.Errorf("server does not expose %s", asrPath)
	}
	return nil
}

func (l *LocalWhisper) TranscribeAudio(ctx context.Context, audio provider.Audio, opts provider.TranscribeOptions) (string, error) {
	if err := l.probe(ctx); err != nil {
		return "", apierr.Wrap(apierr.KindUnknown, err,
			"Local Whisper server error: %v. Make sure a Whisper ASR server is running at %s", err, l.cfg.APIURL)
	}

	body, contentType, err := buildForm("audio_file", audio)
	if err != nil {
		return "", apierr.Wrap(apierr.KindUnknown, err, "local whisper: %v", err)
	}

	q := url.Values{}
	q.Set("task", "transcribe")
	q.Set("output", "json")
	if lang := languageHint(opts.Language); lang != "" {
		q.Set("language", lang)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, trimURL(l.cfg.APIURL)+asrPath+"?"+q.Encode(), body)
	if err != nil {
		return "", apierr.Wrap(apierr.KindUnknown, err, "local whisper: %v", err)
	}
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	resp, err := l.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", apierr.Wrap(apierr.KindUnknown, err, "local whisper: %v", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		l.log.Error().Int("status", resp.StatusCode).Str("body", strings.TrimSpace(string(raw))).Msg("transcription request failed")
		return "", apierr.New(apierr.KindForStatus(resp.StatusCode),
			fmt.Sprintf("Local Whisper transcription failed (HTTP %d)", resp.StatusCode))
	}

	var result transcriptionResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", apierr.Wrap(apierr.KindUnknown, err, "decode response: %v", err)
	}
	l.log.Debug().Int("bytes", len(audio.Data)).Dur("took", time.Since(start)).Msg("transcribed")
	return strings.TrimSpace(result.Text), nil
}
