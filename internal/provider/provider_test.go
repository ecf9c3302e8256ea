package provider

import (
	"context"
	"errors"
	"testing"
)

type stubTranscriber struct{ cfg Config }

func (s *stubTranscriber) VerifyAPIKey(context.Context, string) VerifyResult { return Valid() }
func (s *stubTranscriber) TranscribeAudio(context.Context, Audio, TranscribeOptions) (string, error) {
	return "text", nil
}

type stubProcessor struct{ cfg Config }

func (s *stubProcessor) VerifyAPIKey(context.Context, string) VerifyResult { return Valid() }
func (s *stubProcessor) ProcessTranscription(_ context.Context, text string, _ ProcessOptions) (ProcessedResult, error) {
	return ProcessedResult{Original: text, Processed: text}, nil
}

func newTestRegistry() *Registry {
	r := NewRegistry()
	r.RegisterTranscriber(Info{ID: "a", DefaultModel: "m-a", DefaultURL: "http://a"}, func(c Config) Transcriber {
		return &stubTranscriber{cfg: c}
	})
	r.RegisterTranscriber(Info{ID: "b"}, func(c Config) Transcriber { return &stubTranscriber{cfg: c} })
	r.RegisterProcessor(Info{ID: "p"}, func(c Config) Processor { return &stubProcessor{cfg: c} })
	r.RegisterProcessor(Info{ID: "none", Disabled: true}, func(c Config) Processor { return &stubProcessor{cfg: c} })
	return r
}

func TestRegistryLookup(t *testing.T) {
	r := newTestRegistry()

	tests := []struct {
		name     string
		category Category
		id       string
		wantErr  bool
	}{
		{"known transcriber", Transcription, "a", false},
		{"second transcriber", Transcription, "b", false},
		{"unknown transcriber", Transcription, "zzz", true},
		{"known processor", Processing, "p", false},
		{"unknown processor", Processing, "a", true},
		{"empty id", Processing, "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got any
			var err error
			if tc.category == Transcription {
				got, err = r.GetTranscriber(tc.id, Config{})
			} else {
				got, err = r.GetProcessor(tc.id, Config{})
			}
			if tc.wantErr {
				if !errors.Is(err, ErrNotFound) {
					t.Fatalf("err = %v, want ErrNotFound", err)
				}
				var nf *NotFoundError
				if !errors.As(err, &nf) || nf.ID != tc.id || nf.Category != tc.category {
					t.Errorf("NotFoundError = %+v", nf)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got == nil {
				t.Fatal("got nil provider")
			}
		})
	}
}

func TestNotFoundMessage(t *testing.T) {
	_, err := NewRegistry().GetTranscriber("deepgram", Config{})
	if err == nil || err.Error() != "transcription provider 'deepgram' not found" {
		t.Errorf("err = %v", err)
	}
}

func TestConfigDefaultsMerged(t *testing.T) {
	r := newTestRegistry()

	tr, err := r.GetTranscriber("a", Config{APIKey: "k"})
	if err != nil {
		t.Fatal(err)
	}
	cfg := tr.(*stubTranscriber).cfg
	if cfg.APIKey != "k" || cfg.Model != "m-a" || cfg.APIURL != "http://a" || cfg.HTTPClient == nil {
		t.Errorf("merged config = %+v", cfg)
	}

	tr, _ = r.GetTranscriber("a", Config{Model: "custom", APIURL: "http://override"})
	cfg = tr.(*stubTranscriber).cfg
	if cfg.Model != "custom" || cfg.APIURL != "http://override" {
		t.Errorf("explicit config should win, got %+v", cfg)
	}
}

func TestDefaultsAndListing(t *testing.T) {
	r := newTestRegistry()

	if got := r.DefaultTranscriberID(); got != "a" {
		t.Errorf("DefaultTranscriberID() = %q, want first registered", got)
	}
	if err := r.SetDefaults("b", "none"); err != nil {
		t.Fatal(err)
	}
	if r.DefaultID(Transcription) != "b" || r.DefaultID(Processing) != "none" {
		t.Errorf("defaults = %q/%q", r.DefaultTranscriberID(), r.DefaultProcessorID())
	}
	if err := r.SetDefaults("missing", "p"); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetDefaults(missing) err = %v", err)
	}

	ids := r.ListTranscriberIDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("ListTranscriberIDs() = %v", ids)
	}
	if ids := r.ListIDs(Processing); len(ids) != 2 || ids[0] != "none" {
		t.Errorf("ListIDs(Processing) = %v", ids)
	}

	info, ok := r.Info(Processing, "none")
	if !ok || !info.Disabled || info.Category != Processing {
		t.Errorf("Info(none) = %+v, %v", info, ok)
	}
	if _, ok := r.Info(Transcription, "p"); ok {
		t.Error("processor id should not resolve as transcriber")
	}
}

func TestLanguageLabel(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"auto", "Auto-detect"},
		{"es", "Spanish (es)"},
		{"de", "German (de)"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := LanguageLabel(tc.code); got != tc.want {
			t.Errorf("LanguageLabel(%q) = %q, want %q", tc.code, got, tc.want)
		}
	}
	if got := LanguageName("fr"); got != "French" {
		t.Errorf("LanguageName(fr) = %q", got)
	}
}
