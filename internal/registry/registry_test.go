package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/leonardotrapani/watranscriber/internal/provider"
)

func TestBuiltinsSatisfyContract(t *testing.T) {
	r := New()
	ctx := context.Background()

	for _, id := range r.ListTranscriberIDs() {
		t.Run("transcriber/"+id, func(t *testing.T) {
			tr, err := r.GetTranscriber(id, provider.Config{})
			if err != nil {
				t.Fatalf("GetTranscriber(%q): %v", id, err)
			}
			if tr == nil {
				t.Fatal("nil transcriber")
			}
			info, ok := r.Info(provider.Transcription, id)
			if !ok || info.Name == "" {
				t.Errorf("Info = %+v", info)
			}
			if info.RequiresAPIKey {
				if res := tr.VerifyAPIKey(ctx, ""); res.Valid {
					t.Error("empty key must not verify")
				}
			}
		})
	}

	for _, id := range r.ListProcessorIDs() {
		t.Run("processor/"+id, func(t *testing.T) {
			p, err := r.GetProcessor(id, provider.Config{})
			if err != nil {
				t.Fatalf("GetProcessor(%q): %v", id, err)
			}
			if p == nil {
				t.Fatal("nil processor")
			}
			info, _ := r.Info(provider.Processing, id)
			if !info.Disabled && info.DefaultTemplate == "" {
				t.Errorf("%s has no default template", id)
			}
		})
	}
}

func TestDefaultsAndUnknown(t *testing.T) {
	r := New()
	if r.DefaultTranscriberID() != provider.IDOpenAI || r.DefaultProcessorID() != provider.IDOpenAI {
		t.Errorf("defaults = %q/%q", r.DefaultTranscriberID(), r.DefaultProcessorID())
	}
	if _, err := r.GetTranscriber("deepgram", provider.Config{}); !errors.Is(err, provider.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
	if _, err := r.GetProcessor("groq", provider.Config{}); !errors.Is(err, provider.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
	if got := len(r.ListTranscriberIDs()); got != len(Transcribers) {
		t.Errorf("transcribers = %d", got)
	}
	if got := len(r.ListProcessorIDs()); got != len(Processors) {
		t.Errorf("processors = %d", got)
	}
}
