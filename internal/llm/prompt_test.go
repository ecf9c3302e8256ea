package llm

import (
	"strings"
	"testing"

	"github.com/leonardotrapani/watranscriber/internal/provider"
)

func TestRenderTemplate(t *testing.T) {
	tests := []struct {
		name string
		tmpl string
		vars map[string]string
		want string
	}{
		{"both tags", "{{transcription}} in {{language}}", map[string]string{"transcription": "hi", "language": "Spanish"}, "hi in Spanish"},
		{"spaced tag", "say {{ transcription }}", map[string]string{"transcription": "hi"}, "say hi"},
		{"unknown tag kept", "{{other}} {{transcription}}", map[string]string{"transcription": "x"}, "{{other}} x"},
		{"no tags", "plain", nil, "plain"},
		{"repeated", "{{transcription}}/{{transcription}}", map[string]string{"transcription": "a"}, "a/a"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := RenderTemplate(tc.tmpl, tc.vars); got != tc.want {
				t.Errorf("RenderTemplate() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	got := BuildPrompt(provider.IDClaude, "hola amigo", provider.ProcessOptions{Language: "es"})
	for _, want := range []string{"hola amigo", "Spanish", "code block"} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "{{") {
		t.Errorf("prompt has unrendered tags:\n%s", got)
	}

	got = BuildPrompt(provider.IDOpenAI, "x", provider.ProcessOptions{Language: "auto", PromptTemplate: "T={{transcription}} L={{language}}"})
	if got != "T=x L=same as transcription" {
		t.Errorf("override prompt = %q", got)
	}
}

func TestDefaultTemplateFallback(t *testing.T) {
	if DefaultTemplate("unknown") != DefaultTemplate(provider.IDOpenAI) {
		t.Error("unknown ids should fall back to the OpenAI template")
	}
	for _, id := range []string{provider.IDOpenAI, provider.IDClaude, provider.IDOllama, provider.IDGemini} {
		tmpl := DefaultTemplate(id)
		if !strings.Contains(tmpl, "{{transcription}}") || !strings.Contains(tmpl, "{{language}}") {
			t.Errorf("template for %s is missing placeholders", id)
		}
	}
}
