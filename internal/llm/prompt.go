package llm

import (
	"io"
	"strings"

	"github.com/valyala/fasttemplate"

	"github.com/leonardotrapani/watranscriber/internal/provider"
)

// Template placeholders
const (
	TagTranscription = "transcription"
	TagLanguage      = "language"
)

const baseTemplate = `You are an assistant that tidies up transcribed voice messages.

Given the transcription below:
- Clean it up: remove filler words and stutters, fix punctuation and grammar, keep the meaning.
- Write a one-sentence summary.
- Suggest a short, friendly reply the listener could send back.

Write the cleaned transcript, summary and reply in {{language}}.

Respond with ONLY a JSON object of this exact shape:
{"original_transcript": "...", "cleaned_transcript": "...", "summary": "...", "reply": "..."}

Transcription:
{{transcription}}`

var defaultTemplates = map[string]string{
	provider.IDOpenAI: baseTemplate,
	provider.IDClaude: baseTemplate + "\n\nDo not wrap the JSON in a code block and do not add any commentary.",
	provider.IDGemini: baseTemplate + "\n\nDo not wrap the JSON in a code block.",
	provider.IDOllama: baseTemplate + "\n\nThe output must be a single valid JSON object that starts with { and ends with }.",
}

// DefaultTemplate returns the processing prompt for a provider id, falling
// back to the OpenAI one.
func DefaultTemplate(id string) string {
	if t, ok := defaultTemplates[id]; ok {
		return t
	}
	return baseTemplate
}

// RenderTemplate substitutes {{tag}} placeholders. Whitespace inside the
// braces is ignored and unknown tags are left untouched.
func RenderTemplate(tmpl string, vars map[string]string) string {
	return fasttemplate.ExecuteFuncString(tmpl, "{{", "}}", func(w io.Writer, tag string) (int, error) {
		if v, ok := vars[strings.TrimSpace(tag)]; ok {
			return w.Write([]byte(v))
		}
		return w.Write([]byte("{{" + tag + "}}"))
	})
}

// BuildPrompt renders the template for one processing call: the explicit
// override when set, the provider default otherwise.
func BuildPrompt(id, text string, opts provider.ProcessOptions) string {
	tmpl := opts.PromptTemplate
	if tmpl == "" {
		tmpl = DefaultTemplate(id)
	}
	return RenderTemplate(tmpl, map[string]string{
		TagTranscription: text,
		TagLanguage:      provider.LanguageName(opts.Language),
	})
}
