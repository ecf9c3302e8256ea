package llm

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/leonardotrapani/watranscriber/internal/provider"
)

func TestParseProcessedResponse(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		original string
		want     provider.ProcessedResult
	}{
		{
			name:     "fenced with language tag",
			raw:      "```json\n{\"original_transcript\":\"a\",\"cleaned_transcript\":\"b\",\"summary\":\"c\",\"reply\":\"d\"}\n```",
			original: "a",
			want:     provider.ProcessedResult{Original: "a", Processed: "b", Summary: "c", Reply: "d"},
		},
		{
			name:     "fenced without language tag",
			raw:      "```\n{\"cleaned_transcript\":\"b\",\"summary\":\"c\",\"reply\":\"d\"}\n```",
			original: "orig",
			want:     provider.ProcessedResult{Original: "orig", Processed: "b", Summary: "c", Reply: "d"},
		},
		{
			name:     "bare json",
			raw:      `  {"original_transcript":"x","cleaned_transcript":"y","summary":"s","reply":"r"}  `,
			original: "ignored",
			want:     provider.ProcessedResult{Original: "x", Processed: "y", Summary: "s", Reply: "r"},
		},
		{
			name:     "missing optional fields",
			raw:      `{"cleaned_transcript":"y"}`,
			original: "o",
			want:     provider.ProcessedResult{Original: "o", Processed: "y"},
		},
		{
			name:     "not json",
			raw:      "not json",
			original: "orig",
			want:     provider.ProcessedResult{Original: "orig", Processed: "not json", Error: ErrUnparseable},
		},
		{
			name:     "json but not an object",
			raw:      `["a"]`,
			original: "orig",
			want:     provider.ProcessedResult{Original: "orig", Processed: `["a"]`, Error: ErrUnparseable},
		},
		{
			name:     "null",
			raw:      "null",
			original: "orig",
			want:     provider.ProcessedResult{Original: "orig", Processed: "null", Error: ErrUnparseable},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseProcessedResponse(tc.raw, tc.original)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("ParseProcessedResponse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct{ in, want string }{
		{"```json\n{}\n```", "{}"},
		{"```\n{}\n```", "{}"},
		{"```{\"a\":1}```", `{"a":1}`},
		{"{}", "{}"},
		{"  plain text  ", "plain text"},
		{"```js\n{}```", "{}"},
		{"prefix ```\n{}\n```", "prefix ```\n{}\n```"},
	}
	for _, tc := range tests {
		if got := StripCodeFence(tc.in); got != tc.want {
			t.Errorf("StripCodeFence(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
