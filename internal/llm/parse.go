package llm

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/leonardotrapani/watranscriber/internal/logging"
	"github.com/leonardotrapani/watranscriber/internal/provider"
)

// ErrUnparseable is the ProcessedResult.Error set when a response is not JSON.
const ErrUnparseable = "Error: Could not parse AI response as JSON"

var codeFence = regexp.MustCompile("(?s)^```[A-Za-z0-9_+-]*[ \t]*\n?(.*?)\n?[ \t]*```$")

type aiResponse struct {
	OriginalTranscript string `json:"original_transcript"`
	CleanedTranscript  string `json:"cleaned_transcript"`
	Summary            string `json:"summary"`
	Reply              string `json:"reply"`
}

// StripCodeFence removes one surrounding ``` fence, with or without a
// language tag.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFence.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// ParseProcessedResponse decodes a processing model's reply. Text that is not
// a JSON object is passed through as the processed transcript with Error set.
func ParseProcessedResponse(raw, original string) provider.ProcessedResult {
	log := logging.For("llm")
	body := StripCodeFence(raw)

	var resp *aiResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil || resp == nil {
		log.Warn().Err(err).Msg("failed to parse processing response as JSON")
		return provider.ProcessedResult{
			Original:  original,
			Processed: strings.TrimSpace(raw),
			Error:     ErrUnparseable,
		}
	}

	var missing []string
	if resp.CleanedTranscript == "" {
		missing = append(missing, "cleaned_transcript")
	}
	if resp.Summary == "" {
		missing = append(missing, "summary")
	}
	if resp.Reply == "" {
		missing = append(missing, "reply")
	}
	if len(missing) > 0 {
		log.Warn().Strs("fields", missing).Msg("processing response is missing fields")
	}

	out := provider.ProcessedResult{
		Original:  resp.OriginalTranscript,
		Processed: resp.CleanedTranscript,
		Summary:   resp.Summary,
		Reply:     resp.Reply,
	}
	if out.Original == "" {
		out.Original = original
	}
	return out
}
