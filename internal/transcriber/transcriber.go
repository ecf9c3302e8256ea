// Package transcriber holds the transcription providers. Both upload the
// voice message as multipart form data with the audio MIME type on the file
// part; the local server form is built here.
package transcriber

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/leonardotrapani/watranscriber/internal/provider"
)

const (
	DefaultMIMEType = "audio/ogg"
	fileName        = "audio.ogg"

	transcriptionFailed = "Transcription failed"
)

type formField struct {
	name, value string
}

// buildForm writes the audio part with an explicit Content-Type, since
// vendors sniff the codec from it, followed by the plain fields.
func buildForm(fileField string, audio provider.Audio, fields ...formField) (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	mimeType := audio.MIMEType
	if mimeType == "" {
		mimeType = DefaultMIMEType
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, fileField, fileName))
	h.Set("Content-Type", mimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audio.Data); err != nil {
		return nil, "", fmt.Errorf("copy audio data: %w", err)
	}

	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", fmt.Errorf("write %s: %w", f.name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close writer: %w", err)
	}
	return &body, w.FormDataContentType(), nil
}

// languageHint returns the language to send, or "" for auto-detection.
func languageHint(lang string) string {
	if lang == "" || lang == provider.LanguageAuto {
		return ""
	}
	return lang
}

func trimURL(u string) string {
	return strings.TrimRight(u, "/")
}
