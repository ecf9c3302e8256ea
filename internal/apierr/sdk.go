package apierr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

// KindForStatus maps an HTTP status to a kind for responses whose body
// carried nothing classifiable.
func KindForStatus(status int) Kind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuthentication
	case http.StatusTooManyRequests, http.StatusPaymentRequired:
		return KindQuotaExceeded
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		return KindInvalidRequest
	}
	return KindUnknown
}

// WithStatus classifies an unclassified info by its HTTP status, updating
// the user-facing text to match.
func WithStatus(info Info, status int, provider string) Info {
	if info.Kind != KindUnknown {
		return info
	}
	return withKind(info, KindForStatus(status), provider)
}

// FromOpenAI normalizes an error returned by the go-openai client.
func FromOpenAI(err error, defaultMessage string) *Error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		info := Normalize(Envelope{Error: &EnvelopeError{
			Type:    apiErr.Type,
			Message: apiErr.Message,
			Code:    apiErr.Code,
		}}, defaultMessage, OpenAI)
		info = WithStatus(info, apiErr.HTTPStatusCode, OpenAI.Provider)
		e := FromInfo(OpenAI.Provider, info)
		e.Err = err
		return e
	}

	// RequestError carries the raw body, so only the status is reported.
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		info := withKind(Info{Message: statusMessage(defaultMessage, reqErr.HTTPStatusCode)},
			KindForStatus(reqErr.HTTPStatusCode), OpenAI.Provider)
		e := FromInfo(OpenAI.Provider, info)
		e.Err = err
		return e
	}

	e := Wrap(KindUnknown, err, "%s", err.Error())
	e.Provider = OpenAI.Provider
	return e
}

// FromGenAI normalizes an error returned by the genai client.
func FromGenAI(err error, defaultMessage string) *Error {
	var apiErr genai.APIError
	ok := errors.As(err, &apiErr)
	if !ok {
		var p *genai.APIError
		if ok = errors.As(err, &p) && p != nil; ok {
			apiErr = *p
		}
	}
	if ok {
		info := Normalize(Envelope{Error: &EnvelopeError{
			Message: apiErr.Message,
			Status:  apiErr.Status,
			Code:    apiErr.Code,
		}}, defaultMessage, Gemini)
		info = WithStatus(info, apiErr.Code, Gemini.Provider)
		e := FromInfo(Gemini.Provider, info)
		e.Err = err
		return e
	}

	e := Wrap(KindUnknown, err, "%s", err.Error())
	e.Provider = Gemini.Provider
	return e
}

func statusMessage(defaultMessage string, status int) string {
	if defaultMessage == "" {
		defaultMessage = "API request failed"
	}
	return fmt.Sprintf("%s (HTTP %d)", defaultMessage, status)
}
