package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/leonardotrapani/watranscriber/internal/bus"
	"github.com/leonardotrapani/watranscriber/internal/pipeline"
	"github.com/leonardotrapani/watranscriber/internal/provider"
	"github.com/leonardotrapani/watranscriber/internal/settings"
)

// ErrNotCached is returned by Client.Cached for unknown ids.
var ErrNotCached = errors.New("not cached")

// apiError is a non-2xx answer from the daemon.
type apiError struct {
	Code    int
	Message string
}

func (e *apiError) Error() string { return e.Message }

// Client talks to a running daemon over its control socket.
type Client struct {
	base string
	http *http.Client
}

// NewClient returns a client for the daemon listening at sockPath
// (bus.SockPath when empty).
func NewClient(sockPath string) *Client {
	return &Client{base: bus.BaseURL, http: bus.HTTPClient(sockPath)}
}

// NewClientURL returns a client for a daemon API served at base, as in tests.
func NewClientURL(base string, hc *http.Client) *Client {
	return &Client{base: base, http: hc}
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error == "" {
			e.Error = resp.Status
		}
		return &apiError{Code: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	return c.do(ctx, method, path, body, "application/json", out)
}

func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var s StatusResponse
	err := c.doJSON(ctx, http.MethodGet, "/status", nil, &s)
	return s, err
}

func (c *Client) Settings(ctx context.Context) (settings.Settings, error) {
	var s settings.Settings
	err := c.doJSON(ctx, http.MethodGet, "/settings", nil, &s)
	return s, err
}

func (c *Client) UpdateSettings(ctx context.Context, p settings.Patch) (settings.Settings, error) {
	var s settings.Settings
	err := c.doJSON(ctx, http.MethodPatch, "/settings", p, &s)
	return s, err
}

func (c *Client) ResetSettings(ctx context.Context) (settings.Settings, error) {
	var s settings.Settings
	err := c.doJSON(ctx, http.MethodPost, "/settings/reset", nil, &s)
	return s, err
}

func (c *Client) Verify(ctx context.Context, req pipeline.VerifyRequest, save bool) (provider.VerifyResult, error) {
	var res provider.VerifyResult
	path := "/verify"
	if save {
		path += "?save=true"
	}
	err := c.doJSON(ctx, http.MethodPost, path, req, &res)
	return res, err
}

func (c *Client) Transcribe(ctx context.Context, id string, audio provider.Audio) (TranscribeResponse, error) {
	var res TranscribeResponse
	path := "/transcribe"
	if id != "" {
		path += "?id=" + url.QueryEscape(id)
	}
	err := c.do(ctx, http.MethodPost, path, bytes.NewReader(audio.Data), audio.MIMEType, &res)
	return res, err
}

func (c *Client) Cached(ctx context.Context, id string) (provider.ProcessedResult, error) {
	var res provider.ProcessedResult
	err := c.doJSON(ctx, http.MethodGet, "/cache/"+url.PathEscape(id), nil, &res)
	var ae *apiError
	if errors.As(err, &ae) && ae.Code == http.StatusNotFound {
		return res, fmt.Errorf("%w: %s", ErrNotCached, id)
	}
	return res, err
}
