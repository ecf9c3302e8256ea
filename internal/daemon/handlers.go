package daemon

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/leonardotrapani/watranscriber/internal/bus"
	"github.com/leonardotrapani/watranscriber/internal/pipeline"
	"github.com/leonardotrapani/watranscriber/internal/provider"
	"github.com/leonardotrapani/watranscriber/internal/settings"
)

// MaxAudioBytes caps uploaded voice messages at the vendor upload limit.
const MaxAudioBytes = 25 << 20

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Proto   string                 `json:"proto"`
	Status  settings.Status        `json:"status"`
	Display settings.DisplayStatus `json:"display"`
	Pages   int                    `json:"pages"`
}

// TranscribeResponse is the body of POST /transcribe.
type TranscribeResponse struct {
	Result provider.ProcessedResult `json:"result"`
	Cached bool                     `json:"cached"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Router returns the HTTP API served on the control socket.
func (d *Daemon) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(d.initialized)

	r.Get("/status", d.getStatus)
	r.Route("/settings", func(r chi.Router) {
		r.Get("/", d.getSettings)
		r.Patch("/", d.patchSettings)
		r.Post("/reset", d.resetSettings)
	})
	r.Post("/verify", d.verify)
	r.Post("/transcribe", d.transcribe)
	r.Get("/cache/{id}", d.getCached)
	r.Handle("/bus", d.hub.Handler())
	return r
}

func (d *Daemon) initialized(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d.store.EnsureInitialized(r.Context())
		next.ServeHTTP(w, r)
	})
}

func (d *Daemon) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		d.log.Warn().Err(err).Msg("failed to encode response")
	}
}

func (d *Daemon) writeError(w http.ResponseWriter, code int, msg string) {
	d.writeJSON(w, code, errorResponse{Error: msg})
}

func (d *Daemon) getStatus(w http.ResponseWriter, _ *http.Request) {
	d.writeJSON(w, http.StatusOK, StatusResponse{
		Proto:   bus.ProtoVer,
		Status:  d.store.Status(),
		Display: d.store.DisplayStatus(),
		Pages:   d.hub.Receivers() - 1,
	})
}

func (d *Daemon) getSettings(w http.ResponseWriter, _ *http.Request) {
	d.writeJSON(w, http.StatusOK, d.store.Settings())
}

func (d *Daemon) patchSettings(w http.ResponseWriter, r *http.Request) {
	var p settings.Patch
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		d.writeError(w, http.StatusBadRequest, "invalid settings patch: "+err.Error())
		return
	}
	if p.IsEmpty() {
		d.writeError(w, http.StatusBadRequest, "empty settings patch")
		return
	}
	next, err := d.store.TryUpdateSettings(r.Context(), p)
	if err != nil {
		d.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	d.writeJSON(w, http.StatusOK, next)
}

func (d *Daemon) resetSettings(w http.ResponseWriter, r *http.Request) {
	d.log.Info().Msg("settings reset requested")
	d.writeJSON(w, http.StatusOK, d.store.ResetSettings(r.Context()))
}

// verify checks credentials; with ?save=true a working provider is also
// selected and stored.
func (d *Daemon) verify(w http.ResponseWriter, r *http.Request) {
	var req pipeline.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		d.writeError(w, http.StatusBadRequest, "invalid verify request: "+err.Error())
		return
	}
	if err := d.validate.Struct(req); err != nil {
		d.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	save, _ := strconv.ParseBool(r.URL.Query().Get("save"))
	var res provider.VerifyResult
	if save {
		res = d.pipeline.VerifyAndSave(r.Context(), req)
	} else {
		res = d.pipeline.Verify(r.Context(), req)
	}
	d.writeJSON(w, http.StatusOK, res)
}

// transcribe runs one voice message through the pipeline. The body is the raw
// audio and Content-Type its MIME type; ?id= enables the cache.
func (d *Daemon) transcribe(w http.ResponseWriter, r *http.Request) {
	if !d.store.Settings().IsExtensionEnabled {
		d.writeError(w, http.StatusConflict, "extension disabled")
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxAudioBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			d.writeError(w, http.StatusRequestEntityTooLarge, "audio too large")
			return
		}
		d.writeError(w, http.StatusBadRequest, "read audio: "+err.Error())
		return
	}
	if len(data) == 0 {
		d.writeError(w, http.StatusBadRequest, "empty audio")
		return
	}

	audio := provider.Audio{Data: data, MIMEType: r.Header.Get("Content-Type")}
	id := r.URL.Query().Get("id")
	d.log.Info().Str("id", id).Int("bytes", len(data)).Msg("voice message received")

	result, cached := d.pipeline.TranscribeMessage(r.Context(), id, audio)
	d.writeJSON(w, http.StatusOK, TranscribeResponse{Result: result, Cached: cached})
}

func (d *Daemon) getCached(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, ok := d.store.CachedTranscription(id)
	if !ok {
		d.writeError(w, http.StatusNotFound, "no cached transcription for "+id)
		return
	}
	d.writeJSON(w, http.StatusOK, result)
}
