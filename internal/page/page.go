// Package page is the receiving side of settings propagation: a context that
// renders UI from the settings and only refreshes it when they really
// changed.
package page

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/leonardotrapani/watranscriber/internal/bus"
	"github.com/leonardotrapani/watranscriber/internal/logging"
	"github.com/leonardotrapani/watranscriber/internal/notify"
	"github.com/leonardotrapani/watranscriber/internal/settings"
)

// Receiver tracks the last settings snapshot a page rendered with.
type Receiver struct {
	messenger bus.Messenger
	notifier  notify.Notifier
	log       zerolog.Logger

	mu       sync.Mutex
	snapshot string
	current  settings.Settings
	reloads  int
	onReload []func(settings.Settings)
}

func New(m bus.Messenger, n notify.Notifier) *Receiver {
	if n == nil {
		n = notify.Nop{}
	}
	return &Receiver{messenger: m, notifier: n, log: logging.For("page")}
}

// OnReload registers fn to run whenever the page reloads with new settings.
func (r *Receiver) OnReload(fn func(settings.Settings)) {
	r.mu.Lock()
	r.onReload = append(r.onReload, fn)
	r.mu.Unlock()
}

// Start subscribes to settings updates, announces the page and takes the
// background's reply as the initial snapshot.
func (r *Receiver) Start(ctx context.Context) error {
	r.messenger.OnMessage(r.handle)

	m, err := bus.NewMessage(bus.ActionContentScriptReady, nil)
	if err != nil {
		return err
	}
	raw, err := r.messenger.Send(ctx, m)
	if err != nil {
		return fmt.Errorf("announce page: %w", err)
	}
	var s settings.Settings
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("decode initial settings: %w", err)
	}

	r.mu.Lock()
	r.snapshot = serialize(s)
	r.current = s
	r.mu.Unlock()
	r.log.Info().Str("transcription", s.TranscriptionProviderType).Msg("page ready")
	return nil
}

func (r *Receiver) handle(ctx context.Context, m bus.Message) (any, bool, error) {
	if m.Action != bus.ActionSettingsUpdated {
		return nil, false, nil
	}
	payload := m.Payload
	if len(payload) == 0 {
		fresh, err := r.fetch(ctx)
		if err != nil {
			r.log.Warn().Err(err).Msg("settings update without payload and no fresh copy")
			return nil, true, nil
		}
		payload = fresh
	}
	if _, err := r.Apply(payload); err != nil {
		r.log.Warn().Err(err).Msg("ignoring malformed settings update")
	}
	return nil, true, nil
}

// fetch reads the settings blob through the background's storage snapshot.
func (r *Receiver) fetch(ctx context.Context) (json.RawMessage, error) {
	m, err := bus.NewMessage(bus.ActionCheckStorage, nil)
	if err != nil {
		return nil, err
	}
	raw, err := r.messenger.Send(ctx, m)
	if err != nil {
		return nil, err
	}
	var snap struct {
		Sync map[string]json.RawMessage `json:"sync"`
	}
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	blob, ok := snap.Sync[settings.KeySettings]
	if !ok {
		return nil, fmt.Errorf("no settings in storage")
	}
	return blob, nil
}

// Apply compares an incoming settings payload with the last snapshot and
// reloads when they differ. It reports whether a reload happened.
func (r *Receiver) Apply(payload json.RawMessage) (bool, error) {
	var s settings.Settings
	if err := json.Unmarshal(payload, &s); err != nil {
		return false, err
	}
	snap := serialize(s)

	r.mu.Lock()
	if snap == r.snapshot {
		r.mu.Unlock()
		r.log.Debug().Msg("settings unchanged, not reloading")
		return false, nil
	}
	r.snapshot = snap
	r.current = s
	r.reloads++
	hooks := append([]func(settings.Settings){}, r.onReload...)
	r.mu.Unlock()

	r.log.Info().Msg("settings changed, reloading")
	r.notifier.Notify("WA Transcriber", "Settings updated, transcriber reloaded")
	for _, fn := range hooks {
		fn(s)
	}
	return true, nil
}

// Settings returns the settings the page last rendered with.
func (r *Receiver) Settings() settings.Settings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Reloads counts reloads since Start.
func (r *Receiver) Reloads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reloads
}

func serialize(s settings.Settings) string {
	b, _ := json.Marshal(s)
	return string(b)
}
