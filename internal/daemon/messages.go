package daemon

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/leonardotrapani/watranscriber/internal/bus"
	"github.com/leonardotrapani/watranscriber/internal/provider"
	"github.com/leonardotrapani/watranscriber/internal/settings"
	"github.com/leonardotrapani/watranscriber/internal/storage"
)

// StorageSnapshot is the reply to checkStorage.
type StorageSnapshot struct {
	Sync  map[string]json.RawMessage `json:"sync"`
	Local map[string]json.RawMessage `json:"local"`
}

type apiKeyRequest struct {
	Category provider.Category `json:"category"`
}

type apiKeyReply struct {
	APIKey string `json:"apiKey"`
}

// handleMessage answers the background's share of the bus protocol.
func (d *Daemon) handleMessage(ctx context.Context, m bus.Message) (any, bool, error) {
	switch m.Action {
	case bus.ActionContentScriptReady:
		d.log.Info().Str("from", m.ID).Msg("page attached")
		d.store.EnsureInitialized(ctx)
		return d.store.Settings(), true, nil

	case bus.ActionCheckStorage:
		snap, err := d.storageSnapshot(ctx)
		return snap, true, err

	case bus.ActionGetAPIKey:
		var req apiKeyRequest
		if err := m.Decode(&req); err != nil {
			return nil, true, err
		}
		switch req.Category {
		case provider.Transcription, provider.Processing:
		default:
			return nil, true, fmt.Errorf("unknown category %q", req.Category)
		}
		d.store.EnsureInitialized(ctx)
		return apiKeyReply{APIKey: d.store.Settings().APIKey(req.Category)}, true, nil

	case bus.ActionSettingsUpdated:
		d.relaySettings(ctx, m.Payload)
		return nil, true, nil
	}
	return nil, false, nil
}

func (d *Daemon) storageSnapshot(ctx context.Context) (StorageSnapshot, error) {
	syncVals, err := d.storage.GetAll(ctx, storage.Sync)
	if err != nil {
		return StorageSnapshot{}, err
	}
	localVals, err := d.storage.GetAll(ctx, storage.Local)
	if err != nil {
		return StorageSnapshot{}, err
	}
	return StorageSnapshot{Sync: syncVals, Local: localVals}, nil
}

// relaySettings handles a settingsUpdated from another context. A snapshot
// that differs from ours is adopted, which persists it and broadcasts it;
// anything else is re-dispatched to the pages as is.
func (d *Daemon) relaySettings(ctx context.Context, payload json.RawMessage) {
	d.store.EnsureInitialized(ctx)
	cur := d.store.Settings()

	if len(payload) > 0 && string(payload) != "null" {
		next := cur
		if err := json.Unmarshal(payload, &next); err != nil {
			d.log.Warn().Err(err).Msg("ignoring malformed settings update")
			return
		}
		if err := settings.Validate(next, d.registry); err != nil {
			d.log.Warn().Err(err).Msg("ignoring invalid settings update")
			return
		}
		if next != cur {
			d.store.UpdateSettings(ctx, settings.Full(next))
			return
		}
	}

	if err := d.debounce.Broadcast(ctx, bus.ActionSettingsUpdated, cur); err != nil {
		d.log.Debug().Err(err).Msg("relay skipped")
	}
}
