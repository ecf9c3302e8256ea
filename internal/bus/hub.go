package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/leonardotrapani/watranscriber/internal/logging"
)

// receiver is anything attached to a Hub: a local Endpoint or a remote
// websocket connection.
type receiver interface {
	receive(ctx context.Context, m Message) (json.RawMessage, bool, error)
	deliver(ctx context.Context, m Message)
}

// Hub routes messages between the contexts attached to it. A message is
// never delivered back to its sender.
type Hub struct {
	mu        sync.RWMutex
	receivers []receiver
	log       zerolog.Logger
}

func NewHub() *Hub {
	return &Hub{log: logging.For("bus")}
}

func (h *Hub) add(r receiver) {
	h.mu.Lock()
	h.receivers = append(h.receivers, r)
	h.mu.Unlock()
}

func (h *Hub) remove(r receiver) {
	h.mu.Lock()
	h.receivers = slices.DeleteFunc(h.receivers, func(x receiver) bool { return x == r })
	h.mu.Unlock()
}

func (h *Hub) others(from receiver) []receiver {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]receiver, 0, len(h.receivers))
	for _, r := range h.receivers {
		if r != from {
			out = append(out, r)
		}
	}
	return out
}

func (h *Hub) send(ctx context.Context, from receiver, m Message) (json.RawMessage, error) {
	m.Kind = KindSend
	for _, r := range h.others(from) {
		resp, handled, err := r.receive(ctx, m)
		if handled {
			return resp, err
		}
	}
	return nil, ErrNoReceiver
}

func (h *Hub) publish(ctx context.Context, from receiver, m Message) error {
	m.Kind = KindPublish
	targets := h.others(from)
	if len(targets) == 0 {
		return ErrNoReceiver
	}
	for _, r := range targets {
		r.deliver(ctx, m)
	}
	h.log.Debug().Str("action", m.Action).Int("receivers", len(targets)).Msg("published")
	return nil
}

// Receivers returns how many contexts are attached.
func (h *Hub) Receivers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.receivers)
}

// Endpoint is an in-process context attached to a Hub.
type Endpoint struct {
	hub  *Hub
	name string

	mu       sync.RWMutex
	handlers []Handler
}

// Endpoint attaches a new in-process context named name.
func (h *Hub) Endpoint(name string) *Endpoint {
	e := &Endpoint{hub: h, name: name}
	h.add(e)
	return e
}

func (e *Endpoint) OnMessage(fn Handler) {
	e.mu.Lock()
	e.handlers = append(e.handlers, fn)
	e.mu.Unlock()
}

func (e *Endpoint) Send(ctx context.Context, m Message) (json.RawMessage, error) {
	return e.hub.send(ctx, e, m)
}

func (e *Endpoint) Publish(ctx context.Context, m Message) error {
	return e.hub.publish(ctx, e, m)
}

// Close detaches the endpoint from its hub.
func (e *Endpoint) Close() {
	e.hub.remove(e)
}

func (e *Endpoint) handlersCopy() []Handler {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.handlers)
}

func (e *Endpoint) receive(ctx context.Context, m Message) (json.RawMessage, bool, error) {
	resp, handled, err := runHandlers(ctx, e.handlersCopy(), m)
	if !handled || err != nil {
		return nil, handled, err
	}
	if resp == nil {
		return nil, true, nil
	}
	b, err := json.Marshal(resp)
	if err != nil {
		return nil, true, fmt.Errorf("encode %s reply: %w", m.Action, err)
	}
	return b, true, nil
}

func (e *Endpoint) deliver(ctx context.Context, m Message) {
	if _, _, err := runHandlers(ctx, e.handlersCopy(), m); err != nil {
		e.hub.log.Warn().Err(err).Str("endpoint", e.name).Str("action", m.Action).Msg("handler failed")
	}
}
