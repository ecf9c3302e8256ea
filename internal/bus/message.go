package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Actions exchanged between contexts
const (
	ActionContentScriptReady  = "contentScriptReady"
	ActionSettingsUpdated     = "settingsUpdated"
	ActionSettingsInitialized = "settingsInitialized"
	ActionCheckStorage        = "checkStorage"
	ActionGetAPIKey           = "getApiKey"
)

// ErrNoReceiver means no other context handled a message. Senders treat it
// as a normal outcome.
var ErrNoReceiver = errors.New("no receiver handled the message")

// Frame kinds
const (
	KindSend    = "send"
	KindPublish = "publish"
	KindReply   = "reply"
)

// Message is one unit exchanged on the bus. Replies carry ReplyTo and either
// a Payload or an Error.
type Message struct {
	ID      string          `json:"id"`
	Kind    string          `json:"kind,omitempty"`
	Action  string          `json:"action,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	ReplyTo string          `json:"replyTo,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// NewMessage builds a message with a fresh id and payload encoded as JSON.
// A nil payload is omitted.
func NewMessage(action string, payload any) (Message, error) {
	m := Message{ID: uuid.NewString(), Action: action}
	if payload == nil {
		return m, nil
	}
	raw, ok := payload.(json.RawMessage)
	if !ok {
		b, err := json.Marshal(payload)
		if err != nil {
			return Message{}, fmt.Errorf("encode %s payload: %w", action, err)
		}
		raw = b
	}
	m.Payload = raw
	return m, nil
}

// Decode unmarshals the payload into dst.
func (m Message) Decode(dst any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", m.Action)
	}
	return json.Unmarshal(m.Payload, dst)
}

func reply(to Message, payload any, err error) Message {
	r := Message{ID: uuid.NewString(), Kind: KindReply, ReplyTo: to.ID}
	if err != nil {
		r.Error = err.Error()
		return r
	}
	if payload != nil {
		b, mErr := json.Marshal(payload)
		if mErr != nil {
			r.Error = mErr.Error()
			return r
		}
		r.Payload = b
	}
	return r
}

func replyErr(r Message) error {
	switch r.Error {
	case "":
		return nil
	case ErrNoReceiver.Error():
		return ErrNoReceiver
	default:
		return errors.New(r.Error)
	}
}

// Handler processes a message. Returning handled=false lets other handlers
// try; the first handled reply is the one the sender sees.
type Handler func(ctx context.Context, m Message) (reply any, handled bool, err error)

// Messenger is one context's view of the bus.
type Messenger interface {
	// Send delivers m to the other contexts and returns the first handled
	// reply, or ErrNoReceiver.
	Send(ctx context.Context, m Message) (json.RawMessage, error)
	// Publish delivers m to every other context without waiting for replies.
	Publish(ctx context.Context, m Message) error
	OnMessage(h Handler)
}

// Broadcaster adapts a Messenger for callers that publish by action name.
type Broadcaster struct {
	Messenger
}

func (b Broadcaster) Broadcast(ctx context.Context, action string, payload any) error {
	m, err := NewMessage(action, payload)
	if err != nil {
		return err
	}
	return b.Publish(ctx, m)
}

// runHandlers calls handlers in order until one handles m.
func runHandlers(ctx context.Context, handlers []Handler, m Message) (any, bool, error) {
	for _, h := range handlers {
		resp, handled, err := h(ctx, m)
		if err != nil || handled {
			return resp, true, err
		}
	}
	return nil, false, nil
}
