package bus

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

type recordingMessenger struct {
	mu        sync.Mutex
	published []Message
}

func (r *recordingMessenger) Send(context.Context, Message) (json.RawMessage, error) {
	return nil, ErrNoReceiver
}

func (r *recordingMessenger) OnMessage(Handler) {}

func (r *recordingMessenger) Publish(_ context.Context, m Message) error {
	r.mu.Lock()
	r.published = append(r.published, m)
	r.mu.Unlock()
	return nil
}

func (r *recordingMessenger) messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.published...)
}

func TestDebouncerCollapsesBursts(t *testing.T) {
	hub := NewHub()
	target := hub.Endpoint("background")
	var mu sync.Mutex
	var got []Message
	hub.Endpoint("page").OnMessage(func(_ context.Context, m Message) (any, bool, error) {
		mu.Lock()
		got = append(got, m)
		mu.Unlock()
		return nil, true, nil
	})

	d := NewDebouncer(target, 50*time.Millisecond)
	defer d.Stop()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := d.Broadcast(ctx, ActionSettingsUpdated, map[string]int{"n": i}); err != nil {
			t.Fatal(err)
		}
	}
	_ = d.Broadcast(ctx, ActionSettingsInitialized, nil)

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("published %d messages, want one per action", len(got))
	}
	for _, m := range got {
		if m.Action == ActionSettingsUpdated && string(m.Payload) != `{"n":4}` {
			t.Errorf("payload = %s, want the last one", m.Payload)
		}
	}
}

func TestDebouncerNewWindowAfterFlush(t *testing.T) {
	rec := &recordingMessenger{}
	d := NewDebouncer(rec, 20*time.Millisecond)
	defer d.Stop()
	ctx := context.Background()

	_ = d.Broadcast(ctx, ActionSettingsUpdated, 1)
	time.Sleep(100 * time.Millisecond)
	_ = d.Broadcast(ctx, ActionSettingsUpdated, 2)
	time.Sleep(100 * time.Millisecond)

	if n := len(rec.messages()); n != 2 {
		t.Errorf("published %d, want 2 separate windows", n)
	}
}

func TestDebouncerStop(t *testing.T) {
	rec := &recordingMessenger{}
	d := NewDebouncer(rec, time.Hour)
	_ = d.Broadcast(context.Background(), ActionSettingsUpdated, 1)
	d.Stop()

	if n := len(rec.messages()); n != 0 {
		t.Errorf("stopped debouncer published %d", n)
	}
	if err := d.Broadcast(context.Background(), ActionSettingsUpdated, 2); err == nil {
		t.Error("Broadcast after Stop should fail")
	}
}
