package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func collect(s *Store) <-chan Change {
	ch := make(chan Change, 16)
	s.OnChange(func(c Change) { ch <- c })
	return ch
}

func waitChange(t *testing.T, ch <-chan Change) Change {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for change event")
		return Change{}
	}
}

func TestStoreGetSet(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	defer s.Close()

	v, err := s.Get(ctx, "missing", Sync)
	if err != nil || v != nil {
		t.Fatalf("Get(missing) = %s, %v", v, err)
	}

	if err := s.Set(ctx, "transcriptionApiKey", "sk-1", Local, Sync); err != nil {
		t.Fatal(err)
	}
	for _, area := range []Area{Local, Sync} {
		var got string
		ok, err := s.GetInto(ctx, "transcriptionApiKey", area, &got)
		if err != nil || !ok || got != "sk-1" {
			t.Errorf("%s: got %q ok=%v err=%v", area, got, ok, err)
		}
	}
	if v, _ := s.Get(ctx, "transcriptionApiKey", Bulk); v != nil {
		t.Errorf("bulk should be untouched, got %s", v)
	}

	all, err := s.GetAll(ctx, Sync)
	if err != nil || len(all) != 1 {
		t.Errorf("GetAll(sync) = %v, %v", all, err)
	}
}

func TestStoreErrors(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	defer s.Close()

	if err := s.Set(ctx, "k", 1); err == nil {
		t.Error("Set without area should fail")
	}
	if _, err := s.Get(ctx, "k", Area("session")); !errors.Is(err, ErrUnknownArea) {
		t.Errorf("err = %v, want ErrUnknownArea", err)
	}
	if err := s.Set(ctx, "k", func() {}, Sync); err == nil {
		t.Error("unencodable value should fail")
	}
}

func TestStoreChangeEvents(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	defer s.Close()
	ch := collect(s)

	if err := s.Set(ctx, "settings", map[string]string{"language": "es"}, Sync); err != nil {
		t.Fatal(err)
	}
	c := waitChange(t, ch)
	if c.Area != Sync || c.Key != "settings" || c.OldValue != nil {
		t.Errorf("change = %+v", c)
	}

	// unchanged value emits nothing
	if err := s.Set(ctx, "settings", json.RawMessage(`{"language":"es"}`), Sync); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "other", 1, Sync); err != nil {
		t.Fatal(err)
	}
	if c := waitChange(t, ch); c.Key != "other" {
		t.Errorf("expected only the change to other, got %+v", c)
	}
}

func TestListenerMayWrite(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	defer s.Close()

	done := make(chan struct{})
	s.OnChange(func(c Change) {
		switch c.Key {
		case "a":
			_ = s.Set(ctx, "b", 2, Local)
		case "b":
			close(done)
		}
	})
	if err := s.Set(ctx, "a", 1, Local); err != nil {
		t.Fatal(err)
	}
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("listener write did not propagate")
	}
}

func TestFileAreaPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sync.json")

	a, err := OpenFileArea(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Set(ctx, "settings", json.RawMessage(`{"language":"fr"}`)); err != nil {
		t.Fatal(err)
	}
	a.Close()

	b, err := OpenFileArea(path)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	v, ok, err := b.Get(ctx, "settings")
	if err != nil || !ok || string(v) != `{"language":"fr"}` {
		t.Errorf("Get = %s, %v, %v", v, ok, err)
	}
}

func TestFileAreaCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenFileArea(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestFileAreaExternalWrite(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	area, err := OpenFileArea(filepath.Join(dir, "sync.json"))
	if err != nil {
		t.Fatal(err)
	}
	s := New(map[Area]Backend{Sync: area, Local: NewMemoryArea(), Bulk: NewMemoryArea()})
	defer s.Close()
	ch := collect(s)

	// another process rewrites the file
	other, err := OpenFileArea(filepath.Join(dir, "sync.json"))
	if err != nil {
		t.Fatal(err)
	}
	if err := other.Set(ctx, "settings", json.RawMessage(`{"language":"de"}`)); err != nil {
		t.Fatal(err)
	}

	c := waitChange(t, ch)
	if c.Area != Sync || c.Key != "settings" || string(c.NewValue) != `{"language":"de"}` {
		t.Errorf("change = %+v", c)
	}
	v, _ := s.Get(ctx, "settings", Sync)
	if string(v) != `{"language":"de"}` {
		t.Errorf("store did not pick up external write: %s", v)
	}
}

func TestSQLiteArea(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bulk.db")

	a, err := OpenSQLiteArea(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Set(ctx, "wa-transcriptions", json.RawMessage(`{"m1":{"transcript":"t"}}`)); err != nil {
		t.Fatal(err)
	}
	if err := a.Set(ctx, "wa-transcriptions", json.RawMessage(`{"m1":{"transcript":"t2"}}`)); err != nil {
		t.Fatal(err)
	}
	a.Close()

	b, err := OpenSQLiteArea(path)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	v, ok, err := b.Get(ctx, "wa-transcriptions")
	if err != nil || !ok || string(v) != `{"m1":{"transcript":"t2"}}` {
		t.Errorf("Get = %s, %v, %v", v, ok, err)
	}
	if _, ok, _ := b.Get(ctx, "nope"); ok {
		t.Error("missing key reported present")
	}
	all, err := b.GetAll(ctx)
	if err != nil || len(all) != 1 {
		t.Errorf("GetAll = %v, %v", all, err)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "k", "v", Sync, Local, Bulk); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"sync.json", "local.json", "bulk.db"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
}
