package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/leonardotrapani/watranscriber/internal/logging"
)

// FileArea stores one JSON object per file. Writes replace the file
// atomically; Watch reports edits made by other processes.
type FileArea struct {
	path string
	log  zerolog.Logger

	mu     sync.RWMutex
	values map[string]json.RawMessage

	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
}

func OpenFileArea(path string) (*FileArea, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	f := &FileArea{
		path: path,
		log:  logging.For("storage").With().Str("file", filepath.Base(path)).Logger(),
	}
	values, err := f.read()
	if err != nil {
		return nil, err
	}
	f.values = values
	return f, nil
}

func (f *FileArea) read() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	values := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(data)) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.path, err)
	}
	// the file is indented; keep values compact so they compare equal to
	// what Set was given
	for k, v := range values {
		values[k] = compact(v)
	}
	return values, nil
}

func compact(v json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, v); err != nil {
		return append(json.RawMessage(nil), v...)
	}
	return buf.Bytes()
}

func (f *FileArea) Get(_ context.Context, key string) (json.RawMessage, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *FileArea) Set(_ context.Context, key string, value json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := make(map[string]json.RawMessage, len(f.values)+1)
	for k, v := range f.values {
		next[k] = v
	}
	next[key] = compact(value)

	if err := f.write(next); err != nil {
		return err
	}
	f.values = next
	return nil
}

func (f *FileArea) write(values map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", f.path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), "."+filepath.Base(f.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	return nil
}

func (f *FileArea) GetAll(context.Context) (map[string]json.RawMessage, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]json.RawMessage, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out, nil
}

// Watch reloads the file when another process rewrites it and calls emit for
// every key whose value differs from the in-memory copy.
func (f *FileArea) Watch(ctx context.Context, emit func(key string, old, cur json.RawMessage)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		watcher.Close()
		return err
	}
	f.watcher = watcher

	f.wg.Add(1)
	go f.watchLoop(ctx, emit)
	return nil
}

func (f *FileArea) watchLoop(ctx context.Context, emit func(key string, old, cur json.RawMessage)) {
	defer f.wg.Done()
	name := filepath.Base(f.path)

	for {
		select {
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				f.reload(emit)
			}

		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.log.Warn().Err(err).Msg("watcher error")

		case <-ctx.Done():
			return
		}
	}
}

func (f *FileArea) reload(emit func(key string, old, cur json.RawMessage)) {
	f.mu.Lock()
	values, err := f.read()
	if err != nil {
		f.mu.Unlock()
		// a half-written file from a non-atomic writer; the next event retries
		f.log.Debug().Err(err).Msg("skipping reload")
		return
	}
	prev := f.values
	f.values = values
	f.mu.Unlock()

	for k, v := range values {
		if old, ok := prev[k]; !ok || !bytes.Equal(old, v) {
			emit(k, prev[k], v)
		}
	}
	for k, old := range prev {
		if _, ok := values[k]; !ok {
			emit(k, old, nil)
		}
	}
}

func (f *FileArea) Close() error {
	if f.watcher != nil {
		f.watcher.Close()
	}
	f.wg.Wait()
	return nil
}
