// Package storage provides the three named key/value areas the settings
// store persists to, and the change events other contexts react to.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/leonardotrapani/watranscriber/internal/logging"
)

// Area names a storage area.
type Area string

const (
	// Sync holds the small settings blob shared between contexts.
	Sync Area = "sync"
	// Local holds per-machine values such as mirrored API keys.
	Local Area = "local"
	// Bulk holds large values such as the transcription cache.
	Bulk Area = "bulk"
)

var ErrUnknownArea = errors.New("unknown storage area")

// Change describes one key that changed in one area. OldValue is nil for new
// keys.
type Change struct {
	Area     Area
	Key      string
	OldValue json.RawMessage
	NewValue json.RawMessage
}

// Backend is a single storage area.
type Backend interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	Set(ctx context.Context, key string, value json.RawMessage) error
	GetAll(ctx context.Context) (map[string]json.RawMessage, error)
	Close() error
}

// Watcher is implemented by backends that can observe writes made by other
// processes.
type Watcher interface {
	Watch(ctx context.Context, emit func(key string, old, cur json.RawMessage)) error
}

// Store routes calls to the backend of each area and fans change events out
// to listeners on a single goroutine, in the order they happened.
type Store struct {
	areas map[Area]Backend
	log   zerolog.Logger

	mu        sync.RWMutex
	listeners []func(Change)

	qmu    sync.Mutex
	qcond  *sync.Cond
	queue  []Change
	closed bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Store over the given backends and starts watching those that
// support it.
func New(areas map[Area]Backend) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		areas:  areas,
		log:    logging.For("storage"),
		cancel: cancel,
	}
	s.qcond = sync.NewCond(&s.qmu)

	s.wg.Add(1)
	go s.dispatch()

	for area, b := range areas {
		w, ok := b.(Watcher)
		if !ok {
			continue
		}
		area := area
		if err := w.Watch(ctx, func(key string, old, cur json.RawMessage) {
			s.emit(Change{Area: area, Key: key, OldValue: old, NewValue: cur})
		}); err != nil {
			s.log.Warn().Err(err).Str("area", string(area)).Msg("cannot watch area for external changes")
		}
	}
	return s
}

// NewMemory returns a Store whose three areas live in memory.
func NewMemory() *Store {
	return New(map[Area]Backend{
		Sync:  NewMemoryArea(),
		Local: NewMemoryArea(),
		Bulk:  NewMemoryArea(),
	})
}

// Open returns a Store persisted under dir: JSON files for the sync and local
// areas and an SQLite database for the bulk area.
func Open(dir string) (*Store, error) {
	syncArea, err := OpenFileArea(filepath.Join(dir, "sync.json"))
	if err != nil {
		return nil, err
	}
	localArea, err := OpenFileArea(filepath.Join(dir, "local.json"))
	if err != nil {
		return nil, err
	}
	bulkArea, err := OpenSQLiteArea(filepath.Join(dir, "bulk.db"))
	if err != nil {
		return nil, err
	}
	return New(map[Area]Backend{Sync: syncArea, Local: localArea, Bulk: bulkArea}), nil
}

func (s *Store) backend(area Area) (Backend, error) {
	b, ok := s.areas[area]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownArea, area)
	}
	return b, nil
}

// Get returns the raw value for key, or nil when it is not set.
func (s *Store) Get(ctx context.Context, key string, area Area) (json.RawMessage, error) {
	b, err := s.backend(area)
	if err != nil {
		return nil, err
	}
	v, ok, err := b.Get(ctx, key)
	if err != nil || !ok {
		return nil, err
	}
	return v, nil
}

// GetInto decodes the value for key into dst. It reports false when the key
// is not set.
func (s *Store) GetInto(ctx context.Context, key string, area Area, dst any) (bool, error) {
	raw, err := s.Get(ctx, key, area)
	if err != nil || raw == nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %s/%s: %w", area, key, err)
	}
	return true, nil
}

// Set writes value to every listed area. It stops at the first failing area.
func (s *Store) Set(ctx context.Context, key string, value any, areas ...Area) error {
	if len(areas) == 0 {
		return fmt.Errorf("set %s: no storage area given", key)
	}

	raw, ok := value.(json.RawMessage)
	if !ok {
		b, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		raw = b
	}

	for _, area := range areas {
		b, err := s.backend(area)
		if err != nil {
			return err
		}
		old, _, err := b.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("read %s/%s: %w", area, key, err)
		}
		if err := b.Set(ctx, key, raw); err != nil {
			return fmt.Errorf("write %s/%s: %w", area, key, err)
		}
		if !bytes.Equal(old, raw) {
			s.emit(Change{Area: area, Key: key, OldValue: old, NewValue: raw})
		}
	}
	return nil
}

// GetAll returns every key in area.
func (s *Store) GetAll(ctx context.Context, area Area) (map[string]json.RawMessage, error) {
	b, err := s.backend(area)
	if err != nil {
		return nil, err
	}
	return b.GetAll(ctx)
}

// OnChange registers fn for every change in any area. Listeners run on the
// dispatch goroutine and must not block for long.
func (s *Store) OnChange(fn func(Change)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// emit queues c for the dispatch goroutine. The queue is unbounded so a
// listener that writes to the store cannot deadlock it.
func (s *Store) emit(c Change) {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, c)
	s.qcond.Signal()
}

func (s *Store) dispatch() {
	defer s.wg.Done()
	for {
		s.qmu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.qcond.Wait()
		}
		if len(s.queue) == 0 {
			s.qmu.Unlock()
			return
		}
		c := s.queue[0]
		s.queue = s.queue[1:]
		s.qmu.Unlock()

		s.mu.RLock()
		listeners := append([]func(Change){}, s.listeners...)
		s.mu.RUnlock()
		for _, fn := range listeners {
			fn(c)
		}
	}
}

// Close stops watchers, drains pending events and closes every backend.
func (s *Store) Close() error {
	s.cancel()
	s.qmu.Lock()
	s.closed = true
	s.qcond.Broadcast()
	s.qmu.Unlock()
	s.wg.Wait()

	var errs []error
	for _, b := range s.areas {
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
