package provider

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNotFound is matched by every lookup failure for an unregistered id.
var ErrNotFound = errors.New("provider not found")

// NotFoundError names the category and id that failed to resolve.
type NotFoundError struct {
	Category Category
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s provider '%s' not found", e.Category, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

type TranscriberFactory func(Config) Transcriber
type ProcessorFactory func(Config) Processor

type transcriberEntry struct {
	info    Info
	factory TranscriberFactory
}

type processorEntry struct {
	info    Info
	factory ProcessorFactory
}

// Registry maps provider ids to factories. The zero value is not usable;
// call NewRegistry.
type Registry struct {
	mu           sync.RWMutex
	transcribers map[string]transcriberEntry
	processors   map[string]processorEntry

	defaultTranscriber string
	defaultProcessor   string
}

func NewRegistry() *Registry {
	return &Registry{
		transcribers: make(map[string]transcriberEntry),
		processors:   make(map[string]processorEntry),
	}
}

// RegisterTranscriber adds or replaces a transcription provider. The first
// one registered becomes the default until SetDefaults says otherwise.
func (r *Registry) RegisterTranscriber(info Info, f TranscriberFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info.Category = Transcription
	r.transcribers[info.ID] = transcriberEntry{info: info, factory: f}
	if r.defaultTranscriber == "" {
		r.defaultTranscriber = info.ID
	}
}

// RegisterProcessor adds or replaces a processing provider.
func (r *Registry) RegisterProcessor(info Info, f ProcessorFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info.Category = Processing
	r.processors[info.ID] = processorEntry{info: info, factory: f}
	if r.defaultProcessor == "" {
		r.defaultProcessor = info.ID
	}
}

// SetDefaults picks the default ids. Both must already be registered.
func (r *Registry) SetDefaults(transcriberID, processorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.transcribers[transcriberID]; !ok {
		return &NotFoundError{Category: Transcription, ID: transcriberID}
	}
	if _, ok := r.processors[processorID]; !ok {
		return &NotFoundError{Category: Processing, ID: processorID}
	}
	r.defaultTranscriber = transcriberID
	r.defaultProcessor = processorID
	return nil
}

func (r *Registry) GetTranscriber(id string, cfg Config) (Transcriber, error) {
	r.mu.RLock()
	e, ok := r.transcribers[id]
	r.mu.RUnlock()
	if !ok {
		return nil, &NotFoundError{Category: Transcription, ID: id}
	}
	return e.factory(cfg.withDefaults(e.info)), nil
}

func (r *Registry) GetProcessor(id string, cfg Config) (Processor, error) {
	r.mu.RLock()
	e, ok := r.processors[id]
	r.mu.RUnlock()
	if !ok {
		return nil, &NotFoundError{Category: Processing, ID: id}
	}
	return e.factory(cfg.withDefaults(e.info)), nil
}

// Info returns the metadata for id in the given category.
func (r *Registry) Info(c Category, id string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch c {
	case Transcription:
		e, ok := r.transcribers[id]
		return e.info, ok
	case Processing:
		e, ok := r.processors[id]
		return e.info, ok
	}
	return Info{}, false
}

func (r *Registry) ListTranscriberIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.transcribers))
	for id := range r.transcribers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) ListProcessorIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.processors))
	for id := range r.processors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ListIDs returns the sorted ids of one category.
func (r *Registry) ListIDs(c Category) []string {
	if c == Processing {
		return r.ListProcessorIDs()
	}
	return r.ListTranscriberIDs()
}

func (r *Registry) DefaultTranscriberID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultTranscriber
}

func (r *Registry) DefaultProcessorID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultProcessor
}

// DefaultID returns the default id of one category.
func (r *Registry) DefaultID(c Category) string {
	if c == Processing {
		return r.DefaultProcessorID()
	}
	return r.DefaultTranscriberID()
}
