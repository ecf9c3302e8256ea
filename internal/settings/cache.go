package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/leonardotrapani/watranscriber/internal/provider"
	"github.com/leonardotrapani/watranscriber/internal/storage"
)

// Entry is the cached outcome for one voice message.
type Entry struct {
	Transcript string `json:"transcript"`
	Cleaned    string `json:"cleaned"`
	Summary    string `json:"summary"`
	Reply      string `json:"reply"`
}

// EntryFromResult maps a processed result onto a cache entry.
func EntryFromResult(r provider.ProcessedResult) Entry {
	return Entry{Transcript: r.Original, Cleaned: r.Processed, Summary: r.Summary, Reply: r.Reply}
}

// Result maps a cache entry back onto a processed result.
func (e Entry) Result() provider.ProcessedResult {
	return provider.ProcessedResult{Original: e.Transcript, Processed: e.Cleaned, Summary: e.Summary, Reply: e.Reply}
}

// Cache maps message ids to their transcription results and persists the
// whole mapping to the bulk area.
type Cache struct {
	store *storage.Store
	// wmu orders writers so an older snapshot never overwrites a newer one.
	wmu sync.Mutex

	mu      sync.RWMutex
	entries map[string]Entry
}

func NewCache(store *storage.Store) *Cache {
	return &Cache{store: store, entries: make(map[string]Entry)}
}

// Load replaces the in-memory entries with what the bulk area holds. Records
// that are not objects are skipped, and non-string fields are coerced.
func (c *Cache) Load(ctx context.Context) error {
	var raw map[string]json.RawMessage
	if _, err := c.store.GetInto(ctx, KeyCache, storage.Bulk, &raw); err != nil {
		return fmt.Errorf("load transcription cache: %w", err)
	}
	entries := make(map[string]Entry, len(raw))
	for id, v := range raw {
		var fields map[string]any
		if err := json.Unmarshal(v, &fields); err != nil || fields == nil {
			continue
		}
		entries[id] = Entry{
			Transcript: coerce(fields["transcript"]),
			Cleaned:    coerce(fields["cleaned"]),
			Summary:    coerce(fields["summary"]),
			Reply:      coerce(fields["reply"]),
		}
	}
	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	return nil
}

func coerce(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		if v == 0 {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if v {
			return "true"
		}
	}
	return ""
}

// Put stores a copy of e under id and persists the mapping.
func (c *Cache) Put(ctx context.Context, id string, e Entry) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	c.mu.Lock()
	c.entries[id] = e
	snapshot := make(map[string]Entry, len(c.entries))
	for k, v := range c.entries {
		snapshot[k] = v
	}
	c.mu.Unlock()
	return c.persist(ctx, snapshot)
}

func (c *Cache) persist(ctx context.Context, snapshot map[string]Entry) error {
	if len(snapshot) == 0 {
		return nil
	}
	if err := c.store.Set(ctx, KeyCache, snapshot, storage.Bulk); err != nil {
		return fmt.Errorf("persist transcription cache: %w", err)
	}
	return nil
}

// Get returns the entry for id.
func (c *Cache) Get(id string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	return e, ok
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
