package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/leonardotrapani/watranscriber/internal/logging"
	"github.com/leonardotrapani/watranscriber/internal/provider"
	"github.com/leonardotrapani/watranscriber/internal/storage"
)

// Messages sent to sibling contexts
const (
	ActionSettingsInitialized = "settingsInitialized"
	ActionSettingsUpdated     = "settingsUpdated"
)

// Broadcaster notifies other execution contexts. Failures are logged by the
// store and never returned to callers.
type Broadcaster interface {
	Broadcast(ctx context.Context, action string, payload any) error
}

// Observer is called after every settings or status change, outside the
// store's locks.
type Observer func(Settings, Status)

// Options configures a Store.
type Options struct {
	Storage  *storage.Store
	Registry *provider.Registry
	// Broadcaster may be nil when the context has no siblings.
	Broadcaster Broadcaster
	// Defaults are the compiled defaults, usually Defaults(reg) with API keys
	// from the config file or environment.
	Defaults Settings
	// Now is overridable for tests.
	Now func() time.Time
}

// Store is the single owner of settings and status in one execution context.
// Mutate it only through its methods.
type Store struct {
	storage  *storage.Store
	registry *provider.Registry
	bcast    Broadcaster
	defaults Settings
	now      func() time.Time
	log      zerolog.Logger
	cache    *Cache

	initMu sync.Mutex

	mu          sync.RWMutex
	settings    Settings
	status      Status
	initialized bool
	listening   bool
	observers   []Observer

	// persistMu serializes writes. persisted is the last snapshot written;
	// echoes counts blobs we wrote whose change event has not come back yet.
	persistMu sync.Mutex
	persisted *Settings
	echoMu    sync.Mutex
	echoes    map[string]int
}

func New(opts Options) *Store {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Store{
		storage:  opts.Storage,
		registry: opts.Registry,
		bcast:    opts.Broadcaster,
		defaults: opts.Defaults,
		now:      opts.Now,
		log:      logging.For("settings"),
		cache:    NewCache(opts.Storage),
		settings: opts.Defaults,
		echoes:   make(map[string]int),
	}
	s.status = computeStatus(s.registry, s.settings, Status{}, s.now())
	return s
}

// Cache returns the transcription cache owned by the store.
func (s *Store) Cache() *Cache { return s.cache }

// Registry returns the provider registry settings refer to.
func (s *Store) Registry() *provider.Registry { return s.registry }

// Defaults returns the compiled defaults.
func (s *Store) Defaults() Settings { return s.defaults }

// Initialize hydrates the store from storage. On a storage failure the store
// falls back to the defaults with an error status, stays usable and returns
// the error.
func (s *Store) Initialize(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	return s.initialize(ctx)
}

// EnsureInitialized runs Initialize unless it already ran.
func (s *Store) EnsureInitialized(ctx context.Context) {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.Initialized() {
		return
	}
	_ = s.initialize(ctx)
}

func (s *Store) initialize(ctx context.Context) error {
	if err := s.cache.Load(ctx); err != nil {
		s.log.Warn().Err(err).Msg("transcription cache not loaded")
	}

	loaded, err := s.load(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("initialization failed, using defaults")
		s.mu.Lock()
		s.settings = s.defaults
		s.status = computeStatus(s.registry, s.defaults, s.status, s.now())
		s.status.TranscriptionProviderStatus = "Error during init"
		s.status.ProcessingProviderStatus = "Error during init"
		s.status.IsAPIKeyConfigured = false
		s.status.LastError = "Initialization failed"
		s.initialized = true
		s.mu.Unlock()
		s.notifyObservers()
		return err
	}

	s.mu.Lock()
	s.settings = loaded
	s.status = computeStatus(s.registry, loaded, s.status, s.now())
	s.initialized = true
	listen := !s.listening
	s.listening = true
	s.mu.Unlock()

	s.persistMu.Lock()
	snap := loaded
	s.persisted = &snap
	s.persistMu.Unlock()

	if listen {
		s.storage.OnChange(s.onStorageChange)
	}

	s.log.Info().
		Str("transcription", loaded.TranscriptionProviderType).
		Str("processing", loaded.ProcessingProviderType).
		Int("cached", s.cache.Len()).
		Msg("settings initialized")

	s.notifyObservers()
	s.broadcast(ctx, ActionSettingsInitialized, nil)
	return nil
}

// load reads the settings blob and resolves API keys. A key embedded in the
// blob wins over the local key store, then the synced key store, then the
// compiled default.
func (s *Store) load(ctx context.Context) (Settings, error) {
	merged := s.defaults
	raw, err := s.storage.Get(ctx, KeySettings, storage.Sync)
	if err != nil {
		return Settings{}, err
	}
	if raw != nil {
		if err := json.Unmarshal(raw, &merged); err != nil {
			s.log.Warn().Err(err).Msg("stored settings unreadable, using defaults")
			merged = s.defaults
		}
	}

	var blobKeys struct {
		Transcription string `json:"transcriptionApiKey"`
		Processing    string `json:"processingApiKey"`
	}
	if raw != nil {
		_ = json.Unmarshal(raw, &blobKeys)
	}

	merged.TranscriptionAPIKey, err = s.resolveKey(ctx, KeyTranscriptionAPIKey, blobKeys.Transcription, s.defaults.TranscriptionAPIKey)
	if err != nil {
		return Settings{}, err
	}
	merged.ProcessingAPIKey, err = s.resolveKey(ctx, KeyProcessingAPIKey, blobKeys.Processing, s.defaults.ProcessingAPIKey)
	if err != nil {
		return Settings{}, err
	}
	return s.normalize(merged), nil
}

func (s *Store) resolveKey(ctx context.Context, key, fromBlob, fallback string) (string, error) {
	if fromBlob != "" {
		return fromBlob, nil
	}
	for _, area := range []storage.Area{storage.Local, storage.Sync} {
		var v string
		ok, err := s.storage.GetInto(ctx, key, area, &v)
		if err != nil {
			return "", err
		}
		if ok && v != "" {
			return v, nil
		}
	}
	return fallback, nil
}

// normalize replaces unregistered provider ids with the registry defaults.
func (s *Store) normalize(st Settings) Settings {
	if _, ok := s.registry.Info(provider.Transcription, st.TranscriptionProviderType); !ok {
		def := s.registry.DefaultTranscriberID()
		s.log.Warn().Str("id", st.TranscriptionProviderType).Str("using", def).Msg("unknown transcription provider")
		st.TranscriptionProviderType = def
	}
	if _, ok := s.registry.Info(provider.Processing, st.ProcessingProviderType); !ok {
		def := s.registry.DefaultProcessorID()
		s.log.Warn().Str("id", st.ProcessingProviderType).Str("using", def).Msg("unknown processing provider")
		st.ProcessingProviderType = def
	}
	return st
}

func (s *Store) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

func (s *Store) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Snapshot returns settings and status read under one lock.
func (s *Store) Snapshot() (Settings, Status) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings, s.status
}

// DisplayStatus derives the current status line.
func (s *Store) DisplayStatus() DisplayStatus {
	st, status := s.Snapshot()
	return DeriveStatusText(st, status)
}

// Observe registers fn for every later change.
func (s *Store) Observe(fn Observer) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

func (s *Store) notifyObservers() {
	s.mu.RLock()
	st, status := s.settings, s.status
	observers := slices.Clone(s.observers)
	s.mu.RUnlock()
	for _, fn := range observers {
		fn(st, status)
	}
}

// UpdateSettings merges p into the current settings, refreshes status,
// persists the changed keys and then tells sibling contexts. Persistence
// failures are logged; the in-memory value stays authoritative.
func (s *Store) UpdateSettings(ctx context.Context, p Patch) Settings {
	next, _ := s.update(ctx, p, false)
	return next
}

// TryUpdateSettings is UpdateSettings for untrusted patches: the merged
// result must pass Validate, otherwise nothing changes and the current
// settings are returned with the error.
func (s *Store) TryUpdateSettings(ctx context.Context, p Patch) (Settings, error) {
	return s.update(ctx, p, true)
}

// update commits and persists under persistMu so that concurrent updates
// reach storage and siblings in the order they were applied.
func (s *Store) update(ctx context.Context, p Patch, check bool) (Settings, error) {
	s.persistMu.Lock()
	s.mu.Lock()
	merged := p.Apply(s.settings)
	if check {
		if err := Validate(merged, s.registry); err != nil {
			cur := s.settings
			s.mu.Unlock()
			s.persistMu.Unlock()
			return cur, err
		}
	}
	next := s.normalize(merged)
	s.settings = next
	s.status = computeStatus(s.registry, next, s.status, s.now())
	s.mu.Unlock()

	s.persistLocked(ctx, next)
	s.persistMu.Unlock()

	s.notifyObservers()
	return next, nil
}

// ResetSettings restores the compiled defaults.
func (s *Store) ResetSettings(ctx context.Context) Settings {
	return s.UpdateSettings(ctx, Full(s.defaults))
}

// UpdateStatus merges p into the status.
func (s *Store) UpdateStatus(p StatusPatch) Status {
	s.mu.Lock()
	if p.IsExtensionEnabled != nil {
		s.status.IsExtensionEnabled = *p.IsExtensionEnabled
	}
	if p.Pending != nil {
		s.status.PendingTranscriptions = p.Pending.apply(s.status.PendingTranscriptions)
	}
	if p.LastError != nil {
		s.status.LastError = *p.LastError
	}
	st := s.status
	s.mu.Unlock()

	s.notifyObservers()
	return st
}

// persistLocked writes the keys that changed since the last persisted
// snapshot, then broadcasts. Callers hold persistMu.
func (s *Store) persistLocked(ctx context.Context, cur Settings) {
	changed := ChangedKeys(s.persisted, cur)
	if len(changed) == 0 {
		return
	}
	snap := cur
	s.persisted = &snap

	for _, k := range []string{KeyTranscriptionAPIKey, KeyProcessingAPIKey} {
		if !slices.Contains(changed, k) {
			continue
		}
		v := cur.TranscriptionAPIKey
		if k == KeyProcessingAPIKey {
			v = cur.ProcessingAPIKey
		}
		if err := s.write(ctx, k, v, storage.Local, storage.Sync); err != nil {
			s.log.Warn().Err(err).Str("key", k).Msg("API key not persisted")
		}
	}
	if err := s.write(ctx, KeySettings, cur, storage.Sync); err != nil {
		s.log.Warn().Err(err).Msg("settings not persisted")
	}

	s.log.Debug().Strs("changed", changed).Msg("settings persisted")
	s.broadcast(ctx, ActionSettingsUpdated, cur)
}

// write stores value and remembers it so the resulting change event is not
// mistaken for an external edit.
func (s *Store) write(ctx context.Context, key string, value any, areas ...storage.Area) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if slices.Contains(areas, storage.Sync) {
		old, err := s.storage.Get(ctx, key, storage.Sync)
		if err != nil {
			return err
		}
		if !bytes.Equal(old, raw) {
			s.echoMu.Lock()
			s.echoes[echoKey(key, raw)]++
			s.echoMu.Unlock()
		}
	}
	return s.storage.Set(ctx, key, json.RawMessage(raw), areas...)
}

func echoKey(key string, raw []byte) string { return key + "\x00" + string(raw) }

// ownEcho reports whether c is the event for a write this store made.
func (s *Store) ownEcho(c storage.Change) bool {
	s.echoMu.Lock()
	defer s.echoMu.Unlock()
	k := echoKey(c.Key, c.NewValue)
	if s.echoes[k] == 0 {
		return false
	}
	s.echoes[k]--
	if s.echoes[k] == 0 {
		delete(s.echoes, k)
	}
	return true
}

func (s *Store) onStorageChange(c storage.Change) {
	if c.Area != storage.Sync || c.NewValue == nil || s.ownEcho(c) {
		return
	}

	switch c.Key {
	case KeySettings:
		next := s.defaults
		if err := json.Unmarshal(c.NewValue, &next); err != nil {
			s.log.Warn().Err(err).Msg("ignoring unreadable settings change")
			return
		}
		next = s.normalize(next)
		s.persistMu.Lock()
		s.mu.Lock()
		if next == s.settings {
			s.mu.Unlock()
			s.persistMu.Unlock()
			return
		}
		s.settings = next
		s.status = computeStatus(s.registry, next, s.status, s.now())
		s.mu.Unlock()
		snap := next
		s.persisted = &snap
		s.persistMu.Unlock()

		s.log.Info().Msg("settings changed in another context")
		s.notifyObservers()

	case KeyTranscriptionAPIKey, KeyProcessingAPIKey:
		var v string
		if err := json.Unmarshal(c.NewValue, &v); err != nil {
			return
		}
		s.mu.Lock()
		cur := s.settings
		if c.Key == KeyTranscriptionAPIKey {
			cur.TranscriptionAPIKey = v
		} else {
			cur.ProcessingAPIKey = v
		}
		if cur == s.settings {
			s.mu.Unlock()
			return
		}
		s.settings = cur
		s.status = computeStatus(s.registry, cur, s.status, s.now())
		s.mu.Unlock()
		s.notifyObservers()
	}
}

func (s *Store) broadcast(ctx context.Context, action string, payload any) {
	if s.bcast == nil {
		return
	}
	if err := s.bcast.Broadcast(ctx, action, payload); err != nil {
		s.log.Debug().Err(err).Str("action", action).Msg("broadcast not delivered")
	}
}

// CacheTranscription stores r under id. Failures to persist are logged.
func (s *Store) CacheTranscription(ctx context.Context, id string, r provider.ProcessedResult) {
	if id == "" {
		return
	}
	if err := s.cache.Put(ctx, id, EntryFromResult(r)); err != nil {
		s.log.Warn().Err(err).Str("id", id).Msg("transcription not cached")
	}
}

// CachedTranscription returns the cached result for id.
func (s *Store) CachedTranscription(id string) (provider.ProcessedResult, bool) {
	e, ok := s.cache.Get(id)
	if !ok {
		return provider.ProcessedResult{}, false
	}
	return e.Result(), true
}

