// Package daemon is the background execution context: it owns the settings
// store and the transcription pipeline, serves them over the control socket
// and relays settings changes to attached page clients.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/leonardotrapani/watranscriber/internal/bus"
	"github.com/leonardotrapani/watranscriber/internal/config"
	"github.com/leonardotrapani/watranscriber/internal/logging"
	"github.com/leonardotrapani/watranscriber/internal/notify"
	"github.com/leonardotrapani/watranscriber/internal/pipeline"
	"github.com/leonardotrapani/watranscriber/internal/provider"
	"github.com/leonardotrapani/watranscriber/internal/registry"
	"github.com/leonardotrapani/watranscriber/internal/settings"
	"github.com/leonardotrapani/watranscriber/internal/storage"
)

type Daemon struct {
	cfg      *config.Config
	manager  *config.Manager
	sockPath string
	log      zerolog.Logger
	validate *validator.Validate

	mu       sync.RWMutex
	notifier notify.Notifier
	lastErr  string

	storage     *storage.Store
	ownsStorage bool
	registry    *provider.Registry
	store       *settings.Store
	pipeline    *pipeline.Pipeline

	hub      *bus.Hub
	bg       *bus.Endpoint
	debounce *bus.Debouncer
}

type Option func(*Daemon)

// WithStorage uses s instead of opening the configured storage directory.
func WithStorage(s *storage.Store) Option {
	return func(d *Daemon) { d.storage = s }
}

func WithRegistry(r *provider.Registry) Option {
	return func(d *Daemon) { d.registry = r }
}

func WithNotifier(n notify.Notifier) Option {
	return func(d *Daemon) { d.notifier = n }
}

// WithConfigManager makes Run watch the config file and apply log and
// notification changes without restart.
func WithConfigManager(m *config.Manager) Option {
	return func(d *Daemon) { d.manager = m }
}

// WithSocketPath overrides the configured control socket.
func WithSocketPath(p string) Option {
	return func(d *Daemon) { d.sockPath = p }
}

func New(cfg *config.Config, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	d := &Daemon{
		cfg:      cfg,
		log:      logging.For("daemon"),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, o := range opts {
		o(d)
	}

	if d.notifier == nil {
		d.notifier = notifierFor(cfg.Notifications)
	}
	if d.registry == nil {
		d.registry = registry.New()
	}
	if d.storage == nil {
		dir, err := cfg.StorageDir()
		if err != nil {
			return nil, err
		}
		st, err := storage.Open(dir)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		d.storage = st
		d.ownsStorage = true
	}

	defaults, err := cfg.SettingsDefaults(d.registry)
	if err != nil {
		d.log.Warn().Err(err).Msg("ignoring config defaults")
	}

	d.hub = bus.NewHub()
	d.bg = d.hub.Endpoint("background")
	d.debounce = bus.NewDebouncer(d.bg, cfg.Bus.Debounce)
	d.store = settings.New(settings.Options{
		Storage:     d.storage,
		Registry:    d.registry,
		Broadcaster: d.debounce,
		Defaults:    defaults,
	})

	var popts []pipeline.Option
	if cfg.HTTP.Timeout > 0 {
		popts = append(popts, pipeline.WithHTTPClient(&http.Client{Timeout: cfg.HTTP.Timeout}))
	}
	d.pipeline = pipeline.New(d.store, popts...)

	d.bg.OnMessage(d.handleMessage)
	d.store.Observe(d.onChange)
	return d, nil
}

func notifierFor(c config.NotificationsConfig) notify.Notifier {
	if !c.Enabled {
		return notify.Nop{}
	}
	return notify.New(c.Type)
}

// Store exposes the settings store, mainly for tests and embedding.
func (d *Daemon) Store() *settings.Store { return d.store }

func (d *Daemon) Hub() *bus.Hub { return d.hub }

// Run serves the control socket until ctx is cancelled or a termination
// signal arrives. Only one daemon may run per user.
func (d *Daemon) Run(ctx context.Context) error {
	if err := bus.CheckExistingDaemon(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := d.store.Initialize(ctx); err != nil {
		d.log.Error().Err(err).Msg("settings initialization failed, running on defaults")
	}

	sockPath := d.sockPath
	if sockPath == "" {
		p, err := d.cfg.SocketPath()
		if err != nil {
			return err
		}
		sockPath = p
	}
	ln, err := bus.Listen(sockPath)
	if err != nil {
		return err
	}
	defer os.Remove(sockPath)

	if err := bus.CreatePidFile(); err != nil {
		ln.Close()
		return fmt.Errorf("failed to create PID file: %w", err)
	}
	defer bus.RemovePidFile()

	if d.manager != nil {
		d.manager.OnReload(d.applyConfig)
		if err := d.manager.StartWatching(ctx); err != nil {
			d.log.Warn().Err(err).Msg("config hot reload disabled")
		} else {
			defer d.manager.Stop()
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			d.log.Info().Str("signal", sig.String()).Msg("shutting down gracefully")
			cancel()
		case <-ctx.Done():
		}
	}()

	srv := &http.Server{
		Handler:     d.Router(),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	d.log.Info().Str("socket", sockPath).Msg("daemon started")

	select {
	case err := <-errCh:
		d.close()
		return fmt.Errorf("serve failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		d.log.Warn().Err(err).Msg("shutdown incomplete")
	}
	d.close()
	d.log.Info().Msg("daemon stopped")
	return nil
}

func (d *Daemon) close() {
	d.debounce.Stop()
	if d.ownsStorage {
		if err := d.storage.Close(); err != nil {
			d.log.Warn().Err(err).Msg("closing storage")
		}
	}
}

// onChange surfaces a new last error through the notifier.
func (d *Daemon) onChange(_ settings.Settings, st settings.Status) {
	d.mu.Lock()
	fresh := st.LastError != "" && st.LastError != d.lastErr
	d.lastErr = st.LastError
	n := d.notifier
	d.mu.Unlock()

	if fresh {
		n.Error(st.LastError)
	}
}

func (d *Daemon) applyConfig(c *config.Config) {
	logging.Setup(c.Log.Level, c.Log.Format, nil)

	d.mu.Lock()
	d.notifier = notifierFor(c.Notifications)
	d.mu.Unlock()

	d.log.Info().Str("level", c.Log.Level).Msg("config applied")
}
