package bus

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/leonardotrapani/watranscriber/internal/logging"
)

// DefaultDebounce is the window in which repeated broadcasts collapse into one.
const DefaultDebounce = 500 * time.Millisecond

// Debouncer coalesces broadcasts per action: the first call for an action
// opens a window, later calls within it replace the payload, and one message
// carrying the last payload is published when the window closes.
type Debouncer struct {
	target Messenger
	window time.Duration
	log    zerolog.Logger

	mu      sync.Mutex
	pending map[string]*pendingBroadcast
	stopped bool
	wg      sync.WaitGroup
}

type pendingBroadcast struct {
	payload any
	timer   *time.Timer
}

func NewDebouncer(target Messenger, window time.Duration) *Debouncer {
	if window <= 0 {
		window = DefaultDebounce
	}
	return &Debouncer{
		target:  target,
		window:  window,
		log:     logging.For("bus"),
		pending: make(map[string]*pendingBroadcast),
	}
}

// Broadcast schedules a publish of action. It never blocks on delivery and
// only fails once the debouncer is stopped.
func (d *Debouncer) Broadcast(_ context.Context, action string, payload any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return ErrClosed
	}
	if p, ok := d.pending[action]; ok {
		p.payload = payload
		return nil
	}
	p := &pendingBroadcast{payload: payload}
	d.pending[action] = p
	d.wg.Add(1)
	p.timer = time.AfterFunc(d.window, func() {
		defer d.wg.Done()
		d.flush(action)
	})
	return nil
}

func (d *Debouncer) flush(action string) {
	d.mu.Lock()
	p, ok := d.pending[action]
	delete(d.pending, action)
	d.mu.Unlock()
	if !ok {
		return
	}

	m, err := NewMessage(action, p.payload)
	if err != nil {
		d.log.Warn().Err(err).Str("action", action).Msg("broadcast dropped")
		return
	}
	if err := d.target.Publish(context.Background(), m); err != nil {
		d.log.Debug().Err(err).Str("action", action).Msg("broadcast not delivered")
	}
}

// Stop flushes nothing further and waits for in-flight publishes.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	for action, p := range d.pending {
		if p.timer.Stop() {
			d.wg.Done()
		}
		delete(d.pending, action)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
