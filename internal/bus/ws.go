package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/leonardotrapani/watranscriber/internal/logging"
)

var ErrClosed = errors.New("bus connection closed")

// peer is one end of a websocket carrying Messages. It matches replies to
// outstanding requests.
type peer struct {
	ws  *websocket.Conn
	log zerolog.Logger

	wmu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan Message
	done    chan struct{}
	once    sync.Once
}

func newPeer(ws *websocket.Conn, log zerolog.Logger) *peer {
	return &peer{
		ws:      ws,
		log:     log,
		pending: make(map[string]chan Message),
		done:    make(chan struct{}),
	}
}

func (p *peer) write(m Message) error {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	return p.ws.WriteJSON(m)
}

// request writes m and waits for its reply.
func (p *peer) request(ctx context.Context, m Message) (Message, error) {
	ch := make(chan Message, 1)
	p.mu.Lock()
	p.pending[m.ID] = ch
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.pending, m.ID)
		p.mu.Unlock()
	}()

	if err := p.write(m); err != nil {
		return Message{}, fmt.Errorf("write %s: %w", m.Action, err)
	}
	select {
	case r := <-ch:
		return r, nil
	case <-p.done:
		return Message{}, ErrClosed
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// readLoop dispatches replies to waiting requests and everything else to
// onMessage, each on its own goroutine. It returns when the socket closes.
func (p *peer) readLoop(onMessage func(Message)) {
	defer p.close()
	for {
		var m Message
		if err := p.ws.ReadJSON(&m); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				p.log.Debug().Err(err).Msg("bus connection ended")
			}
			return
		}
		if m.Kind == KindReply {
			p.mu.Lock()
			ch, ok := p.pending[m.ReplyTo]
			p.mu.Unlock()
			if ok {
				select {
				case ch <- m:
				default:
				}
			}
			continue
		}
		go onMessage(m)
	}
}

func (p *peer) close() {
	p.once.Do(func() {
		close(p.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = p.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		p.ws.Close()
	})
}

// remote is a websocket client seen from the hub.
type remote struct {
	*peer
}

func (r *remote) receive(ctx context.Context, m Message) (json.RawMessage, bool, error) {
	resp, err := r.request(ctx, m)
	if err != nil {
		return nil, false, err
	}
	if err := replyErr(resp); err != nil {
		if errors.Is(err, ErrNoReceiver) {
			return nil, false, nil
		}
		return nil, true, err
	}
	return resp.Payload, true, nil
}

func (r *remote) deliver(_ context.Context, m Message) {
	if err := r.write(m); err != nil {
		r.log.Debug().Err(err).Str("action", m.Action).Msg("publish to client failed")
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// only reachable through the user's own unix socket
	CheckOrigin: func(*http.Request) bool { return true },
}

// Handler upgrades the request to a websocket and attaches the client to the
// hub until it disconnects.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		rm := &remote{peer: newPeer(ws, h.log)}
		h.add(rm)
		h.log.Info().Int("receivers", h.Receivers()).Msg("client attached")

		ctx := r.Context()
		rm.readLoop(func(m Message) {
			switch m.Kind {
			case KindPublish:
				if err := h.publish(ctx, rm, m); err != nil && !errors.Is(err, ErrNoReceiver) {
					h.log.Warn().Err(err).Str("action", m.Action).Msg("publish failed")
				}
			default:
				resp, err := h.send(ctx, rm, m)
				rep := reply(m, nil, err)
				if err == nil {
					rep.Payload = resp
				}
				if werr := rm.write(rep); werr != nil {
					h.log.Debug().Err(werr).Msg("reply not delivered")
				}
			}
		})
		h.remove(rm)
		h.log.Info().Int("receivers", h.Receivers()).Msg("client detached")
	})
}

// Client is a context attached to a remote hub over a websocket.
type Client struct {
	*peer

	mu       sync.RWMutex
	handlers []Handler
	wg       sync.WaitGroup
}

// Dial connects to the bus of the daemon listening on the unix socket at
// sockPath (SockPath when empty).
func Dial(ctx context.Context, sockPath string) (*Client, error) {
	d := websocket.Dialer{NetDialContext: dialSocket(sockPath)}
	return dial(ctx, d, "ws://"+socketHost+"/bus")
}

// DialURL connects to a bus served over TCP, as in tests.
func DialURL(ctx context.Context, url string) (*Client, error) {
	return dial(ctx, *websocket.DefaultDialer, url)
}

func dial(ctx context.Context, d websocket.Dialer, url string) (*Client, error) {
	ws, _, err := d.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to bus: %w", err)
	}
	c := &Client{peer: newPeer(ws, logging.For("bus-client"))}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.readLoop(c.handle)
	}()
	return c, nil
}

func (c *Client) OnMessage(fn Handler) {
	c.mu.Lock()
	c.handlers = append(c.handlers, fn)
	c.mu.Unlock()
}

func (c *Client) handle(m Message) {
	c.mu.RLock()
	handlers := append([]Handler(nil), c.handlers...)
	c.mu.RUnlock()

	ctx := context.Background()
	resp, handled, err := runHandlers(ctx, handlers, m)
	if m.Kind == KindPublish {
		if err != nil {
			c.log.Warn().Err(err).Str("action", m.Action).Msg("handler failed")
		}
		return
	}
	if !handled {
		err = ErrNoReceiver
	}
	if werr := c.write(reply(m, resp, err)); werr != nil {
		c.log.Debug().Err(werr).Msg("reply not delivered")
	}
}

func (c *Client) Send(ctx context.Context, m Message) (json.RawMessage, error) {
	m.Kind = KindSend
	r, err := c.request(ctx, m)
	if err != nil {
		return nil, err
	}
	if err := replyErr(r); err != nil {
		return nil, err
	}
	return r.Payload, nil
}

func (c *Client) Publish(_ context.Context, m Message) error {
	m.Kind = KindPublish
	return c.write(m)
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close disconnects and waits for the read loop to stop.
func (c *Client) Close() error {
	c.close()
	c.wg.Wait()
	return nil
}
