package wamp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Wyydra/interbot/internal/core/port"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	defaultCallTimeout = 30 * time.Second
	defaultReadLimit   = 1 << 20
	pingInterval       = 40 * time.Second
	pongWait           = 60 * time.Second
	writeTimeout       = 10 * time.Second
	flushTimeout       = 5 * time.Second
	sendBuffer         = 64
)

var (
	ErrClosed      = errors.New("wamp connection closed")
	ErrCallTimeout = errors.New("wamp call timed out")
)

type Options struct {
	// Prefixes are registered with the server right after the welcome and
	// used to expand CURIE topics.
	Prefixes    map[string]string
	CallTimeout time.Duration
	Header      http.Header
	Dialer      *websocket.Dialer
}

type pendingCall struct {
	reply   port.ReplyFunc
	timer   *time.Timer
	stopCtx func() bool
}

// Client implements port.Channel over a WAMP v1 websocket.
type Client struct {
	conn        *websocket.Conn
	send        chan []byte
	ctx         context.Context
	cancel      context.CancelFunc
	callTimeout time.Duration
	prefixes    prefixes
	session     string

	mu       sync.Mutex
	pending  map[string]*pendingCall
	handlers map[string]port.EventHandler
	topics   map[string]string // expanded uri -> topic as subscribed

	closeOnce sync.Once
	done      chan struct{}
	flushed   chan struct{}
}

// Dial connects to url and waits for the server's welcome.
func Dial(ctx context.Context, url string, opts Options) (*Client, error) {
	dialer := opts.Dialer
	if dialer == nil {
		d := *websocket.DefaultDialer
		d.Subprotocols = []string{"wamp"}
		dialer = &d
	}
	conn, _, err := dialer.DialContext(ctx, url, opts.Header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	conn.SetReadLimit(defaultReadLimit)
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read welcome: %w", err)
	}
	msg, err := parseMessage(data)
	if err == nil {
		var w welcome
		w, err = msg.welcome()
		if err == nil {
			return newClient(conn, w, opts)
		}
	}
	conn.Close()
	return nil, err
}

func newClient(conn *websocket.Conn, w welcome, opts Options) (*Client, error) {
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		ctx:         ctx,
		cancel:      cancel,
		callTimeout: timeout,
		prefixes:    prefixes(opts.Prefixes),
		session:     w.SessionID,
		pending:     make(map[string]*pendingCall),
		handlers:    make(map[string]port.EventHandler),
		topics:      make(map[string]string),
		done:        make(chan struct{}),
		flushed:     make(chan struct{}),
	}
	log.Info().Str("wamp_session", w.SessionID).Str("server", w.Server).Int("version", w.Version).Msg("WAMP session established")

	go c.readPump()
	go c.writePump()

	for name, uri := range opts.Prefixes {
		if err := c.write(msgPrefix, name, uri); err != nil {
			c.Close()
			return nil, err
		}
	}
	return c, nil
}

// Session is the id the server assigned in its welcome.
func (c *Client) Session() string { return c.session }

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) Call(ctx context.Context, method string, args []any, reply port.ReplyFunc) {
	id := uuid.NewString()
	p := &pendingCall{reply: reply}

	// Registered under the lock so finish never sees a half built call.
	c.mu.Lock()
	c.pending[id] = p
	p.timer = time.AfterFunc(c.callTimeout, func() {
		c.finish(id, nil, fmt.Errorf("%w: %s", ErrCallTimeout, method))
	})
	p.stopCtx = context.AfterFunc(ctx, func() {
		c.finish(id, nil, ctx.Err())
	})
	c.mu.Unlock()

	msg := append([]any{msgCall, id, method}, args...)
	if err := c.writeMessage(msg); err != nil {
		c.finish(id, nil, err)
	}
}

// finish answers a pending call exactly once.
func (c *Client) finish(id string, result json.RawMessage, err error) {
	c.mu.Lock()
	p, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()
	if !ok {
		return
	}
	p.timer.Stop()
	p.stopCtx()
	if p.reply != nil {
		p.reply(result, err)
	}
}

func (c *Client) Publish(topic string, payload any) error {
	return c.write(msgPublish, c.prefixes.expand(topic), payload)
}

func (c *Client) Subscribe(topic string, handler port.EventHandler) error {
	uri := c.prefixes.expand(topic)
	c.mu.Lock()
	c.handlers[topic] = handler
	c.topics[uri] = topic
	c.mu.Unlock()
	return c.write(msgSubscribe, uri)
}

func (c *Client) Unsubscribe(topic string) error {
	uri := c.prefixes.expand(topic)
	c.mu.Lock()
	delete(c.handlers, topic)
	delete(c.topics, uri)
	c.mu.Unlock()
	return c.write(msgUnsubscribe, uri)
}

// Close stops the client and waits until the messages queued before it were
// written to the server.
func (c *Client) Close() error {
	c.shutdown()
	select {
	case <-c.flushed:
	case <-time.After(flushTimeout):
		return errors.New("wamp: close timed out flushing queued messages")
	}
	return nil
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.done)

		c.mu.Lock()
		ids := make([]string, 0, len(c.pending))
		for id := range c.pending {
			ids = append(ids, id)
		}
		c.mu.Unlock()
		for _, id := range ids {
			c.finish(id, nil, ErrClosed)
		}
	})
}

func (c *Client) write(typ int, fields ...any) error {
	return c.writeMessage(append([]any{typ}, fields...))
}

func (c *Client) writeMessage(msg []any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

func (c *Client) readPump() {
	defer func() {
		c.shutdown()
		c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && c.ctx.Err() == nil {
				log.Error().Err(err).Msg("WAMP read failed")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		msg, err := parseMessage(data)
		if err != nil {
			log.Warn().Err(err).Msg("Dropping WAMP message")
			continue
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg message) {
	switch msg.typ {
	case msgCallResult:
		id, err := msg.str(0)
		if err != nil {
			log.Warn().Err(err).Msg("Bad call result")
			return
		}
		c.finish(id, msg.raw(1), nil)

	case msgCallError:
		id, callErr, err := msg.callError()
		if err != nil {
			log.Warn().Err(err).Msg("Bad call error")
			return
		}
		c.finish(id, nil, callErr)

	case msgEvent:
		uri, err := msg.str(0)
		if err != nil {
			log.Warn().Err(err).Msg("Bad event")
			return
		}
		c.mu.Lock()
		topic, ok := c.topics[uri]
		if !ok {
			topic = uri
		}
		h := c.handlers[topic]
		c.mu.Unlock()
		if h == nil {
			log.Debug().Str("topic", uri).Msg("Event without subscriber")
			return
		}
		h(topic, msg.raw(1))

	default:
		log.Debug().Int("type", msg.typ).Msg("Ignoring WAMP message")
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		close(c.flushed)
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.flush()
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Msg("WAMP write failed")
				c.shutdown()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown()
				return
			}
		}
	}
}

// flush writes the messages queued before the client closed, so exit
// notifications sent during shutdown still reach the server.
func (c *Client) flush() {
	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		default:
			return
		}
	}
}
