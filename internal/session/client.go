package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/BioHazard786/huddle/internal/callerr"
	"github.com/BioHazard786/huddle/internal/dns"
	"github.com/BioHazard786/huddle/internal/protocol"
	"github.com/gorilla/websocket"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMessageSize   = 64 * 1024
	handshakeTimeout = 10 * time.Second
)

// Defaults applied by NewClient to zero Options fields.
const (
	DefaultBaseDelay   = 1 * time.Second
	DefaultMaxAttempts = 5
	DefaultStableAfter = 10 * time.Second
	DefaultSendBuffer  = 32
)

// Options configures a Client.
type Options struct {
	URL string

	// BaseDelay is the wait before the first retry; each further attempt
	// doubles it.
	BaseDelay   time.Duration
	MaxAttempts int
	// StableAfter is how long a connection must stay up before the retry
	// counter resets.
	StableAfter time.Duration
	SendBuffer  int

	// Dialer defaults to a gorilla dialer resolving hosts through the
	// fallback resolver.
	Dialer *websocket.Dialer
	Logger *slog.Logger
}

// Client keeps one WebSocket connection to the relay alive and reconnects
// with exponential backoff when it drops.
type Client struct {
	opts   Options
	dialer *websocket.Dialer
	logger *slog.Logger
	events *dispatcher

	mu            sync.Mutex
	state         State
	conn          *transport
	generation    uint64
	attempts      int
	retry         *time.Timer
	participantID string
	err           error
}

// transport is one live connection. Its generation tells callbacks from a
// replaced transport apart from the current one.
type transport struct {
	conn       *websocket.Conn
	send       chan *protocol.Message
	done       chan struct{}
	generation uint64
	openedAt   time.Time
	stopOnce   sync.Once
}

func (t *transport) stop() {
	t.stopOnce.Do(func() { close(t.done) })
}

// NewClient creates a disconnected client.
func NewClient(opts Options) *Client {
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.StableAfter <= 0 {
		opts.StableAfter = DefaultStableAfter
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultSendBuffer
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dialer := opts.Dialer
	if dialer == nil {
		resolver := &dns.Resolver{}
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			NetDialContext:   resolver.DialContext,
			HandshakeTimeout: handshakeTimeout,
		}
	}

	return &Client{
		opts:   opts,
		dialer: dialer,
		logger: logger.With("component", "session"),
		events: newDispatcher(),
		state:  StateDisconnected,
	}
}

// Subscribe registers fn for every future event. Call the returned function
// to stop receiving them.
func (c *Client) Subscribe(fn func(Event)) (unsubscribe func()) {
	return c.events.subscribe(fn)
}

// Connect dials the relay. It is a no-op while connected and fails with
// ErrConnectInFlight while a dial or retry is pending. A failed dial is
// returned as is; retries only follow a connection that was established.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateConnected:
		c.mu.Unlock()
		return nil
	case StateConnecting, StateReconnecting:
		c.mu.Unlock()
		return callerr.ErrConnectInFlight
	case StateClosed:
		c.mu.Unlock()
		return callerr.ErrClosed
	}
	c.generation++
	gen := c.generation
	c.attempts = 0
	c.err = nil
	c.setState(StateConnecting, nil)
	c.mu.Unlock()

	conn, err := c.dial(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		if conn != nil {
			conn.Close()
		}
		return callerr.ErrClosed
	}
	if err != nil {
		err = callerr.WrapError("connect", callerr.ErrTransport, err.Error())
		c.err = err
		c.setState(StateDisconnected, err)
		return err
	}
	c.attach(conn)
	return nil
}

// Disconnect closes the connection for good and cancels any pending retry.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.generation++
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	if c.conn != nil {
		c.conn.stop()
		c.conn = nil
	}
	c.setState(StateClosed, nil)
	c.mu.Unlock()

	c.events.close()
	c.logger.Info("session closed")
}

// JoinRoom asks the relay to move this participant into roomID.
func (c *Client) JoinRoom(roomID, nickname string) bool {
	return c.send(protocol.JoinRoom(roomID, nickname))
}

// LeaveRoom asks the relay to take this participant out of its room.
func (c *Client) LeaveRoom() bool {
	return c.send(protocol.LeaveRoom())
}

// SendSignal relays payload to participant to. Each envelope is stamped
// with a fresh call id.
func (c *Client) SendSignal(to string, payload json.RawMessage) bool {
	return c.send(protocol.OutboundSignal(to, protocol.NewCallID(), payload))
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ParticipantID returns the id the relay assigned on the current
// connection, or "" before it arrives.
func (c *Client) ParticipantID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.participantID
}

// Err returns the error that left the client Disconnected, if any.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Client) send(msg *protocol.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateConnected || c.conn == nil {
		c.logger.Warn("not connected, dropping message", "type", msg.Type, "state", c.state)
		return false
	}
	select {
	case c.conn.send <- msg:
		return true
	default:
		c.logger.Warn("send queue full, dropping message", "type", msg.Type)
		return false
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.opts.URL, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// setState must be called with c.mu held.
func (c *Client) setState(s State, err error) {
	if c.state == s && err == nil {
		return
	}
	c.state = s
	c.logger.Debug("session state changed", "state", s, "error", err)
	c.events.emit(Event{Kind: EventState, State: s, Err: err})
}

// attach makes conn the live transport. Must be called with c.mu held.
func (c *Client) attach(conn *websocket.Conn) {
	t := &transport{
		conn:       conn,
		send:       make(chan *protocol.Message, c.opts.SendBuffer),
		done:       make(chan struct{}),
		generation: c.generation,
		openedAt:   time.Now(),
	}
	c.conn = t
	c.participantID = ""
	c.setState(StateConnected, nil)
	c.logger.Info("connected to relay", "url", c.opts.URL)

	go c.writePump(t)
	go c.readPump(t)
}

// dropped handles the loss of transport t.
func (c *Client) dropped(t *transport, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t.generation != c.generation || c.conn != t {
		return
	}
	c.conn = nil
	t.stop()

	if time.Since(t.openedAt) >= c.opts.StableAfter {
		c.attempts = 0
	}
	c.logger.Warn("connection lost", "error", cause)
	c.scheduleRetry(cause)
}

// scheduleRetry arms the backoff timer or gives up. Must be called with
// c.mu held.
func (c *Client) scheduleRetry(cause error) {
	if c.attempts >= c.opts.MaxAttempts {
		c.err = callerr.WrapError("reconnect", callerr.ErrReconnectExhausted, cause.Error())
		c.setState(StateDisconnected, c.err)
		c.logger.Error("giving up on relay", "attempts", c.attempts)
		return
	}

	c.attempts++
	delay := backoff(c.opts.BaseDelay, c.attempts)
	gen := c.generation
	c.setState(StateReconnecting, cause)
	c.logger.Info("reconnecting", "attempt", c.attempts, "delay", delay)
	c.retry = time.AfterFunc(delay, func() { c.retryDial(gen) })
}

// backoff is the wait before retry attempt n (1-based): base * 2^(n-1).
func backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base << (attempt - 1)
}

func (c *Client) retryDial(gen uint64) {
	c.mu.Lock()
	if gen != c.generation || c.state != StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.retry = nil
	c.setState(StateConnecting, nil)
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
	conn, err := c.dial(ctx)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		c.logger.Warn("reconnect attempt failed", "attempt", c.attempts, "error", err)
		c.scheduleRetry(err)
		return
	}
	c.attach(conn)
}

// readPump reads messages from the WebSocket connection.
func (c *Client) readPump(t *transport) {
	defer func() {
		t.conn.Close()
	}()

	t.conn.SetReadLimit(maxMessageSize)
	t.conn.SetReadDeadline(time.Now().Add(pongWait))
	t.conn.SetPongHandler(func(string) error {
		t.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			c.dropped(t, err)
			return
		}
		t.conn.SetReadDeadline(time.Now().Add(pongWait))

		msg, err := protocol.Decode(data)
		if err != nil {
			c.logger.Warn("ignoring malformed server message", "error", err)
			continue
		}
		c.received(t, msg)
	}
}

func (c *Client) received(t *transport, msg *protocol.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t.generation != c.generation {
		return
	}
	if msg.Type == protocol.TypeConnected {
		c.participantID = msg.ParticipantID
	}
	c.events.emit(Event{Kind: EventMessage, State: c.state, Message: msg})
}

// writePump writes messages to the WebSocket connection and sends periodic pings.
func (c *Client) writePump(t *transport) {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		t.conn.Close()
	}()

	for {
		select {
		case msg := <-t.send:
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			data, err := protocol.Encode(msg)
			if err != nil {
				c.logger.Error("failed to encode message", "type", msg.Type, "error", err)
				continue
			}
			if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.dropped(t, err)
				return
			}

		case <-ticker.C:
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.dropped(t, err)
				return
			}

		case <-t.done:
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			t.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
