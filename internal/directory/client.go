package directory

import (
	"log/slog"
	"time"

	"github.com/BioHazard786/huddle/internal/protocol"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024 // 64 KB - enough for SDP offers
)

// Client is a wrapper for a single websocket connection (a participant).
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	participant *Participant
	logger      *slog.Logger
}

// NewClient wraps conn as a new participant of hub.
func NewClient(hub *Hub, conn *websocket.Conn, logger *slog.Logger) *Client {
	p := NewParticipant()
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		hub:         hub,
		conn:        conn,
		participant: p,
		logger:      logger.With("participant_id", p.ID, "remote_addr", conn.RemoteAddr().String()),
	}
}

// Participant returns the directory record behind this connection.
func (c *Client) Participant() *Participant {
	return c.participant
}

// Serve registers the participant and starts both pumps.
func (c *Client) Serve() {
	if !c.hub.Register(c.participant) {
		c.conn.Close()
		return
	}
	go c.WritePump()
	go c.ReadPump()
}

// ReadPump pumps messages from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c.participant)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("unexpected close", "error", err)
			}
			return
		}

		// A frame that does not decode is answered with an error, the
		// connection stays up.
		msg, err := protocol.Decode(data)
		c.hub.Dispatch(c.participant, msg, err)
	}
}

// WritePump pumps messages from the hub to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.participant.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The directory closed the queue.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := protocol.Encode(message)
			if err != nil {
				c.logger.Error("failed to encode message", "type", message.Type, "error", err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("write failed", "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
