// Package gateway is the websocket transport: it upgrades HTTP requests,
// runs the per-socket read/write pumps and feeds frames into the protocol
// engine.
package gateway

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/taiszocche92-glitch/backend/internal/models"
)

// Sink consumes connection lifecycle and inbound frames; the protocol
// engine is the production implementation.
type Sink interface {
	Connect(conn models.Conn, meta models.ConnectMeta)
	HandleEvent(conn models.Conn, meta models.ConnectMeta, ev models.Event)
	Disconnect(conn models.Conn, meta models.ConnectMeta)
}

// ConnectionConfig holds websocket tuning knobs.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns the production defaults.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  64 * 1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// Connection is one live websocket. It implements models.Conn.
type Connection struct {
	id   string
	meta models.ConnectMeta
	ws   *websocket.Conn
	send chan []byte
	cfg  ConnectionConfig
	sink Sink

	connectedAt time.Time

	closeMu     sync.Mutex
	closed      bool
	closeReason string
}

func newConnection(ws *websocket.Conn, meta models.ConnectMeta, cfg ConnectionConfig, sink Sink) *Connection {
	return &Connection{
		id:          uuid.NewString(),
		meta:        meta,
		ws:          ws,
		send:        make(chan []byte, cfg.SendBufferSize),
		cfg:         cfg,
		sink:        sink,
		connectedAt: time.Now(),
	}
}

func (c *Connection) ConnID() string { return c.id }

// Send queues an event for the write pump. A full buffer means the client
// is too slow to keep up and the connection is closed rather than letting
// it backpressure the room.
func (c *Connection) Send(ev models.Event) bool {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(ev.Type)).Msg("failed to marshal outbound event")
		return false
	}

	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return false
	}
	select {
	case c.send <- data:
		c.closeMu.Unlock()
		return true
	default:
		c.closeMu.Unlock()
		log.Warn().
			Str("conn_id", c.id).
			Str("user_id", c.meta.UserID).
			Msg("send buffer full, closing slow connection")
		c.Close("send buffer overflow")
		return false
	}
}

// Close marks the connection closed and closes the send channel. The write
// pump drains whatever is still buffered (a final SERVER_ERROR, say) before
// emitting the close frame, so late events are not lost to the teardown.
func (c *Connection) Close(reason string) {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return
	}
	c.closed = true
	c.closeReason = reason
	close(c.send)
	c.closeMu.Unlock()
}

// writePump drains the send buffer onto the socket and keeps the
// connection alive with pings. It owns the socket teardown: when the send
// channel closes it writes the close frame and closes the socket.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close("write pump finished")

		c.closeMu.Lock()
		reason := c.closeReason
		c.closeMu.Unlock()

		deadline := time.Now().Add(c.cfg.WriteTimeout)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, deadline)
		_ = c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().Err(err).Str("conn_id", c.id).Msg("write failed")
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("conn_id", c.id).Msg("ping failed")
				return
			}
		}
	}
}

// readPump parses inbound frames and forwards them to the sink. Leaving
// the loop for any reason tears the connection down and notifies the sink.
func (c *Connection) readPump() {
	defer func() {
		c.sink.Disconnect(c, c.meta)
		c.Close("read pump finished")
	}()

	c.ws.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("conn_id", c.id).Msg("unexpected websocket close")
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))

		var ev models.Event
		if err := json.Unmarshal(message, &ev); err != nil || ev.Type == "" {
			log.Warn().Str("conn_id", c.id).Msg("dropping malformed frame")
			continue
		}
		c.sink.HandleEvent(c, c.meta, ev)
	}
}
