package gateway

import (
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/taiszocche92-glitch/backend/internal/models"
)

// Handler upgrades HTTP requests to websocket connections carrying the
// session metadata in the query string.
type Handler struct {
	upgrader websocket.Upgrader
	cfg      ConnectionConfig
	sink     Sink

	openConns atomic.Int64
	total     atomic.Int64
}

func NewHandler(cfg ConnectionConfig, sink Sink) *Handler {
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     cfg.CheckOrigin,
		},
		cfg:  cfg,
		sink: sink,
	}
}

// ServeWS handles GET /ws?sessionId=...&userId=...&role=...&stationId=...
// &displayName=... — every field optional; a bare userId yields an
// invitation-only peer.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	meta := metaFromQuery(r)

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := newConnection(ws, meta, h.cfg, h.sink)
	h.openConns.Add(1)
	h.total.Add(1)

	log.Info().
		Str("conn_id", conn.ConnID()).
		Str("user_id", meta.UserID).
		Str("session_id", meta.SessionID).
		Msg("websocket connection established")

	h.sink.Connect(conn, meta)

	go conn.writePump()
	go func() {
		conn.readPump()
		h.openConns.Add(-1)
	}()
}

func metaFromQuery(r *http.Request) models.ConnectMeta {
	q := r.URL.Query()
	return models.ConnectMeta{
		SessionID:   q.Get("sessionId"),
		UserID:      q.Get("userId"),
		Role:        models.Role(q.Get("role")),
		StationID:   q.Get("stationId"),
		DisplayName: q.Get("displayName"),
	}
}

// Stats reports connection counters for the debug endpoint.
func (h *Handler) Stats() map[string]any {
	return map[string]any{
		"open_connections":  h.openConns.Load(),
		"total_connections": h.total.Load(),
	}
}

// RegisterRoutes mounts the websocket endpoint.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.ServeWS)
}
