// File: internal/infra/ws/server.go
package ws

import (
	"net/http"
	"sync"
	"time"

	"multimodel-video/internal/config"
	"multimodel-video/internal/domain/model"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const writeWait = 10 * time.Second

// clientCommand is what a connected client may send upward: room membership
// changes. Everything else flows downstream as envelopes.
type clientCommand struct {
	Action string `json:"action"` // "join" | "leave"
	RoomID string `json:"room_id"`
}

// wsTransport adapts one gorilla connection to the hub's Transport. The
// mutex serializes envelope writes with heartbeat pings; gorilla permits at
// most one concurrent writer.
type wsTransport struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (t *wsTransport) Send(env model.Envelope) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteJSON(env)
}

func (t *wsTransport) ping() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteMessage(websocket.PingMessage, nil)
}

func (t *wsTransport) Close() error { return t.conn.Close() }

// Server upgrades HTTP requests to websocket connections and bridges them to
// the hub: client commands mutate room membership, pongs refresh liveness.
type Server struct {
	hub      *Hub
	upgrader websocket.Upgrader
	cfg      config.WebsocketConfig
	log      *zerolog.Logger
}

func NewServer(hub *Hub, cfg config.WebsocketConfig, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "ws.Server").Logger()
	return &Server{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		cfg: cfg,
		log: &l,
	}
}

func (s *Server) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	transport := &wsTransport{conn: conn}
	connID := s.hub.Connect(transport)
	s.log.Info().Str("conn_id", connID).Str("remote", r.RemoteAddr).Msg("client connected")

	conn.SetPongHandler(func(string) error {
		s.hub.Touch(connID)
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.LivenessTimeout))
		return nil
	})
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.LivenessTimeout))

	go s.pingLoop(transport, connID)
	s.readLoop(conn, connID)
}

// readLoop consumes membership commands until the client goes away, then
// releases the connection.
func (s *Server) readLoop(conn *websocket.Conn, connID string) {
	defer s.hub.Disconnect(connID)
	for {
		var cmd clientCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			s.log.Debug().Err(err).Str("conn_id", connID).Msg("read loop ended")
			return
		}
		s.hub.Touch(connID)
		switch cmd.Action {
		case "join":
			if err := s.hub.Join(connID, cmd.RoomID); err != nil {
				return
			}
		case "leave":
			if err := s.hub.Leave(connID, cmd.RoomID); err != nil {
				return
			}
		default:
			s.log.Debug().Str("conn_id", connID).Str("action", cmd.Action).Msg("ignoring unknown command")
		}
	}
}

func (s *Server) pingLoop(transport *wsTransport, connID string) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	for range ticker.C {
		if err := transport.ping(); err != nil {
			s.hub.Disconnect(connID)
			return
		}
	}
}
