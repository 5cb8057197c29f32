// File: internal/infra/ws/hub.go
package ws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"multimodel-video/internal/domain"
	"multimodel-video/internal/domain/model"
	"multimodel-video/internal/domain/ports/broadcast"
	"multimodel-video/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var _ broadcast.Publisher = (*Hub)(nil)

// Transport is one bidirectional client link. The hub does not mandate a wire
// protocol: anything that can deliver envelopes in order and close works.
type Transport interface {
	Send(env model.Envelope) error
	Close() error
}

// Connection is one registered client with its bounded outbound queue and the
// set of rooms it currently belongs to.
type Connection struct {
	ID       string
	out      chan model.Envelope
	rooms    map[string]struct{}
	lastSeen time.Time
}

// Registry owns the connection and room tables. It is plain mutable state
// passed to the Hub at construction, so independent hubs can coexist in tests.
type Registry struct {
	mu    sync.Mutex
	conns map[string]*Connection
	rooms map[string]map[string]struct{} // room id -> member connection ids
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*Connection),
		rooms: make(map[string]map[string]struct{}),
	}
}

// Hub groups connections into rooms and fans events out to room members.
// Delivery is best-effort and at-most-once: a connection whose outbound queue
// is full is dropped rather than stalling the publisher.
type Hub struct {
	reg        *Registry
	sendBuffer int
	log        *zerolog.Logger
}

func NewHub(reg *Registry, sendBuffer int, logger *zerolog.Logger) *Hub {
	l := logger.With().Str("component", "ws.Hub").Logger()
	if sendBuffer <= 0 {
		sendBuffer = 32
	}
	return &Hub{reg: reg, sendBuffer: sendBuffer, log: &l}
}

// Connect registers a new connection with empty room membership and starts a
// writer goroutine pumping the outbound queue into the transport. The pump
// exits when the connection is removed from the registry (its queue closes)
// or the transport fails.
func (h *Hub) Connect(transport Transport) string {
	c := &Connection{
		ID:       uuid.NewString(),
		out:      make(chan model.Envelope, h.sendBuffer),
		rooms:    make(map[string]struct{}),
		lastSeen: time.Now(),
	}
	h.reg.mu.Lock()
	h.reg.conns[c.ID] = c
	n := len(h.reg.conns)
	h.reg.mu.Unlock()
	metrics.SetWSConnections(n)

	go h.writePump(c, transport)
	h.log.Debug().Str("conn_id", c.ID).Msg("connection registered")
	return c.ID
}

func (h *Hub) writePump(c *Connection, transport Transport) {
	defer transport.Close()
	for env := range c.out {
		if err := transport.Send(env); err != nil {
			h.log.Debug().Err(err).Str("conn_id", c.ID).Msg("transport write failed")
			h.Disconnect(c.ID)
			return
		}
	}
}

// Join adds the connection to a room, creating the room implicitly.
// Idempotent: joining twice has the same effect as joining once.
func (h *Hub) Join(connID, roomID string) error {
	h.reg.mu.Lock()
	defer h.reg.mu.Unlock()
	c, ok := h.reg.conns[connID]
	if !ok {
		return errNoConn(connID)
	}
	c.rooms[roomID] = struct{}{}
	members, ok := h.reg.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		h.reg.rooms[roomID] = members
	}
	members[connID] = struct{}{}
	return nil
}

// Leave removes the connection from a room without disconnecting it.
// Idempotent; rooms are garbage-collected at zero membership.
func (h *Hub) Leave(connID, roomID string) error {
	h.reg.mu.Lock()
	defer h.reg.mu.Unlock()
	c, ok := h.reg.conns[connID]
	if !ok {
		return errNoConn(connID)
	}
	delete(c.rooms, roomID)
	h.removeMemberLocked(roomID, connID)
	return nil
}

// Disconnect removes the connection from all rooms and releases its
// resources. Safe to call more than once.
func (h *Hub) Disconnect(connID string) {
	h.reg.mu.Lock()
	c, ok := h.reg.conns[connID]
	if ok {
		for roomID := range c.rooms {
			h.removeMemberLocked(roomID, connID)
		}
		delete(h.reg.conns, connID)
		close(c.out)
	}
	n := len(h.reg.conns)
	h.reg.mu.Unlock()
	if ok {
		metrics.SetWSConnections(n)
		h.log.Debug().Str("conn_id", connID).Msg("connection released")
	}
}

// Publish delivers the envelope to every connection currently in its room.
// Events from one source reach each subscriber in publish order; a slow
// connection never blocks the rest of the room — on queue overflow the
// connection is treated as disconnected.
func (h *Hub) Publish(ctx context.Context, env model.Envelope) {
	h.reg.mu.Lock()
	var overflowed []string
	for connID := range h.reg.rooms[env.RoomID] {
		c := h.reg.conns[connID]
		if c == nil {
			continue
		}
		select {
		case c.out <- env:
		default:
			overflowed = append(overflowed, connID)
		}
	}
	h.reg.mu.Unlock()

	metrics.IncWSEvent(string(env.EventType))
	for _, connID := range overflowed {
		metrics.IncWSDropped()
		h.log.Warn().Str("conn_id", connID).Str("room", env.RoomID).Msg("outbound queue overflow, dropping connection")
		h.Disconnect(connID)
	}
}

// CloseRoom evicts all members from the room and releases it.
func (h *Hub) CloseRoom(roomID string) {
	h.reg.mu.Lock()
	for connID := range h.reg.rooms[roomID] {
		if c := h.reg.conns[connID]; c != nil {
			delete(c.rooms, roomID)
		}
	}
	delete(h.reg.rooms, roomID)
	h.reg.mu.Unlock()
}

func (h *Hub) RoomSize(roomID string) int {
	h.reg.mu.Lock()
	defer h.reg.mu.Unlock()
	return len(h.reg.rooms[roomID])
}

// Touch refreshes the liveness timestamp, typically from a heartbeat.
func (h *Hub) Touch(connID string) {
	h.reg.mu.Lock()
	defer h.reg.mu.Unlock()
	if c, ok := h.reg.conns[connID]; ok {
		c.lastSeen = time.Now()
	}
}

// PruneStale disconnects every connection whose last heartbeat is older than
// maxAge and returns how many were removed.
func (h *Hub) PruneStale(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	h.reg.mu.Lock()
	var stale []string
	for id, c := range h.reg.conns {
		if c.lastSeen.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	h.reg.mu.Unlock()

	for _, id := range stale {
		metrics.IncWSPruned()
		h.Disconnect(id)
	}
	return len(stale)
}

// removeMemberLocked drops a member from a room and garbage-collects the
// room when it empties. Caller must hold reg.mu.
func (h *Hub) removeMemberLocked(roomID, connID string) {
	members, ok := h.reg.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.reg.rooms, roomID)
	}
}

func errNoConn(connID string) error {
	return fmt.Errorf("connection %s: %w", connID, domain.ErrNotFound)
}
