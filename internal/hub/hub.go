// Package hub fans events out to connections. It holds no business logic:
// four routing primitives over the presence store's membership view.
package hub

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/okulov/Relay/internal/domain"
	"github.com/okulov/Relay/internal/presence"
)

// Sender is one attached connection's outbound queue. TrySend must not
// block: a slow consumer gets the event dropped, not the hub stalled.
type Sender interface {
	TrySend(data []byte) error
}

// Hub routes events to attached connections. Room recipients are derived
// from the presence store at delivery time, so a connection that left a room
// can never receive that room's events after its Deactivate committed, and a
// connection that just joined is included in the very next broadcast.
type Hub struct {
	presence *presence.Store

	mu    sync.RWMutex
	conns map[domain.ConnID]Sender
}

func New(store *presence.Store) *Hub {
	return &Hub{
		presence: store,
		conns:    make(map[domain.ConnID]Sender),
	}
}

// Attach registers a connection's outbound queue.
func (h *Hub) Attach(id domain.ConnID, s Sender) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[id] = s
}

// Detach forgets a connection. Safe to call more than once.
func (h *Hub) Detach(id domain.ConnID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, id)
}

// ToConn delivers an event to a single connection.
func (h *Hub) ToConn(id domain.ConnID, v any) {
	data, ok := encode(v)
	if !ok {
		return
	}
	h.mu.RLock()
	s, found := h.conns[id]
	h.mu.RUnlock()
	if found {
		h.deliver(id, s, data)
	}
}

// ToRoom delivers an event to every connection active in a room.
func (h *Hub) ToRoom(room domain.RoomName, v any) {
	h.toRoom(room, "", v)
}

// ToRoomExcept delivers an event to every connection in a room but the
// sender, who already holds the event locally.
func (h *Hub) ToRoomExcept(room domain.RoomName, sender domain.ConnID, v any) {
	h.toRoom(room, sender, v)
}

// ToAll delivers an event to every attached connection, roomless included.
func (h *Hub) ToAll(v any) {
	data, ok := encode(v)
	if !ok {
		return
	}
	h.mu.RLock()
	targets := make(map[domain.ConnID]Sender, len(h.conns))
	for id, s := range h.conns {
		targets[id] = s
	}
	h.mu.RUnlock()

	for id, s := range targets {
		h.deliver(id, s, data)
	}
}

func (h *Hub) toRoom(room domain.RoomName, except domain.ConnID, v any) {
	data, ok := encode(v)
	if !ok {
		return
	}
	ids := h.presence.ConnsIn(room)

	h.mu.RLock()
	targets := make(map[domain.ConnID]Sender, len(ids))
	for _, id := range ids {
		if id == except {
			continue
		}
		if s, found := h.conns[id]; found {
			targets[id] = s
		}
	}
	h.mu.RUnlock()

	for id, s := range targets {
		h.deliver(id, s, data)
	}
}

func (h *Hub) deliver(id domain.ConnID, s Sender, data []byte) {
	if err := s.TrySend(data); err != nil {
		log.Warn().Err(err).Str("module", "hub").
			Str("conn", string(id)).Msg("dropped event")
	}
}

func encode(v any) ([]byte, bool) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "hub").Msg("encode event")
		return nil, false
	}
	return data, true
}
