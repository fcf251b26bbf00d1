// Package session drives one connection's lifecycle through the presence
// store and the fan-out hub: connect, room changes, messages, typing,
// disconnect. Each connection's events arrive from a single read loop, so
// calls for one connection are naturally serialized.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/okulov/Relay/internal/domain"
	"github.com/okulov/Relay/internal/history"
	"github.com/okulov/Relay/internal/hub"
	"github.com/okulov/Relay/internal/presence"
)

type Service struct {
	presence *presence.Store
	hub      *hub.Hub
	history  *history.Store
	limit    int
}

func NewService(store *presence.Store, h *hub.Hub, hist *history.Store, historyLimit int) *Service {
	return &Service{
		presence: store,
		hub:      h,
		history:  hist,
		limit:    historyLimit,
	}
}

// Connect greets a freshly authenticated connection. No room yet.
func (s *Service) Connect(id domain.ConnID, username string) {
	log.Info().Str("module", "session").Str("conn", string(id)).
		Str("user", username).Msg("connected")
	s.hub.ToConn(id, s.adminNotice("Welcome "+username+"!"))
}

// EnterRoom moves the connection into a room, leaving its previous room
// first if it had one. Rosters and the global room list are broadcast only
// after the membership mutation has committed, so every recipient's query
// observes the new state.
func (s *Service) EnterRoom(ctx context.Context, id domain.ConnID, username, rawRoom string) {
	room, err := domain.ParseRoomName(rawRoom)
	if err != nil {
		log.Warn().Err(err).Str("module", "session").Str("conn", string(id)).
			Str("room", rawRoom).Msg("enterRoom rejected")
		return
	}

	prev, hadPrev := s.presence.Lookup(id)
	s.presence.Activate(id, username, room)

	if hadPrev && prev.Room != room {
		s.hub.ToRoom(prev.Room, s.adminNotice(username+" left the room"))
		s.broadcastRoster(prev.Room)
	}

	s.replayHistory(ctx, id, room)

	s.hub.ToConn(id, s.adminNotice("You have joined the "+string(room)+" chat room"))
	s.hub.ToRoomExcept(room, id, s.adminNotice(username+" has joined the room"))
	s.broadcastRoster(room)
	s.broadcastRoomList()

	log.Info().Str("module", "session").Str("conn", string(id)).
		Str("user", username).Str("room", string(room)).Msg("entered room")
}

// SendMessage stamps, persists and fans out a chat message. A message from a
// roomless connection is dropped: the client likely raced a disconnect.
// The sender gets an ack carrying its own id; everyone else in the room gets
// the stamped message. Persistence failures are logged and swallowed, live
// delivery proceeds.
func (s *Service) SendMessage(id domain.ConnID, clientID, text string) {
	m, ok := s.presence.Lookup(id)
	if !ok {
		log.Debug().Str("module", "session").Str("conn", string(id)).
			Msg("message while roomless, dropped")
		return
	}

	msg := MessageEvent{
		Type:   EventMessage,
		ID:     uuid.NewString(),
		Name:   m.Username,
		Text:   text,
		Time:   now(),
		Status: StatusDelivered,
	}

	if err := s.history.Append(history.Message{
		ID:   msg.ID,
		Room: string(m.Room),
		Name: msg.Name,
		Text: msg.Text,
		Time: msg.Time,
	}); err != nil {
		log.Error().Err(err).Str("module", "session").
			Str("room", string(m.Room)).Msg("failed to persist message")
	}

	s.hub.ToConn(id, DeliveredEvent{Type: EventDelivered, ID: clientID})
	s.hub.ToRoomExcept(m.Room, id, msg)
}

// Typing fans a typing indicator out to the rest of the room.
// Fire-and-forget: no persistence, no ack, droppable under backpressure.
func (s *Service) Typing(id domain.ConnID, isTyping bool) {
	m, ok := s.presence.Lookup(id)
	if !ok {
		return
	}
	s.hub.ToRoomExcept(m.Room, id, TypingEvent{
		Type:     EventTyping,
		Name:     m.Username,
		IsTyping: isTyping,
	})
}

// Disconnect tears the connection down. If it held a room membership the
// vacated room is notified and rosters recomputed; otherwise it is a pure
// cleanup no-op.
func (s *Service) Disconnect(id domain.ConnID) {
	m, ok := s.presence.Deactivate(id)
	if !ok {
		return
	}
	s.hub.ToRoom(m.Room, s.adminNotice(m.Username+" has left the room"))
	s.broadcastRoster(m.Room)
	s.broadcastRoomList()

	log.Info().Str("module", "session").Str("conn", string(id)).
		Str("user", m.Username).Str("room", string(m.Room)).Msg("disconnected")
}

func (s *Service) replayHistory(ctx context.Context, id domain.ConnID, room domain.RoomName) {
	msgs, err := s.history.LastN(ctx, string(room), s.limit)
	if err != nil {
		log.Error().Err(err).Str("module", "session").
			Str("room", string(room)).Msg("history replay failed")
		return
	}
	for _, m := range msgs {
		s.hub.ToConn(id, MessageEvent{
			Type: EventMessage,
			ID:   m.ID,
			Name: m.Name,
			Text: m.Text,
			Time: m.Time,
		})
	}
}

func (s *Service) broadcastRoster(room domain.RoomName) {
	members := s.presence.MembersOf(room)
	offline := s.presence.OfflineOf(room)

	ev := UserListEvent{
		Type:         EventUserList,
		Users:        make([]UserRef, 0, len(members)),
		OfflineUsers: make([]OfflineRef, 0, len(offline)),
	}
	for _, name := range members {
		ev.Users = append(ev.Users, UserRef{Name: name})
	}
	for _, marker := range offline {
		ev.OfflineUsers = append(ev.OfflineUsers, OfflineRef{
			Name: marker.Username,
			Room: string(marker.Room),
		})
	}
	s.hub.ToRoom(room, ev)
}

func (s *Service) broadcastRoomList() {
	s.hub.ToAll(RoomListEvent{Type: EventRoomList, Rooms: s.presence.ActiveRooms()})
}

func (s *Service) adminNotice(text string) MessageEvent {
	return MessageEvent{
		Type: EventMessage,
		ID:   uuid.NewString(),
		Name: AdminName,
		Text: text,
		Time: now(),
	}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
