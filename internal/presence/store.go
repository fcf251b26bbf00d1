// Package presence owns the authoritative mapping of live connections to
// users and rooms, plus the markers for users who have dropped offline.
package presence

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/okulov/Relay/internal/domain"
)

// Membership ties one live connection to the user and room it is active in.
// At most one Membership exists per connection.
type Membership struct {
	Conn     domain.ConnID
	Username string
	Room     domain.RoomName
}

// OfflineMarker records that a user was active in a room and has since
// fully disconnected without rejoining.
type OfflineMarker struct {
	Username string
	Room     domain.RoomName
}

// Store is the single piece of shared mutable state in the relay.
// All mutations go through one mutex so Activate/Deactivate/Lookup are
// linearizable: no interleaving can produce two memberships for a
// connection, or a membership and an offline marker for the same
// (username, room) pair.
type Store struct {
	mu      sync.RWMutex
	active  map[domain.ConnID]Membership
	offline map[OfflineMarker]struct{}
}

func NewStore() *Store {
	return &Store{
		active:  make(map[domain.ConnID]Membership),
		offline: make(map[OfflineMarker]struct{}),
	}
}

// Activate binds the connection to a room. A second call for the same
// connection is a room switch, not an error: the previous membership is
// replaced in the same critical section. Any offline marker for the
// (username, room) pair is cleared before the membership appears.
func (s *Store) Activate(id domain.ConnID, username string, room domain.RoomName) Membership {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.offline, OfflineMarker{Username: username, Room: room})
	m := Membership{Conn: id, Username: username, Room: room}
	s.active[id] = m
	log.Debug().Str("module", "presence").Str("conn", string(id)).
		Str("user", username).Str("room", string(room)).Msg("activated")
	return m
}

// Deactivate removes the connection's membership, if any, and records an
// offline marker for it. The marker is suppressed while the same user still
// holds another connection in the same room, so a user is never listed both
// online and offline at once.
func (s *Store) Deactivate(id domain.ConnID) (Membership, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.active[id]
	if !ok {
		return Membership{}, false
	}
	delete(s.active, id)

	if !s.userActiveLocked(m.Username, m.Room) {
		s.offline[OfflineMarker{Username: m.Username, Room: m.Room}] = struct{}{}
	}
	log.Debug().Str("module", "presence").Str("conn", string(id)).
		Str("user", m.Username).Str("room", string(m.Room)).Msg("deactivated")
	return m, true
}

func (s *Store) Lookup(id domain.ConnID) (Membership, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.active[id]
	return m, ok
}

func (s *Store) userActiveLocked(username string, room domain.RoomName) bool {
	for _, m := range s.active {
		if m.Username == username && m.Room == room {
			return true
		}
	}
	return false
}
