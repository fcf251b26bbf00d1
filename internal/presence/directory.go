package presence

import (
	"sort"

	"github.com/okulov/Relay/internal/domain"
)

// Read-side queries. Always computed fresh under the read lock so callers
// never observe a half-updated roster. Results are sorted so rosters are
// stable across broadcasts.

// MembersOf returns the distinct usernames active in a room. The roster
// shows names, not connection counts: a user on two devices appears once.
func (s *Store) MembersOf(room domain.RoomName) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, m := range s.active {
		if m.Room == room {
			seen[m.Username] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OfflineOf returns the users recently departed from a room.
func (s *Store) OfflineOf(room domain.RoomName) []OfflineMarker {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]OfflineMarker, 0)
	for marker := range s.offline {
		if marker.Room == room {
			out = append(out, marker)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// ActiveRooms returns the distinct rooms with at least one active member.
func (s *Store) ActiveRooms() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[domain.RoomName]struct{})
	for _, m := range s.active {
		seen[m.Room] = struct{}{}
	}
	rooms := make([]string, 0, len(seen))
	for room := range seen {
		rooms = append(rooms, string(room))
	}
	sort.Strings(rooms)
	return rooms
}

// ConnsIn snapshots the connection ids subscribed to a room. Membership is
// the subscription: the snapshot is exact as of the moment the lock is held,
// delivery happens after it is released.
func (s *Store) ConnsIn(room domain.RoomName) []domain.ConnID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ConnID, 0)
	for id, m := range s.active {
		if m.Room == room {
			out = append(out, id)
		}
	}
	return out
}
