package domain

import (
	"errors"
	"strings"
)

const MaxRoomNameLen = 36

var (
	ErrRoomNameEmpty   = errors.New("room name empty")
	ErrRoomNameTooLong = errors.New("room name too long")
)

// RoomName identifies a chat room. Rooms are not stored anywhere:
// a room exists exactly while at least one connection is active in it.
type RoomName string

// ParseRoomName rejects empty or oversized room identifiers.
// A whitespace-only name is a protocol violation, not a room.
func ParseRoomName(raw string) (RoomName, error) {
	name := strings.TrimSpace(raw)
	if len(name) == 0 {
		return "", ErrRoomNameEmpty
	}
	if len(name) > MaxRoomNameLen {
		return "", ErrRoomNameTooLong
	}
	return RoomName(name), nil
}
