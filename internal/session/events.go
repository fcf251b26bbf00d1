package session

// Wire events pushed to clients. Field names match the realtime protocol.

const (
	EventMessage   = "message"
	EventDelivered = "messageDelivered"
	EventUserList  = "userList"
	EventRoomList  = "roomList"
	EventTyping    = "typing"
)

// AdminName signs the server's own notices (welcome, joins, leaves).
const AdminName = "Admin"

const StatusDelivered = "delivered"

type MessageEvent struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Name   string `json:"name"`
	Text   string `json:"text"`
	Time   string `json:"time"`
	Status string `json:"status,omitempty"`
}

type DeliveredEvent struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type UserRef struct {
	Name string `json:"name"`
}

type OfflineRef struct {
	Name string `json:"name"`
	Room string `json:"room"`
}

type UserListEvent struct {
	Type         string       `json:"type"`
	Users        []UserRef    `json:"users"`
	OfflineUsers []OfflineRef `json:"offlineUsers"`
}

type RoomListEvent struct {
	Type  string   `json:"type"`
	Rooms []string `json:"rooms"`
}

type TypingEvent struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	IsTyping bool   `json:"isTyping"`
}
