package session

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/okulov/Relay/internal/domain"
	"github.com/okulov/Relay/internal/history"
	"github.com/okulov/Relay/internal/hub"
	"github.com/okulov/Relay/internal/presence"
)

// sink records everything the hub delivers to one connection.
type sink struct {
	mu     sync.Mutex
	events [][]byte
}

func (s *sink) TrySend(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, data)
	return nil
}

// received decodes the recorded events into loose maps for assertions.
func (s *sink) received(t *testing.T) []map[string]any {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, 0, len(s.events))
	for _, data := range s.events {
		var v map[string]any
		require.NoError(t, json.Unmarshal(data, &v))
		out = append(out, v)
	}
	return out
}

func (s *sink) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

// ofType filters received events by protocol type.
func ofType(events []map[string]any, eventType string) []map[string]any {
	var out []map[string]any
	for _, ev := range events {
		if ev["type"] == eventType {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	store   *presence.Store
	hub     *hub.Hub
	history *history.Store
	svc     *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := presence.NewStore()
	h := hub.New(store)
	hist, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = hist.Close() })
	return &fixture{
		store:   store,
		hub:     h,
		history: hist,
		svc:     NewService(store, h, hist, 50),
	}
}

func (f *fixture) attach(id domain.ConnID) *sink {
	s := &sink{}
	f.hub.Attach(id, s)
	return s
}

func userNames(ev map[string]any) []string {
	var out []string
	for _, u := range ev["users"].([]any) {
		out = append(out, u.(map[string]any)["name"].(string))
	}
	return out
}

func TestConnectSendsWelcome(t *testing.T) {
	f := newFixture(t)
	a := f.attach("conn-a")

	f.svc.Connect("conn-a", "alice")

	events := a.received(t)
	require.Len(t, events, 1)
	require.Equal(t, EventMessage, events[0]["type"])
	require.Equal(t, AdminName, events[0]["name"])
	require.Equal(t, "Welcome alice!", events[0]["text"])
}

func TestFirstJoinerGetsNoticeRosterAndRoomList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.attach("conn-a")

	f.svc.EnterRoom(ctx, "conn-a", "alice", "lobby")

	events := a.received(t)
	require.Len(t, events, 3)

	require.Equal(t, EventMessage, events[0]["type"])
	require.Equal(t, "You have joined the lobby chat room", events[0]["text"])

	require.Equal(t, EventUserList, events[1]["type"])
	require.Equal(t, []string{"alice"}, userNames(events[1]))
	require.Empty(t, events[1]["offlineUsers"])

	require.Equal(t, EventRoomList, events[2]["type"])
	require.Equal(t, []any{"lobby"}, events[2]["rooms"].([]any))
}

func TestEmptyRoomNameIsDropped(t *testing.T) {
	f := newFixture(t)
	a := f.attach("conn-a")

	f.svc.EnterRoom(context.Background(), "conn-a", "alice", "   ")

	require.Empty(t, a.received(t))
	_, ok := f.store.Lookup("conn-a")
	require.False(t, ok)
}

func TestSendMessageAloneInRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.attach("conn-a")
	f.svc.EnterRoom(ctx, "conn-a", "alice", "lobby")
	a.reset()

	f.svc.SendMessage("conn-a", "client-id-1", "hi")

	events := a.received(t)
	require.Len(t, events, 1)
	require.Equal(t, EventDelivered, events[0]["type"])
	require.Equal(t, "client-id-1", events[0]["id"])

	require.NoError(t, f.history.Flush())
	msgs, err := f.history.LastN(ctx, "lobby", 50)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "hi", msgs[0].Text)
	require.Equal(t, "alice", msgs[0].Name)
}

func TestSecondJoinerGetsReplayOthersGetNotice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.attach("conn-a")
	b := f.attach("conn-b")

	f.svc.EnterRoom(ctx, "conn-a", "alice", "lobby")
	f.svc.SendMessage("conn-a", "c1", "hi")
	require.NoError(t, f.history.Flush())
	a.reset()

	f.svc.EnterRoom(ctx, "conn-b", "bob", "lobby")

	// Bob: replayed history, own join notice, roster, room list.
	bEvents := b.received(t)
	messages := ofType(bEvents, EventMessage)
	require.Len(t, messages, 2)
	require.Equal(t, "hi", messages[0]["text"])
	require.Equal(t, "You have joined the lobby chat room", messages[1]["text"])
	// No broadcast copy of his own join notice.
	for _, m := range messages {
		require.NotEqual(t, "bob has joined the room", m["text"])
	}

	// Alice: join notice and updated roster.
	aEvents := a.received(t)
	aMessages := ofType(aEvents, EventMessage)
	require.Len(t, aMessages, 1)
	require.Equal(t, "bob has joined the room", aMessages[0]["text"])

	rosters := ofType(aEvents, EventUserList)
	require.Len(t, rosters, 1)
	require.Equal(t, []string{"alice", "bob"}, userNames(rosters[0]))
}

func TestDisconnectNotifiesRoomAndMarksOffline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.attach("conn-a")
	b := f.attach("conn-b")
	f.svc.EnterRoom(ctx, "conn-a", "alice", "lobby")
	f.svc.EnterRoom(ctx, "conn-b", "bob", "lobby")
	a.reset()
	b.reset()

	f.hub.Detach("conn-a")
	f.svc.Disconnect("conn-a")

	bEvents := b.received(t)
	messages := ofType(bEvents, EventMessage)
	require.Len(t, messages, 1)
	require.Equal(t, "alice has left the room", messages[0]["text"])

	rosters := ofType(bEvents, EventUserList)
	require.Len(t, rosters, 1)
	require.Equal(t, []string{"bob"}, userNames(rosters[0]))
	offline := rosters[0]["offlineUsers"].([]any)
	require.Len(t, offline, 1)
	require.Equal(t, "alice", offline[0].(map[string]any)["name"])
	require.Equal(t, "lobby", offline[0].(map[string]any)["room"])

	// Bob remains, so the room is still active globally.
	roomLists := ofType(bEvents, EventRoomList)
	require.Len(t, roomLists, 1)
	require.Equal(t, []any{"lobby"}, roomLists[0]["rooms"].([]any))

	require.Empty(t, a.received(t))
}

func TestRejoinClearsOfflineEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.attach("conn-a")
	b := f.attach("conn-b")
	f.svc.EnterRoom(ctx, "conn-a", "alice", "lobby")
	f.svc.EnterRoom(ctx, "conn-b", "bob", "lobby")
	f.hub.Detach("conn-a")
	f.svc.Disconnect("conn-a")
	b.reset()

	// Alice reconnects on a fresh connection.
	f.attach("conn-a2")
	f.svc.EnterRoom(ctx, "conn-a2", "alice", "lobby")

	rosters := ofType(b.received(t), EventUserList)
	require.Len(t, rosters, 1)
	require.Equal(t, []string{"alice", "bob"}, userNames(rosters[0]))
	require.Empty(t, rosters[0]["offlineUsers"])
}

func TestRoomSwitchLeavesPreviousRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.attach("conn-a")
	b := f.attach("conn-b")
	f.svc.EnterRoom(ctx, "conn-a", "alice", "roomA")
	f.svc.EnterRoom(ctx, "conn-b", "bob", "roomA")
	a.reset()
	b.reset()

	f.svc.EnterRoom(ctx, "conn-a", "alice", "roomB")

	// Bob sees alice leave and a roster that no longer contains her.
	bEvents := b.received(t)
	messages := ofType(bEvents, EventMessage)
	require.Len(t, messages, 1)
	require.Equal(t, "alice left the room", messages[0]["text"])

	rosters := ofType(bEvents, EventUserList)
	require.Len(t, rosters, 1)
	require.Equal(t, []string{"bob"}, userNames(rosters[0]))
	// A switch is not a disconnect: no offline marker for roomA.
	require.Empty(t, rosters[0]["offlineUsers"])

	require.Equal(t, []string{"bob"}, f.store.MembersOf("roomA"))
	require.Equal(t, []string{"alice"}, f.store.MembersOf("roomB"))

	roomLists := ofType(bEvents, EventRoomList)
	require.Len(t, roomLists, 1)
	require.Equal(t, []any{"roomA", "roomB"}, roomLists[0]["rooms"].([]any))
}

func TestMessageBeforeJoinIsSilentlyDropped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.attach("conn-c")

	f.svc.SendMessage("conn-c", "c1", "yo")

	require.Empty(t, c.received(t))
	require.NoError(t, f.history.Flush())
	msgs, err := f.history.LastN(ctx, "lobby", 50)
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestTypingReachesRoomMatesOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.attach("conn-a")
	b := f.attach("conn-b")
	c := f.attach("conn-c")
	f.svc.EnterRoom(ctx, "conn-a", "alice", "lobby")
	f.svc.EnterRoom(ctx, "conn-b", "bob", "lobby")
	f.svc.EnterRoom(ctx, "conn-c", "carol", "den")
	a.reset()
	b.reset()
	c.reset()

	f.svc.Typing("conn-a", true)

	bEvents := ofType(b.received(t), EventTyping)
	require.Len(t, bEvents, 1)
	require.Equal(t, "alice", bEvents[0]["name"])
	require.Equal(t, true, bEvents[0]["isTyping"])

	require.Empty(t, ofType(a.received(t), EventTyping))
	require.Empty(t, ofType(c.received(t), EventTyping))
}

func TestTypingWhileRoomlessIsDropped(t *testing.T) {
	f := newFixture(t)
	a := f.attach("conn-a")

	f.svc.Typing("conn-a", true)

	require.Empty(t, a.received(t))
}

func TestDisconnectWithoutRoomIsSilent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.attach("conn-a")
	b := f.attach("conn-b")
	f.svc.EnterRoom(ctx, "conn-b", "bob", "lobby")
	b.reset()

	f.hub.Detach("conn-a")
	f.svc.Disconnect("conn-a")

	require.Empty(t, a.received(t))
	require.Empty(t, b.received(t))
}
