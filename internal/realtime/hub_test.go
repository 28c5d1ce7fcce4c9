package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flowboard/backend/domain"
)

func testSession(id, userID string, depth int) *Session {
	return newSession(id, userID, nil, depth, zap.NewNop())
}

func drain(t *testing.T, s *Session) []byte {
	t.Helper()
	select {
	case frame := <-s.send:
		return frame
	default:
		t.Fatalf("session %s has no queued frame", s.ID)
		return nil
	}
}

func TestRegisterAutoJoinsBoardAndUserRooms(t *testing.T) {
	h := NewHub(nil)
	h.Register(testSession("s1", "alice", 8))

	assert.Equal(t, []string{"s1"}, h.Members(domain.RoomBoard))
	assert.Equal(t, []string{"s1"}, h.Members(domain.RoomUser("alice")))
}

func TestJoinLeaveMembership(t *testing.T) {
	h := NewHub(nil)
	h.Register(testSession("s1", "alice", 8))
	h.Register(testSession("s2", "bob", 8))

	room := domain.RoomTask("t1")
	h.Join("s1", room)
	h.Join("s2", room)
	assert.Equal(t, []string{"s1", "s2"}, h.Members(room))

	h.Leave("s1", room)
	assert.Equal(t, []string{"s2"}, h.Members(room))

	// Joining as an unregistered session is a no-op.
	h.Join("ghost", room)
	assert.Equal(t, []string{"s2"}, h.Members(room))
}

func TestUnregisterLeavesEveryRoom(t *testing.T) {
	h := NewHub(nil)
	h.Register(testSession("s1", "alice", 8))
	h.Join("s1", domain.RoomTask("t1"))

	h.Unregister("s1")

	assert.Empty(t, h.Members(domain.RoomBoard))
	assert.Empty(t, h.Members(domain.RoomTask("t1")))
	assert.False(t, h.MemberOfAny("s1", []string{domain.RoomBoard}))
}

func TestMemberOfAny(t *testing.T) {
	h := NewHub(nil)
	h.Register(testSession("s1", "alice", 8))

	assert.True(t, h.MemberOfAny("s1", []string{domain.RoomTask("t1"), domain.RoomBoard}))
	assert.False(t, h.MemberOfAny("s1", []string{domain.RoomTask("t1")}))
	assert.False(t, h.MemberOfAny("s1", nil))
}

func TestOnlineUsersDeduplicatesSessions(t *testing.T) {
	h := NewHub(nil)
	h.Register(testSession("s1", "bob", 8))
	h.Register(testSession("s2", "alice", 8))
	h.Register(testSession("s3", "alice", 8))

	assert.Equal(t, []string{"alice", "bob"}, h.OnlineUsers())

	h.Unregister("s2")
	assert.Equal(t, []string{"alice", "bob"}, h.OnlineUsers())

	h.Unregister("s3")
	assert.Equal(t, []string{"bob"}, h.OnlineUsers())
}

func TestPublishSkipsOriginSession(t *testing.T) {
	h := NewHub(nil)
	origin := testSession("s1", "alice", 8)
	other := testSession("s2", "bob", 8)
	h.Register(origin)
	h.Register(other)

	h.Publish(domain.Event{
		Kind:    domain.EventTaskUpdated,
		Rooms:   []string{domain.RoomBoard},
		Payload: map[string]string{"id": "t1"},
	}, "s1")

	frame := drain(t, other)
	var decoded Frame
	require.NoError(t, json.Unmarshal(frame, &decoded))
	assert.Equal(t, domain.EventTaskUpdated, decoded.Type)

	assert.Empty(t, origin.send)
}

func TestPublishDeduplicatesAcrossRooms(t *testing.T) {
	h := NewHub(nil)
	s := testSession("s1", "alice", 8)
	h.Register(s)
	h.Join("s1", domain.RoomTask("t1"))

	h.Publish(domain.Event{
		Kind:    domain.EventTaskMoved,
		Rooms:   []string{domain.RoomBoard, domain.RoomTask("t1")},
		Payload: map[string]string{"id": "t1"},
	}, "")

	drain(t, s)
	assert.Empty(t, s.send, "member of both rooms received the event twice")
}

func TestSendToTargetsOneSession(t *testing.T) {
	h := NewHub(nil)
	target := testSession("s1", "alice", 8)
	bystander := testSession("s2", "bob", 8)
	h.Register(target)
	h.Register(bystander)

	h.SendTo("s1", []byte(`{"type":"ack"}`))
	h.SendTo("ghost", []byte(`{"type":"ack"}`))

	assert.Equal(t, `{"type":"ack"}`, string(drain(t, target)))
	assert.Empty(t, bystander.send)
}

func TestSlowConsumerIsDropped(t *testing.T) {
	h := NewHub(nil)
	slow := testSession("s1", "alice", 1)
	h.Register(slow)

	// No writer goroutine is draining, so the second broadcast
	// overflows the queue and evicts the session.
	h.Broadcast(domain.RoomBoard, []byte("one"), "")
	h.Broadcast(domain.RoomBoard, []byte("two"), "")

	assert.Empty(t, h.Members(domain.RoomBoard))
	assert.Empty(t, h.OnlineUsers())

	select {
	case <-slow.done:
	default:
		t.Fatal("slow consumer session was not closed")
	}
}
