package realtime

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/flowboard/backend/domain"
)

// Hub is the room router: it owns room membership and delivers fan-out
// frames. Broadcasts never block on a member; a session whose queue is
// full is dropped from every room and closed as a slow consumer.
type Hub struct {
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	rooms    map[string]map[string]*Session
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:   logger,
		sessions: make(map[string]*Session),
		rooms:    make(map[string]map[string]*Session),
	}
}

// Register adds a session and auto-joins the board room and the
// session owner's user room.
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	h.sessions[s.ID] = s
	h.joinLocked(s, domain.RoomBoard)
	h.joinLocked(s, domain.RoomUser(s.UserID))
	h.mu.Unlock()
}

// Unregister atomically removes the session from every room.
func (h *Hub) Unregister(sessionID string) {
	h.mu.Lock()
	delete(h.sessions, sessionID)
	for room, members := range h.rooms {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) Join(sessionID, room string) {
	h.mu.Lock()
	if s, ok := h.sessions[sessionID]; ok {
		h.joinLocked(s, room)
	}
	h.mu.Unlock()
}

func (h *Hub) Leave(sessionID, room string) {
	h.mu.Lock()
	if members, ok := h.rooms[room]; ok {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) joinLocked(s *Session, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Session)
		h.rooms[room] = members
	}
	members[s.ID] = s
}

// Members returns the session ids subscribed to a room.
func (h *Hub) Members(room string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.rooms[room]))
	for id := range h.rooms[room] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// MemberOfAny reports whether the session belongs to at least one of
// the rooms; the gateway uses it for event self-delivery.
func (h *Hub) MemberOfAny(sessionID string, rooms []string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, room := range rooms {
		if _, ok := h.rooms[room][sessionID]; ok {
			return true
		}
	}
	return false
}

// OnlineUsers returns the distinct user ids with at least one live
// session, sorted for stable presence payloads.
func (h *Hub) OnlineUsers() []string {
	h.mu.RLock()
	seen := make(map[string]bool, len(h.sessions))
	for _, s := range h.sessions {
		seen[s.UserID] = true
	}
	h.mu.RUnlock()

	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Broadcast delivers a frame to every member of the room except the
// excluded session. Slow consumers are dropped, not waited on.
func (h *Hub) Broadcast(room string, frame []byte, exceptSessionID string) {
	h.deliver(h.collect([]string{room}, exceptSessionID), frame)
}

// Publish implements the fan-out port: one event, one encode, one
// delivery per member across all destination rooms.
func (h *Hub) Publish(event domain.Event, exceptSessionID string) {
	frame, err := EncodeFrame(event.Kind, "", event.Payload)
	if err != nil {
		h.logger.Error("failed to encode event", zap.String("kind", event.Kind), zap.Error(err))
		return
	}
	h.deliver(h.collect(event.Rooms, exceptSessionID), frame)
}

// SendTo writes a frame to one session regardless of rooms.
func (h *Hub) SendTo(sessionID string, frame []byte) {
	h.mu.RLock()
	s, ok := h.sessions[sessionID]
	h.mu.RUnlock()
	if ok {
		h.deliver([]*Session{s}, frame)
	}
}

// collect resolves the union of room members, deduplicated, minus the
// excluded session.
func (h *Hub) collect(rooms []string, exceptSessionID string) []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[string]bool)
	var out []*Session
	for _, room := range rooms {
		for id, s := range h.rooms[room] {
			if id == exceptSessionID || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, s)
		}
	}
	return out
}

func (h *Hub) deliver(targets []*Session, frame []byte) {
	for _, s := range targets {
		if !s.enqueue(frame) {
			h.logger.Warn("dropping slow consumer",
				zap.String("session_id", s.ID),
				zap.String("user_id", s.UserID))
			h.Unregister(s.ID)
			s.close(CloseSlowConsumer)
		}
	}
}
