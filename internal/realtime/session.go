package realtime

import (
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"go.uber.org/zap"
)

// Session is one live duplex connection from one authenticated client.
// Every outbound frame goes through the bounded send queue consumed by
// a single writer goroutine; nothing else touches the socket for
// writes.
type Session struct {
	ID          string
	UserID      string
	ConnectedAt time.Time

	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
	done      chan struct{}
	logger    *zap.Logger
}

func newSession(id, userID string, conn *websocket.Conn, queueDepth int, logger *zap.Logger) *Session {
	if queueDepth <= 0 {
		queueDepth = 64
	}
	return &Session{
		ID:          id,
		UserID:      userID,
		ConnectedAt: time.Now(),
		conn:        conn,
		send:        make(chan []byte, queueDepth),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// enqueue offers a frame to the writer without blocking. It reports
// false when the queue is full, which marks the session as a slow
// consumer.
func (s *Session) enqueue(frame []byte) bool {
	select {
	case <-s.done:
		return true
	default:
	}
	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

// writeLoop drains the queue onto the socket in FIFO order. It owns
// the write side of the connection.
func (s *Session) writeLoop() {
	for {
		select {
		case frame := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.logger.Debug("session write failed",
					zap.String("session_id", s.ID), zap.Error(err))
				s.close("")
				return
			}
		case <-s.done:
			return
		}
	}
}

// close shuts the connection down once, optionally with a close reason.
func (s *Session) close(reason string) {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.conn == nil {
			return
		}
		if reason != "" {
			deadline := time.Now().Add(time.Second)
			message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
			_ = s.conn.WriteControl(websocket.CloseMessage, message, deadline)
		}
		_ = s.conn.Close()
	})
}
