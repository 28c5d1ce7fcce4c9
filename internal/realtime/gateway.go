package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/flowboard/backend/domain"
	conflictUC "github.com/flowboard/backend/usecase/conflict"
	taskUC "github.com/flowboard/backend/usecase/task"
)

// Verifier resolves a bearer credential to a principal. Verification
// is the only suspension point that blocks connection acceptance.
type Verifier interface {
	Verify(ctx context.Context, token string) (*domain.Principal, error)
}

// ActivityReader serves the recent-activity query for sessions joining
// the activity feed.
type ActivityReader interface {
	Recent(ctx context.Context, limit int) ([]domain.Activity, error)
}

// Config bounds the gateway's per-session resources.
type Config struct {
	OutboundQueueDepth int
	RequestTimeout     time.Duration
}

// Gateway terminates the client's long-lived duplex connection:
// authenticate once at handshake, dispatch inbound frames to the
// services, serialise outbound frames per session.
type Gateway struct {
	hub        *Hub
	verifier   Verifier
	tasks      *taskUC.UseCase
	conflicts  *conflictUC.Controller
	activities ActivityReader
	upgrader   websocket.FastHTTPUpgrader
	cfg        Config
	logger     *zap.Logger
}

func NewGateway(hub *Hub, verifier Verifier, tasks *taskUC.UseCase, conflicts *conflictUC.Controller, activities ActivityReader, cfg Config, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.OutboundQueueDepth <= 0 {
		cfg.OutboundQueueDepth = 64
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	return &Gateway{
		hub:        hub,
		verifier:   verifier,
		tasks:      tasks,
		conflicts:  conflicts,
		activities: activities,
		upgrader: websocket.FastHTTPUpgrader{
			CheckOrigin: func(*fasthttp.RequestCtx) bool { return true },
		},
		cfg:    cfg,
		logger: logger,
	}
}

// Handle upgrades /ws connections. The bearer credential comes from
// the Authorization header or, for browser clients, the token query
// parameter.
func (g *Gateway) Handle(ctx *fasthttp.RequestCtx) {
	token := bearerToken(ctx)

	verifyCtx, cancel := context.WithTimeout(context.Background(), g.cfg.RequestTimeout)
	principal, err := g.verifier.Verify(verifyCtx, token)
	cancel()
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusUnauthorized)
		ctx.SetBodyString(CloseUnauthenticated)
		return
	}

	actor := *principal
	ip := ctx.RemoteIP().String()
	userAgent := string(ctx.Request.Header.UserAgent())

	if err := g.upgrader.Upgrade(ctx, func(conn *websocket.Conn) {
		g.serve(conn, actor, ip, userAgent)
	}); err != nil {
		g.logger.Warn("websocket upgrade failed", zap.Error(err))
	}
}

func (g *Gateway) serve(conn *websocket.Conn, principal domain.Principal, ip, userAgent string) {
	session := newSession(uuid.NewString(), principal.UserID, conn, g.cfg.OutboundQueueDepth, g.logger)
	g.hub.Register(session)
	go session.writeLoop()

	g.logger.Info("session connected",
		zap.String("session_id", session.ID),
		zap.String("user_id", session.UserID))
	g.broadcastPresence("")

	connCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g.readLoop(connCtx, session, principal, ip, userAgent)
	g.disconnect(session)
}

func (g *Gateway) readLoop(ctx context.Context, session *Session, principal domain.Principal, ip, userAgent string) {
	for {
		_, payload, err := session.conn.ReadMessage()
		if err != nil {
			return
		}

		var frame Frame
		if err := json.Unmarshal(payload, &frame); err != nil {
			g.hub.SendTo(session.ID, EncodeError("", string(domain.ErrCodeInvalid), "malformed frame", nil))
			continue
		}

		reqCtx, cancel := context.WithTimeout(ctx, g.cfg.RequestTimeout)
		g.dispatch(reqCtx, session, frame, taskUC.Actor{
			Principal: principal,
			SessionID: session.ID,
			IP:        ip,
			UserAgent: userAgent,
		})
		cancel()
	}
}

// disconnect tears the session down: every room membership goes
// atomically, held edit markers are released, presence refreshes.
func (g *Gateway) disconnect(session *Session) {
	g.hub.Unregister(session.ID)
	session.close("")

	for _, edit := range g.conflicts.ClearSession(session.ID) {
		g.hub.Publish(domain.Event{
			Kind:    domain.EventEditEnded,
			Rooms:   []string{domain.RoomTask(edit.TaskID)},
			Payload: edit,
		}, "")
	}

	g.logger.Info("session disconnected",
		zap.String("session_id", session.ID),
		zap.String("user_id", session.UserID))
	g.broadcastPresence("")
}

// broadcastPresence pushes the online user set to the board room.
func (g *Gateway) broadcastPresence(exceptSessionID string) {
	g.hub.Publish(domain.Event{
		Kind:  domain.EventUsersUpdated,
		Rooms: []string{domain.RoomBoard},
		Payload: struct {
			Online []string `json:"online"`
		}{g.hub.OnlineUsers()},
	}, exceptSessionID)
}

func bearerToken(ctx *fasthttp.RequestCtx) string {
	header := string(ctx.Request.Header.Peek("Authorization"))
	if len(header) > 7 && header[:7] == "Bearer " {
		return header[7:]
	}
	if header != "" {
		return header
	}
	return string(ctx.QueryArgs().Peek("token"))
}
