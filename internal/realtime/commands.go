package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/flowboard/backend/domain"
	"github.com/flowboard/backend/repository"
	taskUC "github.com/flowboard/backend/usecase/task"
)

type taskRef struct {
	TaskID string `json:"task_id"`
}

type createData struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	AssignedTo  string   `json:"assigned_to"`
	DueDate     *string  `json:"due_date"`
	Tags        []string `json:"tags"`
}

type updateData struct {
	TaskID       string           `json:"task_id"`
	Patch        domain.TaskPatch `json:"patch"`
	KnownVersion *int64           `json:"known_version"`
}

type moveData struct {
	TaskID       string `json:"task_id"`
	ToStatus     string `json:"to_status"`
	ToPosition   int    `json:"to_position"`
	KnownVersion int64  `json:"known_version"`
}

type assignData struct {
	TaskID       string `json:"task_id"`
	AssigneeID   string `json:"assignee_id"`
	KnownVersion int64  `json:"known_version"`
}

type commentData struct {
	TaskID string `json:"task_id"`
	Text   string `json:"text"`
}

type resolveData struct {
	TaskID     string `json:"task_id"`
	ConflictID string `json:"conflict_id"`
	Strategy   string `json:"strategy"`
}

type roomData struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

type listData struct {
	Status     string `json:"status"`
	AssignedTo string `json:"assigned_to"`
	Priority   string `json:"priority"`
}

type editStartData struct {
	TaskID       string `json:"task_id"`
	KnownVersion *int64 `json:"known_version,omitempty"`
}

type editEndedData struct {
	TaskID string `json:"task_id"`
	UserID string `json:"user_id"`
}

// dispatch routes one inbound frame. Command frames carry a client
// correlation id echoed on the ack or error; fire-and-forget signals
// (typing, cursor) carry none and get no reply.
func (g *Gateway) dispatch(ctx context.Context, session *Session, frame Frame, actor taskUC.Actor) {
	switch frame.Type {
	case "room.join", "room.leave":
		g.handleRoom(ctx, session, frame)

	case "task.list":
		g.handleList(ctx, session, frame)
	case "task.get":
		g.handleGet(ctx, session, frame)

	case "task.create":
		g.handleCreate(ctx, session, frame, actor)
	case "task.update":
		g.handleUpdate(ctx, session, frame, actor)
	case "task.move":
		g.handleMove(ctx, session, frame, actor)
	case "task.assign":
		g.handleAssign(ctx, session, frame, actor)
	case "task.smartAssign", "task.smart_assign":
		g.handleSmartAssign(ctx, session, frame, actor)
	case "task.comment":
		g.handleComment(ctx, session, frame, actor)
	case "task.archive":
		g.handleArchive(ctx, session, frame, actor)
	case "task.delete":
		g.handleDelete(ctx, session, frame, actor)
	case "conflict.resolve":
		g.handleResolve(ctx, session, frame, actor)

	case "edit.start":
		g.handleEditStart(session, frame)
	case "edit.end":
		g.handleEditEnd(session, frame)
	case "typing", "cursor":
		g.relay(session, frame)

	case "ping":
		g.reply(session, frame.ID, "pong", nil)

	default:
		g.sendError(session, frame.ID, domain.NewError(domain.ErrCodeInvalid, "unknown frame type: "+frame.Type))
	}
}

func (g *Gateway) handleRoom(ctx context.Context, session *Session, frame Frame) {
	var data roomData
	if !g.decode(session, frame, &data) {
		return
	}

	var room string
	switch data.Kind {
	case "task":
		if data.ID == "" {
			g.sendError(session, frame.ID, domain.NewError(domain.ErrCodeInvalid, "task room requires an id"))
			return
		}
		room = domain.RoomTask(data.ID)
	case "activity":
		room = domain.RoomActivity
	case "board":
		room = domain.RoomBoard
	default:
		g.sendError(session, frame.ID, domain.NewError(domain.ErrCodeInvalid, "unknown room kind: "+data.Kind))
		return
	}

	if frame.Type == "room.leave" {
		g.hub.Leave(session.ID, room)
		g.reply(session, frame.ID, "room.left", roomData{Kind: data.Kind, ID: data.ID})
		return
	}

	g.hub.Join(session.ID, room)
	g.reply(session, frame.ID, "room.joined", roomData{Kind: data.Kind, ID: data.ID})

	// Joining a room comes with a snapshot so the client does not
	// start from a blind spot.
	switch data.Kind {
	case "activity":
		if recent, err := g.activities.Recent(ctx, 0); err == nil {
			g.reply(session, "", domain.EventActivityNew, struct {
				Activities []domain.Activity `json:"activities"`
			}{recent})
		}
	case "task":
		if edit := g.conflicts.Editing(data.ID); edit != nil {
			g.reply(session, "", domain.EventEditStarted, edit)
		}
	}
}

func (g *Gateway) handleList(ctx context.Context, session *Session, frame Frame) {
	var data listData
	if len(frame.Data) > 0 && !g.decode(session, frame, &data) {
		return
	}
	board, err := g.tasks.ListBoard(ctx, repository.TaskFilter{
		Status:     domain.Status(data.Status),
		AssignedTo: data.AssignedTo,
		Priority:   domain.Priority(data.Priority),
	})
	if err != nil {
		g.sendError(session, frame.ID, err)
		return
	}
	g.reply(session, frame.ID, "board", board)
}

func (g *Gateway) handleGet(ctx context.Context, session *Session, frame Frame) {
	var data taskRef
	if !g.decode(session, frame, &data) {
		return
	}
	task, err := g.tasks.GetTask(ctx, data.TaskID)
	if err != nil {
		g.sendError(session, frame.ID, err)
		return
	}
	g.reply(session, frame.ID, "task", task)
}

func (g *Gateway) handleCreate(ctx context.Context, session *Session, frame Frame, actor taskUC.Actor) {
	var data createData
	if !g.decode(session, frame, &data) {
		return
	}
	input := taskUC.CreateInput{
		Title:       data.Title,
		Description: data.Description,
		Status:      domain.Status(data.Status),
		Priority:    domain.Priority(data.Priority),
		AssignedTo:  data.AssignedTo,
		Tags:        data.Tags,
	}
	if data.DueDate != nil {
		due, err := time.Parse(time.RFC3339, *data.DueDate)
		if err != nil {
			g.sendError(session, frame.ID, domain.NewError(domain.ErrCodeInvalid, "due_date must be RFC 3339"))
			return
		}
		input.DueDate = &due
	}
	res, err := g.tasks.CreateTask(ctx, input, actor)
	g.finish(session, frame.ID, res, err)
}

func (g *Gateway) handleUpdate(ctx context.Context, session *Session, frame Frame, actor taskUC.Actor) {
	var data updateData
	if !g.decode(session, frame, &data) {
		return
	}
	res, err := g.tasks.UpdateTask(ctx, data.TaskID, data.Patch, data.KnownVersion, actor)
	g.finish(session, frame.ID, res, err)
}

func (g *Gateway) handleMove(ctx context.Context, session *Session, frame Frame, actor taskUC.Actor) {
	var data moveData
	if !g.decode(session, frame, &data) {
		return
	}
	res, err := g.tasks.MoveTask(ctx, data.TaskID, domain.Status(data.ToStatus), data.ToPosition, data.KnownVersion, actor)
	g.finish(session, frame.ID, res, err)
}

func (g *Gateway) handleAssign(ctx context.Context, session *Session, frame Frame, actor taskUC.Actor) {
	var data assignData
	if !g.decode(session, frame, &data) {
		return
	}
	res, err := g.tasks.AssignTask(ctx, data.TaskID, data.AssigneeID, data.KnownVersion, actor)
	g.finish(session, frame.ID, res, err)
}

func (g *Gateway) handleSmartAssign(ctx context.Context, session *Session, frame Frame, actor taskUC.Actor) {
	var data assignData
	if !g.decode(session, frame, &data) {
		return
	}
	res, err := g.tasks.SmartAssignTask(ctx, data.TaskID, data.KnownVersion, actor)
	g.finish(session, frame.ID, res, err)
}

func (g *Gateway) handleComment(ctx context.Context, session *Session, frame Frame, actor taskUC.Actor) {
	var data commentData
	if !g.decode(session, frame, &data) {
		return
	}
	res, err := g.tasks.AddComment(ctx, data.TaskID, data.Text, actor)
	g.finish(session, frame.ID, res, err)
}

func (g *Gateway) handleArchive(ctx context.Context, session *Session, frame Frame, actor taskUC.Actor) {
	var data taskRef
	if !g.decode(session, frame, &data) {
		return
	}
	res, err := g.tasks.ArchiveTask(ctx, data.TaskID, actor)
	g.finish(session, frame.ID, res, err)
}

func (g *Gateway) handleDelete(ctx context.Context, session *Session, frame Frame, actor taskUC.Actor) {
	var data taskRef
	if !g.decode(session, frame, &data) {
		return
	}
	res, err := g.tasks.DeleteTask(ctx, data.TaskID, actor)
	g.finish(session, frame.ID, res, err)
}

func (g *Gateway) handleResolve(ctx context.Context, session *Session, frame Frame, actor taskUC.Actor) {
	var data resolveData
	if !g.decode(session, frame, &data) {
		return
	}
	res, err := g.tasks.ResolveConflict(ctx, data.TaskID, data.ConflictID, domain.ResolutionStrategy(data.Strategy), actor)
	g.finish(session, frame.ID, res, err)
}

func (g *Gateway) handleEditStart(session *Session, frame Frame) {
	var data editStartData
	if !g.decode(session, frame, &data) {
		return
	}
	edit, contendedWith := g.conflicts.StartEdit(data.TaskID, session.UserID, session.ID)
	if contendedWith != nil {
		g.reply(session, frame.ID, domain.EventEditContended, contendedWith)
		return
	}

	// The editor's known_version rides along so watchers can tell
	// whether the edit started from the current state.
	payload := struct {
		*domain.EditSession
		KnownVersion *int64 `json:"known_version,omitempty"`
	}{edit, data.KnownVersion}
	g.reply(session, frame.ID, domain.EventEditStarted, payload)
	g.hub.Publish(domain.Event{
		Kind:    domain.EventEditStarted,
		Rooms:   []string{domain.RoomTask(data.TaskID)},
		Payload: payload,
	}, session.ID)
}

func (g *Gateway) handleEditEnd(session *Session, frame Frame) {
	var data taskRef
	if !g.decode(session, frame, &data) {
		return
	}
	ended := g.conflicts.EndEdit(data.TaskID, session.UserID)
	g.reply(session, frame.ID, domain.EventEditEnded, data)
	if ended {
		g.hub.Publish(domain.Event{
			Kind:    domain.EventEditEnded,
			Rooms:   []string{domain.RoomTask(data.TaskID)},
			Payload: editEndedData{TaskID: data.TaskID, UserID: session.UserID},
		}, session.ID)
	}
}

// relay forwards ephemeral signals to the task room. The sender's
// user_id is stamped over whatever the client sent so a forged field
// cannot impersonate anyone; every other payload field (is_typing,
// position, ...) passes through untouched.
func (g *Gateway) relay(session *Session, frame Frame) {
	var fields map[string]json.RawMessage
	if !g.decode(session, frame, &fields) {
		return
	}

	var taskID string
	if raw, ok := fields["task_id"]; ok {
		_ = json.Unmarshal(raw, &taskID)
	}
	if taskID == "" {
		return
	}

	stamped, err := json.Marshal(session.UserID)
	if err != nil {
		return
	}
	fields["user_id"] = stamped

	g.hub.Publish(domain.Event{
		Kind:    frame.Type,
		Rooms:   []string{domain.RoomTask(taskID)},
		Payload: fields,
	}, session.ID)
}

// finish completes a command round-trip: error frame on failure,
// otherwise the ack first and then the session's own copy of every
// event it is subscribed to. Acking before self-delivery is what lets
// the client reconcile its optimistic state before peers' views move.
func (g *Gateway) finish(session *Session, correlationID string, res *taskUC.Result, err error) {
	if err != nil {
		g.sendError(session, correlationID, err)
		return
	}

	ack := struct {
		Task     *domain.Task `json:"task,omitempty"`
		Assignee *domain.User `json:"assignee,omitempty"`
	}{res.Task, res.Assignee}
	g.reply(session, correlationID, "ack", ack)

	// Self-delivery runs after the task lock is released, so a
	// competing mutation's broadcast can reach this session first.
	// Event payloads carry the task version; clients order on it.
	for _, event := range res.Events {
		if !g.hub.MemberOfAny(session.ID, event.Rooms) {
			continue
		}
		frame, encErr := EncodeFrame(event.Kind, "", event.Payload)
		if encErr != nil {
			g.logger.Error("failed to encode event", zap.String("kind", event.Kind), zap.Error(encErr))
			continue
		}
		g.hub.SendTo(session.ID, frame)
	}
}

func (g *Gateway) decode(session *Session, frame Frame, into interface{}) bool {
	if err := json.Unmarshal(frame.Data, into); err != nil {
		g.sendError(session, frame.ID, domain.NewError(domain.ErrCodeInvalid, "malformed payload"))
		return false
	}
	return true
}

func (g *Gateway) reply(session *Session, correlationID, kind string, payload interface{}) {
	frame, err := EncodeFrame(kind, correlationID, payload)
	if err != nil {
		g.logger.Error("failed to encode reply", zap.String("kind", kind), zap.Error(err))
		return
	}
	g.hub.SendTo(session.ID, frame)
}

func (g *Gateway) sendError(session *Session, correlationID string, err error) {
	var domErr *domain.Error
	if errors.As(err, &domErr) {
		g.hub.SendTo(session.ID, EncodeError(correlationID, string(domErr.Code), domErr.Message, domErr.Details))
		return
	}
	g.hub.SendTo(session.ID, EncodeError(correlationID, string(domain.ErrCodeInternal), "internal error", nil))
}
