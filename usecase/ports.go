package usecase

import (
	"context"

	"github.com/flowboard/backend/domain"
)

// Publisher fans a domain event out to its rooms. The originating
// session, when known, is excluded so its acknowledgement can be
// written first; the gateway self-delivers the event afterwards.
// Implementations must not block the caller on slow consumers.
type Publisher interface {
	Publish(event domain.Event, exceptSessionID string)
}

// NopPublisher discards events; used where no fan-out layer is wired.
type NopPublisher struct{}

func (NopPublisher) Publish(domain.Event, string) {}

// Recorder ingests activity records. Record is fire-and-forget with
// respect to the mutation that produced the activity: failures are
// logged, never surfaced.
type Recorder interface {
	Record(ctx context.Context, activity *domain.Activity)
}

// NopRecorder discards activities; used in tests.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, *domain.Activity) {}

// ConflictMarker is implemented by recorders that can flip a
// conflict_detected record to resolved.
type ConflictMarker interface {
	MarkResolved(ctx context.Context, conflictID, resolution string)
}
