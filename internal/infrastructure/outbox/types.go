package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Item is one activity record awaiting delivery to the log sink.
// Records are fire-and-forget for the request path; the outbox keeps
// them durable until the sink accepts them.
type Item struct {
	ID        string          `json:"id"`
	Action    string          `json:"action"`
	Payload   json.RawMessage `json:"payload"`
	Priority  int             `json:"priority"`
	Retries   int             `json:"retries"`
	Timestamp time.Time       `json:"timestamp"`

	bucketKey []byte
}

func (i *Item) normalize() {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Priority <= 0 || i.Priority > 5 {
		i.Priority = 3
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now()
	}
}
