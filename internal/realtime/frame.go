package realtime

import "encoding/json"

// Frame is the wire unit in both directions:
// {"type": "<kind>", "id": "<optional correlation id>", "data": {...}}.
// Server-initiated frames omit the id.
type Frame struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Close reasons surfaced to clients.
const (
	CloseUnauthenticated = "unauthenticated"
	CloseSlowConsumer    = "slow-consumer"
)

// EncodeFrame serialises an outbound frame once so fan-out reuses the
// same bytes for every member.
func EncodeFrame(kind, correlationID string, data interface{}) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Type: kind, ID: correlationID, Data: payload})
}

type errorData struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// EncodeError builds the {type:"error"} frame.
func EncodeError(correlationID, code, message string, details interface{}) []byte {
	frame, err := EncodeFrame("error", correlationID, errorData{Code: code, Message: message, Details: details})
	if err != nil {
		frame, _ = EncodeFrame("error", correlationID, errorData{Code: code, Message: message})
	}
	return frame
}
