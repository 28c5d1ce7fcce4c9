package transport

// Envelope wraps every API response. Error payloads reuse the same
// shape: the machine-readable code plus a human message, with Meta
// carrying structured extras such as a conflict descriptor.
type Envelope struct {
	Status string      `json:"status"`
	Code   string      `json:"code,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	Error  interface{} `json:"error,omitempty"`
	Meta   interface{} `json:"meta,omitempty"`
}

const (
	statusSuccess = "success"
	statusError   = "error"
)

func NewSuccess(data interface{}, meta interface{}) Envelope {
	return Envelope{Status: statusSuccess, Data: data, Meta: meta}
}

func NewError(code string, err interface{}, meta interface{}) Envelope {
	return Envelope{Status: statusError, Code: code, Error: err, Meta: meta}
}
