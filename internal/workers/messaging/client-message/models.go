// internal/workers/messaging/client-message/models.go
package clientmessage

// Message types understood by the worker.
const (
	TypeSkipWaiting = "SKIP_WAITING"
	TypePing        = "PING"
	TypePong        = "PONG"
)

// Pong answers a PING with the running worker version.
type Pong struct {
	Type      string `json:"type"`
	Version   string `json:"version"`
	Timestamp int64  `json:"timestamp"`
}

type Output struct {
	Type    string `json:"type"`
	Handled bool   `json:"handled"`
	Replied bool   `json:"replied"`
}
