// internal/workers/push/push-receive/models.go
package pushreceive

type Input struct {
	Data []byte
}

type Output struct {
	NotificationID string `json:"notificationId"`
	Title          string `json:"title"`
	Body           string `json:"body"`
	URL            string `json:"url"`
	Tag            string `json:"tag,omitempty"`
	Variant        string `json:"variant"` // "full" or "minimal"
	Fallback       bool   `json:"fallback"`
}

// Option set variants, also used as the notifications_shown_total label.
const (
	VariantFull    = "full"
	VariantMinimal = "minimal"
)
