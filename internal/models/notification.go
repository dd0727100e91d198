// internal/models/notification.go
package models

// SendRequest asks the push server to fan a notification out. Exactly one of UserID
// or UserType selects the recipients; with neither set every admin subscription is
// targeted.
type SendRequest struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	URL      string `json:"url"`
	Tag      string `json:"tag,omitempty"`
	UserID   string `json:"userId,omitempty"`
	UserType string `json:"userType,omitempty"`
}

// SendResult is the outcome for one endpoint.
type SendResult struct {
	Endpoint   string `json:"endpoint"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	StatusCode int    `json:"statusCode,omitempty"`
	Body       string `json:"body,omitempty"`
	Removed    bool   `json:"removed,omitempty"`
}

type SendResponse struct {
	SuccessCount       int          `json:"successCount"`
	TotalSubscriptions int          `json:"totalSubscriptions"`
	Results            []SendResult `json:"results"`
}

// TestResponse reports a server-side test send together with configuration
// diagnostics.
type TestResponse struct {
	Success            bool         `json:"success"`
	Sent               bool         `json:"sent"`
	VAPIDConfigured    bool         `json:"vapidConfigured"`
	TotalSubscriptions int          `json:"totalSubscriptions"`
	SuccessCount       int          `json:"successCount"`
	Results            []SendResult `json:"results,omitempty"`
	Message            string       `json:"message,omitempty"`
}

// NotificationTemplate renders a storefront business event into a send request.
type NotificationTemplate struct {
	EventType string `json:"eventType"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	URL       string `json:"url"`
	Tag       string `json:"tag,omitempty"`
}

// StorefrontEvent is a business event consumed from the event stream.
type StorefrontEvent struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	OccurredAt string                 `json:"occurredAt"`
	Data       map[string]interface{} `json:"data"`
}
