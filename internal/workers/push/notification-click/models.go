// internal/workers/push/notification-click/models.go
package notificationclick

type Input struct {
	NotificationID string `json:"notificationId"`
	Action         string `json:"action"`
	URL            string `json:"url"`
}

type Output struct {
	Outcome  string `json:"outcome"`
	URL      string `json:"url,omitempty"`
	ClientID string `json:"clientId,omitempty"`
}

// Outcomes
const (
	OutcomeDismissed = "dismissed"
	OutcomeFocused   = "focused"
	OutcomeOpened    = "opened"
)

// ActionClose dismisses the notification without navigating.
const ActionClose = "close"
