package notification

// Action is a button rendered on a notification.
type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

const (
	ActionOpen  = "open"
	ActionClose = "close"
)

// Data travels with a shown notification and comes back on click.
type Data struct {
	URL       string `json:"url"`
	ID        string `json:"id,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// Options are the display options passed to the notifier.
type Options struct {
	Body               string   `json:"body"`
	Icon               string   `json:"icon,omitempty"`
	Badge              string   `json:"badge,omitempty"`
	Tag                string   `json:"tag,omitempty"`
	Vibrate            []int    `json:"vibrate,omitempty"`
	RequireInteraction bool     `json:"requireInteraction"`
	Renotify           bool     `json:"renotify"`
	Actions            []Action `json:"actions,omitempty"`
	Data               Data     `json:"data"`
}

// Display is the deployment-wide presentation config.
type Display struct {
	Icon               string
	Badge              string
	Vibrate            []int
	RequireInteraction bool
	Renotify           bool
	OpenActionTitle    string
	CloseActionTitle   string
}

// BuildOptions returns the full option set for p. Renotify is only requested when the
// payload carries a tag, since platforms reject renotify without one.
func BuildOptions(p Payload, d Display) Options {
	vibrate := make([]int, len(d.Vibrate))
	copy(vibrate, d.Vibrate)

	openTitle, closeTitle := d.OpenActionTitle, d.CloseActionTitle
	if openTitle == "" {
		openTitle = "Open"
	}
	if closeTitle == "" {
		closeTitle = "Close"
	}

	return Options{
		Body:               p.Body,
		Icon:               d.Icon,
		Badge:              d.Badge,
		Tag:                p.Tag,
		Vibrate:            vibrate,
		RequireInteraction: d.RequireInteraction,
		Renotify:           d.Renotify && p.Tag != "",
		Actions: []Action{
			{Action: ActionOpen, Title: openTitle},
			{Action: ActionClose, Title: closeTitle},
		},
		Data: Data{URL: p.URL, ID: p.ID, Timestamp: p.Timestamp},
	}
}

// MinimalOptions is the fallback: the configured title and body with the icon, nothing
// taken from the payload except the target URL so a click still navigates.
func MinimalOptions(p Payload, def Defaults, d Display) (string, Options) {
	return def.Title, Options{
		Body: def.Body,
		Icon: d.Icon,
		Data: Data{URL: p.URL},
	}
}
