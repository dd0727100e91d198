// internal/workers/network/fetch-intercept/models.go
package fetchintercept

// Response sources, also used as the fetch_responses_total label.
const (
	SourceNetwork  = "network"
	SourceCache    = "cache"
	SourceShell    = "shell"
	SourceOffline  = "offline"
	SourceAPIError = "api_error"
)

// apiError is the body of the synthesized API failure response.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Path    string `json:"path"`
}

const offlinePage = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Offline</title></head>
<body>
<h1>You are offline</h1>
<p>The admin dashboard could not be reached. Check your connection and reload.</p>
</body>
</html>
`
