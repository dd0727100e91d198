package http

import (
	"context"
	"net/http"
	"time"
)

// Client is the outbound HTTP client used for intercepted fetches, collaborator calls
// and web push delivery.
type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			// Redirects are returned to the caller so intercepted navigations keep their
			// original response.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	return c.httpClient.Do(req)
}

// StdClient exposes the underlying client for libraries that take *http.Client.
func (c *Client) StdClient() *http.Client {
	return c.httpClient
}
