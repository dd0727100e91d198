// Package collaborator is the client of the push server's /api/push endpoints.
package collaborator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"storefront-push/internal/models"
)

// Doer sends HTTP requests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is the push server API client.
type Client struct {
	baseURL    string
	httpClient Doer
}

// New creates a new API client.
func New(baseURL string, httpClient Doer) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Save stores a subscription for an owner.
func (c *Client) Save(ctx context.Context, ownerID, userType string, sub *models.PushSubscription) error {
	req := models.SubscribeRequest{UserID: ownerID, UserType: userType, Subscription: *sub}
	if err := c.post(ctx, "/api/push/subscribe", req, nil); err != nil {
		return fmt.Errorf("client.Save: %w", err)
	}
	return nil
}

// Delete removes the stored record for an endpoint.
func (c *Client) Delete(ctx context.Context, ownerID, endpoint string) error {
	req := models.UnsubscribeRequest{UserID: ownerID, Endpoint: endpoint}
	if err := c.post(ctx, "/api/push/unsubscribe", req, nil); err != nil {
		return fmt.Errorf("client.Delete: %w", err)
	}
	return nil
}

// Rotate replaces the record stored for oldEndpoint, keeping its owner.
func (c *Client) Rotate(ctx context.Context, oldEndpoint string, sub *models.PushSubscription) error {
	req := models.RotateRequest{OldEndpoint: oldEndpoint, Subscription: *sub}
	if err := c.post(ctx, "/api/push/rotate", req, nil); err != nil {
		return fmt.Errorf("client.Rotate: %w", err)
	}
	return nil
}

// Send fans a notification out to the subscriptions of a user or user type.
func (c *Client) Send(ctx context.Context, req models.SendRequest) (*models.SendResponse, error) {
	var out models.SendResponse
	if err := c.post(ctx, "/api/push/send", req, &out); err != nil {
		return nil, fmt.Errorf("client.Send: %w", err)
	}
	return &out, nil
}

// Test asks the server to send its fixed test notification.
func (c *Client) Test(ctx context.Context) (*models.TestResponse, error) {
	var out models.TestResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/push/test", nil, &out); err != nil {
		return nil, fmt.Errorf("client.Test: %w", err)
	}
	return &out, nil
}

// VAPIDPublicKey returns the server's application server key.
func (c *Client) VAPIDPublicKey(ctx context.Context) (string, error) {
	var out struct {
		PublicKey string `json:"publicKey"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/api/push/vapid-public-key", nil, &out); err != nil {
		return "", fmt.Errorf("client.VAPIDPublicKey: %w", err)
	}
	return out.PublicKey, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	return c.doRequest(ctx, http.MethodPost, path, body, out)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode >= 400 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max error body
		if readErr != nil {
			return &HTTPError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", readErr)}
		}
		var apiErr struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		msg := string(respBody)
		if json.Unmarshal(respBody, &apiErr) == nil {
			if apiErr.Message != "" {
				msg = apiErr.Message
			} else if apiErr.Error != "" {
				msg = apiErr.Error
			}
		}
		return &HTTPError{StatusCode: resp.StatusCode, Message: msg, Body: string(respBody)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
