package pushserver

import (
	"context"
	"fmt"
	"io"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"storefront-push/internal/models"
)

// Delivery is the push service's answer for one endpoint.
type Delivery struct {
	StatusCode int
	Body       string
}

// Gone reports a subscription the push service no longer knows.
func (d *Delivery) Gone() bool {
	return d.StatusCode == http.StatusNotFound || d.StatusCode == http.StatusGone
}

func (d *Delivery) OK() bool {
	return d.StatusCode >= 200 && d.StatusCode < 300
}

type Sender interface {
	Send(ctx context.Context, sub models.StoredSubscription, payload []byte) (*Delivery, error)
}

type VAPIDConfig struct {
	PublicKey  string
	PrivateKey string
	Subscriber string
	TTL        int // seconds
}

func (v VAPIDConfig) Configured() bool {
	return v.PublicKey != "" && v.PrivateKey != ""
}

// WebPushSender encrypts and delivers payloads with VAPID authentication.
type WebPushSender struct {
	vapid      VAPIDConfig
	httpClient *http.Client
}

func NewWebPushSender(vapid VAPIDConfig, httpClient *http.Client) *WebPushSender {
	if vapid.TTL <= 0 {
		vapid.TTL = 60 * 60 * 24
	}
	return &WebPushSender{vapid: vapid, httpClient: httpClient}
}

func (s *WebPushSender) Send(ctx context.Context, sub models.StoredSubscription, payload []byte) (*Delivery, error) {
	target := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, target, &webpush.Options{
		HTTPClient:      s.httpClient,
		Subscriber:      s.vapid.Subscriber, // webpush-go adds mailto: automatically
		VAPIDPublicKey:  s.vapid.PublicKey,
		VAPIDPrivateKey: s.vapid.PrivateKey,
		TTL:             s.vapid.TTL,
		Urgency:         webpush.UrgencyHigh,
	})
	if err != nil {
		return nil, fmt.Errorf("send web push: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	out := &Delivery{StatusCode: resp.StatusCode}
	if !out.OK() {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		out.Body = string(body)
	}
	return out, nil
}
