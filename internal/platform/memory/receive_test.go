package memory

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-push/internal/platform"
)

// deliver encrypts payload for sub the way the push server does and returns the
// request body the push service would receive.
func deliver(t *testing.T, p256dh, auth string, payload []byte) []byte {
	t.Helper()
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	vapidPrivate, vapidPublic, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)

	resp, err := webpush.SendNotification(payload, &webpush.Subscription{
		Endpoint: srv.URL,
		Keys:     webpush.Keys{P256dh: p256dh, Auth: auth},
	}, &webpush.Options{
		Subscriber:      "ops@shop.example.test",
		VAPIDPublicKey:  vapidPublic,
		VAPIDPrivateKey: vapidPrivate,
		TTL:             60,
	})
	require.NoError(t, err)
	resp.Body.Close()
	require.NotEmpty(t, body)
	return body
}

func TestPushManager_ReceiveDecrypts(t *testing.T) {
	ctx := context.Background()
	m := NewPushManager("https://agent.example.test/push")
	sub, err := m.Subscribe(ctx, platform.SubscribeOptions{UserVisibleOnly: true, ApplicationServerKey: "key-a"})
	require.NoError(t, err)

	payload := []byte(`{"title":"Order #1042","body":"New order received","url":"/admin/orders/1042"}`)
	body := deliver(t, sub.Keys.P256dh, sub.Keys.Auth, payload)

	got, err := m.Receive(ctx, sub.Endpoint, body)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestPushManager_ReceiveRejects(t *testing.T) {
	ctx := context.Background()
	m := NewPushManager("https://agent.example.test/push")
	sub, err := m.Subscribe(ctx, platform.SubscribeOptions{UserVisibleOnly: true, ApplicationServerKey: "key-a"})
	require.NoError(t, err)
	body := deliver(t, sub.Keys.P256dh, sub.Keys.Auth, []byte(`{"title":"x"}`))

	_, err = m.Receive(ctx, "https://agent.example.test/push/unknown", body)
	assert.ErrorIs(t, err, platform.ErrNotFound)

	tampered := append([]byte(nil), body...)
	tampered[len(tampered)-1] ^= 0xff
	_, err = m.Receive(ctx, sub.Endpoint, tampered)
	assert.ErrorIs(t, err, ErrBadPushMessage)

	_, err = m.Receive(ctx, sub.Endpoint, []byte("short"))
	assert.ErrorIs(t, err, ErrBadPushMessage)

	m.Invalidate()
	_, err = m.Receive(ctx, sub.Endpoint, body)
	assert.ErrorIs(t, err, platform.ErrNotFound, "an expired subscription is gone")
}
