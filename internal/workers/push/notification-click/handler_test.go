package notificationclick

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-push/internal/common/logger"
	"storefront-push/internal/platform/memory"
	"storefront-push/pkg/notification"
)

const origin = "https://shop.example.test"

func setup(t *testing.T) (*Handler, *memory.NotificationCenter, *memory.Clients) {
	t.Helper()
	center := memory.NewNotificationCenter()
	clients, err := memory.NewClients(origin)
	require.NoError(t, err)

	cfg := LoadConfig()
	cfg.Origin = origin
	h, err := NewHandler(cfg, center, clients, logger.NewTestLogger(t))
	require.NoError(t, err)
	return h, center, clients
}

func show(t *testing.T, center *memory.NotificationCenter) string {
	t.Helper()
	id, err := center.Show(context.Background(), "Order #1021", notification.Options{Body: "New order received"})
	require.NoError(t, err)
	return id
}

func TestHandler_Execute_CloseActionDoesNothingElse(t *testing.T) {
	h, center, clients := setup(t)
	admin := clients.AddWindow("/admin/products", true)
	id := show(t, center)

	out, err := h.Execute(context.Background(), &Input{NotificationID: id, Action: ActionClose, URL: "/admin/orders/1021"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDismissed, out.Outcome)

	assert.Equal(t, []string{id}, center.Closed())
	assert.Empty(t, clients.Opened())
	assert.False(t, admin.Focused())
	assert.Equal(t, origin+"/admin/products", admin.URL())
}

func TestHandler_Execute_FocusesExistingAdminWindow(t *testing.T) {
	h, center, clients := setup(t)
	clients.AddWindow("/products", false)
	admin := clients.AddWindow("/admin/products", false)
	id := show(t, center)

	out, err := h.Execute(context.Background(), &Input{NotificationID: id, URL: "/admin/orders/1021"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFocused, out.Outcome)
	assert.Equal(t, admin.ID(), out.ClientID)
	assert.True(t, admin.Focused())
	assert.Equal(t, origin+"/admin/orders/1021", admin.URL())
	assert.Empty(t, clients.Opened())
	assert.Len(t, center.Closed(), 1)
}

func TestHandler_Execute_OpensWindowWhenNoAdminWindow(t *testing.T) {
	h, center, clients := setup(t)
	shop := clients.AddWindow("/products", true)
	id := show(t, center)

	out, err := h.Execute(context.Background(), &Input{NotificationID: id, Action: "open", URL: "/admin/orders/1021"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeOpened, out.Outcome)
	assert.Equal(t, []string{origin + "/admin/orders/1021"}, clients.Opened())
	assert.Equal(t, origin+"/products", shop.URL())
}

func TestHandler_Execute_DefaultURL(t *testing.T) {
	h, _, clients := setup(t)

	out, err := h.Execute(context.Background(), &Input{})
	require.NoError(t, err)
	assert.Equal(t, origin+"/admin", out.URL)
	assert.Equal(t, []string{origin + "/admin"}, clients.Opened())
}

func TestHandler_Execute_IgnoresOtherOriginWindows(t *testing.T) {
	h, _, clients := setup(t)
	foreign := clients.AddWindow("https://evil.example.test/admin", true)

	out, err := h.Execute(context.Background(), &Input{URL: "/admin/invoices/7"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeOpened, out.Outcome)
	assert.Equal(t, "https://evil.example.test/admin", foreign.URL())
}

func TestHandler_Execute_IgnoresOtherSchemeWindows(t *testing.T) {
	h, _, clients := setup(t)
	plain := clients.AddWindow("http://shop.example.test/admin/orders", true)

	out, err := h.Execute(context.Background(), &Input{URL: "/admin/orders/12"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeOpened, out.Outcome)
	assert.Equal(t, "http://shop.example.test/admin/orders", plain.URL())
	assert.False(t, plain.Focused())
}

func TestHandler_Execute_FocusFailureOpensNewWindow(t *testing.T) {
	h, _, clients := setup(t)
	admin := clients.AddWindow("/admin", true)
	admin.FailFocus(errors.New("not allowed"))

	out, err := h.Execute(context.Background(), &Input{URL: "/admin/orders/1"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeOpened, out.Outcome)
	assert.Len(t, clients.Opened(), 1)
}

func TestHandler_Execute_OpenWindowFailure(t *testing.T) {
	h, _, clients := setup(t)
	clients.FailOpen(errors.New("popup blocked"))

	_, err := h.Execute(context.Background(), &Input{URL: "/admin"})
	assert.Error(t, err)
}

func TestHandler_Execute_PrefersFocusedAdminWindow(t *testing.T) {
	ctx := context.Background()
	h, _, clients := setup(t)
	first := clients.AddWindow("/admin/a", true)
	second := clients.AddWindow("/admin/b", true)
	require.NoError(t, second.Focus(ctx))

	out, err := h.Execute(ctx, &Input{URL: "/admin/orders/9"})
	require.NoError(t, err)
	assert.Equal(t, second.ID(), out.ClientID)
	assert.Equal(t, origin+"/admin/a", first.URL())
}
