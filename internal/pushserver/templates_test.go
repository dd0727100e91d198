package pushserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-push/internal/models"
)

func TestTemplates_Render(t *testing.T) {
	templates, err := NewTemplates(DefaultTemplates)
	require.NoError(t, err)

	tests := []struct {
		name string
		ev   models.StorefrontEvent
		want models.SendRequest
	}{
		{
			name: "order with total",
			ev:   models.StorefrontEvent{Type: "order.created", Data: map[string]interface{}{"number": "1042", "total": "€89.00"}},
			want: models.SendRequest{
				Title:    "Order #1042",
				Message:  "New order received (€89.00)",
				URL:      "/admin/orders/1042",
				Tag:      "order-1042",
				UserType: "admin",
			},
		},
		{
			name: "booking without customer",
			ev:   models.StorefrontEvent{Type: "booking.created", Data: map[string]interface{}{"id": "b-7", "service": "Haircut"}},
			want: models.SendRequest{
				Title:    "New booking",
				Message:  "A customer booked Haircut",
				URL:      "/admin/bookings/b-7",
				Tag:      "booking-b-7",
				UserType: "admin",
			},
		},
		{
			name: "invoice with numeric json fields",
			ev:   models.StorefrontEvent{Type: "invoice.paid", Data: map[string]interface{}{"number": float64(77), "amount": "120.00"}},
			want: models.SendRequest{
				Title:    "Invoice #77 paid",
				Message:  "Payment received: 120.00",
				URL:      "/admin/invoices/77",
				Tag:      "invoice-77",
				UserType: "admin",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, ok, err := templates.Render(tt.ev)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, tt.want, *req)
		})
	}
}

func TestTemplates_UnknownEvent(t *testing.T) {
	templates, err := NewTemplates(DefaultTemplates)
	require.NoError(t, err)

	req, ok, err := templates.Render(models.StorefrontEvent{Type: "cart.abandoned"})
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, req)
}

func TestNewTemplates_ParseError(t *testing.T) {
	_, err := NewTemplates([]models.NotificationTemplate{{EventType: "broken", Title: "{{.number"}})
	assert.Error(t, err)
}
