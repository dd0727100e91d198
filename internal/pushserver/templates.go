package pushserver

import (
	"bytes"
	"fmt"
	"text/template"

	errs "storefront-push/internal/common/errors"
	"storefront-push/internal/models"
)

// DefaultTemplates render the storefront events admins are alerted about. Fields of
// the event's data map are available as {{.field}}.
var DefaultTemplates = []models.NotificationTemplate{
	{
		EventType: "order.created",
		Title:     "Order #{{.number}}",
		Body:      "New order received{{with .total}} ({{.}}){{end}}",
		URL:       "/admin/orders/{{.number}}",
		Tag:       "order-{{.number}}",
	},
	{
		EventType: "booking.created",
		Title:     "New booking",
		Body:      "{{with .customer}}{{.}} booked{{else}}A customer booked{{end}}{{with .service}} {{.}}{{end}}",
		URL:       "/admin/bookings/{{.id}}",
		Tag:       "booking-{{.id}}",
	},
	{
		EventType: "invoice.paid",
		Title:     "Invoice #{{.number}} paid",
		Body:      "Payment received{{with .amount}}: {{.}}{{end}}",
		URL:       "/admin/invoices/{{.number}}",
		Tag:       "invoice-{{.number}}",
	},
}

type compiledTemplate struct {
	title, body, url, tag *template.Template
}

// Templates maps event types to notification templates.
type Templates struct {
	byType map[string]compiledTemplate
}

func NewTemplates(defs []models.NotificationTemplate) (*Templates, error) {
	t := &Templates{byType: make(map[string]compiledTemplate, len(defs))}
	for _, def := range defs {
		var c compiledTemplate
		var err error
		for _, f := range []struct {
			dst  **template.Template
			name string
			text string
		}{
			{&c.title, "title", def.Title},
			{&c.body, "body", def.Body},
			{&c.url, "url", def.URL},
			{&c.tag, "tag", def.Tag},
		} {
			*f.dst, err = template.New(def.EventType + "." + f.name).Parse(f.text)
			if err != nil {
				return nil, fmt.Errorf("parse %s template for %s: %w", f.name, def.EventType, err)
			}
		}
		t.byType[def.EventType] = c
	}
	return t, nil
}

// Render builds the admin send request for ev. ok is false when no template exists
// for the event type.
func (t *Templates) Render(ev models.StorefrontEvent) (req *models.SendRequest, ok bool, err error) {
	c, ok := t.byType[ev.Type]
	if !ok {
		return nil, false, nil
	}
	data := ev.Data
	if data == nil {
		data = map[string]interface{}{}
	}

	out := &models.SendRequest{UserType: DefaultUserType}
	for _, f := range []struct {
		tmpl *template.Template
		dst  *string
	}{
		{c.title, &out.Title},
		{c.body, &out.Message},
		{c.url, &out.URL},
		{c.tag, &out.Tag},
	} {
		var buf bytes.Buffer
		if err := f.tmpl.Execute(&buf, data); err != nil {
			return nil, true, errs.NewInvalidRequestError(fmt.Sprintf("render %s: %v", ev.Type, err))
		}
		*f.dst = buf.String()
	}
	return out, true, nil
}
