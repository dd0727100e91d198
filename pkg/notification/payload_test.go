package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "storefront-push/internal/common/errors"
)

var testDefaults = Defaults{Title: "Shopfront", Body: "New notification", URL: "/admin"}

func TestParse_OrderScenario(t *testing.T) {
	raw, err := Parse([]byte(`{"title":"Order #1021","body":"New order received","url":"/admin/orders/1021"}`))
	require.NoError(t, err)

	p := Normalize(raw, err, testDefaults)
	assert.Equal(t, "Order #1021", p.Title)
	assert.Equal(t, "New order received", p.Body)
	assert.Equal(t, "/admin/orders/1021", p.URL)
	assert.False(t, p.Fallback)
}

func TestParse_Malformed(t *testing.T) {
	bodies := map[string]string{
		"empty":      "",
		"whitespace": "   \n",
		"plain text": "server says hello",
		"truncated":  `{"title":"Order`,
		"array":      `["a","b"]`,
		"string":     `"just a string"`,
		"number":     `42`,
		"null":       `null`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			raw, err := Parse([]byte(body))
			require.Error(t, err)
			assert.Nil(t, raw)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodePayloadParse))

			p := Normalize(raw, err, testDefaults)
			assert.Equal(t, "Shopfront", p.Title)
			assert.Equal(t, "New notification", p.Body)
			assert.Equal(t, "/admin", p.URL)
			assert.True(t, p.Fallback)
		})
	}
}

func TestNormalize_FieldFallbacks(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Payload
	}{
		{
			name: "message used when body absent",
			body: `{"title":"Invoice paid","message":"INV-7 settled","link":"/admin/invoices/7"}`,
			want: Payload{Title: "Invoice paid", Body: "INV-7 settled", URL: "/admin/invoices/7"},
		},
		{
			name: "body wins over message",
			body: `{"title":"T","body":"B","message":"M"}`,
			want: Payload{Title: "T", Body: "B", URL: "/admin"},
		},
		{
			name: "url wins over link",
			body: `{"title":"T","body":"B","url":"/admin/a","link":"/admin/b"}`,
			want: Payload{Title: "T", Body: "B", URL: "/admin/a"},
		},
		{
			name: "blank title and body replaced",
			body: `{"title":"  ","body":""}`,
			want: Payload{Title: "Shopfront", Body: "New notification", URL: "/admin"},
		},
		{
			name: "wrong types ignored",
			body: `{"title":12,"body":["x"],"url":false}`,
			want: Payload{Title: "Shopfront", Body: "New notification", URL: "/admin"},
		},
		{
			name: "tag id and timestamp kept",
			body: `{"title":"T","body":"B","tag":"order-1021","id":1021,"timestamp":1718000000000}`,
			want: Payload{Title: "T", Body: "B", URL: "/admin", Tag: "order-1021", ID: "1021", Timestamp: 1718000000000},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromPushData([]byte(tt.body), testDefaults)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_EmptyDefaultsStillNonEmpty(t *testing.T) {
	p := Normalize(nil, apperrors.NewPayloadParseError(nil), Defaults{})
	assert.NotEmpty(t, p.Title)
	assert.NotEmpty(t, p.Body)
	assert.Equal(t, "/admin", p.URL)
}

func TestBuildOptions(t *testing.T) {
	d := Display{
		Icon:               "/icons/icon-192x192.png",
		Badge:              "/icons/badge-72x72.png",
		Vibrate:            []int{200, 100, 200},
		RequireInteraction: true,
		Renotify:           true,
	}

	tagged := BuildOptions(Payload{Title: "T", Body: "B", URL: "/admin/x", Tag: "orders"}, d)
	assert.True(t, tagged.Renotify)
	assert.True(t, tagged.RequireInteraction)
	assert.Equal(t, "orders", tagged.Tag)
	assert.Equal(t, []int{200, 100, 200}, tagged.Vibrate)
	require.Len(t, tagged.Actions, 2)
	assert.Equal(t, ActionOpen, tagged.Actions[0].Action)
	assert.Equal(t, ActionClose, tagged.Actions[1].Action)
	assert.Equal(t, "/admin/x", tagged.Data.URL)

	untagged := BuildOptions(Payload{Title: "T", Body: "B", URL: "/admin"}, d)
	assert.False(t, untagged.Renotify)

	d.Vibrate[0] = 999
	assert.Equal(t, 200, tagged.Vibrate[0])
}

func TestMinimalOptions(t *testing.T) {
	title, opts := MinimalOptions(
		Payload{Title: "T", Body: "B", URL: "/admin/y", Tag: "t"},
		Defaults{Title: "Shopfront", Body: "New notification", URL: "/admin"},
		Display{Icon: "/i.png", Badge: "/b.png", Renotify: true},
	)
	assert.Equal(t, "Shopfront", title)
	assert.Equal(t, Options{Body: "New notification", Icon: "/i.png", Data: Data{URL: "/admin/y"}}, opts)
}
