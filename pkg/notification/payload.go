// Package notification turns inbound push bodies into renderable notifications.
//
// Construction is two-tier: Parse reports whether the body could be decoded, and
// Normalize turns any parse outcome into a Payload whose title, body and URL are
// never empty.
package notification

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	apperrors "storefront-push/internal/common/errors"
)

// RawPayload holds the fields found in a decoded push body. Fields of the wrong JSON
// type are left empty.
type RawPayload struct {
	Title     string
	Body      string
	Message   string
	URL       string
	Link      string
	Tag       string
	ID        string
	Timestamp int64
}

// Defaults are substituted for missing payload fields.
type Defaults struct {
	Title string
	Body  string
	URL   string
}

// Payload is a normalized notification ready for display.
type Payload struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	URL       string `json:"url"`
	Tag       string `json:"tag,omitempty"`
	ID        string `json:"id,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`

	// Fallback is set when the inbound body could not be parsed.
	Fallback bool `json:"-"`
}

// Parse decodes a push body. Empty, non-JSON and non-object bodies yield a
// PAYLOAD_PARSE_ERROR.
func Parse(data []byte) (*RawPayload, error) {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, apperrors.NewPayloadParseError(fmt.Errorf("empty push body"))
	}

	var decoded interface{}
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return nil, apperrors.NewPayloadParseError(err)
	}
	obj, ok := decoded.(map[string]interface{})
	if !ok {
		return nil, apperrors.NewPayloadParseError(fmt.Errorf("push body is %T, not an object", decoded))
	}

	return &RawPayload{
		Title:     stringField(obj, "title"),
		Body:      stringField(obj, "body"),
		Message:   stringField(obj, "message"),
		URL:       stringField(obj, "url"),
		Link:      stringField(obj, "link"),
		Tag:       stringField(obj, "tag"),
		ID:        idField(obj, "id"),
		Timestamp: timestampField(obj, "timestamp"),
	}, nil
}

// Normalize resolves a parse outcome into a displayable payload. It never fails.
func Normalize(raw *RawPayload, parseErr error, d Defaults) Payload {
	d = d.withFallbacks()
	if parseErr != nil || raw == nil {
		return Payload{Title: d.Title, Body: d.Body, URL: d.URL, Fallback: true}
	}

	return Payload{
		Title:     firstNonEmpty(raw.Title, d.Title),
		Body:      firstNonEmpty(raw.Body, raw.Message, d.Body),
		URL:       firstNonEmpty(raw.URL, raw.Link, d.URL),
		Tag:       strings.TrimSpace(raw.Tag),
		ID:        raw.ID,
		Timestamp: raw.Timestamp,
	}
}

// FromPushData parses and normalizes in one step.
func FromPushData(data []byte, d Defaults) (Payload, error) {
	raw, err := Parse(data)
	return Normalize(raw, err, d), err
}

func (d Defaults) withFallbacks() Defaults {
	if strings.TrimSpace(d.Title) == "" {
		d.Title = "Notification"
	}
	if strings.TrimSpace(d.Body) == "" {
		d.Body = "New notification"
	}
	if strings.TrimSpace(d.URL) == "" {
		d.URL = "/admin"
	}
	return d
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func stringField(obj map[string]interface{}, key string) string {
	s, _ := obj[key].(string)
	return s
}

func idField(obj map[string]interface{}, key string) string {
	switch v := obj[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func timestampField(obj map[string]interface{}, key string) int64 {
	switch v := obj[key].(type) {
	case float64:
		return int64(v)
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
