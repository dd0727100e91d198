package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// SubscriptionSchema is the wire shape of a push subscription.
const SubscriptionSchema = `{
  "type": "object",
  "required": ["endpoint", "keys"],
  "properties": {
    "endpoint": {"type": "string", "pattern": "^https?://", "minLength": 8},
    "expirationTime": {"type": ["integer", "null"]},
    "keys": {
      "type": "object",
      "required": ["p256dh", "auth"],
      "properties": {
        "p256dh": {"type": "string", "minLength": 16, "pattern": "^[A-Za-z0-9_=-]+$"},
        "auth": {"type": "string", "minLength": 8, "pattern": "^[A-Za-z0-9_=-]+$"}
      }
    }
  }
}`

// SendRequestSchema is the wire shape of a direct-send request.
const SendRequestSchema = `{
  "type": "object",
  "required": ["title"],
  "properties": {
    "title": {"type": "string", "minLength": 1},
    "message": {"type": "string"},
    "url": {"type": "string"},
    "tag": {"type": "string"},
    "userId": {"type": "string"},
    "userType": {"type": "string"}
  }
}`

var (
	subscriptionLoader = gojsonschema.NewStringLoader(SubscriptionSchema)
	sendRequestLoader  = gojsonschema.NewStringLoader(SendRequestSchema)
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ValidateSubscription validates a subscription value (struct, map or raw JSON bytes).
func ValidateSubscription(doc interface{}) (*ValidationResult, error) {
	return validate(subscriptionLoader, doc)
}

// ValidateSendRequest validates a direct-send request body.
func ValidateSendRequest(doc interface{}) (*ValidationResult, error) {
	return validate(sendRequestLoader, doc)
}

func validate(schema gojsonschema.JSONLoader, doc interface{}) (*ValidationResult, error) {
	var documentLoader gojsonschema.JSONLoader
	switch v := doc.(type) {
	case []byte:
		documentLoader = gojsonschema.NewBytesLoader(v)
	case json.RawMessage:
		documentLoader = gojsonschema.NewBytesLoader(v)
	default:
		// Round trip through JSON so struct tags decide field names.
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode document: %w", err)
		}
		documentLoader = gojsonschema.NewBytesLoader(raw)
	}

	result, err := gojsonschema.Validate(schema, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out, nil
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") {
			return true
		}
	}
	return false
}
