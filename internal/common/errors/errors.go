// Package errors provides the error taxonomy shared by the subscription manager, the
// worker handlers and the push server.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Client-side taxonomy
const (
	ErrCodeUnsupportedPlatform  ErrorCode = "UNSUPPORTED_PLATFORM"
	ErrCodePermissionDenied     ErrorCode = "PERMISSION_DENIED"
	ErrCodeConfiguration        ErrorCode = "CONFIGURATION_ERROR"
	ErrCodeNetwork              ErrorCode = "NETWORK_ERROR"
	ErrCodePayloadParse         ErrorCode = "PAYLOAD_PARSE_ERROR"
	ErrCodeSubscriptionRotated  ErrorCode = "SUBSCRIPTION_ROTATED"
	ErrCodeRegistrationNotReady ErrorCode = "REGISTRATION_NOT_READY"
)

// Server-side taxonomy
const (
	ErrCodeSubscriptionInvalid      ErrorCode = "SUBSCRIPTION_INVALID"
	ErrCodeSubscriptionNotFound     ErrorCode = "SUBSCRIPTION_NOT_FOUND"
	ErrCodeDeliveryFailed           ErrorCode = "DELIVERY_FAILED"
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeInvalidRequest           ErrorCode = "INVALID_REQUEST"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func detailsOf(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// 2. Error Constructors
// ==========================

// NewUnsupportedPlatformError reports a runtime without worker or push capability.
func NewUnsupportedPlatformError(missing string) *StandardError {
	return newError(ErrCodeUnsupportedPlatform, "Push notifications are not supported on this platform",
		fmt.Sprintf("missing: %s", missing), false, nil)
}

// NewPermissionDeniedError reports a permission state other than granted.
func NewPermissionDeniedError(state string) *StandardError {
	return newError(ErrCodePermissionDenied, "Notification permission not granted",
		fmt.Sprintf("permission: %s", state), false, nil)
}

// NewConfigurationError reports missing or invalid deployment configuration.
func NewConfigurationError(details string) *StandardError {
	return newError(ErrCodeConfiguration, "Push notifications are not configured", details, false, nil)
}

// NewNetworkError creates a retryable transport error.
func NewNetworkError(operation string, err error) *StandardError {
	return newError(ErrCodeNetwork, fmt.Sprintf("Network error during %s", operation), detailsOf(err), true, err)
}

// NewPayloadParseError reports a push body that could not be decoded. It is recovered
// locally and never shown to the user.
func NewPayloadParseError(err error) *StandardError {
	return newError(ErrCodePayloadParse, "Push payload could not be parsed", detailsOf(err), false, err)
}

// NewSubscriptionRotatedError reports a subscription invalidated by the push service.
func NewSubscriptionRotatedError(endpoint string) *StandardError {
	return newError(ErrCodeSubscriptionRotated, "Push subscription was rotated by the push service",
		fmt.Sprintf("endpoint: %s", endpoint), true, nil)
}

// NewRegistrationNotReadyError reports a missing or inactive worker registration.
func NewRegistrationNotReadyError(state string) *StandardError {
	return newError(ErrCodeRegistrationNotReady, "Background worker is not active",
		fmt.Sprintf("state: %s", state), true, nil)
}

// NewSubscriptionInvalidError creates a non-retryable subscription validation error.
func NewSubscriptionInvalidError(details string) *StandardError {
	return newError(ErrCodeSubscriptionInvalid, "Invalid push subscription", details, false, nil)
}

// NewSubscriptionNotFoundError reports an unknown endpoint.
func NewSubscriptionNotFoundError(endpoint string) *StandardError {
	return newError(ErrCodeSubscriptionNotFound, "Push subscription not found",
		fmt.Sprintf("endpoint: %s", endpoint), false, nil)
}

// NewDeliveryFailedError creates a delivery error for one endpoint.
func NewDeliveryFailedError(statusCode int, err error) *StandardError {
	return newError(ErrCodeDeliveryFailed, "Push delivery failed", detailsOf(err), false, err).
		WithMetadata("statusCode", statusCode)
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", detailsOf(err), true, err)
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("operation: %s, error: %s", operation, detailsOf(err)), true, err)
}

// NewInvalidRequestError reports a malformed request body.
func NewInvalidRequestError(details string) *StandardError {
	return newError(ErrCodeInvalidRequest, "Invalid request", details, false, nil)
}

// ==========================
// 3. Inspection helpers
// ==========================

// AsStandard extracts a *StandardError from err's chain.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err's chain carries a StandardError with the given code.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandard(err)
	return ok && stdErr.Code == code
}

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	if stdErr, ok := AsStandard(err); ok {
		return stdErr
	}
	return newError("INTERNAL_ERROR", "Unexpected error", err.Error(), false, err)
}

// GetRetryCount is the number of retries a caller may attempt for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeNetwork,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed:
		return 3

	case ErrCodeRegistrationNotReady,
		ErrCodeSubscriptionRotated:
		return 1

	default:
		return 0
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case code == ErrCodeUnsupportedPlatform || code == ErrCodeRegistrationNotReady:
		return "PLATFORM"
	case code == ErrCodePermissionDenied:
		return "PERMISSION"
	case code == ErrCodeConfiguration:
		return "CONFIGURATION"
	case code == ErrCodeNetwork:
		return "NETWORK"
	case strings.Contains(codeStr, "PAYLOAD"):
		return "PAYLOAD"
	case strings.Contains(codeStr, "SUBSCRIPTION"):
		return "SUBSCRIPTION"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "DELIVERY"):
		return "DELIVERY"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}

// UserMessage returns actionable copy for the UI. Browser, deployment and network
// problems are kept distinguishable.
func UserMessage(err error) string {
	stdErr, ok := AsStandard(err)
	if !ok {
		return "Something went wrong while setting up notifications. Please try again."
	}
	switch stdErr.Code {
	case ErrCodeUnsupportedPlatform:
		return "This browser does not support push notifications."
	case ErrCodePermissionDenied:
		return "Notifications are blocked. Allow notifications for this site in your browser settings."
	case ErrCodeConfiguration:
		return "Notifications are not configured on the server. Contact your administrator."
	case ErrCodeRegistrationNotReady:
		return "The notification service is still starting. Reload the page and try again."
	case ErrCodeNetwork:
		return "Could not reach the notification service. Check your connection and try again."
	default:
		return stdErr.Message
	}
}
