// internal/common/errors/handler.go
package errors

// ErrorHandler logs failures of worker events and user operations with their
// taxonomy fields attached.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleEventError normalizes err, logs it against the event kind and returns the
// normalized error so callers can branch on its code.
func (h *ErrorHandler) HandleEventError(event string, err error) *StandardError {
	if err == nil {
		return nil
	}
	stdErr := Normalize(err)
	h.logError(event, stdErr)
	return stdErr
}

func (h *ErrorHandler) logError(event string, stdErr *StandardError) {
	fields := map[string]interface{}{
		"event":         event,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"retries":       GetRetryCount(stdErr.Code),
		"errorCategory": GetErrorCategory(stdErr.Code),
	}
	for k, v := range stdErr.Metadata {
		fields[k] = v
	}
	h.logger.Error("Event failed", fields)
}
