package pushserver

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	errs "storefront-push/internal/common/errors"
	"storefront-push/internal/common/logger"
	"storefront-push/internal/models"
)

type Handler struct {
	service *Service
	logger  logger.Logger
}

func NewHandler(service *Service, log logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

// Routes registers the /api/push endpoints on router.
func (h *Handler) Routes(router *mux.Router) {
	api := router.PathPrefix("/api/push").Subrouter()
	api.HandleFunc("/subscribe", h.SubscribeHandler).Methods(http.MethodPost)
	api.HandleFunc("/unsubscribe", h.UnsubscribeHandler).Methods(http.MethodPost)
	api.HandleFunc("/rotate", h.RotateHandler).Methods(http.MethodPost)
	api.HandleFunc("/send", h.SendHandler).Methods(http.MethodPost)
	api.HandleFunc("/test", h.TestHandler).Methods(http.MethodPost)
	api.HandleFunc("/vapid-public-key", h.VAPIDPublicKeyHandler).Methods(http.MethodGet)
	api.Use(h.loggingMiddleware)
}

// NewRouter builds the push server's HTTP handler with CORS for the storefront origins.
func NewRouter(h *Handler, allowedOrigins []string, extra func(*mux.Router)) http.Handler {
	router := mux.NewRouter()
	h.Routes(router)
	if extra != nil {
		extra(router)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
	return c.Handler(router)
}

// POST /api/push/subscribe
func (h *Handler) SubscribeHandler(w http.ResponseWriter, r *http.Request) {
	var req models.SubscribeRequest
	if !h.decode(w, r, &req) {
		return
	}
	stored, err := h.service.Subscribe(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success":   true,
		"endpoint":  stored.Endpoint,
		"createdAt": stored.CreatedAt,
	})
}

// POST /api/push/unsubscribe
func (h *Handler) UnsubscribeHandler(w http.ResponseWriter, r *http.Request) {
	var req models.UnsubscribeRequest
	if !h.decode(w, r, &req) {
		return
	}
	removed, err := h.service.Unsubscribe(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "removed": removed})
}

// POST /api/push/rotate
func (h *Handler) RotateHandler(w http.ResponseWriter, r *http.Request) {
	var req models.RotateRequest
	if !h.decode(w, r, &req) {
		return
	}
	rotated, err := h.service.Rotate(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "endpoint": rotated.Endpoint})
}

// POST /api/push/send
func (h *Handler) SendHandler(w http.ResponseWriter, r *http.Request) {
	var req models.SendRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.service.Send(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /api/push/test takes no body.
func (h *Handler) TestHandler(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Test(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/push/vapid-public-key
func (h *Handler) VAPIDPublicKeyHandler(w http.ResponseWriter, r *http.Request) {
	key := h.service.VAPIDPublicKey()
	if key == "" {
		h.writeError(w, errs.NewConfigurationError("VAPID public key is not configured"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"publicKey": key})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err == nil {
		err = json.Unmarshal(body, v)
	}
	if err != nil {
		h.writeError(w, errs.NewInvalidRequestError("malformed JSON body: "+err.Error()))
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	stdErr := errs.Normalize(err)
	status := statusFor(stdErr.Code)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", map[string]interface{}{
			"errorCode": string(stdErr.Code),
			"error":     err.Error(),
		})
	}
	writeJSON(w, status, map[string]interface{}{
		"error":   stdErr.Code,
		"message": stdErr.Message,
		"details": stdErr.Details,
	})
}

func statusFor(code errs.ErrorCode) int {
	switch code {
	case errs.ErrCodeInvalidRequest, errs.ErrCodeSubscriptionInvalid:
		return http.StatusBadRequest
	case errs.ErrCodeSubscriptionNotFound:
		return http.StatusNotFound
	case errs.ErrCodeConfiguration:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.logger.Info("request", map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		})
	})
}
