package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	errs "storefront-push/internal/common/errors"
	"storefront-push/internal/common/swruntime"
	"storefront-push/internal/diagnostics"
	"storefront-push/internal/platform"
)

const maxBody = 1 << 20

type subscribeRequest struct {
	OwnerID string `json:"ownerId"`
}

type clickRequest struct {
	NotificationID string `json:"notificationId"`
	Action         string `json:"action"`
}

// Routes returns the agent's HTTP surface. Paths under /sw/ are the agent's own;
// everything else is a page request proxied to the origin through the fetch handler.
func (a *Agent) Routes() http.Handler {
	r := mux.NewRouter()
	sw := r.PathPrefix("/sw").Subrouter()

	sw.HandleFunc("/subscription", a.statusHandler).Methods(http.MethodGet)
	sw.HandleFunc("/subscription", a.subscribeHandler).Methods(http.MethodPost)
	sw.HandleFunc("/subscription", a.unsubscribeHandler).Methods(http.MethodDelete)

	sw.HandleFunc("/push/{id}", a.pushEndpointHandler).Methods(http.MethodPost)
	sw.HandleFunc("/events/push", a.pushEventHandler).Methods(http.MethodPost)
	sw.HandleFunc("/events/notificationclick", a.clickEventHandler).Methods(http.MethodPost)
	sw.HandleFunc("/events/pushsubscriptionchange", a.subscriptionChangeHandler).Methods(http.MethodPost)
	sw.HandleFunc("/events/message", a.messageEventHandler).Methods(http.MethodPost)
	sw.HandleFunc("/notifications", a.notificationsHandler).Methods(http.MethodGet)
	sw.HandleFunc("/windows", a.windowsHandler).Methods(http.MethodGet)

	diagnostics.RegisterRoutes(sw.PathPrefix("/diagnostics").Subrouter(), a.diagnostics)

	r.PathPrefix("/").HandlerFunc(a.proxyHandler)
	return r
}

// GET /sw/subscription
func (a *Agent) statusHandler(w http.ResponseWriter, r *http.Request) {
	st, err := a.diagnostics.Status(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// POST /sw/subscription asks for permission when still undecided, then subscribes.
func (a *Agent) subscribeHandler(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if body, _ := io.ReadAll(io.LimitReader(r.Body, maxBody)); len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			a.writeError(w, errs.NewInvalidRequestError(err.Error()))
			return
		}
	}
	if req.OwnerID == "" {
		req.OwnerID = a.config.Agent.OwnerID
	}

	if _, err := a.manager.RequestPermission(r.Context()); err != nil {
		a.writeError(w, err)
		return
	}
	sub, err := a.manager.Subscribe(r.Context(), req.OwnerID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// DELETE /sw/subscription
func (a *Agent) unsubscribeHandler(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("ownerId")
	if ownerID == "" {
		ownerID = a.config.Agent.OwnerID
	}
	if err := a.manager.Unsubscribe(r.Context(), ownerID); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /sw/push/{id} is the push-service endpoint minted subscriptions point at. The
// body is an encrypted web push message.
func (a *Agent) pushEndpointHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	endpoint := a.endpointBase + "/" + mux.Vars(r)["id"]
	data, err := a.push.Receive(r.Context(), endpoint, body)
	switch {
	case errors.Is(err, platform.ErrNotFound):
		http.Error(w, "push subscription has unsubscribed or expired", http.StatusGone)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// The push service acknowledges on receipt; display happens on the worker's time.
	go a.dispatchDetached(swruntime.PushEvent{Data: data})
	w.WriteHeader(http.StatusCreated)
}

// POST /sw/events/push takes an already decrypted payload.
func (a *Agent) pushEventHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		a.writeError(w, errs.NewInvalidRequestError(err.Error()))
		return
	}
	a.dispatch(w, r, swruntime.PushEvent{Data: body})
}

// POST /sw/events/notificationclick clicks a visible notification.
func (a *Agent) clickEventHandler(w http.ResponseWriter, r *http.Request) {
	var req clickRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req); err != nil || req.NotificationID == "" {
		a.writeError(w, errs.NewInvalidRequestError("notificationId is required"))
		return
	}

	visible, err := a.notifier.Visible(r.Context(), "")
	if err != nil {
		a.writeError(w, err)
		return
	}
	for _, n := range visible {
		if n.ID != req.NotificationID {
			continue
		}
		a.dispatch(w, r, swruntime.NotificationClickEvent{
			NotificationID: n.ID,
			Title:          n.Title,
			Action:         req.Action,
			Data:           n.Options.Data,
		})
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "notification is not visible"})
}

// POST /sw/events/pushsubscriptionchange expires the current subscription the way the
// push service does and lets the worker re-subscribe.
func (a *Agent) subscriptionChangeHandler(w http.ResponseWriter, r *http.Request) {
	old := a.push.Invalidate()
	if old == nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "no subscription to expire"})
		return
	}
	if err := a.runtime.Dispatch(r.Context(), swruntime.PushSubscriptionChangeEvent{OldSubscription: old}); err != nil {
		a.writeError(w, err)
		return
	}
	a.statusHandler(w, r)
}

// POST /sw/events/message posts a message as a page would and returns the replies.
func (a *Agent) messageEventHandler(w http.ResponseWriter, r *http.Request) {
	var msg swruntime.Message
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&msg); err != nil || msg.Type == "" {
		a.writeError(w, errs.NewInvalidRequestError("message type is required"))
		return
	}

	var mu sync.Mutex
	replies := []interface{}{}
	err := a.runtime.Dispatch(r.Context(), swruntime.MessageEvent{
		Message: msg,
		Reply: func(ctx context.Context, reply interface{}) error {
			mu.Lock()
			defer mu.Unlock()
			replies = append(replies, reply)
			return nil
		},
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	mu.Lock()
	defer mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"replies": replies})
}

// GET /sw/notifications lists what is currently on screen.
func (a *Agent) notificationsHandler(w http.ResponseWriter, r *http.Request) {
	visible, err := a.notifier.Visible(r.Context(), r.URL.Query().Get("tag"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, visible)
}

type windowView struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	Focused    bool   `json:"focused"`
	Controlled bool   `json:"controlled"`
}

// GET /sw/windows lists the open windows of the origin.
func (a *Agent) windowsHandler(w http.ResponseWriter, r *http.Request) {
	out := []windowView{}
	for _, win := range a.clients.Windows() {
		out = append(out, windowView{
			ID:         win.ID(),
			URL:        win.URL(),
			Focused:    win.Focused(),
			Controlled: win.Controlled(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// proxyHandler serves page requests through the worker's fetch handler, falling back
// to the origin for requests the worker does not intercept.
func (a *Agent) proxyHandler(w http.ResponseWriter, r *http.Request) {
	ev := &swruntime.FetchEvent{Request: r}
	resp, handled, err := a.runtime.DispatchFetch(r.Context(), ev)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if !handled {
		resp, err = a.passThrough(r)
		if err != nil {
			http.Error(w, "origin unreachable", http.StatusBadGateway)
			return
		}
	}
	defer resp.Body.Close()

	for k, v := range resp.Header {
		if strings.EqualFold(k, "Connection") {
			continue
		}
		w.Header()[k] = append([]string(nil), v...)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

func (a *Agent) passThrough(in *http.Request) (*http.Response, error) {
	origin, err := url.Parse(a.config.Agent.Origin)
	if err != nil {
		return nil, err
	}
	target := origin.ResolveReference(&url.URL{Path: in.URL.Path, RawQuery: in.URL.RawQuery})
	out, err := http.NewRequestWithContext(in.Context(), in.Method, target.String(), in.Body)
	if err != nil {
		return nil, err
	}
	out.Header = in.Header.Clone()
	out.ContentLength = in.ContentLength
	return a.fetcher.Do(out)
}

func (a *Agent) dispatch(w http.ResponseWriter, r *http.Request, ev swruntime.Event) {
	if err := a.runtime.Dispatch(r.Context(), ev); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"dispatched": string(ev.Kind())})
}

func (a *Agent) dispatchDetached(ev swruntime.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := a.runtime.Dispatch(ctx, ev); err != nil {
		a.logger.Warn("event dispatch failed", map[string]interface{}{
			"event": string(ev.Kind()),
			"error": err.Error(),
		})
	}
}

func (a *Agent) writeError(w http.ResponseWriter, err error) {
	stdErr := errs.Normalize(err)
	status := statusFor(stdErr.Code)
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed", map[string]interface{}{
			"errorCode": string(stdErr.Code),
			"error":     err.Error(),
		})
	}
	writeJSON(w, status, map[string]interface{}{
		"error":   stdErr.Code,
		"message": errs.UserMessage(stdErr),
		"details": stdErr.Details,
	})
}

func statusFor(code errs.ErrorCode) int {
	switch code {
	case errs.ErrCodeInvalidRequest, errs.ErrCodePayloadParse:
		return http.StatusBadRequest
	case errs.ErrCodePermissionDenied:
		return http.StatusForbidden
	case errs.ErrCodeRegistrationNotReady:
		return http.StatusConflict
	case errs.ErrCodeUnsupportedPlatform:
		return http.StatusNotImplemented
	case errs.ErrCodeNetwork, errs.ErrCodeSubscriptionRotated:
		return http.StatusBadGateway
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
