package diagnostics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"storefront-push/internal/collaborator"
	"storefront-push/pkg/notification"
)

type localTestRequest struct {
	Title   string               `json:"title"`
	Options notification.Options `json:"options"`
}

// RegisterRoutes exposes an Agent under r so out-of-process tools can run the device
// steps. Routes: GET /status, POST /ping, POST /local-test.
func RegisterRoutes(r *mux.Router, agent Agent) {
	r.HandleFunc("/status", func(w http.ResponseWriter, req *http.Request) {
		st, err := agent.Status(req.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, st)
	}).Methods(http.MethodGet)

	r.HandleFunc("/ping", func(w http.ResponseWriter, req *http.Request) {
		pong, err := agent.Ping(req.Context())
		if err != nil {
			writeJSON(w, http.StatusGatewayTimeout, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, pong)
	}).Methods(http.MethodPost)

	r.HandleFunc("/local-test", func(w http.ResponseWriter, req *http.Request) {
		var body localTestRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Title == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
			return
		}
		if err := agent.ShowLocal(req.Context(), body.Title, body.Options); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodPost)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// HTTPAgent is the Agent behind a push-agent's diagnostics routes.
type HTTPAgent struct {
	baseURL    string
	httpClient collaborator.Doer
}

func NewHTTPAgent(baseURL string, httpClient collaborator.Doer) *HTTPAgent {
	return &HTTPAgent{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

func (a *HTTPAgent) Status(ctx context.Context) (*Status, error) {
	var st Status
	if err := a.do(ctx, http.MethodGet, "/status", nil, &st); err != nil {
		return nil, fmt.Errorf("agent.Status: %w", err)
	}
	return &st, nil
}

func (a *HTTPAgent) Ping(ctx context.Context) (*Pong, error) {
	var pong Pong
	if err := a.do(ctx, http.MethodPost, "/ping", nil, &pong); err != nil {
		return nil, fmt.Errorf("agent.Ping: %w", err)
	}
	return &pong, nil
}

func (a *HTTPAgent) ShowLocal(ctx context.Context, title string, opts notification.Options) error {
	if err := a.do(ctx, http.MethodPost, "/local-test", localTestRequest{Title: title, Options: opts}, nil); err != nil {
		return fmt.Errorf("agent.ShowLocal: %w", err)
	}
	return nil
}

func (a *HTTPAgent) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return &collaborator.HTTPError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw)), Body: string(raw)}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
