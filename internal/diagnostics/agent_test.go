package diagnostics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-push/internal/collaborator"
	commonhttp "storefront-push/internal/common/http"
	"storefront-push/internal/common/logger"
	"storefront-push/internal/common/swruntime"
	"storefront-push/internal/models"
	"storefront-push/internal/platform/memory"
	"storefront-push/pkg/notification"
)

type staticStatus struct{ st models.SubscriptionStatus }

func (s staticStatus) Status(ctx context.Context) (*models.SubscriptionStatus, error) {
	st := s.st
	return &st, nil
}

func startedRuntime(t *testing.T, onMessage swruntime.HandlerFunc) *swruntime.Runtime {
	t.Helper()
	rt := swruntime.New("shopfront-v3", nil, logger.NewTestLogger(t))
	if onMessage != nil {
		rt.Register(swruntime.EventMessage, onMessage)
	}
	require.NoError(t, rt.Start(context.Background()))
	return rt
}

func pongHandler(ctx context.Context, ev swruntime.Event) swruntime.WaitUntil {
	msg := ev.(swruntime.MessageEvent)
	return func(ctx context.Context) error {
		return msg.Reply(ctx, map[string]interface{}{"type": "PONG", "version": "shopfront-v3", "timestamp": 1})
	}
}

func newLocalAgent(t *testing.T, rt *swruntime.Runtime) (*LocalAgent, *memory.NotificationCenter) {
	t.Helper()
	center := memory.NewNotificationCenter()
	reg := memory.NewRegistration(rt, memory.NewPushManager("https://push.example.test/send"), center)
	status := staticStatus{st: models.SubscriptionStatus{Supported: true, Permission: models.PermissionGranted}}
	return NewLocalAgent(status, &memory.Provider{Reg: reg}, rt), center
}

func TestLocalAgent_Status(t *testing.T) {
	agent, _ := newLocalAgent(t, startedRuntime(t, nil))

	st, err := agent.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Active)
	assert.Equal(t, "activated", st.WorkerState)
	assert.Equal(t, models.PermissionGranted, st.Permission)
}

func TestLocalAgent_Ping(t *testing.T) {
	agent, _ := newLocalAgent(t, startedRuntime(t, pongHandler))

	pong, err := agent.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "shopfront-v3", pong.Version)
}

func TestLocalAgent_Ping_NoHandler(t *testing.T) {
	agent, _ := newLocalAgent(t, startedRuntime(t, nil))

	_, err := agent.Ping(context.Background())
	assert.ErrorIs(t, err, ErrNoPong)
}

func TestLocalAgent_ShowLocal(t *testing.T) {
	agent, center := newLocalAgent(t, startedRuntime(t, nil))

	err := agent.ShowLocal(context.Background(), "Local test", notification.Options{Body: "hello", Tag: "diagnostics-local"})
	require.NoError(t, err)
	require.Len(t, center.History(), 1)
	assert.Equal(t, "Local test", center.History()[0].Title)
}

func TestHTTPAgent_RoundTrip(t *testing.T) {
	local, center := newLocalAgent(t, startedRuntime(t, pongHandler))
	router := mux.NewRouter()
	RegisterRoutes(router.PathPrefix("/sw/diagnostics").Subrouter(), local)
	srv := httptest.NewServer(router)
	defer srv.Close()

	remote := NewHTTPAgent(srv.URL+"/sw/diagnostics", commonhttp.NewClient(5*time.Second))
	ctx := context.Background()

	st, err := remote.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Supported)
	assert.True(t, st.Active)

	pong, err := remote.Ping(ctx)
	require.NoError(t, err)
	assert.Equal(t, "PONG", pong.Type)

	require.NoError(t, remote.ShowLocal(ctx, "Local test", notification.Options{Body: "hi"}))
	assert.Len(t, center.History(), 1)

	err = remote.ShowLocal(ctx, "", notification.Options{})
	require.Error(t, err)
	assert.True(t, collaborator.IsStatus(err, http.StatusBadRequest))
}
