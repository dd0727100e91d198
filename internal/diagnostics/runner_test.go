package diagnostics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-push/internal/collaborator"
	"storefront-push/internal/common/logger"
	"storefront-push/internal/models"
	"storefront-push/pkg/notification"
)

type fakeAgent struct {
	status   *Status
	statErr  error
	pong     *Pong
	pingErr  error
	showErr  error
	shown    []string
	pingWait time.Duration
}

func (f *fakeAgent) Status(ctx context.Context) (*Status, error) { return f.status, f.statErr }

func (f *fakeAgent) Ping(ctx context.Context) (*Pong, error) {
	if f.pingWait > 0 {
		select {
		case <-time.After(f.pingWait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.pong, f.pingErr
}

func (f *fakeAgent) ShowLocal(ctx context.Context, title string, opts notification.Options) error {
	f.shown = append(f.shown, title)
	return f.showErr
}

type fakeServer struct {
	test    *models.TestResponse
	testErr error
	send    *models.SendResponse
	sendErr error
	sent    []models.SendRequest
}

func (f *fakeServer) Test(ctx context.Context) (*models.TestResponse, error) {
	return f.test, f.testErr
}

func (f *fakeServer) Send(ctx context.Context, req models.SendRequest) (*models.SendResponse, error) {
	f.sent = append(f.sent, req)
	return f.send, f.sendErr
}

func healthyAgent() *fakeAgent {
	return &fakeAgent{
		status: &Status{
			SubscriptionStatus: models.SubscriptionStatus{
				Supported:  true,
				Permission: models.PermissionGranted,
				Subscribed: true,
				Endpoint:   "https://push.example.test/send/abc",
			},
			WorkerState: "activated",
			Active:      true,
		},
		pong: &Pong{Type: "PONG", Version: "shopfront-v3"},
	}
}

func healthyServer() *fakeServer {
	return &fakeServer{
		test: &models.TestResponse{Success: true, Sent: true, VAPIDConfigured: true, TotalSubscriptions: 1, SuccessCount: 1},
		send: &models.SendResponse{SuccessCount: 1, TotalSubscriptions: 1, Results: []models.SendResult{{Endpoint: "a", Success: true, StatusCode: 201}}},
	}
}

func newRunner(t *testing.T, agent Agent, server Server) (*Runner, *[]time.Duration) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.PingTimeout = 50 * time.Millisecond
	r := NewRunner(cfg, agent, server, NewLog(), logger.NewTestLogger(t))
	var mu sync.Mutex
	var slept []time.Duration
	r.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		slept = append(slept, d)
		mu.Unlock()
		return ctx.Err()
	}
	return r, &slept
}

func lastLevel(r *Runner) Level {
	entries := r.Log().Entries()
	return entries[len(entries)-1].Level
}

func TestRunner_CheckPermission(t *testing.T) {
	tests := []struct {
		name      string
		supported bool
		perm      models.PermissionState
		wantErr   bool
		wantLevel Level
	}{
		{name: "granted", supported: true, perm: models.PermissionGranted, wantLevel: LevelSuccess},
		{name: "default", supported: true, perm: models.PermissionDefault, wantLevel: LevelWarning},
		{name: "denied", supported: true, perm: models.PermissionDenied, wantErr: true, wantLevel: LevelError},
		{name: "unsupported", supported: false, perm: models.PermissionDefault, wantErr: true, wantLevel: LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent := healthyAgent()
			agent.status.Supported = tt.supported
			agent.status.Permission = tt.perm
			r, _ := newRunner(t, agent, healthyServer())

			err := r.CheckPermission(context.Background())
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.wantLevel, lastLevel(r))
		})
	}
}

func TestRunner_CheckRegistration(t *testing.T) {
	tests := []struct {
		name      string
		state     string
		active    bool
		wantErr   bool
		wantLevel Level
	}{
		{name: "active", state: "activated", active: true, wantLevel: LevelSuccess},
		{name: "waiting", state: "installed", wantLevel: LevelWarning},
		{name: "missing", state: "none", wantErr: true, wantLevel: LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent := healthyAgent()
			agent.status.WorkerState = tt.state
			agent.status.Active = tt.active
			r, _ := newRunner(t, agent, healthyServer())

			err := r.CheckRegistration(context.Background())
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.wantLevel, lastLevel(r))
		})
	}
}

func TestRunner_CheckSubscription(t *testing.T) {
	agent := healthyAgent()
	r, _ := newRunner(t, agent, healthyServer())
	require.NoError(t, r.CheckSubscription(context.Background()))
	assert.Equal(t, LevelSuccess, lastLevel(r))

	agent.status.Subscribed = false
	require.NoError(t, r.CheckSubscription(context.Background()))
	assert.Equal(t, LevelWarning, lastLevel(r))

	agent.statErr = errors.New("agent down")
	assert.Error(t, r.CheckSubscription(context.Background()))
	assert.Equal(t, LevelError, lastLevel(r))
}

func TestRunner_Ping_TimesOut(t *testing.T) {
	agent := healthyAgent()
	agent.pingWait = time.Second
	r, _ := newRunner(t, agent, healthyServer())

	err := r.Ping(context.Background())
	require.Error(t, err)
	assert.Equal(t, LevelError, lastLevel(r))
}

func TestRunner_ShowLocalTest(t *testing.T) {
	agent := healthyAgent()
	r, _ := newRunner(t, agent, healthyServer())
	require.NoError(t, r.ShowLocalTest(context.Background()))
	assert.Equal(t, []string{"Local test"}, agent.shown)

	agent.showErr = errors.New("renotify without tag")
	assert.Error(t, r.ShowLocalTest(context.Background()))
}

func TestRunner_ServerTest_LogsRawBody(t *testing.T) {
	server := healthyServer()
	server.testErr = &collaborator.HTTPError{StatusCode: 500, Message: "boom", Body: `{"error":"VAPID keys not configured"}`}
	r, _ := newRunner(t, healthyAgent(), server)

	require.Error(t, r.ServerTest(context.Background()))
	entries := r.Log().Entries()
	last := entries[len(entries)-1]
	assert.Equal(t, LevelError, last.Level)
	assert.Contains(t, last.Message, `{"error":"VAPID keys not configured"}`)
}

func TestRunner_ServerSend(t *testing.T) {
	t.Run("partial failure logs each result", func(t *testing.T) {
		server := healthyServer()
		server.send = &models.SendResponse{
			SuccessCount:       1,
			TotalSubscriptions: 2,
			Results: []models.SendResult{
				{Endpoint: "a", Success: true, StatusCode: 201},
				{Endpoint: "b", StatusCode: 410, Error: "gone", Body: "push subscription has unsubscribed or expired", Removed: true},
			},
		}
		r, _ := newRunner(t, healthyAgent(), server)

		require.NoError(t, r.ServerSend(context.Background()))
		entries := r.Log().Entries()
		require.Len(t, entries, 3)
		assert.Equal(t, LevelWarning, entries[0].Level)
		assert.Contains(t, entries[2].Message, "push subscription has unsubscribed or expired")
		assert.Equal(t, "admin", server.sent[0].UserType)
	})

	t.Run("owner target", func(t *testing.T) {
		server := healthyServer()
		r, _ := newRunner(t, healthyAgent(), server)
		r.config.OwnerID = "owner-1"

		require.NoError(t, r.ServerSend(context.Background()))
		assert.Equal(t, "owner-1", server.sent[0].UserID)
		assert.Empty(t, server.sent[0].UserType)
	})

	t.Run("all failed", func(t *testing.T) {
		server := healthyServer()
		server.send = &models.SendResponse{TotalSubscriptions: 1, Results: []models.SendResult{{Endpoint: "a", StatusCode: 403, Error: "bad vapid"}}}
		r, _ := newRunner(t, healthyAgent(), server)
		assert.Error(t, r.ServerSend(context.Background()))
	})
}

func TestRunner_RunAll_OrderAndDelays(t *testing.T) {
	r, slept := newRunner(t, healthyAgent(), healthyServer())

	report, err := r.RunAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, report.Passed)
	assert.Equal(t, 0, report.Failed)
	assert.NotEmpty(t, report.RunID)

	assert.Equal(t, []time.Duration{
		time.Second, time.Second, time.Second, time.Second,
		2 * time.Second,
		time.Second,
	}, *slept)

	var steps []string
	for _, e := range report.Entries {
		if len(steps) == 0 || steps[len(steps)-1] != e.Step {
			steps = append(steps, e.Step)
		}
	}
	assert.Equal(t, []string{
		StepRun, StepPermission, StepRegistration, StepSubscription, StepPing,
		StepLocalTest, StepServerTest, StepServerSend, StepRun,
	}, steps)
}

func TestRunner_RunAll_ContinuesPastFailures(t *testing.T) {
	agent := healthyAgent()
	agent.pingErr = errors.New("no reply")
	server := healthyServer()
	server.testErr = errors.New("connection refused")
	r, _ := newRunner(t, agent, server)

	report, err := r.RunAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, report.Passed)
	assert.Equal(t, 2, report.Failed)
	assert.Len(t, server.sent, 1)
}

func TestRunner_RunAll_Cancelled(t *testing.T) {
	r, _ := newRunner(t, healthyAgent(), healthyServer())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := r.RunAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, report.Passed+report.Failed)
}

func TestLog_ConcurrentAppend(t *testing.T) {
	log := NewLog()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			log.Append(LevelInfo, "step", "entry %d", i)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, log.Len())
	assert.Len(t, log.Since(45), 5)
	assert.Nil(t, log.Since(50))
}
