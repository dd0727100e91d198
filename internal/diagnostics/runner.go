package diagnostics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"storefront-push/internal/collaborator"
	"storefront-push/internal/common/logger"
	"storefront-push/internal/models"
	"storefront-push/pkg/notification"
)

// Step names as they appear in the log.
const (
	StepPermission   = "permission"
	StepRegistration = "registration"
	StepSubscription = "subscription"
	StepPing         = "ping"
	StepLocalTest    = "local-test"
	StepServerTest   = "server-test"
	StepServerSend   = "server-send"
	StepRun          = "run"
)

// Server is the push server as seen by the diagnostics.
type Server interface {
	Test(ctx context.Context) (*models.TestResponse, error)
	Send(ctx context.Context, req models.SendRequest) (*models.SendResponse, error)
}

type Config struct {
	StepDelay      time.Duration
	LocalTestDelay time.Duration
	PingTimeout    time.Duration

	// OwnerID targets the direct send; empty sends to UserType.
	OwnerID  string
	UserType string
	URL      string
	Display  notification.Display
}

func DefaultConfig() *Config {
	return &Config{
		StepDelay:      time.Second,
		LocalTestDelay: 2 * time.Second,
		PingTimeout:    3 * time.Second,
		UserType:       "admin",
		URL:            "/admin",
	}
}

type Runner struct {
	config *Config
	agent  Agent
	server Server
	log    *Log
	logger logger.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewRunner(config *Config, agent Agent, server Server, log *Log, lg logger.Logger) *Runner {
	return &Runner{
		config: config,
		agent:  agent,
		server: server,
		log:    log,
		logger: lg.WithFields(map[string]interface{}{"component": "diagnostics"}),
		sleep:  sleepCtx,
	}
}

func (r *Runner) Log() *Log { return r.log }

func (r *Runner) CheckPermission(ctx context.Context) error {
	st, err := r.agent.Status(ctx)
	if err != nil {
		return r.fail(StepPermission, "could not read status: %v", err)
	}
	if !st.Supported {
		return r.fail(StepPermission, "push notifications are not supported here")
	}
	switch st.Permission {
	case models.PermissionGranted:
		r.log.Append(LevelSuccess, StepPermission, "permission granted")
	case models.PermissionDenied:
		return r.fail(StepPermission, "permission denied; allow notifications in site settings")
	default:
		r.log.Append(LevelWarning, StepPermission, "permission not requested yet")
	}
	return nil
}

func (r *Runner) CheckRegistration(ctx context.Context) error {
	st, err := r.agent.Status(ctx)
	if err != nil {
		return r.fail(StepRegistration, "could not read status: %v", err)
	}
	switch {
	case st.Active:
		r.log.Append(LevelSuccess, StepRegistration, "worker active (state %s)", st.WorkerState)
	case st.WorkerState == "none" || st.WorkerState == "":
		return r.fail(StepRegistration, "no worker registration")
	default:
		r.log.Append(LevelWarning, StepRegistration, "worker registered but not active (state %s)", st.WorkerState)
	}
	return nil
}

func (r *Runner) CheckSubscription(ctx context.Context) error {
	st, err := r.agent.Status(ctx)
	if err != nil {
		return r.fail(StepSubscription, "could not read status: %v", err)
	}
	if st.Subscribed {
		r.log.Append(LevelSuccess, StepSubscription, "subscribed at %s", st.Endpoint)
	} else {
		r.log.Append(LevelWarning, StepSubscription, "no push subscription on this device")
	}
	return nil
}

// Ping proves the worker is alive. The worker may be evicted before answering, so the
// wait is bounded by PingTimeout.
func (r *Runner) Ping(ctx context.Context) error {
	if r.config.PingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.PingTimeout)
		defer cancel()
	}
	start := time.Now()
	pong, err := r.agent.Ping(ctx)
	if err != nil {
		return r.fail(StepPing, "no PONG: %v", err)
	}
	r.log.Append(LevelSuccess, StepPing, "PONG from %s in %s", pong.Version, time.Since(start).Round(time.Millisecond))
	return nil
}

func (r *Runner) ShowLocalTest(ctx context.Context) error {
	p := notification.Payload{
		Title: "Local test",
		Body:  "This notification was shown without the push service",
		URL:   r.config.URL,
		Tag:   "diagnostics-local",
	}
	if err := r.agent.ShowLocal(ctx, p.Title, notification.BuildOptions(p, r.config.Display)); err != nil {
		return r.fail(StepLocalTest, "local notification failed: %v", err)
	}
	r.log.Append(LevelSuccess, StepLocalTest, "local notification shown")
	return nil
}

func (r *Runner) ServerTest(ctx context.Context) error {
	resp, err := r.server.Test(ctx)
	if err != nil {
		return r.serverFailure(StepServerTest, err)
	}
	if !resp.Success && !resp.Sent {
		return r.fail(StepServerTest, "server test reported failure: %s (vapidConfigured=%t, subscriptions=%d)",
			resp.Message, resp.VAPIDConfigured, resp.TotalSubscriptions)
	}
	r.log.Append(LevelSuccess, StepServerTest, "server test sent to %d of %d subscriptions",
		resp.SuccessCount, resp.TotalSubscriptions)
	r.logResults(StepServerTest, resp.Results)
	return nil
}

func (r *Runner) ServerSend(ctx context.Context) error {
	req := models.SendRequest{
		Title:   "Diagnostics",
		Message: "Direct send from diagnostics",
		URL:     r.config.URL,
		Tag:     "diagnostics-send",
	}
	if r.config.OwnerID != "" {
		req.UserID = r.config.OwnerID
	} else {
		req.UserType = r.config.UserType
	}

	resp, err := r.server.Send(ctx, req)
	if err != nil {
		return r.serverFailure(StepServerSend, err)
	}
	if resp.TotalSubscriptions == 0 {
		r.log.Append(LevelWarning, StepServerSend, "no stored subscriptions for the target")
		return nil
	}
	level := LevelSuccess
	if resp.SuccessCount == 0 {
		level = LevelError
	} else if resp.SuccessCount < resp.TotalSubscriptions {
		level = LevelWarning
	}
	r.log.Append(level, StepServerSend, "delivered to %d of %d subscriptions", resp.SuccessCount, resp.TotalSubscriptions)
	r.logResults(StepServerSend, resp.Results)
	if level == LevelError {
		return fmt.Errorf("%s: no delivery succeeded", StepServerSend)
	}
	return nil
}

// Report summarizes one RunAll.
type Report struct {
	RunID    string        `json:"runId"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Entries  []Entry       `json:"entries"`
}

// RunAll runs every step in order with the configured delays between them. A failing
// step does not stop the run; a cancelled context does.
func (r *Runner) RunAll(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), Started: time.Now().UTC()}
	mark := r.log.Len()
	r.log.Append(LevelInfo, StepRun, "starting diagnostics run %s", report.RunID)

	steps := []struct {
		name  string
		run   func(context.Context) error
		delay time.Duration
	}{
		{StepPermission, r.CheckPermission, r.config.StepDelay},
		{StepRegistration, r.CheckRegistration, r.config.StepDelay},
		{StepSubscription, r.CheckSubscription, r.config.StepDelay},
		{StepPing, r.Ping, r.config.StepDelay},
		{StepLocalTest, r.ShowLocalTest, r.config.LocalTestDelay},
		{StepServerTest, r.ServerTest, r.config.StepDelay},
		{StepServerSend, r.ServerSend, 0},
	}

	var runErr error
	for i, step := range steps {
		if err := step.run(ctx); err != nil {
			report.Failed++
			r.logger.Warn("diagnostics step failed", map[string]interface{}{
				"runId": report.RunID,
				"step":  step.name,
				"error": err.Error(),
			})
		} else {
			report.Passed++
		}
		if i == len(steps)-1 {
			break
		}
		if err := r.sleep(ctx, step.delay); err != nil {
			r.log.Append(LevelError, StepRun, "run cancelled after %s: %v", step.name, err)
			runErr = err
			break
		}
	}

	report.Duration = time.Since(report.Started)
	r.log.Append(LevelInfo, StepRun, "finished: %d passed, %d failed", report.Passed, report.Failed)
	report.Entries = r.log.Since(mark)
	return report, runErr
}

func (r *Runner) fail(step, format string, args ...interface{}) error {
	e := r.log.Append(LevelError, step, format, args...)
	return fmt.Errorf("%s: %s", step, e.Message)
}

// serverFailure logs the raw response body so the operator sees what the server said.
func (r *Runner) serverFailure(step string, err error) error {
	if body, ok := collaborator.RawBody(err); ok {
		return r.fail(step, "%v; body: %s", err, body)
	}
	return r.fail(step, "%v", err)
}

func (r *Runner) logResults(step string, results []models.SendResult) {
	for _, res := range results {
		if res.Success {
			r.log.Append(LevelInfo, step, "delivered to %s (%d)", res.Endpoint, res.StatusCode)
			continue
		}
		msg := fmt.Sprintf("failed for %s (%d): %s", res.Endpoint, res.StatusCode, res.Error)
		if res.Body != "" {
			msg += "; body: " + res.Body
		}
		if res.Removed {
			msg += "; subscription removed"
		}
		r.log.Append(LevelWarning, step, "%s", msg)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
