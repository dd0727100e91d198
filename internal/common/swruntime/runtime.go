// Package swruntime hosts the background worker: its lifecycle state machine and the
// dispatch of platform events to handlers.
package swruntime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	apperrors "storefront-push/internal/common/errors"
	"storefront-push/internal/common/logger"
	"storefront-push/internal/common/metrics"
	"storefront-push/internal/common/observability"
)

// State is the worker lifecycle state.
type State string

const (
	StateParsed     State = "parsed"
	StateInstalling State = "installing"
	StateInstalled  State = "installed"
	StateActivating State = "activating"
	StateActivated  State = "activated"
	StateRedundant  State = "redundant"
)

var (
	ErrRedundant    = errors.New("worker is redundant")
	ErrInvalidState = errors.New("invalid lifecycle transition")
	ErrHandlerPanic = errors.New("handler panicked")
)

// Runtime owns one worker instance. It is safe for concurrent dispatch.
type Runtime struct {
	mu          sync.Mutex
	version     string
	state       State
	skipWaiting bool
	activated   chan struct{}
	handlers    map[EventKind]Handler
	fetch       FetchHandler
	timeouts    map[EventKind]time.Duration
	pending     sync.WaitGroup

	obs    *observability.Observability
	errs   *apperrors.ErrorHandler
	logger logger.Logger
}

type Option func(*Runtime)

// WithTimeout bounds the extension of one event kind.
func WithTimeout(kind EventKind, d time.Duration) Option {
	return func(r *Runtime) {
		if d > 0 {
			r.timeouts[kind] = d
		}
	}
}

func New(version string, obs *observability.Observability, log logger.Logger, opts ...Option) *Runtime {
	if obs == nil {
		obs = &observability.Observability{}
	}
	log = log.WithFields(map[string]interface{}{"workerVersion": version})
	r := &Runtime{
		version:   version,
		state:     StateParsed,
		activated: make(chan struct{}),
		handlers:  make(map[EventKind]Handler),
		timeouts:  make(map[EventKind]time.Duration),
		obs:       obs,
		errs:      apperrors.NewErrorHandler(log),
		logger:    log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register installs the handler for kind, replacing any previous one.
func (r *Runtime) Register(kind EventKind, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = h
}

func (r *Runtime) RegisterFetch(h FetchHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetch = h
}

func (r *Runtime) Version() string { return r.version }

func (r *Runtime) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Status is State as a plain string.
func (r *Runtime) Status() string { return string(r.State()) }

func (r *Runtime) Active() bool { return r.State() == StateActivated }

// Start installs the worker and activates it.
func (r *Runtime) Start(ctx context.Context) error {
	if err := r.Install(ctx); err != nil {
		return err
	}
	if r.State() == StateInstalled {
		return r.Activate(ctx)
	}
	return nil
}

// Install runs the install event. A failed install makes the worker redundant. When
// SkipWaiting was called during install the worker proceeds to activation.
func (r *Runtime) Install(ctx context.Context) error {
	if err := r.transition(StateParsed, StateInstalling); err != nil {
		return err
	}

	if err := r.dispatch(ctx, InstallEvent{}); err != nil {
		r.setState(StateRedundant)
		r.logger.Error("Install failed, worker is redundant", map[string]interface{}{"error": err.Error()})
		return fmt.Errorf("install: %w", err)
	}

	r.mu.Lock()
	r.state = StateInstalled
	skip := r.skipWaiting
	r.mu.Unlock()
	r.logger.Info("Worker installed", map[string]interface{}{"skipWaiting": skip})

	if skip {
		return r.Activate(ctx)
	}
	return nil
}

// Activate runs the activate event. The worker becomes activated even if the handler
// failed; the failure is logged and returned.
func (r *Runtime) Activate(ctx context.Context) error {
	if err := r.transition(StateInstalled, StateActivating); err != nil {
		return err
	}

	err := r.dispatch(ctx, ActivateEvent{})

	r.mu.Lock()
	r.state = StateActivated
	close(r.activated)
	r.mu.Unlock()

	if err != nil {
		r.logger.Error("Activate handler failed", map[string]interface{}{"error": err.Error()})
		return fmt.Errorf("activate: %w", err)
	}
	r.logger.Info("Worker activated", nil)
	return nil
}

// SkipWaiting lets a waiting worker activate immediately. During install it only
// marks the worker; an installed worker is activated before SkipWaiting returns.
func (r *Runtime) SkipWaiting(ctx context.Context) error {
	r.mu.Lock()
	r.skipWaiting = true
	state := r.state
	r.mu.Unlock()

	if state != StateInstalled {
		return nil
	}
	err := r.Activate(ctx)
	if errors.Is(err, ErrInvalidState) {
		// Activated concurrently.
		return nil
	}
	return err
}

// WaitActivated blocks until the worker is activated.
func (r *Runtime) WaitActivated(ctx context.Context) error {
	select {
	case <-r.activated:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatch delivers a functional or message event and waits for its extension.
// Functional events wait for activation first.
func (r *Runtime) Dispatch(ctx context.Context, ev Event) error {
	kind := ev.Kind()
	if kind == EventInstall || kind == EventActivate {
		return fmt.Errorf("%w: %s is dispatched by the lifecycle", ErrInvalidState, kind)
	}
	if r.State() == StateRedundant {
		return ErrRedundant
	}
	if kind.functional() {
		if err := r.WaitActivated(ctx); err != nil {
			return err
		}
	}
	return r.dispatch(ctx, ev)
}

// DispatchFetch offers req to the fetch handler. handled is false when the request
// should go to the network untouched.
func (r *Runtime) DispatchFetch(ctx context.Context, ev *FetchEvent) (resp *http.Response, handled bool, err error) {
	if r.State() == StateRedundant {
		return nil, false, ErrRedundant
	}
	if err := r.WaitActivated(ctx); err != nil {
		return nil, false, err
	}

	r.mu.Lock()
	h := r.fetch
	r.mu.Unlock()
	if h == nil {
		return nil, false, nil
	}

	ctx, span := r.obs.StartSpan(ctx, "worker.fetch",
		attribute.String("http.method", ev.Request.Method),
		attribute.String("http.path", ev.Request.URL.Path))
	defer span.End()

	respond := r.safeFetch(ctx, h, ev)
	if respond == nil {
		span.SetAttributes(attribute.Bool("passthrough", true))
		return nil, false, nil
	}

	err = r.extend(ctx, EventFetch, func(ctx context.Context) error {
		var rerr error
		resp, rerr = respond(ctx)
		return rerr
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, true, err
	}
	return resp, true, nil
}

// Terminate marks the worker redundant and waits for pending extensions. Extensions
// accepted before the state change are waited for; later ones are refused.
func (r *Runtime) Terminate(ctx context.Context) error {
	r.setState(StateRedundant)

	done := make(chan struct{})
	go func() {
		r.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.logger.Info("Worker terminated", nil)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("terminate with pending work: %w", ctx.Err())
	}
}

func (r *Runtime) dispatch(ctx context.Context, ev Event) error {
	kind := ev.Kind()

	r.mu.Lock()
	h, ok := r.handlers[kind]
	r.mu.Unlock()
	if !ok {
		return nil
	}

	ctx, span := r.obs.StartSpan(ctx, "worker."+string(kind), attribute.String("event", string(kind)))
	defer span.End()

	wait := r.safeHandle(ctx, h, ev)
	if wait == nil {
		metrics.WorkerEventsDispatched.WithLabelValues(string(kind)).Inc()
		r.obs.RecordEventProcessed(ctx, string(kind), "success")
		return nil
	}

	err := r.extend(ctx, kind, wait)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// extend runs one lifetime extension with metrics, timeout and panic recovery. A
// redundant worker accepts no new extensions.
func (r *Runtime) extend(ctx context.Context, kind EventKind, wait WaitUntil) (err error) {
	label := string(kind)
	r.mu.Lock()
	if r.state == StateRedundant {
		r.mu.Unlock()
		return ErrRedundant
	}
	r.pending.Add(1)
	r.mu.Unlock()
	metrics.WorkerEventsInflight.WithLabelValues(label).Inc()
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			err = r.panicError(kind, p)
		}
		elapsed := time.Since(start)
		status := "success"
		if err != nil {
			status = "error"
			stdErr := r.errs.HandleEventError(label, err)
			metrics.WorkerEventsFailed.WithLabelValues(label, string(stdErr.Code)).Inc()
		}
		metrics.WorkerEventsDispatched.WithLabelValues(label).Inc()
		metrics.WorkerEventDuration.WithLabelValues(label).Observe(elapsed.Seconds())
		metrics.WorkerEventsInflight.WithLabelValues(label).Dec()
		r.obs.RecordEventProcessed(ctx, label, status)
		r.obs.RecordEventDuration(ctx, label, elapsed, status)
		r.pending.Done()
	}()

	if d, ok := r.timeouts[kind]; ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	return wait(ctx)
}

func (r *Runtime) safeHandle(ctx context.Context, h Handler, ev Event) (wait WaitUntil) {
	defer func() {
		if p := recover(); p != nil {
			err := r.panicError(ev.Kind(), p)
			wait = func(context.Context) error { return err }
		}
	}()
	return h.Handle(ctx, ev)
}

func (r *Runtime) safeFetch(ctx context.Context, h FetchHandler, ev *FetchEvent) (respond RespondWith) {
	defer func() {
		if p := recover(); p != nil {
			err := r.panicError(EventFetch, p)
			respond = func(context.Context) (*http.Response, error) { return nil, err }
		}
	}()
	return h.HandleFetch(ctx, ev)
}

func (r *Runtime) panicError(kind EventKind, p interface{}) error {
	r.logger.Error("Handler panicked", map[string]interface{}{
		"event": string(kind),
		"panic": fmt.Sprint(p),
		"stack": string(debug.Stack()),
	})
	return fmt.Errorf("%w: %s: %v", ErrHandlerPanic, kind, p)
}

func (r *Runtime) transition(from, to State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != from {
		return fmt.Errorf("%w: %s -> %s from %s", ErrInvalidState, from, to, r.state)
	}
	r.state = to
	return nil
}

func (r *Runtime) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}
