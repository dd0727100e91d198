package diagnostics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"storefront-push/internal/common/swruntime"
	"storefront-push/internal/models"
	"storefront-push/internal/platform"
	"storefront-push/pkg/notification"
)

var ErrNoPong = errors.New("worker did not answer PING")

// Status is what the diagnostics read from the device side.
type Status struct {
	models.SubscriptionStatus
	WorkerState string `json:"workerState"`
	Active      bool   `json:"active"`
}

type Pong struct {
	Type      string `json:"type"`
	Version   string `json:"version"`
	Timestamp int64  `json:"timestamp"`
}

// Agent is the device side under test, in process or behind the agent's HTTP API.
type Agent interface {
	Status(ctx context.Context) (*Status, error)
	Ping(ctx context.Context) (*Pong, error)
	ShowLocal(ctx context.Context, title string, opts notification.Options) error
}

// StatusReader is satisfied by the subscription manager.
type StatusReader interface {
	Status(ctx context.Context) (*models.SubscriptionStatus, error)
}

// Dispatcher delivers events to the worker runtime.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev swruntime.Event) error
}

// LocalAgent reads state from in-process components.
type LocalAgent struct {
	status        StatusReader
	registrations platform.RegistrationProvider
	worker        Dispatcher
}

func NewLocalAgent(status StatusReader, registrations platform.RegistrationProvider, worker Dispatcher) *LocalAgent {
	return &LocalAgent{status: status, registrations: registrations, worker: worker}
}

func (a *LocalAgent) Status(ctx context.Context) (*Status, error) {
	sub, err := a.status.Status(ctx)
	if err != nil {
		return nil, err
	}
	out := &Status{SubscriptionStatus: *sub, WorkerState: "none"}

	reg, err := a.registrations.Registration(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve registration: %w", err)
	}
	if reg != nil {
		out.WorkerState = reg.State()
		out.Active = reg.Active()
	}
	return out, nil
}

// Ping posts PING to the worker and waits for PONG on the reply port.
func (a *LocalAgent) Ping(ctx context.Context) (*Pong, error) {
	replies := make(chan interface{}, 1)
	ev := swruntime.MessageEvent{
		Message: swruntime.Message{Type: "PING"},
		Reply: func(ctx context.Context, msg interface{}) error {
			select {
			case replies <- msg:
			default:
			}
			return nil
		},
	}

	errc := make(chan error, 1)
	go func() { errc <- a.worker.Dispatch(ctx, ev) }()

	select {
	case msg := <-replies:
		return decodePong(msg)
	case err := <-errc:
		if err != nil {
			return nil, err
		}
		select {
		case msg := <-replies:
			return decodePong(msg)
		default:
			return nil, ErrNoPong
		}
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrNoPong, ctx.Err())
	}
}

func (a *LocalAgent) ShowLocal(ctx context.Context, title string, opts notification.Options) error {
	reg, err := a.registrations.Registration(ctx)
	if err != nil {
		return fmt.Errorf("resolve registration: %w", err)
	}
	if reg == nil {
		return errors.New("no worker registration")
	}
	if _, err := reg.Notifier().Show(ctx, title, opts); err != nil {
		return fmt.Errorf("show notification: %w", err)
	}
	return nil
}

func decodePong(msg interface{}) (*Pong, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode reply: %w", err)
	}
	var pong Pong
	if err := json.Unmarshal(data, &pong); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	if pong.Type != "PONG" {
		return nil, fmt.Errorf("%w: got %q", ErrNoPong, pong.Type)
	}
	return &pong, nil
}
