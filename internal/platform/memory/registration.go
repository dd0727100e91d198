package memory

import (
	"context"

	"storefront-push/internal/platform"
)

// WorkerStatus is the lifecycle view of the worker behind a registration.
type WorkerStatus interface {
	Active() bool
	Status() string
}

// Registration binds a worker to its push manager and notification center.
type Registration struct {
	worker   WorkerStatus
	push     *PushManager
	notifier *NotificationCenter
}

func NewRegistration(worker WorkerStatus, push *PushManager, notifier *NotificationCenter) *Registration {
	return &Registration{worker: worker, push: push, notifier: notifier}
}

func (r *Registration) Active() bool                      { return r.worker != nil && r.worker.Active() }
func (r *Registration) PushManager() platform.PushManager { return r.push }
func (r *Registration) Notifier() platform.Notifier       { return r.notifier }

func (r *Registration) State() string {
	if r.worker == nil {
		return "none"
	}
	return r.worker.Status()
}

// Provider resolves a fixed registration; a nil registration means none exists.
type Provider struct {
	Reg *Registration
	Err error
}

func (p *Provider) Registration(ctx context.Context) (platform.Registration, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	if p.Reg == nil {
		return nil, nil
	}
	return p.Reg, nil
}
