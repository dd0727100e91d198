package memory

import (
	"context"
	"sync"

	"storefront-push/internal/models"
)

// Permissions answers the permission prompt with a fixed policy, the way a user who
// always clicks the same button would.
type Permissions struct {
	mu      sync.Mutex
	state   models.PermissionState
	answer  models.PermissionState
	prompts int
}

// NewPermissions starts in state and answers prompts with answer.
func NewPermissions(state, answer models.PermissionState) *Permissions {
	if state == "" {
		state = models.PermissionDefault
	}
	if answer == "" {
		answer = models.PermissionDefault
	}
	return &Permissions{state: state, answer: answer}
}

func (p *Permissions) State() models.PermissionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Request prompts only while the state is still default; a decided permission is
// returned as is.
func (p *Permissions) Request(ctx context.Context) (models.PermissionState, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != models.PermissionDefault {
		return p.state, nil
	}
	p.prompts++
	p.state = p.answer
	return p.state, nil
}

// Set changes the state as if the user edited site settings.
func (p *Permissions) Set(state models.PermissionState) {
	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
}

func (p *Permissions) Prompts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prompts
}
