package memory

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/google/uuid"

	"storefront-push/internal/models"
	"storefront-push/internal/platform"
)

// PushManager holds at most one subscription, as a browser registration does.
// Endpoints are minted under endpointBase.
type PushManager struct {
	mu           sync.Mutex
	endpointBase string
	current      *models.PushSubscription
	receiverKey  *ecdh.PrivateKey
	subscribeErr error
	calls        []platform.SubscribeOptions
}

func NewPushManager(endpointBase string) *PushManager {
	return &PushManager{endpointBase: strings.TrimRight(endpointBase, "/")}
}

func (m *PushManager) Subscribe(ctx context.Context, opts platform.SubscribeOptions) (*models.PushSubscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, opts)

	if !opts.UserVisibleOnly {
		return nil, fmt.Errorf("%w: push subscriptions must be user visible", platform.ErrNotAllowed)
	}
	if opts.ApplicationServerKey == "" {
		return nil, fmt.Errorf("%w: applicationServerKey is required", platform.ErrInvalidState)
	}
	if m.subscribeErr != nil {
		return nil, m.subscribeErr
	}

	if m.current != nil {
		if m.current.ApplicationServerKey != opts.ApplicationServerKey {
			return nil, fmt.Errorf("%w: subscription exists with a different applicationServerKey", platform.ErrInvalidState)
		}
		return copySubscription(m.current), nil
	}

	sub, key, err := m.mint(opts.ApplicationServerKey)
	if err != nil {
		return nil, err
	}
	m.current = sub
	m.receiverKey = key
	return copySubscription(sub), nil
}

func (m *PushManager) GetSubscription(ctx context.Context) (*models.PushSubscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, nil
	}
	return copySubscription(m.current), nil
}

func (m *PushManager) Unsubscribe(ctx context.Context, endpoint string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || m.current.Endpoint != endpoint {
		return false, nil
	}
	m.current = nil
	m.receiverKey = nil
	return true, nil
}

// Invalidate drops the current subscription as the push service does on expiry and
// returns it so the host can fire pushsubscriptionchange.
func (m *PushManager) Invalidate() *models.PushSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	old := m.current
	m.current = nil
	m.receiverKey = nil
	return old
}

// FailSubscribe makes subsequent Subscribe calls return err; nil clears it.
func (m *PushManager) FailSubscribe(err error) {
	m.mu.Lock()
	m.subscribeErr = err
	m.mu.Unlock()
}

// SubscribeCalls returns the options of every Subscribe call so far.
func (m *PushManager) SubscribeCalls() []platform.SubscribeOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]platform.SubscribeOptions, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *PushManager) mint(applicationServerKey string) (*models.PushSubscription, *ecdh.PrivateKey, error) {
	// The receiver pair is a P-256 pair, the same shape as a VAPID pair.
	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: generate receiver keys: %v", platform.ErrPushService, err)
	}

	d, err := base64.RawURLEncoding.DecodeString(privateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: decode receiver key: %v", platform.ErrPushService, err)
	}
	key, err := ecdh.P256().NewPrivateKey(d)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: receiver key: %v", platform.ErrPushService, err)
	}

	secret := make([]byte, 16)
	if _, err := rand.Read(secret); err != nil {
		return nil, nil, fmt.Errorf("%w: generate auth secret: %v", platform.ErrPushService, err)
	}

	return &models.PushSubscription{
		Endpoint: fmt.Sprintf("%s/%s", m.endpointBase, uuid.NewString()),
		Keys: models.SubscriptionKeys{
			P256dh: publicKey,
			Auth:   base64.RawURLEncoding.EncodeToString(secret),
		},
		ApplicationServerKey: applicationServerKey,
	}, key, nil
}

func copySubscription(s *models.PushSubscription) *models.PushSubscription {
	out := *s
	if s.ExpirationTime != nil {
		exp := *s.ExpirationTime
		out.ExpirationTime = &exp
	}
	return &out
}
