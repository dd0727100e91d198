// Package subscription is the only surface application code uses to enable, disable or
// inspect push notifications for the current device.
package subscription

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	errs "storefront-push/internal/common/errors"
	"storefront-push/internal/common/logger"
	"storefront-push/internal/common/validation"
	"storefront-push/internal/models"
	"storefront-push/internal/platform"
)

// Server persists subscriptions on the push server.
type Server interface {
	Save(ctx context.Context, ownerID, userType string, sub *models.PushSubscription) error
	Delete(ctx context.Context, ownerID, endpoint string) error
}

type Config struct {
	// ApplicationServerKey is the VAPID public key. Empty is a deployment error
	// reported at subscribe time.
	ApplicationServerKey string
	UserType             string
}

type Manager struct {
	config        *Config
	caps          platform.Capabilities
	permissions   platform.Permissions
	registrations platform.RegistrationProvider
	server        Server
	logger        logger.Logger
}

func NewManager(
	config *Config,
	caps platform.Capabilities,
	permissions platform.Permissions,
	registrations platform.RegistrationProvider,
	server Server,
	log logger.Logger,
) *Manager {
	return &Manager{
		config:        config,
		caps:          caps,
		permissions:   permissions,
		registrations: registrations,
		server:        server,
		logger:        log.WithFields(map[string]interface{}{"component": "subscription-manager"}),
	}
}

// IsSupported reports whether both a worker registration and a push capability exist.
func (m *Manager) IsSupported() bool {
	return m.caps.ServiceWorker && m.caps.Push
}

// RequestPermission prompts once. It must only be called from an explicit user action.
func (m *Manager) RequestPermission(ctx context.Context) (models.PermissionState, error) {
	if !m.IsSupported() {
		return models.PermissionDefault, errs.NewUnsupportedPlatformError(m.missing())
	}
	state, err := m.permissions.Request(ctx)
	if err != nil {
		return models.PermissionDefault, fmt.Errorf("request permission: %w", err)
	}
	m.logger.Info("permission requested", map[string]interface{}{"permission": string(state)})
	return state, nil
}

// Subscribe creates or reuses the device subscription and stores it for ownerID. When
// the server cannot be reached the local subscription is kept and a NETWORK_ERROR is
// returned so the caller can retry the save.
func (m *Manager) Subscribe(ctx context.Context, ownerID string) (*models.PushSubscription, error) {
	if !m.IsSupported() {
		return nil, errs.NewUnsupportedPlatformError(m.missing())
	}
	key := strings.TrimSpace(m.config.ApplicationServerKey)
	if key == "" {
		return nil, errs.NewConfigurationError("VAPID public key is not configured")
	}
	if state := m.permissions.State(); state != models.PermissionGranted {
		return nil, errs.NewPermissionDeniedError(string(state))
	}

	reg, err := m.activeRegistration(ctx)
	if err != nil {
		return nil, err
	}
	pm := reg.PushManager()

	sub, err := m.pushSubscription(ctx, pm, key)
	if err != nil {
		return nil, err
	}

	if err := validateSubscription(sub); err != nil {
		return nil, err
	}

	if err := m.server.Save(ctx, ownerID, m.config.UserType, sub); err != nil {
		m.logger.Error("save subscription failed", map[string]interface{}{
			"ownerId":  ownerID,
			"endpoint": sub.Endpoint,
			"error":    err.Error(),
		})
		return nil, errs.NewNetworkError("save subscription", err)
	}

	m.logger.Info("subscribed", map[string]interface{}{
		"ownerId":  ownerID,
		"endpoint": sub.Endpoint,
	})
	return sub, nil
}

// Unsubscribe removes the local subscription and then the stored record. A server
// failure is logged and does not fail the call. Calling it without a subscription is
// a no-op.
func (m *Manager) Unsubscribe(ctx context.Context, ownerID string) error {
	if !m.IsSupported() {
		return nil
	}
	reg, err := m.registrations.Registration(ctx)
	if err != nil {
		return errs.NewNetworkError("resolve registration", err)
	}
	if reg == nil {
		return nil
	}
	pm := reg.PushManager()

	sub, err := pm.GetSubscription(ctx)
	if err != nil {
		return errs.NewNetworkError("get subscription", err)
	}
	if sub == nil {
		return nil
	}

	if _, err := pm.Unsubscribe(ctx, sub.Endpoint); err != nil {
		return errs.NewNetworkError("unsubscribe", err)
	}

	if err := m.server.Delete(ctx, ownerID, sub.Endpoint); err != nil {
		m.logger.Warn("local subscription removed but server delete failed", map[string]interface{}{
			"ownerId":  ownerID,
			"endpoint": sub.Endpoint,
			"error":    err.Error(),
		})
		return nil
	}

	m.logger.Info("unsubscribed", map[string]interface{}{
		"ownerId":  ownerID,
		"endpoint": sub.Endpoint,
	})
	return nil
}

// IsSubscribed reads the active registration's subscription without side effects.
func (m *Manager) IsSubscribed(ctx context.Context) (bool, error) {
	sub, err := m.current(ctx)
	if err != nil {
		return false, err
	}
	return sub != nil, nil
}

// Status reports permission and subscription as two independent states.
func (m *Manager) Status(ctx context.Context) (*models.SubscriptionStatus, error) {
	status := &models.SubscriptionStatus{
		Supported:  m.IsSupported(),
		Permission: models.PermissionDefault,
	}
	if !status.Supported {
		return status, nil
	}
	status.Permission = m.permissions.State()

	sub, err := m.current(ctx)
	if err != nil {
		return nil, err
	}
	if sub != nil {
		status.Subscribed = true
		status.Endpoint = sub.Endpoint
	}
	return status, nil
}

func (m *Manager) current(ctx context.Context) (*models.PushSubscription, error) {
	if !m.IsSupported() {
		return nil, nil
	}
	reg, err := m.registrations.Registration(ctx)
	if err != nil {
		return nil, errs.NewNetworkError("resolve registration", err)
	}
	if reg == nil {
		return nil, nil
	}
	sub, err := reg.PushManager().GetSubscription(ctx)
	if err != nil {
		return nil, errs.NewNetworkError("get subscription", err)
	}
	return sub, nil
}

func (m *Manager) activeRegistration(ctx context.Context) (platform.Registration, error) {
	reg, err := m.registrations.Registration(ctx)
	if err != nil {
		return nil, errs.NewRegistrationNotReadyError(err.Error())
	}
	if reg == nil {
		return nil, errs.NewRegistrationNotReadyError("none")
	}
	if !reg.Active() {
		return nil, errs.NewRegistrationNotReadyError(reg.State())
	}
	return reg, nil
}

// pushSubscription reuses a subscription made with the same key and replaces one made
// with another key.
func (m *Manager) pushSubscription(ctx context.Context, pm platform.PushManager, key string) (*models.PushSubscription, error) {
	existing, err := pm.GetSubscription(ctx)
	if err != nil {
		return nil, errs.NewNetworkError("get subscription", err)
	}
	if existing != nil {
		if existing.ApplicationServerKey == key {
			return existing, nil
		}
		m.logger.Warn("replacing subscription made with another key", map[string]interface{}{
			"endpoint": existing.Endpoint,
		})
		if _, err := pm.Unsubscribe(ctx, existing.Endpoint); err != nil {
			return nil, errs.NewNetworkError("unsubscribe stale key", err)
		}
	}

	sub, err := pm.Subscribe(ctx, platform.SubscribeOptions{
		UserVisibleOnly:      true,
		ApplicationServerKey: key,
	})
	if err != nil {
		return nil, errs.NewNetworkError("subscribe", err)
	}
	return sub, nil
}

func (m *Manager) missing() string {
	var missing []string
	if !m.caps.ServiceWorker {
		missing = append(missing, "serviceWorker")
	}
	if !m.caps.Push {
		missing = append(missing, "pushManager")
	}
	return strings.Join(missing, ",")
}

func validateSubscription(sub *models.PushSubscription) error {
	doc, err := json.Marshal(sub)
	if err != nil {
		return errs.NewSubscriptionInvalidError(err.Error())
	}
	result, err := validation.ValidateSubscription(doc)
	if err != nil {
		return errs.NewSubscriptionInvalidError(err.Error())
	}
	if !result.Valid {
		return errs.NewSubscriptionInvalidError(strings.Join(result.GetErrorMessages(), "; "))
	}
	return nil
}
